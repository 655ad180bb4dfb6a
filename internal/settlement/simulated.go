package settlement

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/model"
	"github.com/lorem111/claerdex/internal/positionmath"
)

// Simulated is an in-process Executor used when no settlement node is
// configured. Opens are "recorded" by hashing the trade details into a
// deterministic transaction hash; closes settle at the submitted mark
// price. Balances report a fixed deposit per address.
type Simulated struct {
	defaultBalance decimal.Decimal
}

// NewSimulated creates a simulated executor where every address holds
// defaultBalance of deposited collateral.
func NewSimulated(defaultBalance decimal.Decimal) *Simulated {
	return &Simulated{defaultBalance: defaultBalance}
}

func (s *Simulated) RecordOpen(_ context.Context, intent OpenIntent) (string, error) {
	return txHash(fmt.Sprintf("open,%s,%s,%s,%s,%s,%s,%s",
		intent.Address, intent.PositionID, intent.Asset, intent.Side,
		intent.Collateral, intent.Leverage, intent.Price)), nil
}

func (s *Simulated) RecordClose(_ context.Context, intent CloseIntent) (CloseResult, error) {
	pos := model.Position{
		Side:       intent.Side,
		Size:       intent.Size,
		EntryPrice: intent.EntryPrice,
	}
	pnl, err := positionmath.UnrealizedPnL(pos, intent.Price)
	if err != nil {
		return CloseResult{}, fmt.Errorf("%w: %v", ErrRejected, err)
	}

	return CloseResult{
		RealizedPnL: pnl,
		TxHash: txHash(fmt.Sprintf("close,%s,%s,%s",
			intent.Address, intent.PositionID, intent.Price)),
	}, nil
}

func (s *Simulated) OnChainBalance(_ context.Context, _ string) (decimal.Decimal, error) {
	return s.defaultBalance, nil
}

// LatestBlock synthesizes a block advancing every ~3 minutes, the chain's
// approximate key-block cadence.
func (s *Simulated) LatestBlock(_ context.Context) (Block, error) {
	now := time.Now()
	height := now.Unix() / 180
	return Block{
		Height: height,
		Hash:   "kh_" + shortHash(fmt.Sprintf("block-%d", height)),
		Time:   now.UnixMilli(),
	}, nil
}

// txHash derives a deterministic th_-prefixed transaction hash from the
// trade details, standing in for the hash a real chain would return.
func txHash(details string) string {
	return "th_" + shortHash(details)
}

func shortHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
