// Package settlement mediates the external settlement layer: the chain
// that actually executes trades and holds collateral balances. The ledger
// only depends on the Executor interface; behind it sit an HTTP client for
// a settlement node and a deterministic in-process simulator.
//
// Settlement calls are at-least-once-attempted, result-once-observed. The
// two error kinds matter to callers in different ways: ErrRejected means
// the layer observably did not execute (safe to retry from scratch), while
// ErrAmbiguous means the outcome is unknown (retry could double-execute).
package settlement

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/model"
)

var (
	// ErrRejected is returned when the settlement layer explicitly
	// rejected or failed the transaction. Nothing was executed.
	ErrRejected = errors.New("settlement: transaction rejected")

	// ErrAmbiguous is returned when the request may have reached the
	// settlement layer but the outcome was never observed (timeout).
	// Requires reconciliation; automatic retry is unsafe.
	ErrAmbiguous = errors.New("settlement: outcome unknown")
)

// OpenIntent carries everything the settlement layer needs to record a
// position open.
type OpenIntent struct {
	Address    string          `json:"address"`
	PositionID string          `json:"position_id"`
	Asset      string          `json:"asset"`
	Side       model.Side      `json:"side"`
	Collateral decimal.Decimal `json:"collateral"`
	Leverage   decimal.Decimal `json:"leverage"`
	Price      decimal.Decimal `json:"price"`
}

// CloseIntent carries the position snapshot needed to settle a close at
// the given mark price.
type CloseIntent struct {
	Address    string          `json:"address"`
	PositionID string          `json:"position_id"`
	Asset      string          `json:"asset"`
	Side       model.Side      `json:"side"`
	Size       decimal.Decimal `json:"size"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	Collateral decimal.Decimal `json:"collateral"`
	Price      decimal.Decimal `json:"price"`
}

// CloseResult is the settlement layer's authoritative close outcome. The
// realized PnL comes from here, not from the ledger's own mark-to-market
// estimate: only the settlement layer observes the exact execution price.
type CloseResult struct {
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	TxHash      string          `json:"tx_hash"`
}

// Block describes the latest key block of the settlement chain.
type Block struct {
	Height            int64  `json:"height"`
	Hash              string `json:"hash"`
	Time              int64  `json:"time"`
	TransactionsCount int    `json:"transactions_count"`
	MicroBlocksCount  int    `json:"micro_blocks_count"`
	Miner             string `json:"miner"`
}

// Executor records trades on the settlement layer and reads collateral
// balances from it.
type Executor interface {
	// RecordOpen records a position open, returning the transaction hash.
	RecordOpen(ctx context.Context, intent OpenIntent) (string, error)

	// RecordClose settles a position close, returning the authoritative
	// realized PnL and transaction hash.
	RecordClose(ctx context.Context, intent CloseIntent) (CloseResult, error)

	// OnChainBalance reads an address's deposited collateral balance.
	OnChainBalance(ctx context.Context, address string) (decimal.Decimal, error)
}

// ChainInfo reports settlement-chain status for display.
type ChainInfo interface {
	LatestBlock(ctx context.Context) (Block, error)
}
