// Package ledger implements the position and account ledger: it maintains
// account state under concurrent open/close requests, computes liquidation
// prices and unrealized PnL, and mediates every position change through
// the external settlement layer.
//
// All monetary values use shopspring/decimal — never float64 for money.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/asset"
	"github.com/lorem111/claerdex/internal/metrics"
	"github.com/lorem111/claerdex/internal/model"
	"github.com/lorem111/claerdex/internal/oracle"
	"github.com/lorem111/claerdex/internal/positionmath"
	"github.com/lorem111/claerdex/internal/risk"
	"github.com/lorem111/claerdex/internal/settlement"
	"github.com/lorem111/claerdex/internal/store"
)

// Config wires a Service's collaborators. Store, Prices, and Executor are
// required; the rest have working defaults.
type Config struct {
	Store    store.Store
	Prices   oracle.Source
	Charts   oracle.ChartSource      // optional; chart endpoints 404 without it
	Executor settlement.Executor
	Chain    settlement.ChainInfo    // optional; status endpoint degrades without it
	Limiter  *risk.Limiter

	// Maintenance is the fraction of the margin cushion consumed before
	// liquidation. Defaults to 0.95: liquidation triggers slightly before
	// a 100% margin loss.
	Maintenance decimal.Decimal

	// SettleTimeout bounds each settlement call. Expiry after the request
	// may have been sent surfaces as settlement.ErrAmbiguous.
	SettleTimeout time.Duration

	Hub *WSHub // optional WebSocket hub for event broadcasts
}

// Service is the ledger orchestrator.
type Service struct {
	store       store.Store
	prices      oracle.Source
	charts      oracle.ChartSource
	exec        settlement.Executor
	chain       settlement.ChainInfo
	limiter     *risk.Limiter
	maintenance decimal.Decimal
	settleTO    time.Duration
	hub         *WSHub
	locks       *addressLocks
}

// NewService creates a ledger service.
func NewService(cfg Config) *Service {
	if cfg.Maintenance.IsZero() {
		cfg.Maintenance = decimal.NewFromFloat(0.95)
	}
	if cfg.SettleTimeout == 0 {
		cfg.SettleTimeout = 10 * time.Second
	}
	if cfg.Limiter == nil {
		cfg.Limiter = risk.NewLimiter(decimal.NewFromInt(50), 0, decimal.Zero)
	}
	return &Service{
		store:       cfg.Store,
		prices:      cfg.Prices,
		charts:      cfg.Charts,
		exec:        cfg.Executor,
		chain:       cfg.Chain,
		limiter:     cfg.Limiter,
		maintenance: cfg.Maintenance,
		settleTO:    cfg.SettleTimeout,
		hub:         cfg.Hub,
		locks:       newAddressLocks(),
	}
}

// OpenRequest is the input to OpenPosition.
type OpenRequest struct {
	Address    string          `json:"address"`
	Asset      string          `json:"asset"`
	Side       model.Side      `json:"side"`
	Collateral decimal.Decimal `json:"collateral"`
	Leverage   decimal.Decimal `json:"leverage"`
}

// OpenResult is the outcome of a successful open.
type OpenResult struct {
	Position model.Position `json:"position"`
	TxHash   string         `json:"tx_hash"`
}

// CloseResult is the outcome of a successful close.
type CloseResult struct {
	PositionID  string          `json:"position_id"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	TxHash      string          `json:"tx_hash"`
}

// OpenPosition opens a leveraged position: validate, price, check
// collateral, settle on-chain, then mutate and persist the account. No
// account state changes unless settlement succeeded.
func (s *Service) OpenPosition(ctx context.Context, req OpenRequest) (*OpenResult, error) {
	if err := validateOpen(req); err != nil {
		return nil, err
	}
	info, err := asset.Lookup(req.Asset)
	if err != nil {
		return nil, &ValidationError{Field: "asset", Reason: err.Error()}
	}
	// Leverage bounds are fully local, so they reject before the oracle
	// or the store get involved.
	if err := s.limiter.CheckLeverage(req.Leverage); err != nil {
		return nil, err
	}

	entryPrice, err := s.prices.Price(ctx, info.Symbol)
	if err != nil {
		return nil, err
	}
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: %s quoted non-positive", oracle.ErrUnavailable, info.Symbol)
	}

	unlock := s.locks.lock(req.Address)
	defer unlock()

	acct, err := s.loadOrCreate(ctx, req.Address)
	if err != nil {
		return nil, err
	}

	if req.Collateral.GreaterThan(acct.AvailableCollateral()) {
		metrics.OpenRejections.WithLabelValues("insufficient_collateral").Inc()
		return nil, ErrInsufficientCollateral
	}

	size := positionmath.Notional(req.Collateral, entryPrice, req.Leverage)
	if err := s.limiter.CheckOpen(acct, req.Leverage, size); err != nil {
		metrics.OpenRejections.WithLabelValues("risk_limit").Inc()
		return nil, err
	}

	liqPrice, err := positionmath.LiquidationPrice(entryPrice, req.Leverage, req.Side, s.maintenance)
	if err != nil {
		return nil, &ValidationError{Field: "leverage", Reason: err.Error()}
	}

	positionID := uuid.New().String()
	txHash, err := s.settleOpen(ctx, settlement.OpenIntent{
		Address:    req.Address,
		PositionID: positionID,
		Asset:      info.Symbol,
		Side:       req.Side,
		Collateral: req.Collateral,
		Leverage:   req.Leverage,
		Price:      entryPrice,
	})
	if err != nil {
		return nil, err
	}

	pos := model.Position{
		ID:               positionID,
		Asset:            info.Symbol,
		Side:             req.Side,
		Collateral:       req.Collateral,
		Leverage:         req.Leverage,
		Size:             size,
		EntryPrice:       entryPrice,
		LiquidationPrice: liqPrice,
		OpenedAt:         time.Now().UTC(),
		OpenTxHash:       txHash,
	}

	acct.Positions = append(acct.Positions, pos)
	acct.ReservedCollateral = acct.ReservedCollateral.Add(req.Collateral)

	if err := s.store.SaveAccount(ctx, acct); err != nil {
		return nil, s.reportInconsistency("open", req.Address, txHash, err)
	}

	slog.Info("position opened",
		"address", req.Address,
		"position", pos.ID,
		"asset", pos.Asset,
		"side", pos.Side,
		"collateral", pos.Collateral.String(),
		"leverage", pos.Leverage.String(),
		"entry_price", pos.EntryPrice.String(),
		"tx", txHash,
	)
	metrics.PositionsOpened.WithLabelValues(pos.Asset, string(pos.Side)).Inc()

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "position_opened",
			Address:  req.Address,
			Asset:    pos.Asset,
			Side:     string(pos.Side),
			Position: pos.ID,
			Price:    entryPrice.String(),
		})
	}

	return &OpenResult{Position: pos, TxHash: txHash}, nil
}

// ClosePosition closes an open position. The realized PnL applied to the
// account comes from the settlement layer, not from the ledger's own
// mark-to-market estimate; a realized loss is capped at forfeiting the
// position's collateral, which was always the risk boundary.
func (s *Service) ClosePosition(ctx context.Context, address, positionID string) (*CloseResult, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &ValidationError{Field: "address", Reason: "must not be empty"}
	}

	unlock := s.locks.lock(address)
	defer unlock()

	acct, err := s.store.LoadAccount(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPositionNotFound
	}
	if err != nil {
		return nil, err
	}

	pos := acct.Position(positionID)
	if pos == nil {
		return nil, ErrPositionNotFound
	}

	markPrice, err := s.prices.Price(ctx, pos.Asset)
	if err != nil {
		return nil, err
	}

	// Advisory only; settlement reports the authoritative figure.
	estimate, err := positionmath.UnrealizedPnL(*pos, markPrice)
	if err != nil {
		return nil, err
	}

	res, err := s.settleClose(ctx, settlement.CloseIntent{
		Address:    address,
		PositionID: pos.ID,
		Asset:      pos.Asset,
		Side:       pos.Side,
		Size:       pos.Size,
		EntryPrice: pos.EntryPrice,
		Collateral: pos.Collateral,
		Price:      markPrice,
	})
	if err != nil {
		return nil, err
	}

	realized := res.RealizedPnL
	if realized.IsNegative() && realized.Abs().GreaterThan(pos.Collateral) {
		realized = pos.Collateral.Neg()
	}

	closed := *pos
	acct.RemovePosition(positionID)
	acct.ReservedCollateral = acct.ReservedCollateral.Sub(closed.Collateral)
	acct.OnChainBalance = acct.OnChainBalance.Add(realized)

	if err := s.store.SaveAccount(ctx, acct); err != nil {
		return nil, s.reportInconsistency("close", address, res.TxHash, err)
	}

	slog.Info("position closed",
		"address", address,
		"position", closed.ID,
		"asset", closed.Asset,
		"estimated_pnl", estimate.String(),
		"realized_pnl", realized.String(),
		"tx", res.TxHash,
	)
	metrics.PositionsClosed.WithLabelValues(closed.Asset, string(closed.Side)).Inc()

	if s.hub != nil {
		s.hub.Broadcast(WSMessage{
			Type:     "position_closed",
			Address:  address,
			Asset:    closed.Asset,
			Side:     string(closed.Side),
			Position: closed.ID,
			Price:    markPrice.String(),
			PnL:      realized.String(),
		})
	}

	return &CloseResult{PositionID: closed.ID, RealizedPnL: realized, TxHash: res.TxHash}, nil
}

// GetAccountState returns the account with every open position marked at
// the freshest available quote. PnL is recomputed on each call, never
// cached; positions whose asset cannot be quoted keep nil market fields
// instead of failing the read.
func (s *Service) GetAccountState(ctx context.Context, address string) (*model.AccountState, error) {
	if strings.TrimSpace(address) == "" {
		return nil, &ValidationError{Field: "address", Reason: "must not be empty"}
	}

	acct, err := s.loadOrCreate(ctx, address)
	if err != nil {
		return nil, err
	}

	state := &model.AccountState{
		Address:             acct.Address,
		OnChainBalance:      acct.OnChainBalance,
		ReservedCollateral:  acct.ReservedCollateral,
		AvailableCollateral: acct.AvailableCollateral(),
		Positions:           make([]model.PositionState, 0, len(acct.Positions)),
	}

	// Collateral-currency conversion uses the collateral asset's quote;
	// skipped when that asset itself cannot be priced.
	basePrice, baseErr := s.prices.Price(ctx, asset.Collateral)

	for _, pos := range acct.Positions {
		ps := model.PositionState{Position: pos}

		price, err := s.prices.Price(ctx, pos.Asset)
		if err == nil {
			if pnl, err := positionmath.UnrealizedPnL(pos, price); err == nil {
				pct := positionmath.PnLPercent(pnl, pos.Size)
				ps.CurrentPrice = &price
				ps.UnrealizedPnL = &pnl
				ps.UnrealizedPnLPct = &pct
				if baseErr == nil {
					if base, err := positionmath.ToBase(pnl, basePrice); err == nil {
						ps.UnrealizedPnLBase = &base
					}
				}
			}
		}

		state.Positions = append(state.Positions, ps)
	}

	return state, nil
}

// loadOrCreate fetches the account, lazily creating it with the on-chain
// balance on first sight of an address. The on-chain balance is also
// refreshed on load, but never below the reserved collateral: the chain
// is the source of deposits, the ledger of reservations.
func (s *Service) loadOrCreate(ctx context.Context, address string) (*model.Account, error) {
	acct, err := s.store.LoadAccount(ctx, address)
	if errors.Is(err, store.ErrNotFound) {
		balance, err := s.exec.OnChainBalance(ctx, address)
		if err != nil {
			return nil, err
		}
		acct = &model.Account{
			Address:        address,
			OnChainBalance: balance,
		}
		if err := s.store.SaveAccount(ctx, acct); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// Another request created it first; use theirs.
				return s.store.LoadAccount(ctx, address)
			}
			return nil, err
		}
		return acct, nil
	}
	if err != nil {
		return nil, err
	}

	if balance, err := s.exec.OnChainBalance(ctx, address); err == nil &&
		balance.GreaterThanOrEqual(acct.ReservedCollateral) &&
		!balance.Equal(acct.OnChainBalance) {
		acct.OnChainBalance = balance
	}
	return acct, nil
}

func (s *Service) settleOpen(ctx context.Context, intent settlement.OpenIntent) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settleTO)
	defer cancel()

	start := time.Now()
	txHash, err := s.exec.RecordOpen(ctx, intent)
	metrics.SettlementLatency.WithLabelValues("open").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SettlementFailures.WithLabelValues(failureKind(err)).Inc()
		return "", err
	}
	return txHash, nil
}

func (s *Service) settleClose(ctx context.Context, intent settlement.CloseIntent) (settlement.CloseResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.settleTO)
	defer cancel()

	start := time.Now()
	res, err := s.exec.RecordClose(ctx, intent)
	metrics.SettlementLatency.WithLabelValues("close").Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.SettlementFailures.WithLabelValues(failureKind(err)).Inc()
		return settlement.CloseResult{}, err
	}
	return res, nil
}

// reportInconsistency escalates the settled-but-unpersisted case: the
// chain executed the trade but the ledger write failed, so collateral
// accounting is wrong until the named transaction is reconciled.
func (s *Service) reportInconsistency(op, address, txHash string, err error) error {
	slog.Error("CRITICAL: settlement succeeded but ledger write failed",
		"op", op,
		"address", address,
		"tx", txHash,
		"err", err,
	)
	metrics.PersistenceInconsistencies.Inc()
	return &PersistenceError{Op: op, Address: address, TxHash: txHash, Err: err}
}

func validateOpen(req OpenRequest) error {
	if strings.TrimSpace(req.Address) == "" {
		return &ValidationError{Field: "address", Reason: "must not be empty"}
	}
	if !req.Side.Valid() {
		return &ValidationError{Field: "side", Reason: `must be "long" or "short"`}
	}
	if req.Collateral.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "collateral", Reason: "must be positive"}
	}
	if req.Leverage.LessThan(decimal.NewFromInt(1)) {
		return &ValidationError{Field: "leverage", Reason: "must be at least 1"}
	}
	return nil
}

func failureKind(err error) string {
	if errors.Is(err, settlement.ErrAmbiguous) {
		return "ambiguous"
	}
	return "rejected"
}
