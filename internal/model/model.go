// Package model defines the core domain types shared across the ledger.
// All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a leveraged position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Valid reports whether s is a known position side.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Position is a single open leveraged position. All fields are fixed at
// open time; unrealized PnL is recomputed on every read, never stored.
type Position struct {
	ID               string          `json:"id" db:"id"`
	Asset            string          `json:"asset" db:"asset"`
	Side             Side            `json:"side" db:"side"`
	Collateral       decimal.Decimal `json:"collateral" db:"collateral"`
	Leverage         decimal.Decimal `json:"leverage" db:"leverage"`
	Size             decimal.Decimal `json:"size" db:"size"` // quote-currency notional at open
	EntryPrice       decimal.Decimal `json:"entry_price" db:"entry_price"`
	LiquidationPrice decimal.Decimal `json:"liquidation_price" db:"liquidation_price"`
	OpenedAt         time.Time       `json:"opened_at" db:"opened_at"`
	OpenTxHash       string          `json:"open_tx_hash,omitempty" db:"open_tx_hash"`
}

// Account is the ledger record for one wallet address. Positions are kept
// in open order. Invariant: ReservedCollateral equals the sum of the open
// positions' collateral; AvailableCollateral is derived, never stored.
type Account struct {
	Address            string          `json:"address"`
	OnChainBalance     decimal.Decimal `json:"on_chain_balance"`
	ReservedCollateral decimal.Decimal `json:"reserved_collateral"`
	Positions          []Position      `json:"positions"`

	// Version is the optimistic concurrency token used by the store.
	// Zero means the account has never been persisted.
	Version int64 `json:"-"`
}

// AvailableCollateral returns on-chain balance minus reserved collateral.
func (a *Account) AvailableCollateral() decimal.Decimal {
	return a.OnChainBalance.Sub(a.ReservedCollateral)
}

// Position returns the open position with the given id, or nil.
func (a *Account) Position(id string) *Position {
	for i := range a.Positions {
		if a.Positions[i].ID == id {
			return &a.Positions[i]
		}
	}
	return nil
}

// RemovePosition deletes the position with the given id, preserving the
// open order of the rest. Returns false if no such position exists.
func (a *Account) RemovePosition(id string) bool {
	for i := range a.Positions {
		if a.Positions[i].ID == id {
			a.Positions = append(a.Positions[:i], a.Positions[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Stores hand out clones so callers never
// mutate shared state.
func (a *Account) Clone() *Account {
	c := *a
	c.Positions = make([]Position, len(a.Positions))
	copy(c.Positions, a.Positions)
	return &c
}

// PositionState is a Position snapshot enriched with market data at read
// time. CurrentPrice and the PnL fields are nil when no quote is available
// for the position's asset: one unpriced asset degrades that position's
// snapshot, never the whole account read.
type PositionState struct {
	Position
	CurrentPrice      *decimal.Decimal `json:"current_price,omitempty"`
	UnrealizedPnL     *decimal.Decimal `json:"unrealized_pnl,omitempty"`
	UnrealizedPnLPct  *decimal.Decimal `json:"unrealized_pnl_percent,omitempty"`
	UnrealizedPnLBase *decimal.Decimal `json:"unrealized_pnl_base,omitempty"` // converted to collateral currency
}

// AccountState is the read model returned by the account endpoint.
type AccountState struct {
	Address             string          `json:"address"`
	OnChainBalance      decimal.Decimal `json:"on_chain_balance"`
	ReservedCollateral  decimal.Decimal `json:"reserved_collateral"`
	AvailableCollateral decimal.Decimal `json:"available_collateral"`
	Positions           []PositionState `json:"positions"`
}
