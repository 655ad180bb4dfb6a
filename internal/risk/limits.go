// Package risk enforces account-level limits on new positions: leverage
// bounds, open-position count, and aggregate notional exposure.
//
// A user stacking many highly levered positions on one account carries
// correlated blow-up risk even when each position individually passes the
// collateral check, so exposure is capped across all open positions.
package risk

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/model"
)

var (
	// ErrLeverageOutOfRange is returned when leverage is below 1 or above
	// the configured maximum.
	ErrLeverageOutOfRange = errors.New("risk: leverage out of allowed range")

	// ErrTooManyPositions is returned when the account already holds the
	// maximum number of open positions.
	ErrTooManyPositions = errors.New("risk: open position limit reached")

	// ErrNotionalLimitExceeded is returned when the new position would push
	// the account's aggregate notional exposure past the maximum.
	ErrNotionalLimitExceeded = errors.New("risk: aggregate notional exposure limit exceeded")
)

// Limiter holds the per-account limits applied when opening a position.
type Limiter struct {
	// MaxLeverage is the highest allowed leverage multiplier.
	MaxLeverage decimal.Decimal

	// MaxOpenPositions caps the number of simultaneously open positions
	// per account. Zero disables the check.
	MaxOpenPositions int

	// MaxNotional caps the aggregate quote-currency notional across all
	// of an account's open positions. Zero disables the check.
	MaxNotional decimal.Decimal
}

// NewLimiter creates a limiter with the given ceilings.
func NewLimiter(maxLeverage decimal.Decimal, maxOpenPositions int, maxNotional decimal.Decimal) *Limiter {
	return &Limiter{
		MaxLeverage:      maxLeverage,
		MaxOpenPositions: maxOpenPositions,
		MaxNotional:      maxNotional,
	}
}

// CheckLeverage validates the leverage bound alone. It needs no account
// or market data, so callers reject out-of-range leverage before touching
// the oracle or the store.
func (l *Limiter) CheckLeverage(leverage decimal.Decimal) error {
	if leverage.LessThan(decimal.NewFromInt(1)) || leverage.GreaterThan(l.MaxLeverage) {
		return ErrLeverageOutOfRange
	}
	return nil
}

// CheckOpen validates whether opening a position with the given leverage
// and notional size respects the account's limits. Returns nil if the open
// is within limits, or an error describing the violation.
func (l *Limiter) CheckOpen(acct *model.Account, leverage, notional decimal.Decimal) error {
	if err := l.CheckLeverage(leverage); err != nil {
		return err
	}

	if l.MaxOpenPositions > 0 && len(acct.Positions) >= l.MaxOpenPositions {
		return ErrTooManyPositions
	}

	if l.MaxNotional.IsPositive() {
		total := notional
		for _, p := range acct.Positions {
			total = total.Add(p.Size)
		}
		if total.GreaterThan(l.MaxNotional) {
			return ErrNotionalLimitExceeded
		}
	}

	return nil
}
