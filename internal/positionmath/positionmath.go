// Package positionmath implements the pure pricing math for leveraged
// positions: notional size, liquidation price, and unrealized PnL.
//
// Every function is side-effect free and works entirely on arguments, so
// the package is trivially testable in isolation.
//
// All monetary values use shopspring/decimal — never float64 for money.
package positionmath

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/model"
)

var (
	// ErrInvalidEntryPrice is returned when entry price <= 0.
	ErrInvalidEntryPrice = errors.New("positionmath: entry price must be positive")

	// ErrInvalidLeverage is returned when leverage < 1.
	ErrInvalidLeverage = errors.New("positionmath: leverage must be at least 1")

	// ErrInvalidMaintenance is returned when the maintenance fraction is
	// outside the open interval (0, 1).
	ErrInvalidMaintenance = errors.New("positionmath: maintenance fraction must be in (0, 1)")

	// ErrNonPositiveLiquidation is returned when the configuration would
	// produce a liquidation price at or below zero. Cannot happen with
	// leverage >= 1 and maintenance < 1, but is checked regardless.
	ErrNonPositiveLiquidation = errors.New("positionmath: liquidation price must be positive")
)

// Scale is the number of decimal places for derived price/PnL rounding.
var Scale int32 = 8

var hundred = decimal.NewFromInt(100)

// Notional returns the quote-currency size of a position:
//
//	size = collateral * entryPrice * leverage
func Notional(collateral, entryPrice, leverage decimal.Decimal) decimal.Decimal {
	return collateral.Mul(entryPrice).Mul(leverage).Round(Scale)
}

// LiquidationPrice returns the price at which the position's losses have
// consumed `maintenance` of its margin cushion:
//
//	long:  entry * (1 - maintenance/leverage)
//	short: entry * (1 + maintenance/leverage)
//
// With maintenance slightly below 1 the position liquidates just before a
// 100% margin loss.
func LiquidationPrice(entryPrice, leverage decimal.Decimal, side model.Side, maintenance decimal.Decimal) (decimal.Decimal, error) {
	if entryPrice.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidEntryPrice
	}
	if leverage.LessThan(decimal.NewFromInt(1)) {
		return decimal.Zero, ErrInvalidLeverage
	}
	if maintenance.LessThanOrEqual(decimal.Zero) || maintenance.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return decimal.Zero, ErrInvalidMaintenance
	}

	cushion := maintenance.Div(leverage)
	var liq decimal.Decimal
	if side == model.SideShort {
		liq = entryPrice.Mul(decimal.NewFromInt(1).Add(cushion))
	} else {
		liq = entryPrice.Mul(decimal.NewFromInt(1).Sub(cushion))
	}

	liq = liq.Round(Scale)
	if liq.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrNonPositiveLiquidation
	}
	return liq, nil
}

// UnrealizedPnL returns the quote-currency profit or loss of an open
// position marked at currentPrice:
//
//	pnl = direction(currentPrice - entry) * (size / entry)
//
// size/entry is the underlying quantity, so a move of Δ on N units yields
// Δ*N regardless of side.
func UnrealizedPnL(p model.Position, currentPrice decimal.Decimal) (decimal.Decimal, error) {
	if p.EntryPrice.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidEntryPrice
	}

	change := currentPrice.Sub(p.EntryPrice)
	if p.Side == model.SideShort {
		change = change.Neg()
	}

	units := p.Size.Div(p.EntryPrice)
	return change.Mul(units).Round(Scale), nil
}

// PnLPercent returns pnl as a percentage of the position's notional size.
// Zero-size positions report zero rather than dividing by zero.
func PnLPercent(pnl, size decimal.Decimal) decimal.Decimal {
	if size.IsZero() {
		return decimal.Zero
	}
	return pnl.Div(size).Mul(hundred).Round(2)
}

// ToBase converts a quote-currency PnL into collateral-currency units at
// the collateral asset's current price.
func ToBase(pnlQuote, basePrice decimal.Decimal) (decimal.Decimal, error) {
	if basePrice.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, ErrInvalidEntryPrice
	}
	return pnlQuote.Div(basePrice).Round(Scale), nil
}
