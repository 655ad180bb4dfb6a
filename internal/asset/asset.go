// Package asset holds the registry of tradable assets: symbol validation,
// per-asset price precision, and the reference parameters the price
// simulator uses when no live oracle is configured.
package asset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Supported asset symbols.
const (
	AE  = "AE"
	BTC = "BTC"
	ETH = "ETH"
	SOL = "SOL"
)

// Collateral is the asset all position collateral is denominated in.
const Collateral = AE

var (
	ErrUnknownAsset    = errors.New("asset: unsupported asset symbol")
	ErrUnknownInterval = errors.New("asset: unsupported chart interval")
)

// Info describes one supported asset.
type Info struct {
	Symbol string

	// PriceScale is the number of decimal places quotes are rounded to.
	PriceScale int32

	// BasePrice and Volatility parameterize the simulated price walk used
	// when no oracle endpoint is configured. Volatility is the maximum
	// fractional move per 5-second tick.
	BasePrice  decimal.Decimal
	Volatility decimal.Decimal
}

var registry = map[string]Info{
	AE:  {Symbol: AE, PriceScale: 4, BasePrice: decimal.NewFromFloat(0.03), Volatility: decimal.NewFromFloat(0.002)},
	BTC: {Symbol: BTC, PriceScale: 2, BasePrice: decimal.NewFromFloat(68000), Volatility: decimal.NewFromFloat(0.003)},
	ETH: {Symbol: ETH, PriceScale: 2, BasePrice: decimal.NewFromFloat(3500), Volatility: decimal.NewFromFloat(0.0025)},
	SOL: {Symbol: SOL, PriceScale: 2, BasePrice: decimal.NewFromFloat(150), Volatility: decimal.NewFromFloat(0.004)},
}

// symbols in stable display order.
var symbols = []string{AE, BTC, ETH, SOL}

// Symbols returns all supported symbols in display order.
func Symbols() []string {
	out := make([]string, len(symbols))
	copy(out, symbols)
	return out
}

// Lookup validates a symbol (case-insensitively) and returns its Info.
func Lookup(symbol string) (Info, error) {
	info, ok := registry[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownAsset, symbol)
	}
	return info, nil
}

// Supported reports whether symbol names a tradable asset.
func Supported(symbol string) bool {
	_, err := Lookup(symbol)
	return err == nil
}

// Round rounds a price to the asset's display precision.
func (i Info) Round(price decimal.Decimal) decimal.Decimal {
	return price.Round(i.PriceScale)
}

// Chart intervals for price history queries.
var intervalSeconds = map[string]int64{
	"1m":  60,
	"5m":  300,
	"15m": 900,
	"1h":  3600,
	"4h":  14400,
	"1d":  86400,
}

// IntervalSeconds maps a chart interval name to its length in seconds.
func IntervalSeconds(interval string) (int64, error) {
	secs, ok := intervalSeconds[interval]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownInterval, interval)
	}
	return secs, nil
}
