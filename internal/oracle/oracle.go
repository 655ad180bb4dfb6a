// Package oracle supplies market prices for supported assets. The ledger
// only depends on the Source interface; behind it sit an HTTP client for a
// live oracle feed and a deterministic simulator used when no feed is
// configured.
//
// All monetary values use shopspring/decimal — never float64 for money.
package oracle

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// ErrUnavailable is returned when no quote can be supplied for an asset:
// the feed is down and any cached quote is past its staleness window.
var ErrUnavailable = errors.New("oracle: price unavailable")

// Source supplies the last-known price per asset symbol, or fails.
type Source interface {
	// Price returns the current quote for one asset.
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)

	// Prices returns quotes for every supported asset. Assets without a
	// quote are absent from the map; only a total outage is an error.
	Prices(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Stats holds 24-hour price statistics for one asset.
type Stats struct {
	High24h          decimal.Decimal `json:"high_24h"`
	Low24h           decimal.Decimal `json:"low_24h"`
	Open24h          decimal.Decimal `json:"open_24h"`
	Change24h        decimal.Decimal `json:"change_24h"`
	ChangePercent24h decimal.Decimal `json:"change_percent_24h"`
}

// Candle is one OHLC data point for charting. Timestamp is in
// milliseconds since epoch, matching what charting frontends expect.
type Candle struct {
	Timestamp int64           `json:"timestamp"`
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
}

// ChartSource produces historical and statistical chart data.
type ChartSource interface {
	// History returns up to limit candles in chronological order.
	History(ctx context.Context, symbol, interval string, limit int) ([]Candle, error)

	// Stats24h returns 24-hour statistics for one asset.
	Stats24h(ctx context.Context, symbol string) (Stats, error)
}
