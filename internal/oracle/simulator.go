package oracle

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/asset"
)

// tickSeconds is the width of one simulated price interval. Every call
// within the same window sees the same price.
const tickSeconds = 5

// Simulator produces deterministic pseudo-random prices: a seeded walk
// around each asset's base price, clamped to ±10%, stepping once per
// 5-second interval. It also synthesizes OHLC history and 24h statistics,
// working backwards from the current price.
//
// When an anchor Source is set, current prices come from the anchor and
// the simulator only synthesizes chart data around them; the walk is the
// fallback when the anchor cannot quote.
//
// Internal randomness uses float64 with results immediately converted to
// decimal at the asset's display precision.
type Simulator struct {
	anchor Source          // optional live feed
	now    func() time.Time // injectable clock for tests
}

// NewSimulator creates a free-running simulator.
func NewSimulator() *Simulator {
	return &Simulator{now: time.Now}
}

// NewAnchoredSimulator creates a simulator that anchors chart synthesis
// and current prices on a live source, walking only when it fails.
func NewAnchoredSimulator(anchor Source) *Simulator {
	return &Simulator{anchor: anchor, now: time.Now}
}

func (s *Simulator) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	info, err := asset.Lookup(symbol)
	if err != nil {
		return decimal.Zero, err
	}

	if s.anchor != nil {
		if price, err := s.anchor.Price(ctx, info.Symbol); err == nil {
			return price, nil
		}
	}
	return s.walk(info, s.now().Unix()), nil
}

func (s *Simulator) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	quotes := make(map[string]decimal.Decimal)
	for _, symbol := range asset.Symbols() {
		price, err := s.Price(ctx, symbol)
		if err != nil {
			continue
		}
		quotes[symbol] = price
	}
	return quotes, nil
}

// History generates candles in chronological order, walking backwards in
// time from the current price so the newest candle always matches the live
// quote.
func (s *Simulator) History(ctx context.Context, symbol, interval string, limit int) ([]Candle, error) {
	info, err := asset.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	secs, err := asset.IntervalSeconds(interval)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 60
	}
	if limit > 1000 {
		limit = 1000
	}

	now := s.now().Unix()
	price, err := s.Price(ctx, symbol)
	if err != nil {
		return nil, err
	}
	pf := price.InexactFloat64()
	vol := info.Volatility.InexactFloat64()

	candles := make([]Candle, limit)
	for i := 0; i < limit; i++ {
		ts := now - int64(i)*secs

		if i > 0 {
			rng := rand.New(rand.NewSource(ts * symbolSeed(info.Symbol)))
			pf *= 1 - spread(rng, vol)
		}
		closePrice := info.Round(decimal.NewFromFloat(pf))

		// OHLC variation of ±0.1% around the close, seeded separately so
		// candle shapes stay stable across calls.
		rng := rand.New(rand.NewSource(ts*symbolSeed(info.Symbol) + 1))
		variation := pf * 0.001
		open := info.Round(decimal.NewFromFloat(pf - spread(rng, variation)))
		high := info.Round(decimal.NewFromFloat(pf + rng.Float64()*variation))
		low := info.Round(decimal.NewFromFloat(pf - rng.Float64()*variation))

		// Generated newest-first, stored oldest-first.
		candles[limit-1-i] = Candle{
			Timestamp: ts * 1000,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
		}
	}

	return candles, nil
}

// Stats24h derives 24-hour statistics from hourly history anchored at the
// current price.
func (s *Simulator) Stats24h(ctx context.Context, symbol string) (Stats, error) {
	current, err := s.Price(ctx, symbol)
	if err != nil {
		return Stats{}, err
	}

	history, err := s.History(ctx, symbol, "1h", 24)
	if err != nil || len(history) == 0 {
		return Stats{
			High24h: current,
			Low24h:  current,
			Open24h: current,
		}, nil
	}

	high := current
	low := current
	for _, c := range history {
		if c.High.GreaterThan(high) {
			high = c.High
		}
		if c.Low.LessThan(low) {
			low = c.Low
		}
	}

	open := history[0].Open
	change := current.Sub(open)
	pct := decimal.Zero
	if !open.IsZero() {
		pct = change.Div(open).Mul(decimal.NewFromInt(100)).Round(2)
	}

	info, _ := asset.Lookup(symbol)
	return Stats{
		High24h:          high,
		Low24h:           low,
		Open24h:          open,
		Change24h:        info.Round(change),
		ChangePercent24h: pct,
	}, nil
}

// walk computes the deterministic simulated price for one asset at one
// moment: cumulative seeded moves over recent intervals applied to the
// base price, clamped to ±10%.
func (s *Simulator) walk(info asset.Info, unixNow int64) decimal.Decimal {
	interval := unixNow / tickSeconds
	vol := info.Volatility.InexactFloat64()
	base := info.BasePrice.InexactFloat64()

	steps := int(interval % 100)
	if steps > 20 {
		steps = 20
	}

	var cumulative float64
	seed := interval
	for i := 0; i < steps; i++ {
		rng := rand.New(rand.NewSource(seed * symbolSeed(info.Symbol)))
		cumulative += spread(rng, vol)
		seed--
	}

	price := base * (1 + cumulative)
	if min := base * 0.9; price < min {
		price = min
	}
	if max := base * 1.1; price > max {
		price = max
	}

	return info.Round(decimal.NewFromFloat(price))
}

// spread draws a uniform value in [-width, width].
func spread(rng *rand.Rand, width float64) float64 {
	return (rng.Float64()*2 - 1) * width
}

// symbolSeed derives a stable non-zero seed component per symbol.
func symbolSeed(symbol string) int64 {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	seed := int64(h.Sum64() >> 1)
	if seed == 0 {
		seed = 1
	}
	return seed
}
