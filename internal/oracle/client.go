package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/asset"
)

// refreshInterval is how long a fetched quote set is considered current
// before the client re-polls the feed. The upstream oracle updates on the
// same cadence.
const refreshInterval = 5 * time.Second

// Client reads prices from an HTTP oracle feed exposing GET {base}/prices
// with a body of the form {"data": {"AE": 0.0312, ...}}.
//
// Quotes are cached in-process: a fresh cache short-circuits the fetch,
// and on feed failure the last-known quotes are served until they pass the
// staleness window, after which Price fails with ErrUnavailable.
type Client struct {
	baseURL  string
	http     *http.Client
	maxStale time.Duration

	mu        sync.RWMutex
	quotes    map[string]decimal.Decimal
	fetchedAt time.Time
}

// NewClient creates an oracle client. maxStale bounds how old a cached
// quote may be before the client reports ErrUnavailable instead.
func NewClient(baseURL string, maxStale time.Duration) *Client {
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 5 * time.Second},
		maxStale: maxStale,
	}
}

func (c *Client) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	info, err := asset.Lookup(symbol)
	if err != nil {
		return decimal.Zero, err
	}

	quotes, err := c.Prices(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	price, ok := quotes[info.Symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnavailable, info.Symbol)
	}
	return price, nil
}

func (c *Client) Prices(ctx context.Context) (map[string]decimal.Decimal, error) {
	c.mu.RLock()
	age := time.Since(c.fetchedAt)
	cached := c.quotes
	c.mu.RUnlock()

	if cached != nil && age < refreshInterval {
		return copyQuotes(cached), nil
	}

	quotes, err := c.fetch(ctx)
	if err != nil {
		if cached != nil && age < c.maxStale {
			return copyQuotes(cached), nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	c.mu.Lock()
	c.quotes = quotes
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	return copyQuotes(quotes), nil
}

func (c *Client) fetch(ctx context.Context) (map[string]decimal.Decimal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/prices", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("oracle feed returned %d", resp.StatusCode)
	}

	var body struct {
		Data map[string]decimal.Decimal `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}

	quotes := make(map[string]decimal.Decimal)
	for _, symbol := range asset.Symbols() {
		price, ok := body.Data[symbol]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		info, _ := asset.Lookup(symbol)
		quotes[symbol] = info.Round(price)
	}
	if len(quotes) == 0 {
		return nil, fmt.Errorf("oracle feed returned no usable quotes")
	}
	return quotes, nil
}

func copyQuotes(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
