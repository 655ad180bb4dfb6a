package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// NodeClient talks to a settlement node over HTTP. Errors are classified
// into ErrRejected and ErrAmbiguous: a failure before the request could
// have executed (refused connection, explicit non-2xx) is a rejection,
// while a timeout after sending is ambiguous because the node may have
// executed the transaction without us observing the result.
type NodeClient struct {
	baseURL string
	http    *http.Client
}

// NewNodeClient creates a settlement client for the given node base URL.
// The caller's per-request context carries the settlement timeout.
func NewNodeClient(baseURL string) *NodeClient {
	return &NodeClient{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

func (c *NodeClient) RecordOpen(ctx context.Context, intent OpenIntent) (string, error) {
	var resp struct {
		TxHash string `json:"tx_hash"`
	}
	if err := c.post(ctx, "/v1/trades", intent, &resp); err != nil {
		return "", err
	}
	if resp.TxHash == "" {
		return "", fmt.Errorf("%w: node returned no transaction hash", ErrRejected)
	}
	return resp.TxHash, nil
}

func (c *NodeClient) RecordClose(ctx context.Context, intent CloseIntent) (CloseResult, error) {
	var resp CloseResult
	path := "/v1/trades/" + url.PathEscape(intent.PositionID) + "/close"
	if err := c.post(ctx, path, intent, &resp); err != nil {
		return CloseResult{}, err
	}
	if resp.TxHash == "" {
		return CloseResult{}, fmt.Errorf("%w: node returned no transaction hash", ErrRejected)
	}
	return resp, nil
}

func (c *NodeClient) OnChainBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	var resp struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.get(ctx, "/v1/accounts/"+url.PathEscape(address)+"/balance", &resp); err != nil {
		return decimal.Zero, err
	}
	return resp.Balance, nil
}

func (c *NodeClient) LatestBlock(ctx context.Context) (Block, error) {
	var block Block
	if err := c.get(ctx, "/v1/blocks/latest", &block); err != nil {
		return Block{}, err
	}
	return block, nil
}

func (c *NodeClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *NodeClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return c.do(req, out)
}

func (c *NodeClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			// The request may have reached the node.
			return fmt.Errorf("%w: %v", ErrAmbiguous, err)
		}
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: node returned %d", ErrRejected, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: bad node response: %v", ErrRejected, err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
