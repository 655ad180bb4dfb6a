package settlement

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func openIntent() OpenIntent {
	return OpenIntent{
		Address:    "ak_user1",
		PositionID: "p1",
		Asset:      "AE",
		Side:       model.SideLong,
		Collateral: d(100),
		Leverage:   d(10),
		Price:      d(0.05),
	}
}

func closeIntent() CloseIntent {
	return CloseIntent{
		Address:    "ak_user1",
		PositionID: "p1",
		Asset:      "AE",
		Side:       model.SideLong,
		Size:       d(50),
		EntryPrice: d(0.05),
		Collateral: d(100),
		Price:      d(0.06),
	}
}

// --- Simulated executor ---

func TestSimulated_RecordOpenDeterministic(t *testing.T) {
	s := NewSimulated(d(1000))
	ctx := context.Background()

	tx1, err := s.RecordOpen(ctx, openIntent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tx2, _ := s.RecordOpen(ctx, openIntent())

	if tx1 == "" || tx1[:3] != "th_" {
		t.Errorf("expected th_-prefixed hash, got %q", tx1)
	}
	if tx1 != tx2 {
		t.Errorf("same intent should hash to same tx: %s vs %s", tx1, tx2)
	}

	other := openIntent()
	other.PositionID = "p2"
	tx3, _ := s.RecordOpen(ctx, other)
	if tx3 == tx1 {
		t.Error("different intents should hash differently")
	}
}

func TestSimulated_RecordCloseSettlesAtMark(t *testing.T) {
	s := NewSimulated(d(1000))

	res, err := s.RecordClose(context.Background(), closeIntent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// size=50, entry=0.05, close=0.06 → pnl = 0.01 * 1000 = 10
	if !res.RealizedPnL.Equal(d(10)) {
		t.Errorf("expected realized pnl 10, got %s", res.RealizedPnL)
	}
	if res.TxHash == "" {
		t.Error("expected transaction hash")
	}
}

func TestSimulated_OnChainBalance(t *testing.T) {
	s := NewSimulated(d(1000))

	bal, err := s.OnChainBalance(context.Background(), "ak_anyone")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.Equal(d(1000)) {
		t.Errorf("expected 1000, got %s", bal)
	}
}

// --- Node client ---

func TestNodeClient_RecordOpen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/trades" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"tx_hash":"th_abc123"}`))
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL)
	tx, err := c.RecordOpen(context.Background(), openIntent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx != "th_abc123" {
		t.Errorf("expected th_abc123, got %s", tx)
	}
}

func TestNodeClient_RecordClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/trades/p1/close" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"tx_hash":"th_close1","realized_pnl":-20}`))
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL)
	res, err := c.RecordClose(context.Background(), closeIntent())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.RealizedPnL.Equal(d(-20)) {
		t.Errorf("expected -20, got %s", res.RealizedPnL)
	}
}

func TestNodeClient_RejectionIsNotAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL)
	_, err := c.RecordOpen(context.Background(), openIntent())
	if !errors.Is(err, ErrRejected) {
		t.Errorf("expected ErrRejected, got %v", err)
	}
	if errors.Is(err, ErrAmbiguous) {
		t.Error("explicit rejection must not be ambiguous")
	}
}

func TestNodeClient_TimeoutIsAmbiguous(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"tx_hash":"th_late"}`))
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.RecordOpen(ctx, openIntent())
	if !errors.Is(err, ErrAmbiguous) {
		t.Errorf("expected ErrAmbiguous on timeout, got %v", err)
	}
}

func TestNodeClient_OnChainBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts/ak_user1/balance" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"balance":1000}`))
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL)
	bal, err := c.OnChainBalance(context.Background(), "ak_user1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bal.Equal(d(1000)) {
		t.Errorf("expected 1000, got %s", bal)
	}
}

func TestNodeClient_LatestBlock(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"height":123456,"hash":"kh_abc","time":1700000000000}`))
	}))
	defer srv.Close()

	c := NewNodeClient(srv.URL)
	block, err := c.LatestBlock(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Height != 123456 || block.Hash != "kh_abc" {
		t.Errorf("unexpected block: %+v", block)
	}
}
