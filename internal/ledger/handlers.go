package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/asset"
	"github.com/lorem111/claerdex/internal/oracle"
	"github.com/lorem111/claerdex/internal/risk"
	"github.com/lorem111/claerdex/internal/settlement"
)

// Routes mounts the ledger's HTTP surface on a chi router.
func (s *Service) Routes(r chi.Router) {
	r.Get("/prices", s.HandlePrices)
	r.Get("/prices/history", s.HandlePriceHistory)
	r.Get("/blockchain/status", s.HandleChainStatus)
	r.Get("/account/{address}", s.HandleGetAccount)
	r.Post("/positions/open", s.HandleOpenPosition)
	r.Post("/positions/close/{positionID}", s.HandleClosePosition)
	if s.hub != nil {
		r.Get("/ws", s.hub.HandleWS)
	}
}

// HandleGetAccount handles GET /api/v1/account/{address}
func (s *Service) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")

	state, err := s.GetAccountState(r.Context(), address)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// HandleOpenPosition handles POST /api/v1/positions/open
func (s *Service) HandleOpenPosition(w http.ResponseWriter, r *http.Request) {
	var req OpenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", "validation", http.StatusBadRequest)
		return
	}

	result, err := s.OpenPosition(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// HandleClosePosition handles POST /api/v1/positions/close/{positionID}?address=...
func (s *Service) HandleClosePosition(w http.ResponseWriter, r *http.Request) {
	positionID := chi.URLParam(r, "positionID")
	address := r.URL.Query().Get("address")

	result, err := s.ClosePosition(r.Context(), address, positionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// pricePoint is one asset's entry in the prices response.
type pricePoint struct {
	Price decimal.Decimal `json:"price"`
	oracle.Stats
}

// HandlePrices handles GET /api/v1/prices: current quotes for all assets
// with 24h statistics, cacheable for one price tick.
func (s *Service) HandlePrices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	quotes, err := s.prices.Prices(ctx)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	data := make(map[string]pricePoint, len(quotes))
	for _, symbol := range asset.Symbols() {
		price, ok := quotes[symbol]
		if !ok {
			continue
		}
		point := pricePoint{Price: price}
		if s.charts != nil {
			if stats, err := s.charts.Stats24h(ctx, symbol); err == nil {
				point.Stats = stats
			}
		}
		data[symbol] = point
	}

	w.Header().Set("Cache-Control", "public, max-age=5, stale-while-revalidate=60")
	writeJSON(w, http.StatusOK, map[string]any{
		"data":            data,
		"timestamp":       time.Now().Unix(),
		"update_interval": 5,
	})
}

// HandlePriceHistory handles GET /api/v1/prices/history?asset=&interval=&limit=
func (s *Service) HandlePriceHistory(w http.ResponseWriter, r *http.Request) {
	if s.charts == nil {
		writeError(w, "price history not available", "unavailable", http.StatusNotFound)
		return
	}

	symbol := r.URL.Query().Get("asset")
	if symbol == "" {
		symbol = asset.AE
	}
	interval := r.URL.Query().Get("interval")
	if interval == "" {
		interval = "1m"
	}
	limit := 60
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", "validation", http.StatusBadRequest)
			return
		}
		limit = n
	}

	candles, err := s.charts.History(r.Context(), symbol, interval, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"asset":    symbol,
		"interval": interval,
		"data":     candles,
	})
}

// HandleChainStatus handles GET /api/v1/blockchain/status
func (s *Service) HandleChainStatus(w http.ResponseWriter, r *http.Request) {
	if s.chain == nil {
		writeError(w, "chain status not available", "unavailable", http.StatusNotFound)
		return
	}

	block, err := s.chain.LatestBlock(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := map[string]any{
		"network":      "mainnet",
		"latest_block": block,
	}
	if block.Hash != "" {
		resp["explorer_url"] = fmt.Sprintf("https://explorer.aeternity.io/keyblock/%s", block.Hash)
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeServiceError maps ledger error kinds to HTTP responses with a
// machine-readable code.
func writeServiceError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	var pErr *PersistenceError

	switch {
	case errors.As(err, &vErr):
		writeError(w, vErr.Error(), "validation", http.StatusBadRequest)
	case errors.Is(err, asset.ErrUnknownAsset), errors.Is(err, asset.ErrUnknownInterval),
		errors.Is(err, risk.ErrLeverageOutOfRange):
		writeError(w, err.Error(), "validation", http.StatusBadRequest)
	case errors.Is(err, ErrInsufficientCollateral):
		writeError(w, err.Error(), "insufficient_collateral", http.StatusConflict)
	case errors.Is(err, risk.ErrTooManyPositions), errors.Is(err, risk.ErrNotionalLimitExceeded):
		writeError(w, err.Error(), "risk_limit", http.StatusConflict)
	case errors.Is(err, ErrPositionNotFound):
		writeError(w, err.Error(), "position_not_found", http.StatusNotFound)
	case errors.Is(err, oracle.ErrUnavailable):
		writeError(w, err.Error(), "price_unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, settlement.ErrAmbiguous):
		writeError(w, err.Error(), "settlement_ambiguous", http.StatusGatewayTimeout)
	case errors.Is(err, settlement.ErrRejected):
		writeError(w, err.Error(), "settlement_failed", http.StatusBadGateway)
	case errors.As(err, &pErr):
		writeError(w, pErr.Error(), "persistence_failure", http.StatusInternalServerError)
	default:
		writeError(w, "internal error", "internal", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": code})
}
