package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/ledger"
	"github.com/lorem111/claerdex/internal/metrics"
	"github.com/lorem111/claerdex/internal/oracle"
	"github.com/lorem111/claerdex/internal/risk"
	"github.com/lorem111/claerdex/internal/settlement"
	"github.com/lorem111/claerdex/internal/store"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	// --- Initialize store ---
	var st store.Store
	var cleanup []func()

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		pool, err := pgxpool.New(context.Background(), dbURL)
		if err != nil {
			slog.Error("database connection failed", "err", err)
			os.Exit(1)
		}
		cleanup = append(cleanup, pool.Close)
		st = store.NewPostgresStore(pool)
		slog.Info("connected to PostgreSQL")

		// Wrap with Redis read-through cache if configured.
		if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
			opt, err := redis.ParseURL(redisURL)
			if err != nil {
				slog.Error("invalid REDIS_URL", "err", err)
				os.Exit(1)
			}
			rdb := redis.NewClient(opt)
			cleanup = append(cleanup, func() { rdb.Close() })
			st = store.NewCachedStore(st, rdb, 30*time.Second)
			slog.Info("Redis cache enabled")
		}
	} else {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		st = store.NewMemoryStore()
	}

	defer func() {
		for _, fn := range cleanup {
			fn()
		}
	}()

	// --- Price oracle ---
	// With ORACLE_API_URL the live feed drives prices and the simulator
	// only synthesizes chart history anchored on it; without one the
	// simulator serves both.
	var prices oracle.Source
	var charts oracle.ChartSource
	if apiURL := os.Getenv("ORACLE_API_URL"); apiURL != "" {
		client := oracle.NewClient(apiURL, 2*time.Minute)
		prices = client
		charts = oracle.NewAnchoredSimulator(client)
		slog.Info("using external price feed", "url", apiURL)
	} else {
		sim := oracle.NewSimulator()
		prices = sim
		charts = sim
		slog.Warn("ORACLE_API_URL not set, using simulated prices")
	}

	// --- Settlement ---
	var exec settlement.Executor
	var chain settlement.ChainInfo
	if nodeURL := os.Getenv("SETTLEMENT_URL"); nodeURL != "" {
		node := settlement.NewNodeClient(nodeURL)
		exec, chain = node, node
		slog.Info("using settlement node", "url", nodeURL)
	} else {
		sim := settlement.NewSimulated(decimal.NewFromInt(1000))
		exec, chain = sim, sim
		slog.Warn("SETTLEMENT_URL not set, using simulated settlement")
	}

	// --- Risk limits ---
	maxLeverage := envDecimal("MAX_LEVERAGE", decimal.NewFromInt(50))
	maxPositions := envInt("MAX_OPEN_POSITIONS", 0)
	maxNotional := envDecimal("MAX_NOTIONAL", decimal.Zero)
	limiter := risk.NewLimiter(maxLeverage, maxPositions, maxNotional)

	// --- WebSocket hub ---
	wsHub := ledger.NewWSHub()
	go wsHub.Run()

	pollCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	go ledger.RunPricePoller(pollCtx, prices, wsHub, 5*time.Second)

	// --- Ledger service ---
	svc := ledger.NewService(ledger.Config{
		Store:         st,
		Prices:        prices,
		Charts:        charts,
		Executor:      exec,
		Chain:         chain,
		Limiter:       limiter,
		Maintenance:   envDecimal("MAINTENANCE_FRACTION", decimal.NewFromFloat(0.95)),
		SettleTimeout: envDuration("SETTLEMENT_TIMEOUT", 10*time.Second),
		Hub:           wsHub,
	})

	// --- HTTP router ---
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(metrics.Middleware)

	// CORS middleware for frontend cross-origin requests.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"claerdex-backend"}`))
	})

	// Prometheus metrics endpoint.
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		svc.Routes(r)
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("claerdex listening", "port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	slog.Info("shutting down claerdex...")
	stopPoller()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "err", err)
	}
	fmt.Println("claerdex stopped")
}

func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
		slog.Warn("ignoring malformed decimal env var", "key", key, "value", v)
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
		slog.Warn("ignoring malformed integer env var", "key", key, "value", v)
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		slog.Warn("ignoring malformed duration env var", "key", key, "value", v)
	}
	return def
}
