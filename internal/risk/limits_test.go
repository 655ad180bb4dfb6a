package risk

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/lorem111/claerdex/internal/model"
)

func d(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

func acctWith(sizes ...float64) *model.Account {
	a := &model.Account{Address: "ak_test"}
	for _, s := range sizes {
		a.Positions = append(a.Positions, model.Position{Size: d(s)})
	}
	return a
}

func TestCheckOpen_WithinLimits(t *testing.T) {
	limiter := NewLimiter(d(50), 10, d(100000))

	if err := limiter.CheckOpen(acctWith(), d(10), d(50)); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestCheckOpen_LeverageBounds(t *testing.T) {
	limiter := NewLimiter(d(50), 0, decimal.Zero)

	if err := limiter.CheckOpen(acctWith(), d(0.5), d(50)); err != ErrLeverageOutOfRange {
		t.Errorf("expected ErrLeverageOutOfRange for 0.5x, got %v", err)
	}
	if err := limiter.CheckOpen(acctWith(), d(51), d(50)); err != ErrLeverageOutOfRange {
		t.Errorf("expected ErrLeverageOutOfRange for 51x, got %v", err)
	}
	if err := limiter.CheckOpen(acctWith(), d(50), d(50)); err != nil {
		t.Errorf("50x should be allowed at the boundary, got %v", err)
	}
	if err := limiter.CheckOpen(acctWith(), d(1), d(50)); err != nil {
		t.Errorf("1x should be allowed at the boundary, got %v", err)
	}
}

func TestCheckLeverage(t *testing.T) {
	limiter := NewLimiter(d(50), 0, decimal.Zero)

	if err := limiter.CheckLeverage(d(100)); err != ErrLeverageOutOfRange {
		t.Errorf("expected ErrLeverageOutOfRange for 100x, got %v", err)
	}
	if err := limiter.CheckLeverage(d(0.9)); err != ErrLeverageOutOfRange {
		t.Errorf("expected ErrLeverageOutOfRange for 0.9x, got %v", err)
	}
	if err := limiter.CheckLeverage(d(50)); err != nil {
		t.Errorf("50x should pass at the boundary, got %v", err)
	}
}

func TestCheckOpen_PositionCount(t *testing.T) {
	limiter := NewLimiter(d(50), 2, decimal.Zero)

	if err := limiter.CheckOpen(acctWith(10, 10), d(5), d(10)); err != ErrTooManyPositions {
		t.Errorf("expected ErrTooManyPositions, got %v", err)
	}
	if err := limiter.CheckOpen(acctWith(10), d(5), d(10)); err != nil {
		t.Errorf("one slot left, expected no error, got %v", err)
	}
}

func TestCheckOpen_NotionalAggregates(t *testing.T) {
	limiter := NewLimiter(d(50), 0, d(1000))

	// Existing 800 + new 300 = 1100 > 1000.
	if err := limiter.CheckOpen(acctWith(500, 300), d(5), d(300)); err != ErrNotionalLimitExceeded {
		t.Errorf("expected ErrNotionalLimitExceeded, got %v", err)
	}
	// Existing 800 + new 200 = 1000, at the boundary.
	if err := limiter.CheckOpen(acctWith(500, 300), d(5), d(200)); err != nil {
		t.Errorf("expected no error at boundary, got %v", err)
	}
}

func TestCheckOpen_DisabledChecks(t *testing.T) {
	limiter := NewLimiter(d(50), 0, decimal.Zero)

	if err := limiter.CheckOpen(acctWith(1e6, 1e6, 1e6), d(5), d(1e6)); err != nil {
		t.Errorf("zero limits disable count/notional checks, got %v", err)
	}
}
