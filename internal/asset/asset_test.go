package asset

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLookup_Valid(t *testing.T) {
	info, err := Lookup("AE")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Symbol != AE {
		t.Errorf("expected symbol=AE, got %s", info.Symbol)
	}
	if info.PriceScale != 4 {
		t.Errorf("expected AE price scale 4, got %d", info.PriceScale)
	}
}

func TestLookup_CaseInsensitive(t *testing.T) {
	for _, sym := range []string{"btc", "Btc", " BTC "} {
		if _, err := Lookup(sym); err != nil {
			t.Errorf("expected %q to resolve, got %v", sym, err)
		}
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := Lookup("DOGE")
	if !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("expected ErrUnknownAsset, got %v", err)
	}
}

func TestSymbols_AllSupported(t *testing.T) {
	syms := Symbols()
	if len(syms) != 4 {
		t.Fatalf("expected 4 symbols, got %d", len(syms))
	}
	for _, s := range syms {
		if !Supported(s) {
			t.Errorf("symbol %s should be supported", s)
		}
	}
}

func TestRound_UsesAssetScale(t *testing.T) {
	ae, _ := Lookup(AE)
	got := ae.Round(decimal.NewFromFloat(0.031234567))
	if !got.Equal(decimal.NewFromFloat(0.0312)) {
		t.Errorf("expected 0.0312, got %s", got)
	}

	btc, _ := Lookup(BTC)
	got = btc.Round(decimal.NewFromFloat(68123.456))
	if !got.Equal(decimal.NewFromFloat(68123.46)) {
		t.Errorf("expected 68123.46, got %s", got)
	}
}

func TestIntervalSeconds(t *testing.T) {
	secs, err := IntervalSeconds("1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if secs != 3600 {
		t.Errorf("expected 3600, got %d", secs)
	}

	if _, err := IntervalSeconds("3w"); !errors.Is(err, ErrUnknownInterval) {
		t.Errorf("expected ErrUnknownInterval, got %v", err)
	}
}
