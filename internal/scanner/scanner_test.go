package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"papertrade-core/internal/events"
	"papertrade-core/internal/ledger"
	"papertrade-core/internal/market"
	"papertrade-core/internal/risk"
	"papertrade-core/pkg/db"
)

// crossoverBars builds a series whose fast SMA crosses above the slow
// SMA on the final bar: a flat oscillation followed by a jump. The
// oscillation keeps RSI inside the gate.
func crossoverBars(n int) []market.Bar {
	base := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	bars := make([]market.Bar, 0, n)
	for i := 0; i < n; i++ {
		px := 100.0
		if i%2 == 1 {
			px = 99.0
		}
		if i == n-1 {
			px = 110.0
		}
		bars = append(bars, market.Bar{
			Ts:     base.Add(time.Duration(i) * time.Minute),
			Open:   px,
			High:   px + 0.5,
			Low:    px - 0.5,
			Close:  px,
			Volume: 1000,
		})
	}
	return bars
}

type fakeBars struct {
	bars  []market.Bar
	calls int
}

func (f *fakeBars) FetchBars(ctx context.Context, inst market.Instrument, timeframe string, lookbackDays int) ([]market.Bar, error) {
	f.calls++
	return f.bars, nil
}

type fakeExec struct {
	cash   float64
	orders []ledger.OrderRequest
}

func (f *fakeExec) Cash() float64                { return f.cash }
func (f *fakeExec) Positions() []ledger.Position { return nil }
func (f *fakeExec) Mark(inst market.Instrument) (float64, bool) {
	return 0, false
}
func (f *fakeExec) PlaceOrder(ctx context.Context, req ledger.OrderRequest) (ledger.Order, error) {
	f.orders = append(f.orders, req)
	return ledger.Order{ID: "test-order", Price: req.Price}, nil
}

func newScanTestDB(t *testing.T) *db.Database {
	t.Helper()
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	if err := db.ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func TestScanOnceEmitsAndPersists(t *testing.T) {
	database := newScanTestDB(t)
	source := &fakeBars{bars: crossoverBars(60)}
	bus := events.NewBus()
	inst := market.Instrument{Ticker: "RELIANCE", Venue: market.VenueNSE}

	ch, unsub := bus.Subscribe(events.EventSignal, 4)
	defer unsub()

	s := New(Config{Timeframe: "1m", Interval: time.Minute}, database, source, []market.Instrument{inst}, WithBus(bus))
	n, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 signal, got %d", n)
	}
	if source.calls != 1 {
		t.Errorf("expected one remote fetch, got %d", source.calls)
	}

	select {
	case <-ch:
	default:
		t.Error("expected signal published on bus")
	}

	sigs, err := database.GetSignals(context.Background(), "RELIANCE", "NSE", 10)
	if err != nil {
		t.Fatalf("GetSignals: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("expected 1 persisted signal, got %d", len(sigs))
	}
	if sigs[0].Action != "BUY" || sigs[0].Entry != 110 {
		t.Errorf("unexpected signal %+v", sigs[0])
	}

	candles, err := database.GetCandles(context.Background(), "RELIANCE", "NSE", "1m", 1000)
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if len(candles) != 60 {
		t.Errorf("expected fetched bars persisted, got %d", len(candles))
	}
}

func TestScanOnceSkipsShortHistory(t *testing.T) {
	database := newScanTestDB(t)
	source := &fakeBars{bars: crossoverBars(30)}
	inst := market.Instrument{Ticker: "TCS", Venue: market.VenueNSE}

	s := New(Config{Timeframe: "1m"}, database, source, []market.Instrument{inst})
	n, err := s.ScanOnce(context.Background())
	if err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}
	if n != 0 {
		t.Errorf("expected no signals on 30 bars, got %d", n)
	}
}

func TestScanOnceAutoExecutes(t *testing.T) {
	database := newScanTestDB(t)
	source := &fakeBars{bars: crossoverBars(60)}
	exec := &fakeExec{cash: 1_000_000}
	riskMgr := risk.NewInMemory(risk.DefaultLimits())
	inst := market.Instrument{Ticker: "INFY", Venue: market.VenueNSE}

	s := New(
		Config{Timeframe: "1m", AutoExecute: true, MinConfidence: 0.5},
		database, source, []market.Instrument{inst},
		WithExecutor(exec), WithRisk(riskMgr),
	)
	if _, err := s.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}

	if len(exec.orders) != 1 {
		t.Fatalf("expected 1 auto-executed order, got %d", len(exec.orders))
	}
	req := exec.orders[0]
	if req.Side != ledger.SideBuy || req.Qty <= 0 {
		t.Errorf("unexpected order %+v", req)
	}
	if req.Bracket == nil || req.Bracket.Stop >= req.Bracket.Entry {
		t.Errorf("expected long bracket below entry, got %+v", req.Bracket)
	}
}

func TestScanOnceBlockedByRisk(t *testing.T) {
	database := newScanTestDB(t)
	source := &fakeBars{bars: crossoverBars(60)}
	exec := &fakeExec{cash: 1_000_000}
	limits := risk.DefaultLimits()
	limits.PauseAll = true
	riskMgr := risk.NewInMemory(limits)
	bus := events.NewBus()
	inst := market.Instrument{Ticker: "INFY", Venue: market.VenueNSE}

	ch, unsub := bus.Subscribe(events.EventRiskAlert, 1)
	defer unsub()

	s := New(
		Config{Timeframe: "1m", AutoExecute: true},
		database, source, []market.Instrument{inst},
		WithExecutor(exec), WithRisk(riskMgr), WithBus(bus),
	)
	if _, err := s.ScanOnce(context.Background()); err != nil {
		t.Fatalf("ScanOnce: %v", err)
	}

	if len(exec.orders) != 0 {
		t.Fatalf("expected no orders while paused, got %d", len(exec.orders))
	}
	select {
	case payload := <-ch:
		alert, ok := payload.(events.RiskAlert)
		if !ok || alert.Reason == "" {
			t.Errorf("unexpected alert payload %v", payload)
		}
	default:
		t.Error("expected risk alert published")
	}
}

func TestLoadWatchlist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watchlist.yaml")
	content := `symbols:
  - ticker: RELIANCE
    venue: NSE
  - ticker: TCS
    venue: BSE
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write watchlist: %v", err)
	}

	got, err := LoadWatchlist(path)
	if err != nil {
		t.Fatalf("LoadWatchlist: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 instruments, got %d", len(got))
	}
	if got[0].Key() != "RELIANCE.NSE" || got[1].Key() != "TCS.BSE" {
		t.Errorf("unexpected instruments %v", got)
	}

	t.Run("unknown venue rejected", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yaml")
		if err := os.WriteFile(bad, []byte("symbols:\n  - ticker: X\n    venue: NYSE\n"), 0o644); err != nil {
			t.Fatalf("write watchlist: %v", err)
		}
		if _, err := LoadWatchlist(bad); err == nil {
			t.Error("expected error for unknown venue")
		}
	})
}
