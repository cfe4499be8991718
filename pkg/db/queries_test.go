package db

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	database, err := New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}
	return database
}

func TestCandleRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 9, 15, 0, 0, time.UTC)
	var candles []Candle
	for i := 0; i < 5; i++ {
		candles = append(candles, Candle{
			Ticker:    "RELIANCE",
			Venue:     "NSE",
			Timeframe: "1m",
			Ts:        base.Add(time.Duration(i) * time.Minute),
			Open:      100 + float64(i),
			High:      101 + float64(i),
			Low:       99 + float64(i),
			Close:     100.5 + float64(i),
			Volume:    1000,
		})
	}
	if err := database.UpsertCandles(ctx, candles); err != nil {
		t.Fatalf("UpsertCandles: %v", err)
	}

	t.Run("returns ascending order", func(t *testing.T) {
		got, err := database.GetCandles(ctx, "RELIANCE", "NSE", "1m", 100)
		if err != nil {
			t.Fatalf("GetCandles: %v", err)
		}
		if len(got) != 5 {
			t.Fatalf("expected 5 candles, got %d", len(got))
		}
		for i := 1; i < len(got); i++ {
			if !got[i].Ts.After(got[i-1].Ts) {
				t.Errorf("candles not ascending at index %d", i)
			}
		}
	})

	t.Run("limit keeps newest bars", func(t *testing.T) {
		got, err := database.GetCandles(ctx, "RELIANCE", "NSE", "1m", 2)
		if err != nil {
			t.Fatalf("GetCandles: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 candles, got %d", len(got))
		}
		if !got[1].Ts.Equal(base.Add(4 * time.Minute)) {
			t.Errorf("expected newest candle last, got ts %v", got[1].Ts)
		}
	})

	t.Run("upsert replaces duplicate key", func(t *testing.T) {
		updated := candles[0]
		updated.Close = 250
		if err := database.UpsertCandles(ctx, []Candle{updated}); err != nil {
			t.Fatalf("UpsertCandles: %v", err)
		}
		got, err := database.GetCandles(ctx, "RELIANCE", "NSE", "1m", 100)
		if err != nil {
			t.Fatalf("GetCandles: %v", err)
		}
		if len(got) != 5 {
			t.Fatalf("expected 5 candles after upsert, got %d", len(got))
		}
		if got[0].Close != 250 {
			t.Errorf("expected replaced close 250, got %v", got[0].Close)
		}
	})

	t.Run("different venue is a separate series", func(t *testing.T) {
		got, err := database.GetCandles(ctx, "RELIANCE", "BSE", "1m", 100)
		if err != nil {
			t.Fatalf("GetCandles: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no BSE candles, got %d", len(got))
		}
	})
}

func TestOrderAndTradeHistory(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		order := Order{
			ID:          string(rune('a' + i)),
			Ticker:      "TCS",
			Venue:       "NSE",
			Side:        "BUY",
			Type:        "MARKET",
			Price:       3500,
			Qty:         10,
			Status:      "FILLED",
			PriceSource: "mark",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
		if err := database.CreateOrder(ctx, order); err != nil {
			t.Fatalf("CreateOrder: %v", err)
		}
		trade := Trade{
			ID:        string(rune('x' + i)),
			Ticker:    "TCS",
			Venue:     "NSE",
			Side:      "BUY",
			Price:     3500,
			Qty:       10,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		}
		if err := database.CreateTrade(ctx, trade); err != nil {
			t.Fatalf("CreateTrade: %v", err)
		}
	}

	t.Run("orders newest first", func(t *testing.T) {
		got, err := database.GetOrders(ctx, 10)
		if err != nil {
			t.Fatalf("GetOrders: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 orders, got %d", len(got))
		}
		if got[0].ID != "c" {
			t.Errorf("expected newest order first, got id %q", got[0].ID)
		}
	})

	t.Run("trades respect limit", func(t *testing.T) {
		got, err := database.GetTrades(ctx, 2)
		if err != nil {
			t.Fatalf("GetTrades: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("expected 2 trades, got %d", len(got))
		}
	})
}

func TestSignalPersistence(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	sig := Signal{
		ID:         "sig-1",
		Ticker:     "INFY",
		Venue:      "NSE",
		Timeframe:  "1m",
		Strategy:   "sma_cross",
		Action:     "BUY",
		Entry:      1500,
		Stop:       1485,
		Target:     1530,
		Confidence: 0.6,
		Ts:         time.Date(2025, 6, 2, 11, 0, 0, 0, time.UTC),
	}
	if err := database.CreateSignal(ctx, sig); err != nil {
		t.Fatalf("CreateSignal: %v", err)
	}

	t.Run("filters by instrument", func(t *testing.T) {
		got, err := database.GetSignals(ctx, "INFY", "NSE", 10)
		if err != nil {
			t.Fatalf("GetSignals: %v", err)
		}
		if len(got) != 1 {
			t.Fatalf("expected 1 signal, got %d", len(got))
		}
		if got[0].Strategy != "sma_cross" || got[0].Target != 1530 {
			t.Errorf("unexpected signal: %+v", got[0])
		}
	})

	t.Run("no match for other venue", func(t *testing.T) {
		got, err := database.GetSignals(ctx, "INFY", "BSE", 10)
		if err != nil {
			t.Fatalf("GetSignals: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected no signals, got %d", len(got))
		}
	})
}

func TestUserLookup(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	t.Run("missing user returns ErrNotFound", func(t *testing.T) {
		_, err := database.GetUserByEmail(ctx, "nobody@example.com")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("created user is found", func(t *testing.T) {
		u := User{ID: "u1", Email: "trader@example.com", PasswordHash: "hash"}
		if err := database.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser: %v", err)
		}
		got, err := database.GetUserByEmail(ctx, "trader@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail: %v", err)
		}
		if got.ID != "u1" || got.PasswordHash != "hash" {
			t.Errorf("unexpected user: %+v", got)
		}
	})
}

func TestRiskLimits(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	t.Run("empty table returns ErrNotFound", func(t *testing.T) {
		_, err := database.GetRiskLimits(ctx)
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		want := RiskLimits{
			MaxCapitalPerTradePct: 5,
			MaxDailyLossPct:       3,
			CircuitBreakerPct:     20,
			KellyFraction:         0.5,
			PauseAll:              true,
		}
		if err := database.SaveRiskLimits(ctx, want); err != nil {
			t.Fatalf("SaveRiskLimits: %v", err)
		}
		got, err := database.GetRiskLimits(ctx)
		if err != nil {
			t.Fatalf("GetRiskLimits: %v", err)
		}
		if got.MaxCapitalPerTradePct != 5 || got.KellyFraction != 0.5 || !got.PauseAll {
			t.Errorf("unexpected limits: %+v", got)
		}
	})

	t.Run("second save updates in place", func(t *testing.T) {
		if err := database.SaveRiskLimits(ctx, RiskLimits{MaxCapitalPerTradePct: 2, MaxDailyLossPct: 1, CircuitBreakerPct: 10, KellyFraction: 0.25}); err != nil {
			t.Fatalf("SaveRiskLimits: %v", err)
		}
		got, err := database.GetRiskLimits(ctx)
		if err != nil {
			t.Fatalf("GetRiskLimits: %v", err)
		}
		if got.MaxCapitalPerTradePct != 2 || got.PauseAll {
			t.Errorf("unexpected limits after update: %+v", got)
		}
	})
}
