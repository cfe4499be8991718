// Package risk gates order placement with account-level limits.
package risk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"papertrade-core/pkg/db"
)

// Limits holds the active risk configuration.
type Limits struct {
	MaxCapitalPerTradePct float64 `json:"max_capital_per_trade_pct"`
	MaxDailyLossPct       float64 `json:"max_daily_loss_pct"`
	CircuitBreakerPct     float64 `json:"circuit_breaker_pct"`
	KellyFraction         float64 `json:"kelly_fraction"`
	PauseAll              bool    `json:"pause_all"`
}

// DefaultLimits returns the configuration used when none is stored.
func DefaultLimits() Limits {
	return Limits{
		MaxCapitalPerTradePct: 5,
		MaxDailyLossPct:       3,
		CircuitBreakerPct:     20,
		KellyFraction:         0.5,
	}
}

// Decision is the outcome of an order pre-check.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// OrderContext carries the account and instrument state a check needs.
// PrevDailyClose and LastPrice may be zero when unknown; the circuit
// breaker is skipped in that case.
type OrderContext struct {
	Equity         float64
	PrevDailyClose float64
	LastPrice      float64
}

// Manager loads limits from the DB and evaluates order pre-checks.
// Daily drawdown is tracked against the first equity observed each day.
type Manager struct {
	database *db.Database
	mu       sync.RWMutex
	limits   Limits
	dayStart float64
	day      time.Time
	now      func() time.Time
}

// NewManager builds a manager backed by the DB. If no limits row exists
// the defaults are persisted.
func NewManager(ctx context.Context, database *db.Database) (*Manager, error) {
	m := &Manager{
		database: database,
		limits:   DefaultLimits(),
		now:      time.Now,
	}
	if database == nil {
		return m, nil
	}

	stored, err := database.GetRiskLimits(ctx)
	if errors.Is(err, db.ErrNotFound) {
		if err := m.persist(ctx, m.limits); err != nil {
			return nil, fmt.Errorf("seed risk limits: %w", err)
		}
		log.Printf("risk: seeded default limits (per-trade %.1f%%, daily loss %.1f%%)",
			m.limits.MaxCapitalPerTradePct, m.limits.MaxDailyLossPct)
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load risk limits: %w", err)
	}

	m.limits = Limits{
		MaxCapitalPerTradePct: stored.MaxCapitalPerTradePct,
		MaxDailyLossPct:       stored.MaxDailyLossPct,
		CircuitBreakerPct:     stored.CircuitBreakerPct,
		KellyFraction:         stored.KellyFraction,
		PauseAll:              stored.PauseAll,
	}
	return m, nil
}

// NewInMemory builds a manager without DB persistence, used in tests.
func NewInMemory(limits Limits) *Manager {
	return &Manager{limits: limits, now: time.Now}
}

// Limits returns a copy of the active configuration.
func (m *Manager) Limits() Limits {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.limits
}

// SetPaused flips the global trading pause and persists it.
func (m *Manager) SetPaused(ctx context.Context, paused bool) error {
	m.mu.Lock()
	m.limits.PauseAll = paused
	limits := m.limits
	m.mu.Unlock()

	log.Printf("risk: pause_all set to %v", paused)
	return m.persist(ctx, limits)
}

// UpdateLimits replaces the configuration and persists it.
func (m *Manager) UpdateLimits(ctx context.Context, limits Limits) error {
	if limits.MaxCapitalPerTradePct <= 0 || limits.MaxDailyLossPct <= 0 || limits.CircuitBreakerPct <= 0 {
		return errors.New("risk limits must be positive")
	}
	m.mu.Lock()
	m.limits = limits
	m.mu.Unlock()
	return m.persist(ctx, limits)
}

func (m *Manager) persist(ctx context.Context, limits Limits) error {
	if m.database == nil {
		return nil
	}
	return m.database.SaveRiskLimits(ctx, db.RiskLimits{
		MaxCapitalPerTradePct: limits.MaxCapitalPerTradePct,
		MaxDailyLossPct:       limits.MaxDailyLossPct,
		CircuitBreakerPct:     limits.CircuitBreakerPct,
		KellyFraction:         limits.KellyFraction,
		PauseAll:              limits.PauseAll,
	})
}

// CheckOrder runs the pre-trade gates: pause flag, daily drawdown
// against the day-start equity, and the per-instrument circuit breaker.
func (m *Manager) CheckOrder(oc OrderContext) Decision {
	m.mu.Lock()
	limits := m.limits
	today := m.now().UTC().Truncate(24 * time.Hour)
	if !m.day.Equal(today) {
		m.day = today
		m.dayStart = oc.Equity
	}
	dayStart := m.dayStart
	m.mu.Unlock()

	if limits.PauseAll {
		return Decision{Reason: "trading paused"}
	}

	if dayStart > 0 {
		drawdownPct := (oc.Equity - dayStart) / dayStart * 100
		if drawdownPct <= -limits.MaxDailyLossPct {
			return Decision{Reason: fmt.Sprintf("daily drawdown limit exceeded (%.2f%%)", drawdownPct)}
		}
	}

	if oc.PrevDailyClose > 0 && oc.LastPrice > 0 {
		changePct := math.Abs(oc.LastPrice-oc.PrevDailyClose) / oc.PrevDailyClose * 100
		if changePct >= limits.CircuitBreakerPct {
			return Decision{Reason: fmt.Sprintf("circuit breaker: %.1f%% move from previous close", changePct)}
		}
	}

	return Decision{Allowed: true}
}

// SuggestQty sizes a position from equity, price, and volatility. The
// risk budget is the per-trade capital cap scaled by the Kelly fraction,
// divided by the per-share risk (ATR when available, else 1% of price).
func (m *Manager) SuggestQty(equity, price, atr float64) float64 {
	limits := m.Limits()
	if equity <= 0 || price <= 0 {
		return 0
	}

	perTradeCap := equity * limits.MaxCapitalPerTradePct / 100
	riskPerShare := atr
	if riskPerShare <= 0 {
		riskPerShare = price * 0.01
	}
	kelly := math.Min(1.0, math.Max(0.1, limits.KellyFraction))
	qty := math.Floor(perTradeCap * kelly / math.Max(riskPerShare, 1e-6))
	if qty < 0 {
		return 0
	}
	return qty
}
