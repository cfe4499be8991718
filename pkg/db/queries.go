// Package db provides the sqlite-backed history and reference storage.
package db

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a single-row lookup matches nothing.
	ErrNotFound = errors.New("record not found")
)

// GetCandles returns up to limit bars ascending by timestamp. The query
// walks newest-first so the limit keeps the most recent bars, then the
// result is reversed for consumers that want chronological order.
func (d *Database) GetCandles(ctx context.Context, ticker, venue, timeframe string, limit int) ([]Candle, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT ticker, venue, timeframe, ts, open, high, low, close, COALESCE(volume, 0)
		FROM candles
		WHERE ticker = ? AND venue = ? AND timeframe = ?
		ORDER BY ts DESC
		LIMIT ?
	`, ticker, venue, timeframe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candle
	for rows.Next() {
		var c Candle
		if err := rows.Scan(&c.Ticker, &c.Venue, &c.Timeframe, &c.Ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// GetSignals returns recent signals, newest first, optionally filtered
// by instrument.
func (d *Database) GetSignals(ctx context.Context, ticker, venue string, limit int) ([]Signal, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, ticker, venue, timeframe, strategy, action, entry, stop, COALESCE(target, 0), confidence, ts
		FROM signals
	`
	args := []any{}
	if ticker != "" && venue != "" {
		query += ` WHERE ticker = ? AND venue = ?`
		args = append(args, ticker, venue)
	}
	query += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Signal
	for rows.Next() {
		var s Signal
		if err := rows.Scan(&s.ID, &s.Ticker, &s.Venue, &s.Timeframe, &s.Strategy, &s.Action, &s.Entry, &s.Stop, &s.Target, &s.Confidence, &s.Ts); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetOrders returns recent order history, newest first.
func (d *Database) GetOrders(ctx context.Context, limit int) ([]Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, ticker, venue, side, type, price, qty, status, COALESCE(price_source, ''), created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		var o Order
		if err := rows.Scan(&o.ID, &o.Ticker, &o.Venue, &o.Side, &o.Type, &o.Price, &o.Qty, &o.Status, &o.PriceSource, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// GetTrades returns recent fills, newest first.
func (d *Database) GetTrades(ctx context.Context, limit int) ([]Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, ticker, venue, side, price, qty, created_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trade
	for rows.Next() {
		var t Trade
		if err := rows.Scan(&t.ID, &t.Ticker, &t.Venue, &t.Side, &t.Price, &t.Qty, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetUserByEmail looks up a user for login.
func (d *Database) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var u User
	err := d.DB.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// RiskLimits is the single active risk configuration row.
type RiskLimits struct {
	MaxCapitalPerTradePct float64
	MaxDailyLossPct       float64
	CircuitBreakerPct     float64
	KellyFraction         float64
	PauseAll              bool
	UpdatedAt             time.Time
}

// GetRiskLimits loads the active risk configuration.
func (d *Database) GetRiskLimits(ctx context.Context) (RiskLimits, error) {
	var (
		r     RiskLimits
		pause int
	)
	err := d.DB.QueryRowContext(ctx, `
		SELECT max_capital_per_trade_pct, max_daily_loss_pct, circuit_breaker_pct, kelly_fraction, pause_all, updated_at
		FROM risk_limits
		ORDER BY id DESC
		LIMIT 1
	`).Scan(&r.MaxCapitalPerTradePct, &r.MaxDailyLossPct, &r.CircuitBreakerPct, &r.KellyFraction, &pause, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return RiskLimits{}, ErrNotFound
	}
	r.PauseAll = pause != 0
	return r, err
}

// SaveRiskLimits upserts the single risk configuration row.
func (d *Database) SaveRiskLimits(ctx context.Context, r RiskLimits) error {
	pause := 0
	if r.PauseAll {
		pause = 1
	}
	res, err := d.DB.ExecContext(ctx, `
		UPDATE risk_limits SET
			max_capital_per_trade_pct = ?,
			max_daily_loss_pct = ?,
			circuit_breaker_pct = ?,
			kelly_fraction = ?,
			pause_all = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = (SELECT id FROM risk_limits ORDER BY id DESC LIMIT 1)
	`, r.MaxCapitalPerTradePct, r.MaxDailyLossPct, r.CircuitBreakerPct, r.KellyFraction, pause)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	_, err = d.DB.ExecContext(ctx, `
		INSERT INTO risk_limits (max_capital_per_trade_pct, max_daily_loss_pct, circuit_breaker_pct, kelly_fraction, pause_all)
		VALUES (?, ?, ?, ?, ?)
	`, r.MaxCapitalPerTradePct, r.MaxDailyLossPct, r.CircuitBreakerPct, r.KellyFraction, pause)
	return err
}
