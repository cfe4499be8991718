package db

import (
	"context"
	"time"
)

// Candle is one stored OHLCV bar.
type Candle struct {
	Ticker    string
	Venue     string
	Timeframe string
	Ts        time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Signal is a persisted trade recommendation.
type Signal struct {
	ID         string
	Ticker     string
	Venue      string
	Timeframe  string
	Strategy   string
	Action     string
	Entry      float64
	Stop       float64
	Target     float64
	Confidence float64
	Ts         time.Time
}

// Order is one row of the durable order history.
type Order struct {
	ID          string
	Ticker      string
	Venue       string
	Side        string
	Type        string
	Price       float64
	Qty         float64
	Status      string
	PriceSource string
	CreatedAt   time.Time
}

// Trade is one fill row.
type Trade struct {
	ID        string
	Ticker    string
	Venue     string
	Side      string
	Price     float64
	Qty       float64
	CreatedAt time.Time
}

// User is an application user.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// nullableTime maps the zero time to NULL so column defaults apply.
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// CreateOrder inserts a new order row.
func (d *Database) CreateOrder(ctx context.Context, o Order) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO orders (id, ticker, venue, side, type, price, qty, status, price_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, o.ID, o.Ticker, o.Venue, o.Side, o.Type, o.Price, o.Qty, o.Status, o.PriceSource, nullableTime(o.CreatedAt))
	return err
}

// CreateTrade inserts a new trade row.
func (d *Database) CreateTrade(ctx context.Context, t Trade) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO trades (id, ticker, venue, side, price, qty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, t.ID, t.Ticker, t.Venue, t.Side, t.Price, t.Qty, nullableTime(t.CreatedAt))
	return err
}

// CreateSignal inserts a generated signal.
func (d *Database) CreateSignal(ctx context.Context, s Signal) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO signals (id, ticker, venue, timeframe, strategy, action, entry, stop, target, confidence, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.ID, s.Ticker, s.Venue, s.Timeframe, s.Strategy, s.Action, s.Entry, s.Stop, s.Target, s.Confidence, s.Ts)
	return err
}

// CreateUser inserts a new user row.
func (d *Database) CreateUser(ctx context.Context, u User) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP))
	`, u.ID, u.Email, u.PasswordHash, nullableTime(u.CreatedAt))
	return err
}

// UpsertCandles writes a batch of bars inside one transaction, replacing
// duplicates on the (ticker, venue, timeframe, ts) key.
func (d *Database) UpsertCandles(ctx context.Context, candles []Candle) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (ticker, venue, timeframe, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, venue, timeframe, ts) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.ExecContext(ctx, c.Ticker, c.Venue, c.Timeframe, c.Ts, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return err
		}
	}
	return tx.Commit()
}
