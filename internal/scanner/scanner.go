// Package scanner periodically evaluates the watchlist for trade signals.
package scanner

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"papertrade-core/internal/events"
	"papertrade-core/internal/indicators"
	"papertrade-core/internal/ledger"
	"papertrade-core/internal/market"
	"papertrade-core/internal/risk"
	"papertrade-core/internal/signal"
	"papertrade-core/pkg/db"
)

// minBars is the history floor below which a symbol is topped up from
// the remote source before evaluation.
const minBars = 60

const atrPeriod = 14

// BarSource supplies bar history for a symbol, typically the remote
// chart client.
type BarSource interface {
	FetchBars(ctx context.Context, inst market.Instrument, timeframe string, lookbackDays int) ([]market.Bar, error)
}

// Executor is the slice of the ledger the scanner needs for
// auto-execution.
type Executor interface {
	Cash() float64
	Positions() []ledger.Position
	Mark(inst market.Instrument) (float64, bool)
	PlaceOrder(ctx context.Context, req ledger.OrderRequest) (ledger.Order, error)
}

// Config controls the scan cadence and auto-execution.
type Config struct {
	Timeframe     string
	LookbackDays  int
	Interval      time.Duration
	AutoExecute   bool
	MinConfidence float64
}

// Scanner walks the watchlist, evaluates each symbol, persists and
// publishes emitted signals, and optionally places risk-sized orders.
type Scanner struct {
	cfg      Config
	database *db.Database
	bars     BarSource
	universe []market.Instrument

	exec    Executor
	riskMgr *risk.Manager
	bus     *events.Bus
	now     func() time.Time
}

// Option configures optional collaborators.
type Option func(*Scanner)

// WithExecutor enables auto-execution through the ledger.
func WithExecutor(e Executor) Option { return func(s *Scanner) { s.exec = e } }

// WithRisk attaches the pre-trade risk gate.
func WithRisk(m *risk.Manager) Option { return func(s *Scanner) { s.riskMgr = m } }

// WithBus attaches the event bus for signal broadcasts.
func WithBus(b *events.Bus) Option { return func(s *Scanner) { s.bus = b } }

// New builds a scanner over the given universe.
func New(cfg Config, database *db.Database, bars BarSource, universe []market.Instrument, opts ...Option) *Scanner {
	if cfg.Timeframe == "" {
		cfg.Timeframe = "1m"
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 5
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	s := &Scanner{
		cfg:      cfg,
		database: database,
		bars:     bars,
		universe: universe,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scans immediately and then on every interval tick until the
// context is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	if n, err := s.ScanOnce(ctx); err != nil {
		log.Printf("scanner: initial scan: %v", err)
	} else {
		log.Printf("scanner: initial scan emitted %d signal(s)", n)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.ScanOnce(ctx); err != nil {
				log.Printf("scanner: scan: %v", err)
			} else if n > 0 {
				log.Printf("scanner: emitted %d signal(s)", n)
			}
		}
	}
}

// ScanOnce evaluates every symbol in the universe once and returns the
// number of signals emitted. Per-symbol failures are logged and do not
// abort the sweep.
func (s *Scanner) ScanOnce(ctx context.Context) (int, error) {
	emitted := 0
	for _, inst := range s.universe {
		if ctx.Err() != nil {
			return emitted, ctx.Err()
		}
		bars, err := s.history(ctx, inst)
		if err != nil {
			log.Printf("scanner: history %s: %v", inst.Key(), err)
			continue
		}

		sig := signal.Evaluate(inst, bars)
		if sig == nil {
			continue
		}
		emitted++

		if err := s.persistSignal(ctx, sig); err != nil {
			log.Printf("scanner: persist signal %s: %v", inst.Key(), err)
		}
		if s.bus != nil {
			s.bus.Publish(events.EventSignal, sig)
		}
		if s.cfg.AutoExecute && sig.Confidence >= s.cfg.MinConfidence {
			s.execute(ctx, sig, bars)
		}
	}
	return emitted, nil
}

// history loads bars from the DB, topping up from the remote source
// when the stored series is too short to evaluate.
func (s *Scanner) history(ctx context.Context, inst market.Instrument) ([]market.Bar, error) {
	var bars []market.Bar
	if s.database != nil {
		candles, err := s.database.GetCandles(ctx, inst.Ticker, string(inst.Venue), s.cfg.Timeframe, 1000)
		if err != nil {
			return nil, err
		}
		bars = toBars(candles)
	}
	if len(bars) >= minBars || s.bars == nil {
		return bars, nil
	}

	fetched, err := s.bars.FetchBars(ctx, inst, s.cfg.Timeframe, s.cfg.LookbackDays)
	if err != nil {
		return bars, err
	}
	if s.database != nil && len(fetched) > 0 {
		if err := s.database.UpsertCandles(ctx, toCandles(inst, s.cfg.Timeframe, fetched)); err != nil {
			log.Printf("scanner: upsert candles %s: %v", inst.Key(), err)
		}
	}
	return fetched, nil
}

func (s *Scanner) persistSignal(ctx context.Context, sig *signal.Signal) error {
	if s.database == nil {
		return nil
	}
	return s.database.CreateSignal(ctx, db.Signal{
		ID:         uuid.NewString(),
		Ticker:     sig.Instrument.Ticker,
		Venue:      string(sig.Instrument.Venue),
		Timeframe:  s.cfg.Timeframe,
		Strategy:   sig.Strategy,
		Action:     string(sig.Action),
		Entry:      sig.Entry,
		Stop:       sig.Stop,
		Target:     sig.Target,
		Confidence: sig.Confidence,
		Ts:         sig.Ts,
	})
}

// execute risk-sizes the signal and places a bracketed market order.
func (s *Scanner) execute(ctx context.Context, sig *signal.Signal, bars []market.Bar) {
	if s.exec == nil {
		return
	}

	equity := s.equity()
	if s.riskMgr != nil {
		decision := s.riskMgr.CheckOrder(risk.OrderContext{Equity: equity, LastPrice: sig.Entry})
		if !decision.Allowed {
			log.Printf("scanner: %s %s blocked: %s", sig.Action, sig.Instrument.Key(), decision.Reason)
			if s.bus != nil {
				s.bus.Publish(events.EventRiskAlert, events.RiskAlert{Reason: decision.Reason, Ts: s.now()})
			}
			return
		}
	}

	qty := 1.0
	if s.riskMgr != nil {
		highs := make([]float64, len(bars))
		lows := make([]float64, len(bars))
		for i, b := range bars {
			highs[i] = b.High
			lows[i] = b.Low
		}
		qty = s.riskMgr.SuggestQty(equity, sig.Entry, indicators.ATR(highs, lows, market.Closes(bars), atrPeriod))
		if qty <= 0 {
			log.Printf("scanner: %s %s skipped: sized to zero", sig.Action, sig.Instrument.Key())
			return
		}
	}

	side := ledger.SideBuy
	if sig.Action == signal.ActionSell {
		side = ledger.SideSell
	}
	order, err := s.exec.PlaceOrder(ctx, ledger.OrderRequest{
		Instrument: sig.Instrument,
		Side:       side,
		Type:       ledger.TypeMarket,
		Qty:        qty,
		Price:      sig.Entry,
		Bracket:    &ledger.Bracket{Entry: sig.Entry, Target: sig.Target, Stop: sig.Stop},
	})
	if err != nil {
		log.Printf("scanner: auto-execute %s %s: %v", sig.Action, sig.Instrument.Key(), err)
		return
	}
	log.Printf("scanner: auto-executed %s %s qty=%.0f @ %.2f (order %s)",
		sig.Action, sig.Instrument.Key(), qty, order.Price, order.ID)
}

// equity is cash plus mark-to-market value of open positions.
func (s *Scanner) equity() float64 {
	equity := s.exec.Cash()
	for _, p := range s.exec.Positions() {
		if mark, ok := s.exec.Mark(p.Instrument); ok {
			equity += (mark - p.AvgPrice) * p.Qty
		}
	}
	return equity
}

func toBars(candles []db.Candle) []market.Bar {
	bars := make([]market.Bar, 0, len(candles))
	for _, c := range candles {
		bars = append(bars, market.Bar{
			Ts:     c.Ts,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		})
	}
	return bars
}

func toCandles(inst market.Instrument, timeframe string, bars []market.Bar) []db.Candle {
	candles := make([]db.Candle, 0, len(bars))
	for _, b := range bars {
		candles = append(candles, db.Candle{
			Ticker:    inst.Ticker,
			Venue:     string(inst.Venue),
			Timeframe: timeframe,
			Ts:        b.Ts,
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		})
	}
	return candles
}
