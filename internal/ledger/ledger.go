package ledger

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"papertrade-core/internal/events"
	"papertrade-core/internal/market"
	"papertrade-core/pkg/cache"
)

const (
	maxOrders = 200
	maxTrades = 1000
)

// Router resolves an authoritative fill price from the remote order
// endpoint. Implementations may fail or time out; the ledger then falls
// back to local simulation.
type Router interface {
	RouteOrder(ctx context.Context, inst market.Instrument, side Side, qty, price float64) (float64, error)
}

// History receives durable copies of fills for query surfaces. Failures
// are logged, never fatal: the JSON snapshot remains the authoritative
// reload source.
type History interface {
	AppendOrder(ctx context.Context, o Order) error
	AppendTrade(ctx context.Context, t Trade) error
}

// Config carries the ledger's tunables with their documented defaults.
type Config struct {
	// StartingCash seeds a fresh ledger. Default 1,000,000.
	StartingCash float64
	// FallbackPrice fills a market order when no mark has ever been
	// observed for the instrument. Default 1000.
	FallbackPrice float64
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{StartingCash: 1_000_000, FallbackPrice: 1000}
}

// Ledger tracks cash, positions, order/trade logs and exit brackets for a
// simulated portfolio. All mutating entry points serialize on one mutex;
// state is snapshotted to the store synchronously with every mutation so
// a reload reconstructs exact prior state.
//
// The last-observed price map is owned by the instance (injected, not
// process-global) so independent ledgers do not interfere.
type Ledger struct {
	mu sync.Mutex

	cash      float64
	positions map[string]Position
	orders    []Order // newest first, capped
	trades    []Trade // newest first, capped
	brackets  map[string]Bracket

	marks *cache.PriceCache

	cfg     Config
	store   Store
	history History
	router  Router
	bus     *events.Bus

	now func() time.Time
}

// Option customizes a Ledger.
type Option func(*Ledger)

// WithStore attaches a snapshot store; prior state is loaded from it.
func WithStore(s Store) Option { return func(l *Ledger) { l.store = s } }

// WithHistory attaches a durable history sink for orders and trades.
func WithHistory(h History) Option { return func(l *Ledger) { l.history = h } }

// WithRouter attaches the remote order-routing client.
func WithRouter(r Router) Option { return func(l *Ledger) { l.router = r } }

// WithBus publishes fill and position events to the given bus.
func WithBus(b *events.Bus) Option { return func(l *Ledger) { l.bus = b } }

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option { return func(l *Ledger) { l.now = now } }

// New builds a ledger. When a store is attached and holds a snapshot,
// cash, positions and logs are restored from it.
func New(cfg Config, marks *cache.PriceCache, opts ...Option) (*Ledger, error) {
	if cfg.StartingCash == 0 {
		cfg.StartingCash = DefaultConfig().StartingCash
	}
	if cfg.FallbackPrice <= 0 {
		cfg.FallbackPrice = DefaultConfig().FallbackPrice
	}
	if marks == nil {
		marks = cache.NewPriceCache()
	}
	l := &Ledger{
		cash:      cfg.StartingCash,
		positions: make(map[string]Position),
		brackets:  make(map[string]Bracket),
		marks:     marks,
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.store != nil {
		st, ok, err := l.store.Load()
		if err != nil {
			return nil, fmt.Errorf("load ledger snapshot: %w", err)
		}
		if ok {
			l.cash = st.Cash
			for k, p := range st.Positions {
				l.positions[k] = p
			}
			l.orders = append(l.orders, st.Orders...)
			l.trades = append(l.trades, st.Trades...)
		}
	}
	return l, nil
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cash
}

// Position returns the open position for an instrument, if any.
func (l *Ledger) Position(inst market.Instrument) (Position, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[inst.Key()]
	return p, ok
}

// Positions returns a snapshot of all open positions.
func (l *Ledger) Positions() []Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Position, 0, len(l.positions))
	for _, p := range l.positions {
		out = append(out, p)
	}
	return out
}

// Orders returns the order log, newest first.
func (l *Ledger) Orders() []Order {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// Trades returns the trade log, newest first.
func (l *Ledger) Trades() []Trade {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Trade, len(l.trades))
	copy(out, l.trades)
	return out
}

// Bracket returns the exit tracker for an instrument, if one is armed.
func (l *Ledger) Bracket(inst market.Instrument) (Bracket, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.brackets[inst.Key()]
	return b, ok
}

// Mark returns the last observed price for an instrument.
func (l *Ledger) Mark(inst market.Instrument) (float64, bool) {
	return l.marks.Get(inst.Key())
}

// UnrealizedPnL is the mark-to-market profit on the open position at the
// given price, or 0 when no position exists.
func (l *Ledger) UnrealizedPnL(inst market.Instrument, price float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.positions[inst.Key()]
	if !ok {
		return 0
	}
	return (price - p.AvgPrice) * p.Qty
}

// PlaceOrder simulates an instant fill: resolve a price, append order and
// trade records, apply the fill to the position, and arm the bracket if
// one was supplied. The fill price is taken from the request, else the
// remote router when configured, else the last mark, else the configured
// fallback; the chosen source is recorded on the returned Order so a
// degraded fill is visible to the caller. Either the whole update
// applies or none of it does.
func (l *Ledger) PlaceOrder(ctx context.Context, req OrderRequest) (Order, error) {
	if err := validate(req); err != nil {
		return Order{}, err
	}

	// Remote routing happens before the lock is taken: the read-modify-
	// write below must not span a network call.
	routed, routedOK := l.route(ctx, req)

	l.mu.Lock()
	defer l.mu.Unlock()

	price, source := l.resolvePrice(req, routed, routedOK)
	o := l.fillLocked(req, price, source)
	return o, nil
}

// MarkPrice records the latest observed price for an instrument and then
// evaluates its exit bracket. This is the hot path: it does no I/O beyond
// the snapshot write, except when a bracket fires and a closing order is
// issued through the same fill path as PlaceOrder.
func (l *Ledger) MarkPrice(inst market.Instrument, price float64) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return
	}
	key := inst.Key()
	l.marks.Set(key, price)

	l.mu.Lock()
	defer l.mu.Unlock()

	br, ok := l.brackets[key]
	if !ok {
		return
	}
	pos, open := l.positions[key]
	if !open {
		// position closed by other means; the tracker is stale
		delete(l.brackets, key)
		return
	}

	var exit Side
	if pos.Qty > 0 {
		if (br.Stop > 0 && price <= br.Stop) || (br.Target > 0 && price >= br.Target) {
			exit = SideSell
		}
	} else {
		if (br.Stop > 0 && price >= br.Stop) || (br.Target > 0 && price <= br.Target) {
			exit = SideBuy
		}
	}
	if exit == "" {
		return
	}

	// Disarm before issuing the closing order so a re-entrant mark can
	// never fire the same bracket twice.
	delete(l.brackets, key)
	l.fillLocked(OrderRequest{
		Instrument: inst,
		Side:       exit,
		Type:       TypeMarket,
		Qty:        math.Abs(pos.Qty),
	}, price, PriceFromMark)
	log.Printf("ledger: bracket exit %s %s qty=%.4f at %.4f", exit, key, math.Abs(pos.Qty), price)
}

// fillLocked applies one fill end to end. Callers hold l.mu.
func (l *Ledger) fillLocked(req OrderRequest, price float64, source string) Order {
	now := l.now()
	id := uuid.NewString()
	key := req.Instrument.Key()
	typ := req.Type
	if typ == "" {
		typ = TypeMarket
	}

	o := Order{
		ID: id, Ts: now, Instrument: req.Instrument,
		Side: req.Side, Type: typ, Price: price, Qty: req.Qty,
		Status: StatusFilled, PriceSource: source,
	}
	t := Trade{
		ID: id, Ts: now, Instrument: req.Instrument,
		Side: req.Side, Price: price, Qty: req.Qty,
	}

	l.applyFill(key, req.Instrument, req.Side, price, req.Qty)

	l.orders = prependCapped(l.orders, o, maxOrders)
	l.trades = prependCapped(l.trades, t, maxTrades)

	if req.Bracket != nil {
		// silently replaces any prior tracker for the key
		l.brackets[key] = *req.Bracket
	} else if _, open := l.positions[key]; !open {
		delete(l.brackets, key)
	}

	l.persistLocked()
	l.record(o, t)
	return o
}

// applyFill mutates cash and the position map for a single fill.
//
// Increasing fills blend the average price by quantity weight and never
// touch cash. Reducing fills realize P&L on the closed portion at the
// prior average; when the fill flips through zero the surviving
// remainder opens at the fill price.
func (l *Ledger) applyFill(key string, inst market.Instrument, side Side, price, qty float64) {
	signed := qty
	if side == SideSell {
		signed = -qty
	}

	existing, ok := l.positions[key]
	if !ok {
		l.positions[key] = Position{Instrument: inst, Qty: signed, AvgPrice: price}
		l.publishPosition(l.positions[key])
		return
	}

	newQty := existing.Qty + signed
	sameDirection := (existing.Qty > 0 && signed > 0) || (existing.Qty < 0 && signed < 0)

	if sameDirection {
		avg := (existing.AvgPrice*math.Abs(existing.Qty) + price*qty) / math.Abs(newQty)
		l.positions[key] = Position{Instrument: inst, Qty: newQty, AvgPrice: avg}
		l.publishPosition(l.positions[key])
		return
	}

	closed := math.Min(math.Abs(existing.Qty), qty)
	direction := 1.0
	if existing.Qty < 0 {
		direction = -1.0
	}
	l.cash += (price - existing.AvgPrice) * closed * direction

	if newQty == 0 {
		delete(l.positions, key)
		l.publishPosition(Position{Instrument: inst})
		return
	}

	avg := existing.AvgPrice
	if existing.Qty*newQty < 0 {
		// flipped through zero: the remainder is a fresh position
		avg = price
	}
	l.positions[key] = Position{Instrument: inst, Qty: newQty, AvgPrice: avg}
	l.publishPosition(l.positions[key])
}

func (l *Ledger) resolvePrice(req OrderRequest, routed float64, routedOK bool) (float64, string) {
	if req.Price > 0 {
		return req.Price, PriceFromOrder
	}
	if routedOK && routed > 0 {
		return routed, PriceFromRemote
	}
	if px, ok := l.marks.Get(req.Instrument.Key()); ok && px > 0 {
		return px, PriceFromMark
	}
	log.Printf("ledger: no reference price for %s, filling at fallback %.2f", req.Instrument.Key(), l.cfg.FallbackPrice)
	return l.cfg.FallbackPrice, PriceFromFallback
}

func (l *Ledger) route(ctx context.Context, req OrderRequest) (float64, bool) {
	if l.router == nil || req.Price > 0 {
		return 0, false
	}
	px, err := l.router.RouteOrder(ctx, req.Instrument, req.Side, req.Qty, req.Price)
	if err != nil {
		log.Printf("ledger: remote routing failed for %s, falling back to local fill: %v", req.Instrument.Key(), err)
		return 0, false
	}
	return px, true
}

func (l *Ledger) persistLocked() {
	if l.store == nil {
		return
	}
	if err := l.store.Save(l.stateLocked()); err != nil {
		log.Printf("ledger: snapshot save failed: %v", err)
	}
}

func (l *Ledger) stateLocked() State {
	st := State{
		Cash:      l.cash,
		Positions: make(map[string]Position, len(l.positions)),
		Orders:    append([]Order(nil), l.orders...),
		Trades:    append([]Trade(nil), l.trades...),
	}
	for k, p := range l.positions {
		st.Positions[k] = p
	}
	return st
}

func (l *Ledger) record(o Order, t Trade) {
	if l.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.history.AppendOrder(ctx, o); err != nil {
			log.Printf("ledger: order history write failed: %v", err)
		}
		if err := l.history.AppendTrade(ctx, t); err != nil {
			log.Printf("ledger: trade history write failed: %v", err)
		}
	}
	if l.bus != nil {
		l.bus.Publish(events.EventOrderFilled, o)
	}
}

func (l *Ledger) publishPosition(p Position) {
	if l.bus != nil {
		l.bus.Publish(events.EventPositionChange, p)
	}
}

func validate(req OrderRequest) error {
	if req.Instrument.Ticker == "" {
		return fmt.Errorf("order: ticker is required")
	}
	if _, err := market.ParseVenue(string(req.Instrument.Venue)); err != nil {
		return fmt.Errorf("order: %w", err)
	}
	if req.Side != SideBuy && req.Side != SideSell {
		return fmt.Errorf("order: side must be BUY or SELL")
	}
	if req.Qty <= 0 || math.IsNaN(req.Qty) || math.IsInf(req.Qty, 0) {
		return fmt.Errorf("order: qty must be positive")
	}
	if req.Price < 0 || math.IsNaN(req.Price) || math.IsInf(req.Price, 0) {
		return fmt.Errorf("order: price must be positive when set")
	}
	return nil
}

func prependCapped[T any](entries []T, item T, limit int) []T {
	out := make([]T, 0, len(entries)+1)
	out = append(out, item)
	out = append(out, entries...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
