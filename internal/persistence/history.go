package persistence

import (
	"context"

	"papertrade-core/internal/ledger"
)

// HistoryWriter feeds ledger fills into the batch writer as append-only
// sqlite rows. Rows are history for query surfaces; the JSON snapshot
// remains the authoritative reload source, so enqueueing never fails.
type HistoryWriter struct {
	bw *BatchWriter
}

// NewHistoryWriter wraps a batch writer as a ledger history sink.
func NewHistoryWriter(bw *BatchWriter) *HistoryWriter {
	return &HistoryWriter{bw: bw}
}

// AppendOrder enqueues an order history row.
func (h *HistoryWriter) AppendOrder(ctx context.Context, o ledger.Order) error {
	h.bw.WriteQuery(`
		INSERT OR IGNORE INTO orders (id, ticker, venue, side, type, price, qty, status, price_source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, o.ID, o.Instrument.Ticker, string(o.Instrument.Venue), string(o.Side), string(o.Type),
		o.Price, o.Qty, o.Status, o.PriceSource, o.Ts)
	return nil
}

// AppendTrade enqueues a trade history row.
func (h *HistoryWriter) AppendTrade(ctx context.Context, t ledger.Trade) error {
	h.bw.WriteQuery(`
		INSERT OR IGNORE INTO trades (id, ticker, venue, side, price, qty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Instrument.Ticker, string(t.Instrument.Venue), string(t.Side), t.Price, t.Qty, t.Ts)
	return nil
}

// Flush forces pending rows to disk.
func (h *HistoryWriter) Flush() error { return h.bw.Flush() }
