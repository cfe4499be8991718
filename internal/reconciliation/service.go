// Package reconciliation verifies the ledger's durable state matches
// what is live in memory.
package reconciliation

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"papertrade-core/internal/ledger"
)

const qtyTolerance = 1e-9

// Service periodically reloads the snapshot store and diffs it against
// the live ledger. A diff means a snapshot write failed or the file was
// modified out of band; it is reported, not auto-corrected, since the
// live ledger is the source of truth while the process runs.
type Service struct {
	ledger   *ledger.Ledger
	store    ledger.Store
	interval time.Duration
	mu       sync.Mutex

	lastReport *Report
}

// Report contains the outcome of one reconciliation pass.
type Report struct {
	Timestamp     time.Time      `json:"timestamp"`
	CashDiff      float64        `json:"cash_diff"`
	PositionDiffs []PositionDiff `json:"position_diffs,omitempty"`
	HasDiffs      bool           `json:"has_diffs"`
}

// PositionDiff is one instrument whose stored quantity disagrees with
// the live ledger.
type PositionDiff struct {
	Key       string  `json:"key"`
	LiveQty   float64 `json:"live_qty"`
	StoredQty float64 `json:"stored_qty"`
}

// NewService creates a reconciliation service.
func NewService(l *ledger.Ledger, store ledger.Store, interval time.Duration) *Service {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Service{ledger: l, store: store, interval: interval}
}

// Start begins periodic reconciliation until the context is cancelled.
func (s *Service) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				report, err := s.Reconcile()
				if err != nil {
					log.Printf("reconciliation error: %v", err)
					continue
				}
				if report.HasDiffs {
					log.Printf("reconciliation: snapshot drift detected: cash diff %.4f, %d position diff(s)",
						report.CashDiff, len(report.PositionDiffs))
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	log.Printf("reconciliation service started (interval: %v)", s.interval)
}

// Reconcile performs one pass and caches the report.
func (s *Service) Reconcile() (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok, err := s.store.Load()
	if err != nil {
		return nil, err
	}

	report := &Report{Timestamp: time.Now()}
	liveCash := s.ledger.Cash()
	livePositions := s.ledger.Positions()

	if !ok {
		// No snapshot yet: drift only if the ledger has state to lose.
		if len(livePositions) > 0 {
			report.HasDiffs = true
			for _, p := range livePositions {
				report.PositionDiffs = append(report.PositionDiffs, PositionDiff{
					Key:     p.Instrument.Key(),
					LiveQty: p.Qty,
				})
			}
		}
		s.lastReport = report
		return report, nil
	}

	report.CashDiff = liveCash - stored.Cash
	if math.Abs(report.CashDiff) > qtyTolerance {
		report.HasDiffs = true
	}

	seen := make(map[string]bool, len(livePositions))
	for _, p := range livePositions {
		key := p.Instrument.Key()
		seen[key] = true
		storedPos, exists := stored.Positions[key]
		if !exists || math.Abs(storedPos.Qty-p.Qty) > qtyTolerance {
			report.HasDiffs = true
			report.PositionDiffs = append(report.PositionDiffs, PositionDiff{
				Key:       key,
				LiveQty:   p.Qty,
				StoredQty: storedPos.Qty,
			})
		}
	}
	for key, storedPos := range stored.Positions {
		if !seen[key] {
			report.HasDiffs = true
			report.PositionDiffs = append(report.PositionDiffs, PositionDiff{
				Key:       key,
				StoredQty: storedPos.Qty,
			})
		}
	}

	s.lastReport = report
	return report, nil
}

// LastReport returns the most recent report, or nil before the first
// pass.
func (s *Service) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReport
}
