package monitor

import (
	"testing"
	"time"
)

func TestLatencyHistogramStats(t *testing.T) {
	h := NewLatencyHistogram(100)
	for i := 1; i <= 10; i++ {
		h.Record(float64(i))
	}

	stats := h.Stats()
	if stats.Count != 10 {
		t.Fatalf("expected 10 samples, got %d", stats.Count)
	}
	if stats.Min != 1 || stats.Max != 10 {
		t.Errorf("min/max = %v/%v, want 1/10", stats.Min, stats.Max)
	}
	if stats.Avg != 5.5 {
		t.Errorf("avg = %v, want 5.5", stats.Avg)
	}
}

func TestLatencyHistogramSlidingWindow(t *testing.T) {
	h := NewLatencyHistogram(3)
	for i := 1; i <= 5; i++ {
		h.Record(float64(i))
	}
	stats := h.Stats()
	if stats.Count != 3 {
		t.Fatalf("expected window of 3, got %d", stats.Count)
	}
	if stats.Min != 3 {
		t.Errorf("expected oldest samples evicted, min = %v", stats.Min)
	}
}

func TestLatencyHistogramCachesStats(t *testing.T) {
	h := NewLatencyHistogram(10)
	h.Record(5)

	first := h.Stats()
	second := h.Stats()
	if first != second {
		t.Error("repeated Stats without new samples should be identical")
	}

	h.Record(7)
	third := h.Stats()
	if third.Count != 2 {
		t.Errorf("expected recompute after new sample, count = %d", third.Count)
	}
}

func TestCountersAndSnapshot(t *testing.T) {
	m := NewSystemMetrics()
	m.IncrementOrders()
	m.IncrementTicks()
	m.IncrementTicks()
	m.IncrementSignals()
	m.IncrementErrors()

	timer := NewTimer(m.OrderLatency)
	time.Sleep(time.Millisecond)
	timer.Stop()

	snap := m.GetSnapshot()
	if snap.OrdersProcessed != 1 || snap.TicksProcessed != 2 || snap.SignalsGenerated != 1 || snap.ErrorsCount != 1 {
		t.Errorf("unexpected counters in snapshot: %+v", snap)
	}
	if snap.OrderLatency.Count != 1 {
		t.Errorf("expected one order latency sample, got %d", snap.OrderLatency.Count)
	}
	if snap.GoroutineCount <= 0 {
		t.Error("expected positive goroutine count")
	}
}
