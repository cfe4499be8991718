package ledger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"papertrade-core/internal/market"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, ok, err := store.Load(); err != nil || ok {
		t.Fatalf("fresh store must load empty: ok=%v err=%v", ok, err)
	}

	inst := market.Instrument{Ticker: "INFY", Venue: market.VenueNSE}
	st := State{
		Cash: 987654.25,
		Positions: map[string]Position{
			inst.Key(): {Instrument: inst, Qty: 12, AvgPrice: 1450.5},
		},
		Orders: []Order{{
			ID: "o1", Ts: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
			Instrument: inst, Side: SideBuy, Type: TypeMarket,
			Price: 1450.5, Qty: 12, Status: StatusFilled,
		}},
		Trades: []Trade{{
			ID: "o1", Ts: time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC),
			Instrument: inst, Side: SideBuy, Price: 1450.5, Qty: 12,
		}},
	}
	if err := store.Save(st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := store.Load()
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if got.Cash != st.Cash {
		t.Fatalf("cash mismatch: %v != %v", got.Cash, st.Cash)
	}
	pos := got.Positions[inst.Key()]
	if pos.Qty != 12 || pos.AvgPrice != 1450.5 {
		t.Fatalf("position mismatch: %+v", pos)
	}
	if len(got.Orders) != 1 || got.Orders[0].ID != "o1" {
		t.Fatalf("orders mismatch: %+v", got.Orders)
	}
}

func TestFileStoreNoTempLeftBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := store.Save(State{Cash: 1}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.json")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, _, err := store.Load(); err == nil {
		t.Fatalf("expected decode error")
	}
}
