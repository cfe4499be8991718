package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("default port = %s", cfg.Port)
	}
	if cfg.StartingCash != 1_000_000 {
		t.Fatalf("default starting cash = %v", cfg.StartingCash)
	}
	if cfg.FallbackPrice != 1000 {
		t.Fatalf("default fallback price = %v", cfg.FallbackPrice)
	}
	if !cfg.UseMockFeed {
		t.Fatalf("mock feed must default on")
	}
	if cfg.AutoExecute {
		t.Fatalf("auto-execute must default off")
	}
	if cfg.Timeframe != "1m" || cfg.LookbackDays != 5 {
		t.Fatalf("market defaults: %s/%d", cfg.Timeframe, cfg.LookbackDays)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STARTING_CASH", "250000.5")
	t.Setenv("SCAN_INTERVAL_SEC", "15")
	t.Setenv("AUTO_EXECUTE", "true")
	t.Setenv("USE_MOCK_FEED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Fatalf("port override failed: %s", cfg.Port)
	}
	if cfg.StartingCash != 250000.5 {
		t.Fatalf("starting cash override failed: %v", cfg.StartingCash)
	}
	if cfg.ScanInterval != 15 {
		t.Fatalf("scan interval override failed: %d", cfg.ScanInterval)
	}
	if !cfg.AutoExecute || cfg.UseMockFeed {
		t.Fatalf("bool overrides failed: %+v", cfg)
	}
}

func TestLoadBadNumbersFallBack(t *testing.T) {
	t.Setenv("STARTING_CASH", "not-a-number")
	t.Setenv("LOOKBACK_DAYS", "oops")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.StartingCash != 1_000_000 || cfg.LookbackDays != 5 {
		t.Fatalf("unparseable values must keep defaults: %+v", cfg)
	}
}

func TestSplitAndTrim(t *testing.T) {
	got := SplitAndTrim(" RELIANCE.NSE, TCS.NSE ,, INFY.BSE ")
	want := []string{"RELIANCE.NSE", "TCS.NSE", "INFY.BSE"}
	if len(got) != len(want) {
		t.Fatalf("SplitAndTrim = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SplitAndTrim[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
