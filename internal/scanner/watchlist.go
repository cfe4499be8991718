package scanner

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"papertrade-core/internal/market"
)

// watchlistEntry is one symbol row in the YAML watchlist.
type watchlistEntry struct {
	Ticker string `yaml:"ticker"`
	Venue  string `yaml:"venue"`
}

// watchlistFile is the top-level YAML structure.
type watchlistFile struct {
	Symbols []watchlistEntry `yaml:"symbols"`
}

// LoadWatchlist reads the scan universe from a YAML file. Entries with
// an unknown venue are rejected rather than silently skipped.
func LoadWatchlist(path string) ([]market.Instrument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file watchlistFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse watchlist: %w", err)
	}

	instruments := make([]market.Instrument, 0, len(file.Symbols))
	for _, e := range file.Symbols {
		if e.Ticker == "" {
			return nil, fmt.Errorf("watchlist entry missing ticker")
		}
		venue, err := market.ParseVenue(e.Venue)
		if err != nil {
			return nil, fmt.Errorf("watchlist entry %s: %w", e.Ticker, err)
		}
		instruments = append(instruments, market.Instrument{Ticker: e.Ticker, Venue: venue})
	}
	return instruments, nil
}

// DefaultWatchlist is the fallback universe when no watchlist file exists.
func DefaultWatchlist() []market.Instrument {
	return []market.Instrument{
		{Ticker: "RELIANCE", Venue: market.VenueNSE},
		{Ticker: "TCS", Venue: market.VenueNSE},
		{Ticker: "INFY", Venue: market.VenueNSE},
		{Ticker: "HDFCBANK", Venue: market.VenueNSE},
		{Ticker: "ICICIBANK", Venue: market.VenueNSE},
	}
}
