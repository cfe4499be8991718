package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the paper-trading core.
type Config struct {
	Port string

	// Storage
	DBPath    string
	StatePath string

	// Ledger
	StartingCash  float64
	FallbackPrice float64

	// Market data
	UseMockFeed   bool
	RemoteAPIBase string
	Timeframe     string
	LookbackDays  int

	// Scanner
	WatchlistPath string
	ScanInterval  int // seconds
	AutoExecute   bool

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "./data/papertrade.db"),
		StatePath:     getEnv("STATE_PATH", "./data/ledger.json"),
		StartingCash:  getEnvFloat("STARTING_CASH", 1_000_000),
		FallbackPrice: getEnvFloat("FALLBACK_PRICE", 1000),
		UseMockFeed:   getEnv("USE_MOCK_FEED", "true") == "true",
		RemoteAPIBase: getEnv("REMOTE_API_BASE", ""),
		Timeframe:     getEnv("TIMEFRAME", "1m"),
		LookbackDays:  getEnvInt("LOOKBACK_DAYS", 5),
		WatchlistPath: getEnv("WATCHLIST_PATH", "./watchlist.yaml"),
		ScanInterval:  getEnvInt("SCAN_INTERVAL_SEC", 60),
		AutoExecute:   getEnv("AUTO_EXECUTE", "false") == "true",
		JWTSecret:     getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

// SplitAndTrim splits a comma list, dropping empty entries.
func SplitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
