package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"papertrade-core/internal/ledger"
	"papertrade-core/internal/market"
	"papertrade-core/internal/monitor"
	"papertrade-core/internal/risk"
	"papertrade-core/pkg/db"
)

func (s *Server) getSystemStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "running",
		"version":       s.Meta.Version,
		"mock_feed":     s.Meta.UseMockFeed,
		"timeframe":     s.Meta.Timeframe,
		"watchlist":     s.Meta.Watchlist,
		"auto_execute":  s.Meta.AutoExecute,
		"starting_cash": s.Meta.StartingCash,
		"cash":          s.Ledger.Cash(),
		"positions":     len(s.Ledger.Positions()),
	})
}

func (s *Server) getMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, s.Metrics.GetSnapshot())
}

func parseInstrument(ticker, venue string) (market.Instrument, error) {
	v, err := market.ParseVenue(strings.ToUpper(strings.TrimSpace(venue)))
	if err != nil {
		return market.Instrument{}, err
	}
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return market.Instrument{}, fmt.Errorf("ticker is required")
	}
	return market.Instrument{Ticker: ticker, Venue: v}, nil
}

func queryLimit(c *gin.Context, def int) int {
	raw := c.Query("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// getCandles returns stored history for one instrument, oldest first.
func (s *Server) getCandles(c *gin.Context) {
	inst, err := parseInstrument(c.Param("ticker"), c.DefaultQuery("venue", "NSE"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	timeframe := c.DefaultQuery("timeframe", s.Meta.Timeframe)
	limit := queryLimit(c, 200)

	candles, err := s.DB.GetCandles(c.Request.Context(), inst.Ticker, string(inst.Venue), timeframe, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ticker":    inst.Ticker,
		"venue":     inst.Venue,
		"timeframe": timeframe,
		"count":     len(candles),
		"candles":   candles,
	})
}

// fetchCandles pulls fresh bars from the remote source and stores them.
func (s *Server) fetchCandles(c *gin.Context) {
	var req struct {
		Ticker       string `json:"ticker"`
		Venue        string `json:"venue"`
		Timeframe    string `json:"timeframe"`
		LookbackDays int    `json:"lookback_days"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Venue == "" {
		req.Venue = "NSE"
	}
	inst, err := parseInstrument(req.Ticker, req.Venue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Timeframe == "" {
		req.Timeframe = s.Meta.Timeframe
	}
	if req.LookbackDays <= 0 {
		req.LookbackDays = 5
	}

	ctx := c.Request.Context()
	bars, err := s.Bars.FetchBars(ctx, inst, req.Timeframe, req.LookbackDays)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if err := s.DB.UpsertCandles(ctx, toDBCandles(inst, req.Timeframe, bars)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ticker":    inst.Ticker,
		"venue":     inst.Venue,
		"timeframe": req.Timeframe,
		"fetched":   len(bars),
	})
}

func (s *Server) getSignals(c *gin.Context) {
	ticker := strings.ToUpper(strings.TrimSpace(c.Query("ticker")))
	venue := strings.ToUpper(strings.TrimSpace(c.Query("venue")))
	limit := queryLimit(c, 50)

	signals, err := s.DB.GetSignals(c.Request.Context(), ticker, venue, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(signals), "signals": signals})
}

// scanNow runs one synchronous scan pass over the watchlist.
func (s *Server) scanNow(c *gin.Context) {
	if s.Scanner == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scanner not running"})
		return
	}
	timer := monitor.NewTimer(s.Metrics.ScanLatency)
	n, err := s.Scanner.ScanOnce(c.Request.Context())
	timer.Stop()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"signals": n})
}

func (s *Server) getMarks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"marks": s.Marks.Snapshot()})
}

type orderPayload struct {
	Ticker string  `json:"ticker"`
	Venue  string  `json:"venue"`
	Side   string  `json:"side"`
	Type   string  `json:"type"`
	Qty    float64 `json:"qty"`
	Price  float64 `json:"price"`
	Target float64 `json:"target"`
	Stop   float64 `json:"stop"`
}

// createOrder runs the risk pre-check and fills the order in the ledger.
func (s *Server) createOrder(c *gin.Context) {
	var req orderPayload
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if req.Venue == "" {
		req.Venue = "NSE"
	}
	inst, err := parseInstrument(req.Ticker, req.Venue)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	side := ledger.Side(strings.ToUpper(strings.TrimSpace(req.Side)))
	if side != ledger.SideBuy && side != ledger.SideSell {
		c.JSON(http.StatusBadRequest, gin.H{"error": "side must be BUY or SELL"})
		return
	}
	if req.Qty <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "qty must be positive"})
		return
	}

	typ := ledger.TypeMarket
	if strings.EqualFold(req.Type, string(ledger.TypeLimit)) {
		typ = ledger.TypeLimit
	}

	decision := s.RiskMgr.CheckOrder(s.orderContext(c.Request.Context(), inst))
	if !decision.Allowed {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"code":   "RISK_BLOCKED",
			"error":  decision.Reason,
			"status": ledger.StatusRejected,
		})
		return
	}

	orderReq := ledger.OrderRequest{
		Instrument: inst,
		Side:       side,
		Type:       typ,
		Qty:        req.Qty,
		Price:      req.Price,
	}
	if req.Target > 0 || req.Stop > 0 {
		orderReq.Bracket = &ledger.Bracket{
			Entry:  req.Price,
			Target: req.Target,
			Stop:   req.Stop,
		}
	}

	timer := monitor.NewTimer(s.Metrics.OrderLatency)
	order, err := s.Ledger.PlaceOrder(c.Request.Context(), orderReq)
	timer.Stop()
	if err != nil {
		s.Metrics.IncrementErrors()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.Metrics.IncrementOrders()

	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// orderContext assembles the account state for a risk check. Previous
// daily close comes from the stored 1d candles; the last price from the
// live mark.
func (s *Server) orderContext(ctx context.Context, inst market.Instrument) risk.OrderContext {
	oc := risk.OrderContext{Equity: s.equity()}

	if last, ok := s.Ledger.Mark(inst); ok {
		oc.LastPrice = last
	} else if px, ok := s.Marks.Get(inst.Key()); ok {
		oc.LastPrice = px
	}

	daily, err := s.DB.GetCandles(ctx, inst.Ticker, string(inst.Venue), "1d", 2)
	if err == nil && len(daily) == 2 {
		oc.PrevDailyClose = daily[0].Close
	}
	return oc
}

func (s *Server) equity() float64 {
	eq := s.Ledger.Cash()
	for _, p := range s.Ledger.Positions() {
		if mark, ok := s.Ledger.Mark(p.Instrument); ok {
			eq += (mark - p.AvgPrice) * p.Qty
		}
	}
	return eq
}

func (s *Server) getOrders(c *gin.Context) {
	orders := s.Ledger.Orders()
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "orders": orders})
}

func (s *Server) getTrades(c *gin.Context) {
	trades := s.Ledger.Trades()
	c.JSON(http.StatusOK, gin.H{"count": len(trades), "trades": trades})
}

type positionView struct {
	ledger.Position
	Mark          float64 `json:"mark,omitempty"`
	UnrealizedPnL float64 `json:"unrealizedPnl"`
}

func (s *Server) getPositions(c *gin.Context) {
	positions := s.Ledger.Positions()
	views := make([]positionView, 0, len(positions))
	for _, p := range positions {
		v := positionView{Position: p}
		if mark, ok := s.Ledger.Mark(p.Instrument); ok {
			v.Mark = mark
			v.UnrealizedPnL = (mark - p.AvgPrice) * p.Qty
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, gin.H{"count": len(views), "positions": views})
}

func (s *Server) getPnL(c *gin.Context) {
	cash := s.Ledger.Cash()
	realized := cash - s.Meta.StartingCash

	var unrealized float64
	for _, p := range s.Ledger.Positions() {
		if mark, ok := s.Ledger.Mark(p.Instrument); ok {
			unrealized += (mark - p.AvgPrice) * p.Qty
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"cash":           cash,
		"starting_cash":  s.Meta.StartingCash,
		"realized_pnl":   realized,
		"unrealized_pnl": unrealized,
		"equity":         cash + unrealized,
		"as_of":          time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) getRiskLimits(c *gin.Context) {
	c.JSON(http.StatusOK, s.RiskMgr.Limits())
}

func (s *Server) updateRiskLimits(c *gin.Context) {
	var limits risk.Limits
	if err := c.BindJSON(&limits); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if limits.MaxCapitalPerTradePct <= 0 || limits.MaxDailyLossPct <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "percentages must be positive"})
		return
	}
	if err := s.RiskMgr.UpdateLimits(c.Request.Context(), limits); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.RiskMgr.Limits())
}

func (s *Server) pauseTrading(c *gin.Context) {
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request payload"})
		return
	}
	if err := s.RiskMgr.SetPaused(c.Request.Context(), req.Paused); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"paused": req.Paused})
}

func toDBCandles(inst market.Instrument, timeframe string, bars []market.Bar) []db.Candle {
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
