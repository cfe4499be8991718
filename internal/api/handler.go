package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"papertrade-core/internal/events"
	"papertrade-core/internal/ledger"
	"papertrade-core/internal/monitor"
	"papertrade-core/internal/risk"
	"papertrade-core/internal/scanner"
	"papertrade-core/pkg/cache"
	"papertrade-core/pkg/db"
)

// Server wires HTTP endpoints around the engine.
type Server struct {
	Router    *gin.Engine
	Bus       *events.Bus
	DB        *db.Database
	Ledger    *ledger.Ledger
	Marks     *cache.PriceCache
	RiskMgr   *risk.Manager
	Scanner   *scanner.Scanner
	Bars      scanner.BarSource
	Metrics   *monitor.SystemMetrics
	JWTSecret string
	Meta      SystemMeta
}

// SystemMeta describes runtime status exposed to the UI.
type SystemMeta struct {
	UseMockFeed  bool
	Timeframe    string
	Watchlist    []string
	AutoExecute  bool
	StartingCash float64
	Version      string
}

func NewServer(bus *events.Bus, database *db.Database, lgr *ledger.Ledger, marks *cache.PriceCache, riskMgr *risk.Manager, scn *scanner.Scanner, bars scanner.BarSource, metrics *monitor.SystemMetrics, meta SystemMeta, jwtSecret string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger(metrics))
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))
	r.Use(CORSMiddleware())

	s := &Server{
		Router:    r,
		Bus:       bus,
		DB:        database,
		Ledger:    lgr,
		Marks:     marks,
		RiskMgr:   riskMgr,
		Scanner:   scn,
		Bars:      bars,
		Metrics:   metrics,
		JWTSecret: jwtSecret,
		Meta:      meta,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/ws", s.websocket)

	api := s.Router.Group("/api")
	{
		api.GET("/system/status", s.getSystemStatus)
		api.GET("/metrics", s.getMetrics)

		auth := api.Group("/auth")
		{
			auth.POST("/register", s.registerUser)
			auth.POST("/login", s.loginUser)
		}

		// Market data is readable without auth so dashboards can poll it.
		api.GET("/candles/:ticker", s.getCandles)
		api.GET("/signals", s.getSignals)
		api.GET("/marks", s.getMarks)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.POST("/candles/fetch", s.fetchCandles)
			protected.POST("/scan", s.scanNow)

			protected.POST("/orders", s.createOrder)
			protected.GET("/orders", s.getOrders)
			protected.GET("/trades", s.getTrades)
			protected.GET("/positions", s.getPositions)
			protected.GET("/pnl", s.getPnL)

			protected.GET("/risk", s.getRiskLimits)
			protected.PUT("/risk", s.updateRiskLimits)
			protected.POST("/risk/pause", s.pauseTrading)
		}
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
