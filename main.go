package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"papertrade-core/internal/api"
	"papertrade-core/internal/events"
	"papertrade-core/internal/gateway"
	"papertrade-core/internal/ledger"
	"papertrade-core/internal/market"
	"papertrade-core/internal/monitor"
	"papertrade-core/internal/persistence"
	"papertrade-core/internal/reconciliation"
	"papertrade-core/internal/risk"
	"papertrade-core/internal/scanner"
	"papertrade-core/pkg/cache"
	"papertrade-core/pkg/config"
	"papertrade-core/pkg/db"
	"papertrade-core/pkg/market/yahoo"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("starting paper-trading core on port %s", cfg.Port)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Core services
	bus := events.NewBus()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("db init failed: %v", err)
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatalf("db migrations failed: %v", err)
	}

	// Durable history goes through the batch writer so order fills never
	// block on disk.
	batchWriter := persistence.NewBatchWriter(database.DB, 50, 500*time.Millisecond)
	defer batchWriter.Close()
	history := persistence.NewHistoryWriter(batchWriter)

	marks := cache.NewPriceCache()

	store, err := ledger.NewFileStore(cfg.StatePath)
	if err != nil {
		log.Fatalf("ledger store init failed: %v", err)
	}

	ledgerOpts := []ledger.Option{
		ledger.WithStore(store),
		ledger.WithHistory(history),
		ledger.WithBus(bus),
	}
	if cfg.RemoteAPIBase != "" {
		ledgerOpts = append(ledgerOpts, ledger.WithRouter(gateway.NewRouter(cfg.RemoteAPIBase)))
		log.Printf("remote order routing enabled: %s", cfg.RemoteAPIBase)
	}
	lgr, err := ledger.New(ledger.Config{
		StartingCash:  cfg.StartingCash,
		FallbackPrice: cfg.FallbackPrice,
	}, marks, ledgerOpts...)
	if err != nil {
		log.Fatalf("ledger init failed: %v", err)
	}
	log.Printf("ledger ready: cash=%.2f positions=%d", lgr.Cash(), len(lgr.Positions()))

	riskMgr, err := risk.NewManager(ctx, database)
	if err != nil {
		log.Printf("risk manager init failed, using in-memory defaults: %v", err)
		riskMgr = risk.NewInMemory(risk.DefaultLimits())
	}

	sysMetrics := monitor.NewSystemMetrics()

	// Market data
	bars := yahoo.NewClient()
	watchlist, err := scanner.LoadWatchlist(cfg.WatchlistPath)
	if err != nil {
		log.Printf("watchlist load failed (%v), using defaults", err)
		watchlist = scanner.DefaultWatchlist()
	}
	watchKeys := make([]string, 0, len(watchlist))
	for _, inst := range watchlist {
		watchKeys = append(watchKeys, inst.Key())
	}
	log.Printf("watchlist: %v", watchKeys)

	// Signal scanner
	scn := scanner.New(scanner.Config{
		Timeframe:    cfg.Timeframe,
		LookbackDays: cfg.LookbackDays,
		Interval:     time.Duration(cfg.ScanInterval) * time.Second,
		AutoExecute:  cfg.AutoExecute,
	}, database, bars, watchlist,
		scanner.WithExecutor(lgr),
		scanner.WithRisk(riskMgr),
		scanner.WithBus(bus),
	)
	go scn.Run(ctx)

	if cfg.UseMockFeed {
		mock := market.MockFeed{
			Bus:         bus,
			Instruments: watchlist,
			StartPrice:  2500,
			Step:        2,
			Interval:    time.Second,
		}
		mock.Start(ctx)
		log.Println("mock feed started")
	}

	// Price ticks drive marks, which drive bracket exits.
	tickStream, unsubTicks := bus.Subscribe(events.EventPriceTick, 100)
	defer unsubTicks()
	go func() {
		for msg := range tickStream {
			tick, ok := msg.(events.PriceTick)
			if !ok {
				continue
			}
			venue, err := market.ParseVenue(tick.Venue)
			if err != nil {
				continue
			}
			timer := monitor.NewTimer(sysMetrics.MarkLatency)
			lgr.MarkPrice(market.Instrument{Ticker: tick.Ticker, Venue: venue}, tick.Price)
			timer.Stop()
			sysMetrics.IncrementTicks()
		}
	}()

	signalStream, unsubSignals := bus.Subscribe(events.EventSignal, 50)
	defer unsubSignals()
	go func() {
		for range signalStream {
			sysMetrics.IncrementSignals()
		}
	}()

	mon := &monitor.Monitor{Bus: bus, AlertFn: func(msg string) {
		log.Printf("[ALERT] %s", msg)
	}}
	mon.Start(ctx)

	recon := reconciliation.NewService(lgr, store, 5*time.Minute)
	recon.Start(ctx)

	server := api.NewServer(
		bus,
		database,
		lgr,
		marks,
		riskMgr,
		scn,
		bars,
		sysMetrics,
		api.SystemMeta{
			UseMockFeed:  cfg.UseMockFeed,
			Timeframe:    cfg.Timeframe,
			Watchlist:    watchKeys,
			AutoExecute:  cfg.AutoExecute,
			StartingCash: cfg.StartingCash,
			Version:      buildVersion(),
		},
		cfg.JWTSecret,
	)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: server.Router,
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := history.Flush(); err != nil {
		log.Printf("history flush: %v", err)
	}
}

func buildVersion() string {
	if v := os.Getenv("APP_VERSION"); v != "" {
		return v
	}
	return "v1.0-dev"
}
