package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/nlzhang/geopin/internal/adapters/geocode"
	"github.com/nlzhang/geopin/internal/adapters/helperipc"
	"github.com/nlzhang/geopin/internal/adapters/http"
	"github.com/nlzhang/geopin/internal/adapters/instrument"
	natsadapter "github.com/nlzhang/geopin/internal/adapters/nats"
	"github.com/nlzhang/geopin/internal/adapters/sqlitekv"
	"github.com/nlzhang/geopin/internal/adapters/valkey"
	"github.com/nlzhang/geopin/internal/core/ports"
	"github.com/nlzhang/geopin/internal/core/usecases"
	"github.com/nlzhang/geopin/internal/pkg/config"
	"github.com/nlzhang/geopin/internal/pkg/logging"
	"github.com/nlzhang/geopin/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("geopind")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.OTLPAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Local store
	store, err := sqlitekv.New(cfg.Store.Path)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer store.Close()

	// Helper channel. The client dials lazily, so a helper that isn't up
	// yet only fails the first session operation, not the daemon start.
	helper, err := helperipc.New(cfg.Helper.Socket, time.Duration(cfg.Helper.CallTimeoutMS)*time.Millisecond)
	if err != nil {
		log.Fatalf("helper: %v", err)
	}
	defer helper.Close()

	// Cache (optional)
	var cache *valkey.Cache
	if cfg.Valkey.Enabled {
		cache, err = valkey.New(cfg.Valkey.Addr)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
			cache = nil
		} else {
			defer cache.Close()
		}
	}

	// NATS (optional)
	var natsPub *natsadapter.Publisher
	if cfg.NATS.Enabled {
		natsPub, err = natsadapter.NewPublisher(cfg.NATS.URL)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
			natsPub = nil
		} else {
			defer natsPub.Close()
		}
	}

	// State changes always feed the in-process instrumentation; NATS joins
	// the fanout when configured.
	var events ports.EventPublisher = instrument.NewPublisher()
	if natsPub != nil {
		events = instrument.Fanout{events, natsPub}
	}

	// Use cases
	engine := usecases.NewSpoofingEngine(helper, events, usecases.EngineConfig{
		HorizontalAccuracyM: cfg.Spoof.HorizontalAccuracyM,
		VerticalAccuracyM:   cfg.Spoof.VerticalAccuracyM,
	})
	history := usecases.NewHistoryService(store, events)
	if err := history.Load(ctx); err != nil {
		slog.Warn("history load failed, starting empty", "error", err)
	}

	var cacheSvc ports.CacheService
	if cache != nil {
		cacheSvc = cache
	}
	search := usecases.NewSearchService(geocode.New(cfg.Geocoder.Endpoint), cacheSvc)

	deps := &http.Dependencies{
		Engine:  engine,
		History: history,
		Search:  search,
		Helper:  helper,
		Store:   store,
		Cache:   cache,
		Events:  natsPub,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "geopin daemon",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := cfg.Server.Addr()
		slog.Info("daemon starting", "addr", addr, "helper", cfg.Helper.Socket)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	// The override must not outlive the daemon.
	endCtx, endCancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := helper.End(endCtx); err != nil {
		slog.Warn("could not clear override on exit", "error", err)
	}
	endCancel()

	slog.Info("daemon stopped")
}
