// Command meteocache serves Open-Meteo weather series through an incremental
// cache.
//
// Historical series are stored as one partition per location, resolution and
// month, so repeated or overlapping requests only fetch the months that are
// missing or still changing upstream. Forecasts are kept in memory until they
// age out or their horizon gets close.
//
// The server exposes:
//   - GET /v1/historical - Historical series for a date window
//   - GET /v1/forecast - Forecast series
//   - GET /v1/current - Current conditions
//   - DELETE /v1/cache/forecast, DELETE /v1/cache/historical - Cache resets
//   - GET /healthz - Health check endpoint
//   - GET /metrics - Prometheus metrics endpoint
//
// Usage:
//
//	meteocache \
//	  -listen=:8080 \
//	  -storage=file -cache-dir=/var/lib/meteocache \
//	  -warm-locations='52.52,13.41;48.85,2.35'
//
// Environment variables:
//
//	LISTEN          - HTTP listen address (default: :8080)
//	STORAGE         - Partition storage: file, redis, memory (default: file)
//	CACHE_DIR       - Partition directory for file storage (default: ./cache)
//	REDIS_ADDR      - Redis address for redis storage
//	FORECAST_TTL    - Maximum forecast age (default: 60m)
//	SAFETY_MARGIN   - Forecast horizon safety margin (default: 3h)
//	RECENT_MONTHS   - Months always refetched (default: 5)
//	UPSTREAM_RPS    - Upstream request rate limit (default: unlimited)
//	WARM_LOCATIONS  - Forecast warm-up locations, lat,lon;lat,lon
//	LOG_LEVEL       - Logging level: debug, info, warn, error (default: info)
//	LOG_FORMAT      - Logging format: text, json (default: text)
//
// A .env file in the working directory is loaded first.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/HatiCode/meteocache/cmd/meteocache/config"
	"github.com/HatiCode/meteocache/cmd/meteocache/logger"
	"github.com/HatiCode/meteocache/cmd/meteocache/metrics"
	"github.com/HatiCode/meteocache/cmd/meteocache/router"
	"github.com/HatiCode/meteocache/pkg/client"
	"github.com/HatiCode/meteocache/pkg/forecastcache"
	"github.com/HatiCode/meteocache/pkg/history"
	"github.com/HatiCode/meteocache/pkg/httpx"
	"github.com/HatiCode/meteocache/pkg/openmeteo"
	"github.com/HatiCode/meteocache/pkg/storage"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	os.Exit(run())
}

// run wires the server and blocks until a shutdown signal or a server
// failure. It returns the process exit code; deferred cleanup runs on every
// path.
func run() int {
	cfg, err := config.ParseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 2
	}

	log := logger.New(cfg)
	slog.SetDefault(log)

	log.Info("starting meteocache",
		"version", version,
		"storage", cfg.Storage,
		"listen", cfg.Listen,
	)

	store, health, err := newStore(cfg)
	if err != nil {
		log.Error("failed to open partition store", "storage", cfg.Storage, "error", err)
		return 1
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer func() {
			if err := closer.Close(); err != nil {
				log.Error("failed to close store", "error", err)
			}
		}()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	hist := history.New(store,
		history.WithRecentMonths(cfg.RecentMonths),
		history.WithLogger(log),
		history.WithErrorHook(m.PartitionError),
	)

	forecasts := forecastcache.NewWithCleanup(cfg.ForecastTTL, cfg.SafetyMargin, cfg.CleanupInterval)
	defer forecasts.Stop()

	fetcher := openmeteo.NewHTTPFetcher(openmeteo.HTTPConfig{
		Client:            httpx.NewClient(cfg.HTTPTimeout),
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.RequestBurst,
		BreakerFailures:   uint32(cfg.BreakerFailures),
		BreakerTimeout:    cfg.BreakerTimeout,
		UserAgent:         "meteocache/" + version,
	}, log)

	svc := client.New(fetcher, hist,
		client.WithForecastCache(forecasts),
		client.WithLogger(log),
		client.WithRecorder(m),
		client.WithBaseURLs(cfg.ArchiveURL, cfg.ForecastURL),
	)

	handler := router.SetupRoutes(svc, router.Options{Health: health}, log)
	httpServer := httpx.NewServer(cfg.Listen, handler, 0, log)

	warmer := NewWarmer(svc, cfg.WarmLocations, cfg.WarmInterval, cfg.WarmDays, cfg.WarmInterval, log)
	if err := warmer.Start(); err != nil {
		log.Error("failed to start forecast warmer", "error", err)
		return 1
	}
	defer warmer.Stop()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- httpServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	code := 0
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			log.Error("server failed", "error", err)
			code = 1
		}
	}

	log.Info("shutting down")

	if err := httpServer.Stop(10 * time.Second); err != nil {
		log.Error("server shutdown failed", "error", err)
		code = 1
	}

	log.Info("shutdown complete")
	return code
}

// newStore opens the configured partition backend and returns a health check
// for it, or nil when the backend needs none.
func newStore(cfg *config.Config) (storage.Store, func(context.Context) error, error) {
	switch cfg.Storage {
	case "redis":
		rs, err := storage.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, nil, err
		}
		return rs, rs.Ping, nil
	case "memory":
		return storage.NewMemoryStore(), nil, nil
	default:
		fs, err := storage.NewFileStore(cfg.CacheDir)
		if err != nil {
			return nil, nil, err
		}
		return fs, nil, nil
	}
}
