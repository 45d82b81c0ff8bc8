package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/HatiCode/meteocache/cmd/meteocache/config"
	"github.com/HatiCode/meteocache/pkg/client"
	"github.com/HatiCode/meteocache/pkg/series"
)

const warmConcurrency = 4

type forecaster interface {
	Forecast(ctx context.Context, req client.ForecastRequest) (*series.Fragment, error)
}

// Warmer periodically refreshes the forecast cache for a fixed set of
// locations, in both resolutions.
type Warmer struct {
	scheduler *gocron.Scheduler
	svc       forecaster
	locations []config.Location
	interval  time.Duration
	days      int
	timeout   time.Duration
	logger    *slog.Logger
}

// NewWarmer creates a Warmer. timeout bounds one warm-up round.
func NewWarmer(svc forecaster, locations []config.Location, interval time.Duration, days int, timeout time.Duration, logger *slog.Logger) *Warmer {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Warmer{
		scheduler: s,
		svc:       svc,
		locations: locations,
		interval:  interval,
		days:      days,
		timeout:   timeout,
		logger:    logger.With("component", "warmer"),
	}
}

// Start schedules the warm-up job, running it once immediately.
func (w *Warmer) Start() error {
	if len(w.locations) == 0 {
		w.logger.Info("no warm locations configured")
		return nil
	}

	if _, err := w.scheduler.Every(w.interval).Do(w.run); err != nil {
		return fmt.Errorf("schedule forecast warmer: %w", err)
	}
	w.scheduler.StartAsync()
	w.logger.Info("forecast warmer started", "locations", len(w.locations), "interval", w.interval)
	return nil
}

// Stop stops the scheduler. A round in progress is not interrupted.
func (w *Warmer) Stop() {
	w.scheduler.Stop()
}

func (w *Warmer) run() {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	start := time.Now()
	failed := w.warm(ctx)
	w.logger.Info("forecast warm-up completed",
		"locations", len(w.locations),
		"failed", failed,
		"duration", time.Since(start),
	)
}

// warm refreshes every location and resolution and returns the number of
// failed refreshes. Failures are logged and do not stop the round.
func (w *Warmer) warm(ctx context.Context) int {
	var failed atomic.Int64

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)

	for _, loc := range w.locations {
		for _, res := range []series.Resolution{series.Hourly, series.Daily} {
			g.Go(func() error {
				_, err := w.svc.Forecast(gCtx, client.ForecastRequest{
					Latitude:     loc.Latitude,
					Longitude:    loc.Longitude,
					Days:         w.days,
					Resolution:   res,
					ForceRefresh: true,
				})
				if err != nil {
					failed.Add(1)
					w.logger.Warn("forecast warm-up failed",
						"latitude", loc.Latitude,
						"longitude", loc.Longitude,
						"resolution", res,
						"error", err,
					)
				}
				return nil
			})
		}
	}

	_ = g.Wait()
	return int(failed.Load())
}
