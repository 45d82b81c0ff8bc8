// Package router configures the HTTP API of the meteocache server.
//
// Routes configured:
//   - GET /v1/historical?lat=&lon=&start=YYYY-MM-DD&end=YYYY-MM-DD[&resolution=hourly|daily][&timezone=][&variables=a,b][&full_months=true][&format=json|typed|csv]
//   - GET /v1/forecast?lat=&lon=[&days=7][&resolution=][&timezone=][&variables=][&refresh=true][&format=json|typed|csv]
//   - GET /v1/current?lat=&lon=[&timezone=]
//   - DELETE /v1/cache/forecast
//   - DELETE /v1/cache/historical
//   - GET /healthz
//   - GET /metrics
//
// Series are returned in the Open-Meteo payload shape, as the typed response
// with format=typed, or as CSV with format=csv. Malformed requests yield 400;
// upstream failures yield 502.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HatiCode/meteocache/pkg/client"
	"github.com/HatiCode/meteocache/pkg/export"
	"github.com/HatiCode/meteocache/pkg/httpx"
	"github.com/HatiCode/meteocache/pkg/openmeteo"
	"github.com/HatiCode/meteocache/pkg/series"
)

// Service is the part of client.Client the API serves.
type Service interface {
	Historical(ctx context.Context, req client.HistoricalRequest) (*series.Fragment, error)
	Forecast(ctx context.Context, req client.ForecastRequest) (*series.Fragment, error)
	Current(ctx context.Context, lat, lon float64, timezone string) (*openmeteo.CurrentResponse, error)
	ClearForecastCache()
	ClearHistoricalCache(ctx context.Context) error
}

// Options tunes the routes. The zero value is usable.
type Options struct {
	// Health, when set, backs /healthz.
	Health func(ctx context.Context) error

	// Metrics serves /metrics; promhttp.Handler() when nil.
	Metrics http.Handler
}

// SetupRoutes configures the HTTP endpoints and wraps them in the request ID,
// logging and recovery middleware.
func SetupRoutes(svc Service, opts Options, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "router")

	mux := http.NewServeMux()

	if opts.Health != nil {
		mux.Handle("GET /healthz", httpx.HealthHandlerWithCheck(opts.Health))
	} else {
		mux.Handle("GET /healthz", httpx.HealthHandler())
	}

	metrics := opts.Metrics
	if metrics == nil {
		metrics = promhttp.Handler()
	}
	mux.Handle("GET /metrics", metrics)

	mux.HandleFunc("GET /v1/historical", handleHistorical(svc, logger))
	mux.HandleFunc("GET /v1/forecast", handleForecast(svc, logger))
	mux.HandleFunc("GET /v1/current", handleCurrent(svc, logger))
	mux.HandleFunc("DELETE /v1/cache/forecast", handleClearForecast(svc))
	mux.HandleFunc("DELETE /v1/cache/historical", handleClearHistorical(svc, logger))

	return httpx.Chain(mux,
		httpx.RequestIDMiddleware,
		httpx.LoggingMiddleware(logger),
		httpx.RecoveryMiddleware(logger),
	)
}

func handleHistorical(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, lon, err := parseCoords(q)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, err)
			return
		}
		start, err := parseDate(q, "start")
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, err)
			return
		}
		end, err := parseDate(q, "end")
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, err)
			return
		}
		fullMonths, err := parseBool(q, "full_months")
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, err)
			return
		}

		frag, err := svc.Historical(r.Context(), client.HistoricalRequest{
			Latitude:   lat,
			Longitude:  lon,
			Start:      start,
			End:        end,
			Resolution: series.Resolution(q.Get("resolution")),
			Timezone:   q.Get("timezone"),
			Variables:  parseList(q.Get("variables")),
			FullMonths: fullMonths,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeSeries(w, r, logger, frag)
	}
}

func handleForecast(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, lon, err := parseCoords(q)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, err)
			return
		}
		days := 0
		if s := q.Get("days"); s != "" {
			if days, err = strconv.Atoi(s); err != nil {
				httpx.WriteErrorMessage(w, r, http.StatusBadRequest, fmt.Sprintf("invalid days %q", s))
				return
			}
		}
		refresh, err := parseBool(q, "refresh")
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, err)
			return
		}

		frag, err := svc.Forecast(r.Context(), client.ForecastRequest{
			Latitude:     lat,
			Longitude:    lon,
			Days:         days,
			Resolution:   series.Resolution(q.Get("resolution")),
			Timezone:     q.Get("timezone"),
			Variables:    parseList(q.Get("variables")),
			ForceRefresh: refresh,
		})
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		writeSeries(w, r, logger, frag)
	}
}

func handleCurrent(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		lat, lon, err := parseCoords(q)
		if err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, err)
			return
		}

		resp, err := svc.Current(r.Context(), lat, lon, q.Get("timezone"))
		if err != nil {
			writeServiceError(w, r, logger, err)
			return
		}
		if err := httpx.WriteJSON(w, http.StatusOK, resp); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}

func handleClearForecast(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc.ClearForecastCache()
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleClearHistorical(svc Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.ClearHistoricalCache(r.Context()); err != nil {
			logger.Error("failed to clear historical cache", "error", err)
			httpx.WriteErrorMessage(w, r, http.StatusInternalServerError, "failed to clear historical cache")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeServiceError maps the client error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var validationErr *client.ValidationError
	var apiErr *openmeteo.APIError
	var connErr *openmeteo.ConnectionError

	switch {
	case errors.As(err, &validationErr):
		httpx.WriteError(w, r, http.StatusBadRequest, err)
	case errors.As(err, &apiErr), errors.As(err, &connErr):
		logger.Warn("upstream request failed", "error", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, r, http.StatusBadGateway, err)
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteErrorMessage(w, r, http.StatusGatewayTimeout, "upstream timeout")
	default:
		logger.Error("request failed", "error", err, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteErrorMessage(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func writeSeries(w http.ResponseWriter, r *http.Request, logger *slog.Logger, frag *series.Fragment) {
	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		if err := httpx.WriteJSON(w, http.StatusOK, frag); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	case "typed":
		typed, err := typedSeries(frag)
		if err != nil {
			logger.Error("failed to build typed response", "error", err)
			httpx.WriteErrorMessage(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
		if err := httpx.WriteJSON(w, http.StatusOK, typed); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.WriteHeader(http.StatusOK)
		if err := export.WriteCSV(w, frag); err != nil {
			logger.Error("failed to write CSV response", "error", err)
		}
	default:
		httpx.WriteErrorMessage(w, r, http.StatusBadRequest, fmt.Sprintf("invalid format %q (must be json, typed or csv)", format))
	}
}

// typedSeries converts frag into the typed hourly or daily response, which
// keeps only the known variables and fixes their value types.
func typedSeries(frag *series.Fragment) (any, error) {
	if frag.Resolution == series.Daily {
		return openmeteo.DecodeDaily(frag)
	}
	return openmeteo.DecodeHourly(frag)
}

func parseCoords(q url.Values) (float64, float64, error) {
	lat, err := parseFloat(q, "lat")
	if err != nil {
		return 0, 0, err
	}
	lon, err := parseFloat(q, "lon")
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func parseFloat(q url.Values, name string) (float64, error) {
	s := q.Get(name)
	if s == "" {
		return 0, fmt.Errorf("%s parameter required", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return v, nil
}

func parseDate(q url.Values, name string) (time.Time, error) {
	s := q.Get(name)
	if s == "" {
		return time.Time{}, fmt.Errorf("%s parameter required", name)
	}
	t, err := time.Parse(series.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q (want YYYY-MM-DD)", name, s)
	}
	return t, nil
}

func parseBool(q url.Values, name string) (bool, error) {
	s := q.Get(name)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q", name, s)
	}
	return b, nil
}

func parseList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
