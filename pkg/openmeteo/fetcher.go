// Package openmeteo talks to the Open-Meteo archive and forecast APIs.
//
// The fetcher returns raw payload bytes so that callers can persist exactly
// what the upstream produced; typed views are available through DecodeHourly,
// DecodeDaily and DecodeCurrent.
package openmeteo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

// Fetcher performs one GET against an Open-Meteo endpoint.
type Fetcher interface {
	Fetch(ctx context.Context, baseURL string, params url.Values) ([]byte, error)
}

const maxErrorBody = 1024

// HTTPConfig configures an HTTPFetcher. Zero values select the defaults.
type HTTPConfig struct {
	// Timeout bounds one request (default 30s). Ignored when Client is set.
	Timeout time.Duration

	// Client is optional; if nil a default client with Timeout is used.
	Client *http.Client

	// RequestsPerSecond throttles outgoing requests; 0 disables throttling.
	RequestsPerSecond float64
	Burst             int

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit (default 5). BreakerTimeout is how long it stays open (default 30s).
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	UserAgent string
}

// HTTPFetcher is a Fetcher over net/http guarded by a circuit breaker and an
// optional rate limiter. Requests are never retried.
type HTTPFetcher struct {
	client    *http.Client
	breaker   *gobreaker.CircuitBreaker[[]byte]
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// NewHTTPFetcher builds an HTTPFetcher from cfg.
func NewHTTPFetcher(cfg HTTPConfig, logger *slog.Logger) *HTTPFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "meteocache"
	}

	cli := cfg.Client
	if cli == nil {
		cli = &http.Client{Timeout: cfg.Timeout}
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "openmeteo",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || breakerNeutral(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPFetcher{
		client:    cli,
		breaker:   breaker,
		limiter:   limiter,
		userAgent: cfg.UserAgent,
		logger:    logger.With("component", "openmeteo"),
	}
}

// Fetch implements Fetcher. Transport failures, non-2xx statuses and
// unparsable bodies yield *ConnectionError; a payload flagged "error": true
// yields *APIError.
func (h *HTTPFetcher) Fetch(ctx context.Context, baseURL string, params url.Values) ([]byte, error) {
	u := baseURL
	if len(params) > 0 {
		u = baseURL + "?" + params.Encode()
	}

	if h.limiter != nil {
		if err := h.limiter.Wait(ctx); err != nil {
			return nil, &ConnectionError{URL: baseURL, Err: fmt.Errorf("rate limiter: %w", err)}
		}
	}

	start := time.Now()
	body, err := h.breaker.Execute(func() ([]byte, error) {
		return h.do(ctx, baseURL, u)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &ConnectionError{URL: baseURL, Err: err}
		}
		h.logger.Debug("fetch failed", "url", baseURL, "duration", time.Since(start), "error", err)
		return nil, err
	}

	h.logger.Debug("fetch complete", "url", baseURL, "bytes", len(body), "duration", time.Since(start))
	return body, nil
}

func (h *HTTPFetcher) do(ctx context.Context, baseURL, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, &ConnectionError{URL: baseURL, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", h.userAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &ConnectionError{URL: baseURL, Err: fmt.Errorf("http request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := string(snippet)
		if reason := gjson.GetBytes(snippet, "reason"); reason.Exists() {
			msg = reason.String()
		}
		return nil, &ConnectionError{URL: baseURL, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ConnectionError{URL: baseURL, Err: fmt.Errorf("read response: %w", err)}
	}

	if !gjson.ValidBytes(body) {
		return nil, &ConnectionError{URL: baseURL, StatusCode: resp.StatusCode, Err: errors.New("response is not valid JSON")}
	}
	if gjson.GetBytes(body, "error").Bool() {
		return nil, &APIError{Reason: gjson.GetBytes(body, "reason").String()}
	}

	return body, nil
}
