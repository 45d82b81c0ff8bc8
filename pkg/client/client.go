// Package client serves historical, forecast and current weather series for
// a coordinate, fetching from Open-Meteo only what the caches cannot answer.
//
// Historical windows are assembled month by month: months missing from the
// partition store (or recent enough to still change upstream) are fetched and
// persisted one at a time, the rest are read back from the store, and the
// merged series is trimmed to the requested dates. Forecasts go through an
// in-memory cache that expires on age and as the forecast horizon approaches.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/HatiCode/meteocache/pkg/forecastcache"
	"github.com/HatiCode/meteocache/pkg/history"
	"github.com/HatiCode/meteocache/pkg/openmeteo"
	"github.com/HatiCode/meteocache/pkg/partition"
	"github.com/HatiCode/meteocache/pkg/series"
)

// Client is safe for concurrent use. Concurrent requests for the same
// location may fetch the same month twice; the partition store resolves such
// races as last-write-wins.
type Client struct {
	fetcher     openmeteo.Fetcher
	history     *history.Cache
	forecasts   *forecastcache.Cache
	archiveURL  string
	forecastURL string
	now         func() time.Time
	logger      *slog.Logger
	recorder    Recorder
}

// Option configures a Client.
type Option func(*Client)

// WithForecastCache injects the forecast cache. Without it the client owns a
// private cache with default settings.
func WithForecastCache(fc *forecastcache.Cache) Option {
	return func(c *Client) { c.forecasts = fc }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithBaseURLs overrides the archive and forecast endpoints. Empty values keep
// the defaults.
func WithBaseURLs(archive, forecast string) Option {
	return func(c *Client) {
		if archive != "" {
			c.archiveURL = archive
		}
		if forecast != "" {
			c.forecastURL = forecast
		}
	}
}

// New creates a Client that fetches through fetcher and persists historical
// partitions in hist.
func New(fetcher openmeteo.Fetcher, hist *history.Cache, opts ...Option) *Client {
	c := &Client{
		fetcher:     fetcher,
		history:     hist,
		archiveURL:  openmeteo.ArchiveBaseURL,
		forecastURL: openmeteo.ForecastBaseURL,
		now:         time.Now,
		logger:      slog.Default(),
		recorder:    nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.forecasts == nil {
		c.forecasts = forecastcache.New(forecastcache.DefaultTTL, forecastcache.DefaultSafetyMargin)
	}
	c.logger = c.logger.With("component", "client")
	return c
}

// HistoricalRequest selects a historical window. Dates are taken as calendar
// dates; their time of day is ignored.
type HistoricalRequest struct {
	Latitude   float64           `validate:"gte=-90,lte=90"`
	Longitude  float64           `validate:"gte=-180,lte=180"`
	Start      time.Time         `validate:"required"`
	End        time.Time         `validate:"required,gtefield=Start"`
	Resolution series.Resolution `validate:"omitempty,oneof=hourly daily"`

	// Timezone is passed to the upstream; "auto" when empty.
	Timezone string

	// Variables defaults to the hourly or daily default list.
	Variables []string `validate:"omitempty,dive,required"`

	// FullMonths returns every point of the touched months instead of
	// trimming to [Start, End].
	FullMonths bool
}

func (r *HistoricalRequest) normalize() {
	r.Start = dateOf(r.Start)
	r.End = dateOf(r.End)
	if r.Resolution == "" {
		r.Resolution = series.Hourly
	}
	if r.Timezone == "" {
		r.Timezone = openmeteo.DefaultTimezone
	}
	if len(r.Variables) == 0 {
		r.Variables = defaultVariables(r.Resolution)
	}
}

// Historical returns the merged series for the request window.
//
// Months are visited in ascending order. A month that must be fetched is
// persisted before the next fetch starts, so an upstream failure part-way
// keeps the months already fetched. When no month yields data the result is
// an empty series carrying the requested coordinates and timezone.
func (c *Client) Historical(ctx context.Context, req HistoricalRequest) (*series.Fragment, error) {
	if err := c.validateHistorical(&req); err != nil {
		return nil, err
	}

	lat, lon, res := req.Latitude, req.Longitude, req.Resolution
	logger := c.logger.With("location", partition.LocationKey(lat, lon), "resolution", res)

	missing := c.history.MissingMonths(ctx, lat, lon, res, req.Start, req.End)
	missingSet := make(map[string]struct{}, len(missing))
	for _, m := range missing {
		missingSet[m] = struct{}{}
	}
	cached := c.history.CachedMonths(ctx, lat, lon, res)
	today := dateOf(c.now().UTC())

	var acc *series.Fragment
	for _, month := range partition.MonthsBetween(req.Start, req.End) {
		if _, ok := missingSet[month]; ok {
			frag, err := c.fetchMonth(ctx, req, month, today)
			if err != nil {
				return nil, err
			}
			c.recorder.ObservePartition(false)
			acc = series.Merge(acc, frag)
			continue
		}

		if _, ok := cached[month]; !ok {
			continue
		}
		frag, ok := c.history.LoadPartition(ctx, lat, lon, res, month)
		if !ok {
			continue
		}
		c.recorder.ObservePartition(true)
		acc = series.Merge(acc, frag)
	}

	if acc == nil {
		logger.Debug("no historical data for window", "start", req.Start, "end", req.End)
		return openmeteo.EmptyFragment(lat, lon, req.Timezone, res), nil
	}

	if !req.FullMonths {
		acc = series.Trim(acc, req.Start, req.End)
	}

	logger.Debug("historical window served", "points", acc.Len(), "fetched_months", len(missing))
	return acc, nil
}

func (c *Client) validateHistorical(req *HistoricalRequest) error {
	req.normalize()
	if err := checkStruct(req); err != nil {
		return err
	}
	if today := dateOf(c.now().UTC()); req.End.After(today) {
		return &ValidationError{
			Field:  "End",
			Reason: fmt.Sprintf("end date (%s) cannot be in the future for historical data", req.End.Format(series.DateLayout)),
		}
	}
	return nil
}

// fetchMonth downloads one month (clamped to today), persists the raw payload
// and returns it decoded. A failed write is logged and otherwise ignored.
func (c *Client) fetchMonth(ctx context.Context, req HistoricalRequest, month string, today time.Time) (*series.Fragment, error) {
	first, last, err := partition.MonthBounds(month)
	if err != nil {
		return nil, err
	}
	if last.After(today) {
		last = today
	}

	c.logger.Debug("fetching historical month", "month", month, "location", partition.LocationKey(req.Latitude, req.Longitude))

	params := baseParams(req.Latitude, req.Longitude, req.Timezone)
	params.Set("start_date", first.Format(series.DateLayout))
	params.Set("end_date", last.Format(series.DateLayout))
	params.Set(string(req.Resolution), strings.Join(req.Variables, ","))

	raw, err := c.fetch(ctx, EndpointArchive, c.archiveURL, params)
	if err != nil {
		return nil, err
	}

	frag, err := series.Decode(raw, req.Resolution)
	if err != nil {
		return nil, &openmeteo.ConnectionError{URL: c.archiveURL, Err: err}
	}

	// The write error is already logged and counted by the history cache.
	_ = c.history.SavePartition(ctx, req.Latitude, req.Longitude, req.Resolution, month, raw)

	return frag, nil
}

// ForecastRequest selects a forecast. Days defaults to 7.
type ForecastRequest struct {
	Latitude   float64           `validate:"gte=-90,lte=90"`
	Longitude  float64           `validate:"gte=-180,lte=180"`
	Days       int               `validate:"gte=1,lte=16"`
	Resolution series.Resolution `validate:"omitempty,oneof=hourly daily"`
	Timezone   string
	Variables  []string `validate:"omitempty,dive,required"`

	// ForceRefresh skips the cache lookup; the fresh result still
	// replaces the cached entry.
	ForceRefresh bool
}

// Forecast returns the forecast for the location, from the cache while it is
// valid. The cache holds one entry per location and resolution regardless of
// Days, Timezone or Variables.
func (c *Client) Forecast(ctx context.Context, req ForecastRequest) (*series.Fragment, error) {
	if req.Days == 0 {
		req.Days = openmeteo.DefaultForecastDays
	}
	if req.Resolution == "" {
		req.Resolution = series.Hourly
	}
	if req.Timezone == "" {
		req.Timezone = openmeteo.DefaultTimezone
	}
	if len(req.Variables) == 0 {
		req.Variables = defaultVariables(req.Resolution)
	}
	if err := checkStruct(&req); err != nil {
		return nil, err
	}

	lat, lon, res := req.Latitude, req.Longitude, req.Resolution

	if !req.ForceRefresh && c.forecasts.IsValid(lat, lon, res) {
		if cached, ok := c.forecasts.Get(lat, lon, res); ok {
			c.recorder.ObserveForecastCache(true)
			c.logger.Debug("forecast cache hit", "location", partition.LocationKey(lat, lon), "resolution", res)
			return cached, nil
		}
	}
	c.recorder.ObserveForecastCache(false)

	params := baseParams(lat, lon, req.Timezone)
	params.Set("forecast_days", strconv.Itoa(req.Days))
	params.Set(string(res), strings.Join(req.Variables, ","))

	raw, err := c.fetch(ctx, EndpointForecast, c.forecastURL, params)
	if err != nil {
		return nil, err
	}

	frag, err := series.Decode(raw, res)
	if err != nil {
		return nil, &openmeteo.ConnectionError{URL: c.forecastURL, Err: err}
	}

	c.forecasts.Set(lat, lon, res, frag)
	return frag, nil
}

type currentRequest struct {
	Latitude  float64 `validate:"gte=-90,lte=90"`
	Longitude float64 `validate:"gte=-180,lte=180"`
}

// Current returns current conditions. It is never cached.
func (c *Client) Current(ctx context.Context, lat, lon float64, timezone string) (*openmeteo.CurrentResponse, error) {
	if err := checkStruct(&currentRequest{Latitude: lat, Longitude: lon}); err != nil {
		return nil, err
	}
	if timezone == "" {
		timezone = openmeteo.DefaultTimezone
	}

	params := baseParams(lat, lon, timezone)
	params.Set("current", strings.Join(openmeteo.CurrentVariables, ","))

	raw, err := c.fetch(ctx, EndpointCurrent, c.forecastURL, params)
	if err != nil {
		return nil, err
	}

	resp, err := openmeteo.DecodeCurrent(raw)
	if err != nil {
		return nil, &openmeteo.ConnectionError{URL: c.forecastURL, Err: err}
	}
	return resp, nil
}

// ClearForecastCache drops every cached forecast.
func (c *Client) ClearForecastCache() {
	c.forecasts.Clear()
	c.logger.Info("forecast cache cleared")
}

// ClearHistoricalCache deletes every persisted partition.
func (c *Client) ClearHistoricalCache(ctx context.Context) error {
	return c.history.Clear(ctx)
}

// ClearAllCache clears both caches.
func (c *Client) ClearAllCache(ctx context.Context) error {
	c.ClearForecastCache()
	return c.ClearHistoricalCache(ctx)
}

func (c *Client) fetch(ctx context.Context, endpoint, baseURL string, params url.Values) ([]byte, error) {
	start := time.Now()
	raw, err := c.fetcher.Fetch(ctx, baseURL, params)
	c.recorder.ObserveFetch(endpoint, time.Since(start), err)
	if err != nil {
		c.logger.Warn("upstream fetch failed", "endpoint", endpoint, "error", err)
		return nil, err
	}
	return raw, nil
}

func baseParams(lat, lon float64, timezone string) url.Values {
	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("timezone", timezone)
	return params
}

func defaultVariables(res series.Resolution) []string {
	if res == series.Daily {
		return openmeteo.DailyVariables
	}
	return openmeteo.HourlyVariables
}
