// Package history persists historical series as one partition per location,
// resolution and calendar month, and decides which months must be fetched
// again.
//
// Closed months older than the recent window are immutable upstream and are
// served from the store forever. Months inside the window (the current UTC
// month and the RecentMonths before it) may still be revised by the archive
// and are always refetched.
package history

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/HatiCode/meteocache/pkg/partition"
	"github.com/HatiCode/meteocache/pkg/series"
	"github.com/HatiCode/meteocache/pkg/storage"
)

// DefaultRecentMonths is the number of closed months, before the current one,
// that are still considered mutable upstream.
const DefaultRecentMonths = 5

// Cache is the durable partition store.
type Cache struct {
	store        storage.Store
	recentMonths int
	now          func() time.Time
	logger       *slog.Logger
	onError      func(error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithRecentMonths overrides DefaultRecentMonths. Negative values are ignored.
func WithRecentMonths(n int) Option {
	return func(c *Cache) {
		if n >= 0 {
			c.recentMonths = n
		}
	}
}

// WithLogger sets the logger used for swallowed read and write failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithErrorHook registers fn to observe every CacheReadError and
// CacheWriteError, typically to count them.
func WithErrorHook(fn func(error)) Option {
	return func(c *Cache) { c.onError = fn }
}

// New returns a Cache backed by store.
func New(store storage.Store, opts ...Option) *Cache {
	c := &Cache{
		store:        store,
		recentMonths: DefaultRecentMonths,
		now:          time.Now,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "history")
	return c
}

// RecentMonths returns the configured recent window.
func (c *Cache) RecentMonths() int { return c.recentMonths }

// LoadPartition returns the stored partition for the month. A missing,
// unreadable or unparsable partition is reported as absent; read and parse
// failures are logged, never returned.
func (c *Cache) LoadPartition(ctx context.Context, lat, lon float64, res series.Resolution, month string) (*series.Fragment, bool) {
	key := partition.Key{Lat: lat, Lon: lon, Resolution: res, Month: month}
	name := key.Name()

	data, found, err := c.store.Get(ctx, name)
	if err != nil {
		c.report(&CacheReadError{Name: name, Err: err})
		return nil, false
	}
	if !found {
		return nil, false
	}

	frag, err := series.Decode(data, res)
	if err != nil {
		c.report(&CacheReadError{Name: name, Err: err})
		return nil, false
	}
	return frag, true
}

// SavePartition overwrites the partition with raw, byte for byte. The caller
// decides whether a *CacheWriteError is fatal; the fetch pipeline logs it and
// carries on with the data already in memory.
func (c *Cache) SavePartition(ctx context.Context, lat, lon float64, res series.Resolution, month string, raw []byte) error {
	key := partition.Key{Lat: lat, Lon: lon, Resolution: res, Month: month}
	name := key.Name()

	if err := c.store.Put(ctx, name, raw); err != nil {
		werr := &CacheWriteError{Name: name, Err: err}
		c.report(werr)
		return werr
	}

	c.logger.Debug("partition saved", "partition", name, "bytes", len(raw))
	return nil
}

// CachedMonths returns the set of month keys stored for the location and
// resolution. A listing failure is logged and yields an empty set, which makes
// every month look missing.
func (c *Cache) CachedMonths(ctx context.Context, lat, lon float64, res series.Resolution) map[string]struct{} {
	months := make(map[string]struct{})

	names, err := c.store.List(ctx, partition.Prefix(lat, lon, res))
	if err != nil {
		c.report(&CacheReadError{Name: partition.Prefix(lat, lon, res) + "*", Err: err})
		return months
	}

	for _, name := range names {
		if month, ok := partition.MonthFromName(name); ok {
			months[month] = struct{}{}
		}
	}
	return months
}

// IsRecent reports whether month lies in the mutable window: the current UTC
// month or one of the RecentMonths before it. Future months are recent too.
// An unparsable key is treated as recent so it is never trusted from cache.
func (c *Cache) IsRecent(month string) bool {
	first, err := partition.ParseMonth(month)
	if err != nil {
		return true
	}

	now := c.now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -c.recentMonths, 0)
	return !first.Before(cutoff)
}

// MissingMonths returns the months overlapping [start, end] that must be
// fetched: those not cached plus every recent month. The result is sorted
// ascending.
func (c *Cache) MissingMonths(ctx context.Context, lat, lon float64, res series.Resolution, start, end time.Time) []string {
	cached := c.CachedMonths(ctx, lat, lon, res)

	var missing []string
	for _, month := range partition.MonthsBetween(start, end) {
		if _, ok := cached[month]; !ok || c.IsRecent(month) {
			missing = append(missing, month)
		}
	}
	sort.Strings(missing)
	return missing
}

// Clear removes every stored partition.
func (c *Cache) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear historical cache: %w", err)
	}
	c.logger.Info("historical cache cleared")
	return nil
}

func (c *Cache) report(err error) {
	c.logger.Warn("partition cache failure", "error", err)
	if c.onError != nil {
		c.onError(err)
	}
}
