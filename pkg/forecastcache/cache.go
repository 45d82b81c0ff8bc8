// Package forecastcache keeps the most recent forecast per location and
// resolution in memory.
//
// An entry is served only while it is fresh (fetched no more than TTL ago)
// and while the forecast still reaches comfortably into the future (its last
// observed time is at least SafetyMargin ahead of now). Both conditions only
// degrade as time passes, so an entry that fails either will never become
// valid again.
package forecastcache

import (
	"sync"
	"time"

	"github.com/HatiCode/meteocache/pkg/partition"
	"github.com/HatiCode/meteocache/pkg/series"
)

const (
	DefaultTTL          = 60 * time.Minute
	DefaultSafetyMargin = 3 * time.Hour
)

type entry struct {
	fragment       *series.Fragment
	fetchedAt      time.Time
	lastObservedAt time.Time
}

// Cache is safe for concurrent use by multiple goroutines. A single RWMutex
// guards the whole map.
type Cache struct {
	mu           sync.RWMutex
	entries      map[string]entry
	ttl          time.Duration
	safetyMargin time.Duration
	now          func() time.Time

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty cache. A non-positive ttl selects DefaultTTL and a
// negative safetyMargin selects DefaultSafetyMargin.
func New(ttl, safetyMargin time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if safetyMargin < 0 {
		safetyMargin = DefaultSafetyMargin
	}

	c := &Cache{
		entries:      make(map[string]entry),
		ttl:          ttl,
		safetyMargin: safetyMargin,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewWithCleanup creates a cache whose background goroutine discards entries
// that can no longer become valid every cleanupInterval (one minute if
// non-positive).
//
// The cleanup goroutine must be stopped by calling Stop() when the cache
// is no longer needed to prevent goroutine leaks.
func NewWithCleanup(ttl, safetyMargin, cleanupInterval time.Duration, opts ...Option) *Cache {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	c := New(ttl, safetyMargin, opts...)
	c.cleanupTicker = time.NewTicker(cleanupInterval)
	c.stopCleanup = make(chan struct{})
	c.cleanupDone = make(chan struct{})

	go c.runCleanup()

	return c
}

func key(lat, lon float64, res series.Resolution) string {
	return partition.LocationKey(lat, lon) + "_" + string(res)
}

// Set stores a snapshot of f for the location, replacing any previous entry.
func (c *Cache) Set(lat, lon float64, res series.Resolution, f *series.Fragment) {
	now := c.now()
	e := entry{
		fragment:       f.Clone(),
		fetchedAt:      now,
		lastObservedAt: series.LastObserved(f, now),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key(lat, lon, res)] = e
}

// Get returns the stored fragment regardless of validity. The returned
// fragment is shared and must not be modified.
func (c *Cache) Get(lat, lon float64, res series.Resolution) (*series.Fragment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key(lat, lon, res)]
	if !ok {
		return nil, false
	}
	return e.fragment, true
}

// IsValid reports whether an entry exists, is younger than TTL, and still
// ends at least SafetyMargin after now.
func (c *Cache) IsValid(lat, lon float64, res series.Resolution) bool {
	c.mu.RLock()
	e, ok := c.entries[key(lat, lon, res)]
	c.mu.RUnlock()

	return ok && c.valid(e, c.now())
}

func (c *Cache) valid(e entry, now time.Time) bool {
	if now.Sub(e.fetchedAt) > c.ttl {
		return false
	}
	return !now.After(e.lastObservedAt.Add(-c.safetyMargin))
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Len returns the number of entries, valid or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stop gracefully shuts down the background cleanup goroutine.
// It blocks until cleanup is complete.
//
// Calling Stop multiple times or on a cache without cleanup is safe and does nothing.
func (c *Cache) Stop() {
	if c.cleanupTicker == nil {
		return
	}

	c.stopMu.Lock()
	defer c.stopMu.Unlock()

	if c.stopped {
		return
	}

	close(c.stopCleanup)
	<-c.cleanupDone
	c.cleanupTicker.Stop()
	c.stopped = true
}

func (c *Cache) runCleanup() {
	defer close(c.cleanupDone)

	for {
		select {
		case <-c.cleanupTicker.C:
			c.cleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

// cleanup removes entries that fail validity; they cannot recover.
func (c *Cache) cleanup() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if !c.valid(e, now) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
