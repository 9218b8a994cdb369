package planner

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"truckplan/internal/metrics"
	"truckplan/internal/model"
)

// DataSource loads everything overlapping [start, end], both YYYY-MM-DD.
type DataSource interface {
	FetchRange(ctx context.Context, start, end string) (*model.PlannerData, error)
}

const defaultMaxEntries = 32

type cacheEntry struct {
	data       *model.PlannerData
	fetchedAt  time.Time
	refreshing bool
}

// RangeCache holds fetched planner data keyed by visible range. Entries
// older than ttl are still served, flagged stale, while a background
// refresh replaces them. The last completed fetch for a key wins.
type RangeCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	source     DataSource
	ttl        time.Duration
	maxEntries int
	refreshTO  time.Duration
	now        func() time.Time
	logger     zerolog.Logger
	wg         sync.WaitGroup
}

// NewRangeCache wraps source. A zero ttl never refreshes in the background.
func NewRangeCache(source DataSource, ttl time.Duration, logger zerolog.Logger) *RangeCache {
	return &RangeCache{
		entries:    make(map[string]*cacheEntry),
		source:     source,
		ttl:        ttl,
		maxEntries: defaultMaxEntries,
		refreshTO:  15 * time.Second,
		now:        time.Now,
		logger:     logger.With().Str("component", "range_cache").Logger(),
	}
}

func rangeBounds(r model.VisibleRange) (string, string) {
	return r.Start.Format(model.DateLayout), r.End.Format(model.DateLayout)
}

// Get returns data for r. A miss fetches synchronously; a fetch error is
// returned as is and nothing is cached.
func (c *RangeCache) Get(ctx context.Context, r model.VisibleRange) (*model.PlannerData, bool, error) {
	key := r.Key()

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		stale := c.ttl > 0 && c.now().Sub(e.fetchedAt) > c.ttl
		data := e.data
		if stale && !e.refreshing {
			e.refreshing = true
			c.wg.Add(1)
			go c.refreshInBackground(r)
		}
		c.mu.Unlock()
		if stale {
			metrics.IncCacheLookup("stale")
		} else {
			metrics.IncCacheLookup("hit")
		}
		return data, stale, nil
	}
	c.mu.Unlock()

	metrics.IncCacheLookup("miss")
	data, err := c.Refresh(ctx, r)
	return data, false, err
}

// Refresh fetches r now and stores the result.
func (c *RangeCache) Refresh(ctx context.Context, r model.VisibleRange) (*model.PlannerData, error) {
	start, end := rangeBounds(r)
	data, err := c.source.FetchRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	c.store(r.Key(), data)
	return data, nil
}

func (c *RangeCache) refreshInBackground(r model.VisibleRange) {
	defer c.wg.Done()
	ctx, cancel := context.WithTimeout(context.Background(), c.refreshTO)
	defer cancel()

	if _, err := c.Refresh(ctx, r); err != nil {
		c.logger.Warn().Err(err).Str("range", r.Key()).Msg("background refresh failed")
		c.mu.Lock()
		if e, ok := c.entries[r.Key()]; ok {
			e.refreshing = false
		}
		c.mu.Unlock()
	}
}

func (c *RangeCache) store(key string, data *model.PlannerData) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{data: data, fetchedAt: c.now()}
	if len(c.entries) <= c.maxEntries {
		return
	}
	oldestKey := ""
	var oldest time.Time
	for k, e := range c.entries {
		if oldestKey == "" || e.fetchedAt.Before(oldest) {
			oldestKey, oldest = k, e.fetchedAt
		}
	}
	delete(c.entries, oldestKey)
}

// Invalidate drops one range.
func (c *RangeCache) Invalidate(r model.VisibleRange) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, r.Key())
}

// InvalidateAll drops every range.
func (c *RangeCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.entries)
}

// Len is the number of cached ranges.
func (c *RangeCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Wait blocks until background refreshes finish.
func (c *RangeCache) Wait() {
	c.wg.Wait()
}
