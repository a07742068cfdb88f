// Package quotes serves random quotes from an in-memory snapshot of a quote dataset.
//
// The snapshot is refreshed from a Loader when it is older than the freshness window.
// Failed refreshes are counted by a simple circuit breaker, and an older snapshot keeps
// being served for as long as it is younger than the stale ceiling.
// Quotes are dispensed from a rotation buffer of distinct, randomly sampled records,
// which is resampled in the background every buffer cycle.
package quotes

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/always-cache/quotes/pkg/sampler"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultFreshWindow     = 5 * time.Minute
	DefaultStaleCeiling    = time.Hour
	DefaultMaxAttempts     = 3
	DefaultBreakerCooldown = 30 * time.Second
	DefaultBufferSize      = 100
)

// Loader loads the full quote set from a source.
type Loader interface {
	Load(ctx context.Context) (QuoteSet, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (QuoteSet, error)

func (f LoaderFunc) Load(ctx context.Context) (QuoteSet, error) {
	return f(ctx)
}

type Config struct {
	// Source of the quote dataset.
	Loader Loader
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// A snapshot younger than this is served without contacting the source.
	FreshWindow time.Duration
	// After a failed refresh, a snapshot younger than this is still served.
	StaleCeiling time.Duration
	// Number of consecutive failed refreshes that opens the circuit breaker.
	MaxAttempts int
	// How long the open breaker suppresses refreshes after the last failure.
	BreakerCooldown time.Duration
	// Number of distinct quotes in the rotation buffer.
	BufferSize int
	// Random source for sampling. Seeded from the clock if nil.
	Rand *rand.Rand
	// Runs background buffer reshuffles. Defaults to starting a goroutine.
	Schedule func(task func())
}

type QuoteCache struct {
	loader       Loader
	log          zerolog.Logger
	freshWindow  time.Duration
	staleCeiling time.Duration
	maxAttempts  int
	cooldown     time.Duration
	bufferSize   int
	schedule     func(func())
	warmups      singleflight.Group
	stats        counters

	randMu sync.Mutex
	rng    *rand.Rand

	// mu guards the snapshot, its timestamp and the failure bookkeeping
	mu            sync.Mutex
	data          QuoteSet
	fetchedAt     time.Time
	generation    uint64
	failures      int
	lastFailureAt time.Time
	inFlight      int

	// bufMu guards the rotation buffer; it is acquired after mu, never before
	bufMu     sync.Mutex
	buffer    []Quote
	cursor    int
	bufferGen uint64
	pending   []Quote
}

// CreateCache initializes the quote cache.
// The cache starts empty; the first request loads the dataset.
func CreateCache(config Config) *QuoteCache {
	if config.Loader == nil {
		panic("quotes: a Loader is required")
	}

	// use console logger if not specified in config
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}

	c := &QuoteCache{
		loader:       config.Loader,
		log:          logger.With().Str("component", "quotes").Logger(),
		freshWindow:  config.FreshWindow,
		staleCeiling: config.StaleCeiling,
		maxAttempts:  config.MaxAttempts,
		cooldown:     config.BreakerCooldown,
		bufferSize:   config.BufferSize,
		schedule:     config.Schedule,
		rng:          config.Rand,
	}
	if c.freshWindow <= 0 {
		c.freshWindow = DefaultFreshWindow
	}
	if c.staleCeiling <= 0 {
		c.staleCeiling = DefaultStaleCeiling
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = DefaultMaxAttempts
	}
	if c.cooldown <= 0 {
		c.cooldown = DefaultBreakerCooldown
	}
	if c.bufferSize <= 0 {
		c.bufferSize = DefaultBufferSize
	}
	if c.schedule == nil {
		c.schedule = func(task func()) { go task() }
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return c
}

// GetQuote returns one quote, refreshing the snapshot first if needed.
// The returned status tells whether the snapshot was fresh, stale or just loaded.
// Errors are either ErrUnavailable or ErrNoData.
func (c *QuoteCache) GetQuote(ctx context.Context, now time.Time) (Quote, Status, error) {
	status, err := c.ensureFresh(ctx, now)
	if err != nil {
		c.stats.unavailable.Add(1)
		c.log.Error().Err(err).Msg("Could not get quotes")
		return Quote{}, StatusError, err
	}
	q, err := c.dispense()
	if err != nil {
		c.stats.unavailable.Add(1)
		c.log.Error().Err(err).Msg("Could not dispense quote")
		return Quote{}, StatusError, err
	}
	switch status {
	case StatusHit:
		c.stats.hits.Add(1)
	case StatusStale:
		c.stats.staleHits.Add(1)
	}
	return q, status, nil
}

// ensureFresh makes sure there is a snapshot to serve from.
// At most one refresh runs at a time; requests overlapping a refresh do not wait
// for it but use whatever snapshot is currently held.
func (c *QuoteCache) ensureFresh(ctx context.Context, now time.Time) (Status, error) {
	c.mu.Lock()
	if c.data != nil && now.Sub(c.fetchedAt) < c.freshWindow {
		c.mu.Unlock()
		c.log.Trace().Msg("Fresh snapshot")
		return StatusHit, nil
	}
	hasData := c.data != nil
	if !c.allowAttempt(now) {
		failures := c.failures
		c.mu.Unlock()
		c.stats.breakerSkips.Add(1)
		c.log.Debug().Int("failures", failures).Bool("stale", hasData).Msg("Circuit breaker open, not refreshing")
		if hasData {
			return StatusStale, nil
		}
		return StatusError, fmt.Errorf("%w: circuit breaker open", ErrUnavailable)
	}
	if c.inFlight > 0 {
		c.mu.Unlock()
		c.stats.inFlightSkips.Add(1)
		c.log.Trace().Bool("stale", hasData).Msg("Refresh already in progress")
		if hasData {
			return StatusStale, nil
		}
		return StatusError, fmt.Errorf("%w: refresh in progress", ErrUnavailable)
	}
	c.inFlight++
	c.mu.Unlock()

	return c.refresh(ctx, now)
}

// breakerOpen must be called with mu held.
func (c *QuoteCache) breakerOpen(now time.Time) bool {
	return c.failures >= c.maxAttempts && now.Sub(c.lastFailureAt) < c.cooldown
}

// allowAttempt reports whether a refresh may run.
// Once the cooldown has passed the failure count is cleared, so the source gets
// MaxAttempts new tries before the breaker opens again.
// Must be called with mu held.
func (c *QuoteCache) allowAttempt(now time.Time) bool {
	if c.failures < c.maxAttempts {
		return true
	}
	if c.breakerOpen(now) {
		return false
	}
	c.log.Debug().Int("failures", c.failures).Msg("Circuit breaker cooldown elapsed")
	c.failures = 0
	return true
}

// refresh loads the dataset and swaps in the new snapshot.
// The caller must have registered the refresh in inFlight; it is released here.
// A failed load never touches the current snapshot.
func (c *QuoteCache) refresh(ctx context.Context, now time.Time) (Status, error) {
	// the load is shared by every request, so one client going away must not cancel it
	set, loadErr := c.load(context.WithoutCancel(ctx))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inFlight--

	if loadErr != nil {
		c.failures++
		c.lastFailureAt = now
		c.stats.loadFailures.Add(1)
		if c.data != nil && now.Sub(c.fetchedAt) < c.staleCeiling {
			c.log.Warn().Err(loadErr).
				Int("failures", c.failures).
				Dur("age", now.Sub(c.fetchedAt)).
				Msg("Refresh failed, serving stale snapshot")
			return StatusStale, nil
		}
		c.log.Error().Err(loadErr).Int("failures", c.failures).Msg("Refresh failed")
		return StatusError, fmt.Errorf("%w: %v", ErrUnavailable, loadErr)
	}

	c.data = set
	c.fetchedAt = now
	c.failures = 0
	c.lastFailureAt = time.Time{}
	c.generation++
	c.stats.refreshes.Add(1)
	c.reshuffle(set, c.generation)
	return StatusMiss, nil
}

// load calls the loader, turning panics and unusable payloads into errors.
func (c *QuoteCache) load(ctx context.Context) (set QuoteSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithLevel(zerolog.PanicLevel).Interface("error", r).Msg("Panic in quote loader")
			set, err = nil, fmt.Errorf("loader panic: %v", r)
		}
	}()
	start := time.Now()
	set, err = c.loader.Load(ctx)
	if err == nil {
		err = set.Validate()
	}
	if err != nil {
		return nil, err
	}
	c.log.Info().Int("quotes", len(set)).Dur("took", time.Since(start)).Msg("Quotes loaded")
	return set, nil
}

// reshuffle replaces the buffer with a new sample of the given snapshot
// and resets the cursor. Any staged generation is dropped.
func (c *QuoteCache) reshuffle(set QuoteSet, generation uint64) {
	buf := c.sample(set)
	c.bufMu.Lock()
	c.buffer = buf
	c.cursor = 0
	c.bufferGen = generation
	c.pending = nil
	c.bufMu.Unlock()
	c.stats.reshuffles.Add(1)
}

// stageReshuffle samples the current snapshot into the next buffer generation,
// which dispense installs once the cursor wraps.
// The task is dropped if the buffer it was scheduled for has been rebuilt by a refresh.
func (c *QuoteCache) stageReshuffle(bufferGen uint64) {
	c.mu.Lock()
	set, generation := c.data, c.generation
	c.mu.Unlock()
	if generation != bufferGen {
		c.stats.discarded.Add(1)
		return
	}
	buf := c.sample(set)

	c.bufMu.Lock()
	defer c.bufMu.Unlock()
	if c.bufferGen != bufferGen {
		c.stats.discarded.Add(1)
		return
	}
	c.pending = buf
	c.stats.reshuffles.Add(1)
	c.log.Trace().Int("size", len(buf)).Msg("Buffer reshuffled")
}

// sample picks min(bufferSize, len(set)) distinct records.
func (c *QuoteCache) sample(set QuoteSet) []Quote {
	c.randMu.Lock()
	idx := sampler.Indices(c.rng, len(set), c.bufferSize)
	c.randMu.Unlock()
	buf := make([]Quote, len(idx))
	for i, j := range idx {
		buf[i] = set[j]
	}
	return buf
}

// dispense returns the next quote of the rotation buffer.
// Reaching the middle of the buffer schedules a reshuffle; the reshuffled generation
// replaces the buffer when the cursor wraps, so each cycle serves every buffered
// quote exactly once.
// Without a buffer, a quote is picked at random from the snapshot.
func (c *QuoteCache) dispense() (Quote, error) {
	c.bufMu.Lock()
	if n := len(c.buffer); n > 0 {
		q := c.buffer[c.cursor]
		c.cursor = (c.cursor + 1) % n
		if c.cursor == 0 && c.pending != nil {
			c.buffer, c.pending = c.pending, nil
		}
		midpoint := c.cursor == n/2
		bufferGen := c.bufferGen
		c.bufMu.Unlock()

		c.stats.bufferedServes.Add(1)
		if midpoint {
			c.schedule(func() { c.stageReshuffle(bufferGen) })
		}
		return q, nil
	}
	c.bufMu.Unlock()

	c.mu.Lock()
	set := c.data
	c.mu.Unlock()
	if len(set) == 0 {
		return Quote{}, ErrNoData
	}
	c.randMu.Lock()
	i := c.rng.Intn(len(set))
	c.randMu.Unlock()
	c.stats.fallbackServes.Add(1)
	return set[i], nil
}

// WarmupResult is the outcome of a forced refresh.
type WarmupResult struct {
	Status   string    `json:"status"`
	Quotes   int       `json:"quotes"`
	LoadTime time.Time `json:"loadTime"`
}

// Warmup reloads the dataset regardless of the snapshot age.
// The circuit breaker is still honoured. Concurrent warmups share one load.
func (c *QuoteCache) Warmup(ctx context.Context, now time.Time) (WarmupResult, error) {
	v, err, _ := c.warmups.Do("warmup", func() (interface{}, error) {
		c.mu.Lock()
		if !c.allowAttempt(now) {
			c.mu.Unlock()
			c.stats.breakerSkips.Add(1)
			return nil, fmt.Errorf("%w: circuit breaker open", ErrUnavailable)
		}
		c.inFlight++
		c.mu.Unlock()

		status, err := c.refresh(ctx, now)
		if err != nil {
			return nil, err
		}
		if status != StatusMiss {
			return nil, fmt.Errorf("%w: refresh failed", ErrUnavailable)
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		c.log.Info().Int("quotes", len(c.data)).Msg("Cache warmed")
		return WarmupResult{
			Status:   "warmed",
			Quotes:   len(c.data),
			LoadTime: c.fetchedAt,
		}, nil
	})
	if err != nil {
		return WarmupResult{}, err
	}
	return v.(WarmupResult), nil
}

// Stats returns a copy of the cache counters.
func (c *QuoteCache) Stats() Stats {
	return c.stats.snapshot()
}

// Snapshot describes the currently held snapshot.
func (c *QuoteCache) Snapshot(now time.Time) SnapshotInfo {
	c.mu.Lock()
	info := SnapshotInfo{
		Quotes:              len(c.data),
		FetchedAt:           c.fetchedAt,
		ConsecutiveFailures: c.failures,
		LastFailureAt:       c.lastFailureAt,
		BreakerOpen:         c.breakerOpen(now),
		Refreshing:          c.inFlight > 0,
	}
	c.mu.Unlock()
	c.bufMu.Lock()
	info.BufferSize = len(c.buffer)
	c.bufMu.Unlock()
	return info
}
