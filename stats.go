package quotes

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// Stats is a point-in-time copy of the cache counters.
type Stats struct {
	Hits             int64 `json:"hits"`             // served from a fresh snapshot
	StaleHits        int64 `json:"staleHits"`        // served from an expired snapshot
	Refreshes        int64 `json:"refreshes"`        // successful loads
	LoadFailures     int64 `json:"loadFailures"`     // failed loads (including invalid payloads)
	BreakerSkips     int64 `json:"breakerSkips"`     // refreshes suppressed by the open breaker
	InFlightSkips    int64 `json:"inFlightSkips"`    // refreshes skipped because one was running
	Unavailable      int64 `json:"unavailable"`      // requests that got no quote at all
	Reshuffles       int64 `json:"reshuffles"`       // buffer generations built
	BufferedServes   int64 `json:"bufferedServes"`   // quotes taken from the buffer
	FallbackServes   int64 `json:"fallbackServes"`   // quotes picked straight from the snapshot
	DiscardedBuffers int64 `json:"discardedBuffers"` // background reshuffles of a superseded snapshot
}

// String encodes the Stats object as JSON.
func (s Stats) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return "{}"
	}
	return string(b)
}

type counters struct {
	hits, staleHits, refreshes, loadFailures, breakerSkips, inFlightSkips atomic.Int64
	unavailable, reshuffles, bufferedServes, fallbackServes, discarded    atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Hits:             c.hits.Load(),
		StaleHits:        c.staleHits.Load(),
		Refreshes:        c.refreshes.Load(),
		LoadFailures:     c.loadFailures.Load(),
		BreakerSkips:     c.breakerSkips.Load(),
		InFlightSkips:    c.inFlightSkips.Load(),
		Unavailable:      c.unavailable.Load(),
		Reshuffles:       c.reshuffles.Load(),
		BufferedServes:   c.bufferedServes.Load(),
		FallbackServes:   c.fallbackServes.Load(),
		DiscardedBuffers: c.discarded.Load(),
	}
}

// SnapshotInfo describes the snapshot currently held by the cache.
type SnapshotInfo struct {
	Quotes              int       `json:"quotes"`
	FetchedAt           time.Time `json:"fetchedAt,omitempty"`
	BufferSize          int       `json:"bufferSize"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastFailureAt       time.Time `json:"lastFailureAt,omitempty"`
	BreakerOpen         bool      `json:"breakerOpen"`
	Refreshing          bool      `json:"refreshing"`
}
