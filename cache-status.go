package quotes

import "fmt"

// Status tells how a quote was served with respect to the cached snapshot.
type Status string

const (
	// A fresh snapshot was used without touching the source.
	StatusHit Status = "hit"
	// The snapshot was loaded from the source for this request.
	StatusMiss Status = "miss"
	// An expired snapshot was used, because the source could not (or may not) be reached.
	StatusStale Status = "stale"
	// No quote could be served.
	StatusError Status = "error"
)

const cacheStatusName = "Quotes"

type CacheStatusFwdReason string

const (
	// The cache did not hold a usable snapshot.
	CacheStatusFwdUriMiss CacheStatusFwdReason = "uri-miss"
)

// CacheStatus renders a `Cache-Status` header value for a served status.
type CacheStatus struct {
	hit       bool
	fwdReason CacheStatusFwdReason
	stored    bool
	detail    string
}

func (cs *CacheStatus) Hit() {
	cs.hit = true
	cs.fwdReason = ""
}

func (cs *CacheStatus) Forward(reason CacheStatusFwdReason) {
	cs.hit = false
	cs.fwdReason = reason
}

func (cs *CacheStatus) Stored() {
	cs.stored = true
}

func (cs *CacheStatus) Detail(detail string) {
	cs.detail = detail
}

func (cs *CacheStatus) String() string {
	status := cacheStatusName
	if cs.hit {
		status += "; hit"
	} else if cs.fwdReason != "" {
		status = fmt.Sprintf("%s; fwd=%s", status, cs.fwdReason)
	}
	if cs.stored {
		status += "; stored"
	}
	if cs.detail != "" {
		status = status + "; detail=" + cs.detail
	}
	return status
}

// CacheStatusFor maps a served status to its header representation.
func CacheStatusFor(s Status) CacheStatus {
	cs := CacheStatus{}
	switch s {
	case StatusHit:
		cs.Hit()
	case StatusStale:
		// a stale snapshot is still served from the cache
		cs.Hit()
		cs.Detail("stale")
	case StatusMiss:
		cs.Forward(CacheStatusFwdUriMiss)
		cs.Stored()
	default:
		cs.Forward(CacheStatusFwdUriMiss)
		cs.Detail("error")
	}
	return cs
}
