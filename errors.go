package quotes

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable is returned when no snapshot can be served:
	// the refresh failed (or was skipped) and there is no usable data.
	ErrUnavailable = errors.New("quotes unavailable")

	// ErrNoData is returned when a snapshot is held but it has no records.
	ErrNoData = errors.New("no quote data")

	// ErrEmptyQuoteSet is returned by loaders for an empty dataset.
	ErrEmptyQuoteSet = errors.New("empty quote set")

	// ErrInvalidPayload is returned for payloads that are not an array of quotes.
	ErrInvalidPayload = errors.New("invalid quote payload")
)

// LoadError describes a failed load from a quote source.
type LoadError struct {
	Source string // Source kind, e.g. "file" or "redis"
	Op     string // Operation that failed
	Err    error
}

func (e *LoadError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s %s: %v", e.Source, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// NewLoadError wraps err, returning nil for a nil err.
func NewLoadError(source, op string, err error) error {
	if err == nil {
		return nil
	}
	return &LoadError{Source: source, Op: op, Err: err}
}
