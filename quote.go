package quotes

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Quote is a single record of the dataset.
type Quote struct {
	ID   string `json:"id" yaml:"id"`
	From string `json:"from" yaml:"from"`
	Text string `json:"quote" yaml:"quote"`
	// Measured handling time, only set on HTTP responses.
	ResponseTime string `json:"responseTime,omitempty" yaml:"-"`
}

// QuoteSet is the full dataset as loaded from a source.
type QuoteSet []Quote

// rawQuote accepts the record shapes found in the wild:
// numeric or string ids, `from` or `name` for the author,
// `quote` or `quotes` for the text.
type rawQuote struct {
	ID     json.RawMessage `json:"id"`
	From   string          `json:"from"`
	Name   string          `json:"name"`
	Quote  string          `json:"quote"`
	Quotes string          `json:"quotes"`
}

// UnmarshalJSON normalizes the different record shapes into a Quote.
func (q *Quote) UnmarshalJSON(b []byte) error {
	var raw rawQuote
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	id, err := normalizeID(raw.ID)
	if err != nil {
		return err
	}
	q.ID = id
	q.From = firstNonEmpty(raw.From, raw.Name)
	q.Text = firstNonEmpty(raw.Quote, raw.Quotes)
	return nil
}

// normalizeID keeps numbers in their literal form, e.g. 42 becomes "42".
func normalizeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("id must be a string or a number: %w", err)
	}
	return n.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// DecodeQuoteSet parses a JSON array of quotes.
// Anything that is not a non-empty array of records with text is rejected,
// so that a broken payload is treated the same way as a failed fetch.
func DecodeQuoteSet(data []byte) (QuoteSet, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrInvalidPayload
	}
	var set QuoteSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks that the set can be served.
func (s QuoteSet) Validate() error {
	if len(s) == 0 {
		return ErrEmptyQuoteSet
	}
	for i, q := range s {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("%w: record %d has no text", ErrInvalidPayload, i)
		}
	}
	return nil
}
