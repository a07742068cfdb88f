// Package quotefile reads contributed quote files.
//
// A contribution is a text file with one quote per line:
//
//	ID|Full Name|Quote
//
// Blank lines and lines starting with # are ignored. The name must have at
// least two words and the quote at least five. IDs must be unique across all
// files of a collection.
package quotefile

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/always-cache/quotes"
)

const (
	MinNameWords  = 2
	MinQuoteWords = 5
)

type ValidationError struct {
	File   string
	Line   int
	Reason string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Reason)
}

// ValidationErrors lists every rejected line, in input order.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	lines := make([]string, len(e))
	for i, err := range e {
		lines[i] = err.Error()
	}
	return strings.Join(lines, "\n")
}

// Collection accumulates the quotes of several files.
type Collection struct {
	set  quotes.QuoteSet
	seen map[string]string
	errs ValidationErrors
}

func NewCollection() *Collection {
	return &Collection{seen: make(map[string]string)}
}

// Add reads one file. Invalid lines are recorded and skipped.
// The returned error is only set if the file could not be read.
func (c *Collection) Add(r io.Reader, name string) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		q, reason := parseLine(line)
		if reason == "" {
			where := fmt.Sprintf("%s:%d", name, lineNo)
			if prev, ok := c.seen[q.ID]; ok {
				reason = fmt.Sprintf("duplicate id %q (first used at %s)", q.ID, prev)
			} else {
				c.seen[q.ID] = where
			}
		}
		if reason != "" {
			c.errs = append(c.errs, ValidationError{File: name, Line: lineNo, Reason: reason})
			continue
		}
		c.set = append(c.set, q)
	}
	return scanner.Err()
}

// Result returns the accepted quotes sorted by ID,
// together with the validation errors if there were any.
func (c *Collection) Result() (quotes.QuoteSet, error) {
	set := append(quotes.QuoteSet(nil), c.set...)
	sort.SliceStable(set, func(i, j int) bool {
		return lessID(set[i].ID, set[j].ID)
	})
	if len(c.errs) > 0 {
		return set, c.errs
	}
	return set, nil
}

// Parse reads a single file.
func Parse(r io.Reader, name string) (quotes.QuoteSet, error) {
	c := NewCollection()
	if err := c.Add(r, name); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return c.Result()
}

func parseLine(line string) (quotes.Quote, string) {
	fields := strings.Split(line, "|")
	if len(fields) != 3 {
		return quotes.Quote{}, fmt.Sprintf("expected 3 fields separated by '|', got %d", len(fields))
	}
	q := quotes.Quote{
		ID:   strings.TrimSpace(fields[0]),
		From: strings.Join(strings.Fields(fields[1]), " "),
		Text: strings.TrimSpace(fields[2]),
	}
	switch {
	case q.ID == "":
		return q, "missing id"
	case len(strings.Fields(q.From)) < MinNameWords:
		return q, fmt.Sprintf("name %q must have at least %d words", q.From, MinNameWords)
	case len(strings.Fields(q.Text)) < MinQuoteWords:
		return q, fmt.Sprintf("quote must have at least %d words", MinQuoteWords)
	}
	return q, ""
}

// lessID orders numeric ids by value and everything else lexically after them.
func lessID(a, b string) bool {
	na, errA := strconv.ParseUint(a, 10, 64)
	nb, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return na < nb
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}

// Encode writes the set as a minified JSON array.
func Encode(w io.Writer, set quotes.QuoteSet) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(set)
}
