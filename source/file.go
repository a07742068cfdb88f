package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/always-cache/quotes"

	"gopkg.in/yaml.v3"
)

// DefaultPaths are tried in order when no dataset file is configured.
var DefaultPaths = []string{
	"data/quotes.min.json",
	"public/assets/quotes.min.json",
}

// FileLoader reads the dataset from the first of Paths that exists.
// Files ending in .yaml or .yml are decoded as YAML, everything else as JSON.
type FileLoader struct {
	Paths []string
}

func (l *FileLoader) Load(ctx context.Context) (quotes.QuoteSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, quotes.NewLoadError(KindFile, "read", err)
	}
	for _, path := range l.Paths {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, quotes.NewLoadError(KindFile, "read", err)
		}
		set, err := decodeFile(path, data)
		if err != nil {
			return nil, quotes.NewLoadError(KindFile, "decode "+path, err)
		}
		return set, nil
	}
	return nil, quotes.NewLoadError(KindFile, "read", errors.New("no dataset found in "+strings.Join(l.Paths, ", ")))
}

func (l *FileLoader) Close() error {
	return nil
}

func decodeFile(path string, data []byte) (quotes.QuoteSet, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decodeYAML(data)
	default:
		return quotes.DecodeQuoteSet(data)
	}
}

// yamlQuote mirrors the accepted JSON record shapes.
// The id is kept as a node so numeric ids keep their literal form.
type yamlQuote struct {
	ID     yaml.Node `yaml:"id"`
	From   string    `yaml:"from"`
	Name   string    `yaml:"name"`
	Quote  string    `yaml:"quote"`
	Quotes string    `yaml:"quotes"`
}

func decodeYAML(data []byte) (quotes.QuoteSet, error) {
	var records []yamlQuote
	if err := yaml.Unmarshal(data, &records); err != nil {
		return nil, errors.Join(quotes.ErrInvalidPayload, err)
	}
	set := make(quotes.QuoteSet, 0, len(records))
	for _, r := range records {
		q := quotes.Quote{ID: r.ID.Value, From: r.From, Text: r.Quote}
		if q.From == "" {
			q.From = r.Name
		}
		if q.Text == "" {
			q.Text = r.Quotes
		}
		set = append(set, q)
	}
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}
