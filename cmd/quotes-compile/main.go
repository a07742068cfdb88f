package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/always-cache/quotes"
	"github.com/always-cache/quotes/pkg/quotefile"
	"github.com/always-cache/quotes/source"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	outFlag            string
	sqliteFlag         string
	redisFlag          string
	redisKeyFlag       string
	verbosityTraceFlag bool
)

func init() {
	flag.StringVar(&outFlag, "out", "data/quotes.min.json", "Output file ('-' for stdout, empty to skip)")
	flag.StringVar(&sqliteFlag, "sqlite", "", "Also store the quotes in this SQLite db")
	flag.StringVar(&redisFlag, "redis", "", "Also store the quotes in Redis at this address")
	flag.StringVar(&redisKeyFlag, "redis-key", source.DefaultRedisKey, "Redis key to store the quotes under")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] files...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	logLevel := zerolog.InfoLevel
	if verbosityTraceFlag {
		logLevel = zerolog.TraceLevel
	}
	log.Logger = log.Level(logLevel).Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	set, err := compile(flag.Args())
	var verrs quotefile.ValidationErrors
	if errors.As(err, &verrs) {
		for _, e := range verrs {
			log.Error().Str("file", e.File).Int("line", e.Line).Msg(e.Reason)
		}
		log.Fatal().Int("errors", len(verrs)).Msg("Invalid quotes")
	} else if err != nil {
		log.Fatal().Err(err).Msg("Cannot compile quotes")
	}
	if err := set.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Nothing to write")
	}
	log.Info().Int("quotes", len(set)).Int("files", flag.NArg()).Msg("Quotes compiled")

	if err := writeOutput(outFlag, set); err != nil {
		log.Fatal().Err(err).Msg("Cannot write output")
	}

	ctx := context.Background()
	if sqliteFlag != "" {
		if err := seedSQLite(ctx, sqliteFlag, set); err != nil {
			log.Fatal().Err(err).Msg("Cannot store quotes in SQLite")
		}
		log.Info().Str("db", sqliteFlag).Msg("Stored quotes in SQLite")
	}
	if redisFlag != "" {
		if err := seedRedis(ctx, redisFlag, redisKeyFlag, set); err != nil {
			log.Fatal().Err(err).Msg("Cannot store quotes in Redis")
		}
		log.Info().Str("addr", redisFlag).Str("key", redisKeyFlag).Msg("Stored quotes in Redis")
	}
}

func compile(files []string) (quotes.QuoteSet, error) {
	c := quotefile.NewCollection()
	for _, name := range files {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		err = c.Add(f, filepath.Base(name))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		log.Trace().Str("file", name).Msg("Read contribution")
	}
	return c.Result()
}

func writeOutput(filename string, set quotes.QuoteSet) error {
	switch filename {
	case "":
		return nil
	case "-":
		return quotefile.Encode(os.Stdout, set)
	}
	var buf bytes.Buffer
	if err := quotefile.Encode(&buf, set); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	// write next to the target and rename, so a running server never reads a partial file
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	log.Info().Str("file", filename).Int("bytes", buf.Len()).Msg("Wrote dataset")
	return os.Rename(tmp, filename)
}

func seedSQLite(ctx context.Context, filename string, set quotes.QuoteSet) error {
	store, err := source.NewSQLiteStore(filename)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Put(ctx, set); err != nil {
		return err
	}
	n, err := store.Count(ctx)
	if err != nil {
		return err
	}
	if n != len(set) {
		return fmt.Errorf("stored %d of %d quotes", n, len(set))
	}
	return nil
}

func seedRedis(ctx context.Context, addr, key string, set quotes.QuoteSet) error {
	store := source.NewRedisStore(redis.NewClient(&redis.Options{Addr: addr}), key)
	defer store.Close()
	return store.Put(ctx, set)
}
