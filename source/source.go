// Package source provides the origins a quote cache can load its dataset from.
//
// Every loader returns the complete dataset on each call and reports failures
// as *quotes.LoadError, so the cache can count them towards its circuit breaker.
package source

import (
	"fmt"
	"time"

	"github.com/always-cache/quotes"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	KindFile   = "file"
	KindHTTP   = "http"
	KindSQLite = "sqlite"
	KindRedis  = "redis"
)

// Source is a Loader that may hold connections.
// Close must be called once the source is no longer used.
type Source interface {
	quotes.Loader
	Close() error
}

type Config struct {
	// Candidate dataset files, the first readable one is used.
	Paths []string
	// URL of the dataset for the http source.
	URL string
	// Timeout for a single http load.
	Timeout time.Duration
	// SQLite database file; an in-memory db is used if empty.
	SQLitePath string
	// Redis connection and the key the dataset is stored under.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	// Logger to use. Logging is disabled if nil.
	Logger *zerolog.Logger
}

// New creates the source of the given kind.
func New(kind string, config Config) (Source, error) {
	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	logger = logger.With().Str("source", kind).Logger()

	switch kind {
	case KindFile, "":
		paths := config.Paths
		if len(paths) == 0 {
			paths = DefaultPaths
		}
		logger.Debug().Strs("paths", paths).Msg("Using file source")
		return &FileLoader{Paths: paths}, nil
	case KindHTTP:
		if config.URL == "" {
			return nil, fmt.Errorf("http source: no url configured")
		}
		logger.Debug().Str("url", config.URL).Msg("Using http source")
		return NewHTTPLoader(config.URL, config.Timeout), nil
	case KindSQLite:
		logger.Debug().Str("db", config.SQLitePath).Msg("Using sqlite source")
		return NewSQLiteStore(config.SQLitePath)
	case KindRedis:
		if config.RedisAddr == "" {
			return nil, fmt.Errorf("redis source: no address configured")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
		})
		logger.Debug().Str("addr", config.RedisAddr).Str("key", config.RedisKey).Msg("Using redis source")
		return NewRedisStore(client, config.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown source %q", kind)
	}
}
