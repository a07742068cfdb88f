package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/always-cache/quotes"
	"github.com/always-cache/quotes/source"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// CLI flags
	configFlag         string
	portFlag           int
	sourceFlag         string
	fileFlag           string
	urlFlag            string
	dbFilenameFlag     string
	redisFlag          string
	warmupFlag         bool
	verbosityTraceFlag bool
	logFilenameFlag    string

	// this is set by goreleaser
	version string
)

func init() {
	flag.StringVar(&configFlag, "config", "", "YAML config file")
	flag.IntVar(&portFlag, "port", 8080, "Port to listen on")
	flag.StringVar(&sourceFlag, "source", "file", "Dataset source: file, http, sqlite or redis")
	flag.StringVar(&fileFlag, "file", "", "Dataset file for the file source")
	flag.StringVar(&urlFlag, "url", "", "Dataset URL for the http source")
	flag.StringVar(&dbFilenameFlag, "db", "quotes.db", "SQLite DB file name (use 'memory' for in-memory db)")
	flag.StringVar(&redisFlag, "redis", "", "Redis address for the redis source")
	flag.BoolVar(&warmupFlag, "warmup", false, "Load the dataset before accepting requests")
	flag.BoolVar(&verbosityTraceFlag, "vv", false, "Verbosity: trace logging")
	flag.StringVar(&logFilenameFlag, "log-file", "", "Log file to use (in addition to stdout)")

	if version == "" {
		version = "DEV"
	}
}

// overrideWithFlags applies the flags given on the command line.
func overrideWithFlags(config *Config, fs *flag.FlagSet) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			config.Port = portFlag
		case "source":
			config.Source = sourceFlag
		case "file":
			config.Paths = []string{fileFlag}
		case "url":
			config.URL = urlFlag
		case "db":
			config.SQLite = dbFilenameFlag
		case "redis":
			config.Redis.Addr = redisFlag
		case "warmup":
			config.Warmup = warmupFlag
		case "vv":
			config.Trace = verbosityTraceFlag
		case "log-file":
			config.LogFile = logFilenameFlag
		}
	})
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		cleanenv.FUsage(flag.CommandLine.Output(), &Config{}, nil)()
	}
	flag.Parse()

	config, err := loadConfig(configFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot read config")
	}
	overrideWithFlags(&config, flag.CommandLine)

	// set log level
	logLevel := zerolog.DebugLevel
	if config.Trace {
		logLevel = zerolog.TraceLevel
	}

	// set up log output to stdout
	// also output to logfile if specified
	logOutputs := make([]io.Writer, 0)
	logOutputs = append(logOutputs, zerolog.ConsoleWriter{Out: os.Stdout})
	if config.LogFile != "" {
		if logFileOutput, err := os.OpenFile(config.LogFile, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0644); err != nil {
			log.Fatal().Err(err).Msg("Cannot open log file")
		} else {
			defer logFileOutput.Close()
			logOutputs = append(logOutputs, logFileOutput)
		}
	}
	multiWriter := zerolog.MultiLevelWriter(logOutputs...)
	log.Logger = log.Level(logLevel).Output(multiWriter).
		With().Timestamp().Str("version", version).Logger()

	src, err := source.New(config.Source, source.Config{
		Paths:         config.Paths,
		URL:           config.URL,
		Timeout:       config.HTTPTimeout,
		SQLitePath:    config.sqlitePath(),
		RedisAddr:     config.Redis.Addr,
		RedisPassword: config.Redis.Password,
		RedisDB:       config.Redis.DB,
		RedisKey:      config.Redis.Key,
		Logger:        &log.Logger,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Cannot set up quote source")
	}
	defer src.Close()

	cache := quotes.CreateCache(quotes.Config{
		Loader:          src,
		Logger:          &log.Logger,
		FreshWindow:     config.Cache.FreshWindow,
		StaleCeiling:    config.Cache.StaleCeiling,
		MaxAttempts:     config.Cache.MaxAttempts,
		BreakerCooldown: config.Cache.BreakerCooldown,
		BufferSize:      config.Cache.BufferSize,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Warmup {
		if res, err := cache.Warmup(ctx, time.Now()); err != nil {
			log.Warn().Err(err).Msg("Warmup failed, loading on first request")
		} else {
			log.Info().Int("quotes", res.Quotes).Msg("Cache warmed")
		}
	}

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", config.Port),
		Handler: quotes.NewHandler(cache, quotes.HandlerConfig{
			Logger:      &log.Logger,
			HitMaxAge:   config.HitMaxAge,
			AllowOrigin: config.AllowOrigin,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Msgf("Serving quotes from %s source on port %v", config.Source, config.Port)
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}
	log.Info().Str("stats", cache.Stats().String()).Msg("Stopped")
}
