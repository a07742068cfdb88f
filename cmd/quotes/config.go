package main

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config is read from an optional YAML file and QUOTES_* environment variables.
// Environment variables take precedence over the file, command-line flags over both.
type Config struct {
	Port        int           `yaml:"port" env:"QUOTES_PORT" env-default:"8080" env-description:"Port to listen on"`
	Source      string        `yaml:"source" env:"QUOTES_SOURCE" env-default:"file" env-description:"Dataset source: file, http, sqlite or redis"`
	Paths       []string      `yaml:"paths" env:"QUOTES_PATHS" env-separator:"," env-description:"Dataset files for the file source"`
	URL         string        `yaml:"url" env:"QUOTES_URL" env-description:"Dataset URL for the http source"`
	HTTPTimeout time.Duration `yaml:"httpTimeout" env:"QUOTES_HTTP_TIMEOUT" env-default:"10s"`
	SQLite      string        `yaml:"sqlite" env:"QUOTES_SQLITE" env-default:"quotes.db" env-description:"SQLite db file (use 'memory' for in-memory db)"`
	Redis       RedisConfig   `yaml:"redis"`
	Cache       CacheConfig   `yaml:"cache"`
	HitMaxAge   time.Duration `yaml:"hitMaxAge" env:"QUOTES_HIT_MAX_AGE" env-default:"30s"`
	AllowOrigin string        `yaml:"allowOrigin" env:"QUOTES_ALLOW_ORIGIN" env-default:"*"`
	Warmup      bool          `yaml:"warmup" env:"QUOTES_WARMUP" env-description:"Load the dataset before accepting requests"`
	LogFile     string        `yaml:"logFile" env:"QUOTES_LOG_FILE"`
	Trace       bool          `yaml:"trace" env:"QUOTES_TRACE"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"QUOTES_REDIS_ADDR"`
	Password string `yaml:"password" env:"QUOTES_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"QUOTES_REDIS_DB"`
	Key      string `yaml:"key" env:"QUOTES_REDIS_KEY" env-default:"quotes:set"`
}

type CacheConfig struct {
	FreshWindow     time.Duration `yaml:"freshWindow" env:"QUOTES_FRESH_WINDOW" env-default:"5m"`
	StaleCeiling    time.Duration `yaml:"staleCeiling" env:"QUOTES_STALE_CEILING" env-default:"1h"`
	MaxAttempts     int           `yaml:"maxAttempts" env:"QUOTES_MAX_ATTEMPTS" env-default:"3"`
	BreakerCooldown time.Duration `yaml:"breakerCooldown" env:"QUOTES_BREAKER_COOLDOWN" env-default:"30s"`
	BufferSize      int           `yaml:"bufferSize" env:"QUOTES_BUFFER_SIZE" env-default:"100"`
}

func loadConfig(filename string) (Config, error) {
	var config Config
	if filename == "" {
		err := cleanenv.ReadEnv(&config)
		return config, err
	}
	err := cleanenv.ReadConfig(filename, &config)
	return config, err
}

// sqlitePath maps the 'memory' shorthand to an in-memory db.
func (c Config) sqlitePath() string {
	if c.SQLite == "memory" {
		return ""
	}
	return c.SQLite
}
