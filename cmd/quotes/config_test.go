package main

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 8080, config.Port)
	assert.Equal(t, "file", config.Source)
	assert.Equal(t, 5*time.Minute, config.Cache.FreshWindow)
	assert.Equal(t, time.Hour, config.Cache.StaleCeiling)
	assert.Equal(t, 3, config.Cache.MaxAttempts)
	assert.Equal(t, 30*time.Second, config.Cache.BreakerCooldown)
	assert.Equal(t, 100, config.Cache.BufferSize)
	assert.Equal(t, "quotes:set", config.Redis.Key)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "quotes.yaml")
	require.NoError(t, os.WriteFile(filename, []byte(`
port: 9000
source: redis
redis:
  addr: localhost:6379
cache:
  freshWindow: 10m
  bufferSize: 20
`), 0o644))
	t.Setenv("QUOTES_PORT", "9100")
	t.Setenv("QUOTES_PATHS", "a.json,b.yaml")

	config, err := loadConfig(filename)
	require.NoError(t, err)
	assert.Equal(t, 9100, config.Port)
	assert.Equal(t, "redis", config.Source)
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, 10*time.Minute, config.Cache.FreshWindow)
	assert.Equal(t, 20, config.Cache.BufferSize)
	assert.Equal(t, 3, config.Cache.MaxAttempts)
	assert.Equal(t, []string{"a.json", "b.yaml"}, config.Paths)
}

func TestOverrideWithFlags(t *testing.T) {
	config, err := loadConfig("")
	require.NoError(t, err)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.IntVar(&portFlag, "port", 8080, "")
	fs.StringVar(&dbFilenameFlag, "db", "quotes.db", "")
	fs.StringVar(&sourceFlag, "source", "file", "")
	require.NoError(t, fs.Parse([]string{"-port", "7070", "-db", "memory"}))

	overrideWithFlags(&config, fs)
	assert.Equal(t, 7070, config.Port)
	assert.Equal(t, "", config.sqlitePath())
	// flags that were not given keep the configured value
	assert.Equal(t, "file", config.Source)
}
