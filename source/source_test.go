package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/always-cache/quotes"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSet = quotes.QuoteSet{
	{ID: "1", From: "Ada Lovelace", Text: "The Analytical Engine weaves algebraic patterns."},
	{ID: "2", From: "Grace Hopper", Text: "A ship in port is safe, but that is not what ships are built for."},
	{ID: "3", From: "Alan Turing", Text: "We can only see a short distance ahead."},
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func assertLoadError(t *testing.T, err error, kind string) {
	t.Helper()
	var loadErr *quotes.LoadError
	require.True(t, errors.As(err, &loadErr), "expected a LoadError, got %v", err)
	assert.Equal(t, kind, loadErr.Source)
}

func TestFileLoaderFirstExistingPath(t *testing.T) {
	path := writeFile(t, "quotes.min.json", `[{"id":1,"name":"Ada Lovelace","quotes":"Numbers are poetry"},{"id":"b","from":"X Y","quote":"t"}]`)
	l := &FileLoader{Paths: []string{filepath.Join(t.TempDir(), "missing.json"), path}}

	set, err := l.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, quotes.Quote{ID: "1", From: "Ada Lovelace", Text: "Numbers are poetry"}, set[0])
	assert.Equal(t, "b", set[1].ID)
}

func TestFileLoaderYAML(t *testing.T) {
	path := writeFile(t, "quotes.yaml", `
- id: 7
  from: Grace Hopper
  quote: It is easier to ask forgiveness than it is to get permission.
- id: x8
  name: Alan Turing
  quotes: We can only see a short distance ahead.
`)
	set, err := (&FileLoader{Paths: []string{path}}).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "7", set[0].ID)
	assert.Equal(t, "Alan Turing", set[1].From)
	assert.Equal(t, "We can only see a short distance ahead.", set[1].Text)
}

func TestFileLoaderErrors(t *testing.T) {
	_, err := (&FileLoader{Paths: []string{filepath.Join(t.TempDir(), "none.json")}}).Load(context.Background())
	assertLoadError(t, err, KindFile)

	path := writeFile(t, "quotes.json", `{"quotes":[]}`)
	_, err = (&FileLoader{Paths: []string{path}}).Load(context.Background())
	assertLoadError(t, err, KindFile)
	assert.ErrorIs(t, err, quotes.ErrInvalidPayload)

	path = writeFile(t, "empty.json", `[]`)
	_, err = (&FileLoader{Paths: []string{path}}).Load(context.Background())
	assert.ErrorIs(t, err, quotes.ErrEmptyQuoteSet)
}

func TestHTTPLoader(t *testing.T) {
	var cacheControl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cacheControl = r.Header.Get("Cache-Control")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"from":"Ada Lovelace","quote":"Numbers are poetry"}]`))
	}))
	defer srv.Close()

	l := NewHTTPLoader(srv.URL, 0)
	defer l.Close()
	set, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, set, 1)
	assert.Equal(t, "no-store", cacheControl)
}

func TestHTTPLoaderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPLoader(srv.URL, 0).Load(context.Background())
	assertLoadError(t, err, KindHTTP)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestHTTPLoaderInvalidBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	}))
	defer srv.Close()

	_, err := NewHTTPLoader(srv.URL, 0).Load(context.Background())
	assert.ErrorIs(t, err, quotes.ErrInvalidPayload)
}

func TestSQLiteStore(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "quotes.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	_, err = store.Load(ctx)
	assertLoadError(t, err, KindSQLite)
	assert.ErrorIs(t, err, quotes.ErrEmptyQuoteSet)

	require.NoError(t, store.Put(ctx, testSet))
	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSet, set)

	// put replaces the previous dataset
	require.NoError(t, store.Put(ctx, testSet[1:]))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	set, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSet[1:], set)
}

func TestSQLiteStoreRejectsDuplicateIDs(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "quotes.db"))
	require.NoError(t, err)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, testSet))
	err = store.Put(ctx, quotes.QuoteSet{testSet[0], testSet[0]})
	assertLoadError(t, err, KindSQLite)

	// the failed transaction left the previous dataset in place
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(testSet), n)
}

func TestSQLiteStoreInMemory(t *testing.T) {
	store, err := NewSQLiteStore("")
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Put(context.Background(), testSet))
	n, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(testSet), n)
}

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	store := NewRedisStore(client, "")

	t.Cleanup(func() {
		store.Close()
		mr.Close()
	})
	return store, mr
}

func TestRedisStore(t *testing.T) {
	store, mr := setupTestRedis(t)
	ctx := context.Background()

	_, err := store.Load(ctx)
	assertLoadError(t, err, KindRedis)
	assert.ErrorIs(t, err, quotes.ErrEmptyQuoteSet)

	require.NoError(t, store.Put(ctx, testSet))
	assert.True(t, mr.Exists(DefaultRedisKey))

	set, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, testSet, set)
}

func TestRedisStoreInvalidPayload(t *testing.T) {
	store, mr := setupTestRedis(t)
	require.NoError(t, mr.Set(DefaultRedisKey, "not json"))

	_, err := store.Load(context.Background())
	assertLoadError(t, err, KindRedis)
	assert.ErrorIs(t, err, quotes.ErrInvalidPayload)
}

func TestRedisStoreUnreachable(t *testing.T) {
	store, mr := setupTestRedis(t)
	mr.Close()

	_, err := store.Load(context.Background())
	assertLoadError(t, err, KindRedis)
}

func TestNew(t *testing.T) {
	src, err := New(KindFile, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPaths, src.(*FileLoader).Paths)

	_, err = New(KindHTTP, Config{})
	assert.Error(t, err)

	_, err = New(KindRedis, Config{})
	assert.Error(t, err)

	_, err = New("ftp", Config{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	src, err = New(KindRedis, Config{RedisAddr: mr.Addr(), RedisKey: "k"})
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, "k", src.(*RedisStore).key)

	src, err = New(KindSQLite, Config{SQLitePath: filepath.Join(t.TempDir(), "q.db")})
	require.NoError(t, err)
	assert.NoError(t, src.Close())
}
