package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/always-cache/quotes"
	"github.com/always-cache/quotes/pkg/quotefile"
	"github.com/always-cache/quotes/source"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeContribution(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCompileAndWrite(t *testing.T) {
	dir := t.TempDir()
	a := writeContribution(t, dir, "1-quotes.txt", "3|Marie Curie|Nothing in life is to be feared.\n")
	b := writeContribution(t, dir, "2-quotes.txt", "1|Alan Turing|We can only see a short distance ahead.\n")

	set, err := compile([]string{a, b})
	require.NoError(t, err)
	require.Len(t, set, 2)
	assert.Equal(t, "1", set[0].ID)

	out := filepath.Join(dir, "data", "quotes.min.json")
	require.NoError(t, writeOutput(out, set))
	loaded, err := (&source.FileLoader{Paths: []string{out}}).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, set, loaded)
	_, err = os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestCompileReportsInvalidLines(t *testing.T) {
	dir := t.TempDir()
	a := writeContribution(t, dir, "1-quotes.txt", "1|Plato|Wise men speak because they have something to say.\n")

	_, err := compile([]string{a})
	var verrs quotefile.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "1-quotes.txt", verrs[0].File)

	_, err = compile([]string{filepath.Join(dir, "missing.txt")})
	assert.Error(t, err)
}

func TestSeedStores(t *testing.T) {
	set := quotes.QuoteSet{{ID: "1", From: "Alan Turing", Text: "We can only see a short distance ahead."}}
	ctx := context.Background()

	db := filepath.Join(t.TempDir(), "quotes.db")
	require.NoError(t, seedSQLite(ctx, db, set))
	store, err := source.NewSQLiteStore(db)
	require.NoError(t, err)
	defer store.Close()
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, set, loaded)

	mr := miniredis.RunT(t)
	require.NoError(t, seedRedis(ctx, mr.Addr(), "k", set))
	assert.True(t, mr.Exists("k"))
}
