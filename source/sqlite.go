package source

import (
	"context"
	"database/sql"
	"sync"

	"github.com/always-cache/quotes"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps the dataset in a `quotes` table, in dataset order.
type SQLiteStore struct {
	db         *sql.DB
	writeMutex *sync.Mutex
}

// NewSQLiteStore opens the store with the given filename as the db.
// If file name is empty, a new in-memory db is opened.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, quotes.NewLoadError(KindSQLite, "open", err)
	}
	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS quotes (
			id TEXT PRIMARY KEY,
			author TEXT,
			quote TEXT,
			position INTEGER
		)`,
		"CREATE INDEX IF NOT EXISTS position_idx ON quotes (position)",
		"PRAGMA journal_mode=WAL",
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, quotes.NewLoadError(KindSQLite, "init", err)
		}
	}
	return &SQLiteStore{
		db:         db,
		writeMutex: &sync.Mutex{},
	}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (quotes.QuoteSet, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, author, quote FROM quotes ORDER BY position ASC")
	if err != nil {
		return nil, quotes.NewLoadError(KindSQLite, "query", err)
	}
	defer rows.Close()

	set := make(quotes.QuoteSet, 0)
	for rows.Next() {
		var q quotes.Quote
		if err := rows.Scan(&q.ID, &q.From, &q.Text); err != nil {
			return nil, quotes.NewLoadError(KindSQLite, "scan", err)
		}
		set = append(set, q)
	}
	if err := rows.Err(); err != nil {
		return nil, quotes.NewLoadError(KindSQLite, "query", err)
	}
	if len(set) == 0 {
		return nil, quotes.NewLoadError(KindSQLite, "query", quotes.ErrEmptyQuoteSet)
	}
	return set, nil
}

// Put replaces the stored dataset with the given set.
func (s *SQLiteStore) Put(ctx context.Context, set quotes.QuoteSet) error {
	s.writeMutex.Lock()
	defer s.writeMutex.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return quotes.NewLoadError(KindSQLite, "put", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM quotes"); err != nil {
		return quotes.NewLoadError(KindSQLite, "put", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO quotes (id, author, quote, position) VALUES (?, ?, ?, ?)")
	if err != nil {
		return quotes.NewLoadError(KindSQLite, "put", err)
	}
	defer stmt.Close()
	for i, q := range set {
		if _, err := stmt.ExecContext(ctx, q.ID, q.From, q.Text, i); err != nil {
			return quotes.NewLoadError(KindSQLite, "put", err)
		}
	}
	return quotes.NewLoadError(KindSQLite, "put", tx.Commit())
}

// Count returns the number of stored quotes.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM quotes").Scan(&n)
	if err != nil {
		return 0, quotes.NewLoadError(KindSQLite, "count", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
