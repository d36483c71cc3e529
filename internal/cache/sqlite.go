package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	_ "modernc.org/sqlite"

	"github.com/rxtech-lab/argo-history/internal/types"
	"github.com/rxtech-lab/argo-history/pkg/errors"
)

//go:embed migrations/001_fetch_cache.sql
var migration string

const table = "fetch_cache"

// SQLiteCache is a Cache backed by a single sqlite file.
type SQLiteCache struct {
	db *sql.DB
	sq squirrel.StatementBuilderType
}

// OpenSQLite opens (or creates) the cache database at path and runs migrations.
// Use ":memory:" for a throwaway cache.
func OpenSQLite(path string) (*SQLiteCache, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to create cache directory for %s", path)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to open cache database", err)
	}

	// one connection keeps an in-memory database shared and serialises writers
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()

			return nil, errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to exec %s", pragma)
		}
	}

	if _, err := db.Exec(migration); err != nil {
		_ = db.Close()

		return nil, errors.Wrap(errors.ErrCodeStorageFailed, "failed to migrate cache database", err)
	}

	return &SQLiteCache{
		db: db,
		sq: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}, nil
}

// Get implements Cache.
func (c *SQLiteCache) Get(ctx context.Context, key Key) (optional.Option[Entry], error) {
	var (
		payload   string
		fetchedAt int64
		version   string
	)

	err := c.sq.Select("payload", "fetched_at", "version").
		From(table).
		Where(squirrel.Eq{"provider": key.Provider, "symbol": key.Symbol, "year": key.Year}).
		RunWith(c.db).
		QueryRowContext(ctx).
		Scan(&payload, &fetchedAt, &version)
	if stderrors.Is(err, sql.ErrNoRows) {
		return optional.None[Entry](), nil
	}

	if err != nil {
		return optional.None[Entry](), errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to read cache entry %s/%s/%d", key.Provider, key.Symbol, key.Year)
	}

	var rows []types.PriceRow
	if err := json.Unmarshal([]byte(payload), &rows); err != nil {
		return optional.None[Entry](), errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to decode cache entry %s/%s/%d", key.Provider, key.Symbol, key.Year)
	}

	return optional.Some(Entry{
		Rows:      rows,
		FetchedAt: time.Unix(fetchedAt, 0).UTC(),
		Version:   version,
	}), nil
}

// Put implements Cache.
func (c *SQLiteCache) Put(ctx context.Context, key Key, entry Entry) error {
	payload, err := json.Marshal(entry.Rows)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageFailed, "failed to encode cache entry", err)
	}

	_, err = c.sq.Insert(table).
		Columns("provider", "symbol", "year", "payload", "row_count", "fetched_at", "version").
		Values(key.Provider, key.Symbol, key.Year, string(payload), len(entry.Rows), entry.FetchedAt.Unix(), entry.Version).
		Suffix("ON CONFLICT(provider, symbol, year) DO UPDATE SET " +
			"payload = excluded.payload, row_count = excluded.row_count, " +
			"fetched_at = excluded.fetched_at, version = excluded.version").
		RunWith(c.db).
		ExecContext(ctx)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeStorageFailed, err, "failed to write cache entry %s/%s/%d", key.Provider, key.Symbol, key.Year)
	}

	return nil
}

// Prune deletes entries fetched before cutoff and returns how many were removed.
func (c *SQLiteCache) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := c.sq.Delete(table).
		Where(squirrel.Lt{"fetched_at": cutoff.Unix()}).
		RunWith(c.db).
		ExecContext(ctx)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeStorageFailed, "failed to prune cache", err)
	}

	return res.RowsAffected()
}

// Close closes the underlying database.
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
