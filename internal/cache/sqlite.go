package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a durable cache backend using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

const sqliteCacheMigration = `
CREATE TABLE IF NOT EXISTS provider_cache (
	key        TEXT NOT NULL,
	kind       TEXT NOT NULL,
	payload    BLOB NOT NULL,
	expires_at DATETIME NOT NULL,
	cached_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (key, kind)
);

CREATE INDEX IF NOT EXISTS idx_provider_cache_expires_at ON provider_cache(expires_at);
`

// NewSQLite opens (and migrates) a SQLite-backed cache at the given path.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteCacheMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: migrate")
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

// WithNow sets the clock, for TTL tests.
func (s *SQLiteStore) WithNow(now func() time.Time) *SQLiteStore {
	s.now = now
	return s
}

func (s *SQLiteStore) Get(ctx context.Context, key string, kind Kind) (Outcome, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload FROM provider_cache WHERE key = ? AND kind = ? AND expires_at > ?`,
		key, string(kind), s.now().UTC(),
	)

	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Miss, nil
		}
		return Miss, eris.Wrap(err, "cache: get")
	}
	return HitOutcome(payload), nil
}

func (s *SQLiteStore) Set(ctx context.Context, key string, kind Kind, payload []byte, ttl time.Duration) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_cache (key, kind, payload, expires_at, cached_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key, kind) DO UPDATE SET payload = excluded.payload,
		   expires_at = excluded.expires_at, cached_at = excluded.cached_at`,
		key, string(kind), payload, now.Add(ttl), now,
	)
	return eris.Wrap(err, "cache: set")
}

func (s *SQLiteStore) SweepExpired(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_cache WHERE expires_at <= ?`, s.now().UTC(),
	)
	if err != nil {
		return 0, eris.Wrap(err, "cache: sweep")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: sweep rows affected")
	}
	return int(n), nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
