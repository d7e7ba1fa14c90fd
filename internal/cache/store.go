package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/lookout/internal/database"
)

// SQLiteStore is the persistent cache tier. It keeps msgpack payloads in a
// single table so warm entries survive process restarts. The database runs
// with the cache profile: no fsync, auto-vacuum, everything ephemeral.
type SQLiteStore struct {
	db  *database.DB
	log zerolog.Logger
}

const storeSchema = `
CREATE TABLE IF NOT EXISTS entries (
	key         TEXT PRIMARY KEY,
	class       INTEGER NOT NULL,
	payload     BLOB NOT NULL,
	inserted_at INTEGER NOT NULL,
	expires_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entries_expires_at ON entries(expires_at);
`

// NewSQLiteStore opens (or creates) the cache database at path.
func NewSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	if _, err := db.Conn().Exec(storeSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache schema: %w", err)
	}

	return &SQLiteStore{
		db:  db,
		log: log.With().Str("component", "cache_store").Logger(),
	}, nil
}

// Load returns the payload and expiry for key. ok is false when the key is
// absent.
func (s *SQLiteStore) Load(key string) ([]byte, time.Time, bool, error) {
	var payload []byte
	var expiresAtUnix int64

	err := s.db.Conn().QueryRow(
		`SELECT payload, expires_at FROM entries WHERE key = ?`, key,
	).Scan(&payload, &expiresAtUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, fmt.Errorf("failed to load cache entry: %w", err)
	}

	return payload, time.Unix(expiresAtUnix, 0), true, nil
}

// Save upserts the entry for key. The previous payload is simply replaced;
// the cache never needs merge logic.
func (s *SQLiteStore) Save(key string, class Class, payload []byte, insertedAt, expiresAt time.Time) error {
	_, err := s.db.Conn().Exec(
		`INSERT INTO entries (key, class, payload, inserted_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			class = excluded.class,
			payload = excluded.payload,
			inserted_at = excluded.inserted_at,
			expires_at = excluded.expires_at`,
		key, int(class), payload, insertedAt.Unix(), expiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save cache entry: %w", err)
	}
	return nil
}

// DeleteExpired removes every entry whose expiry has passed.
func (s *SQLiteStore) DeleteExpired(now time.Time) (int, error) {
	res, err := s.db.Conn().Exec(`DELETE FROM entries WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired cache entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}

// Count returns the number of persisted entries.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.Conn().QueryRow(`SELECT COUNT(*) FROM entries`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
