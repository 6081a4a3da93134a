package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	_ "modernc.org/sqlite"
)

// compressThreshold is the value size above which blobs are zstd-compressed
// before hitting disk. Cached tool outputs (fetched page bodies, generated
// study material) are routinely tens of kilobytes.
const compressThreshold = 1024

// SQLite is a Store backed by a single SQLite database file.
type SQLite struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder

	mu     sync.RWMutex
	closed bool
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	s.enc, err = zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.dec, err = zstd.NewReader(nil)
	if err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		bucket     TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      BLOB NOT NULL,
		compressed INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (bucket, key)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// Get returns the value for key, or ErrNotFound.
func (s *SQLite) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	var value []byte
	var compressed bool
	row := s.db.QueryRowContext(ctx,
		`SELECT value, compressed FROM kv WHERE bucket = ? AND key = ?`, bucket, key)
	if err := row.Scan(&value, &compressed); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store get: %w", err)
	}

	if compressed {
		return s.dec.DecodeAll(value, nil)
	}
	return value, nil
}

// Put inserts or replaces a key/value pair.
func (s *SQLite) Put(ctx context.Context, bucket string, kv KV) error {
	if err := s.available(); err != nil {
		return err
	}

	value := kv.Value
	compressed := false
	if len(value) > compressThreshold {
		value = s.enc.EncodeAll(value, nil)
		compressed = true
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO kv (bucket, key, value, compressed) VALUES (?, ?, ?, ?)`,
		bucket, kv.Key, value, compressed)
	if err != nil {
		return fmt.Errorf("store put: %w", err)
	}
	return nil
}

// Delete removes a key. Deleting an absent key is not an error.
func (s *SQLite) Delete(ctx context.Context, bucket, key string) error {
	if err := s.available(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM kv WHERE bucket = ? AND key = ?`, bucket, key)
	if err != nil {
		return fmt.Errorf("store delete: %w", err)
	}
	return nil
}

// GetAll returns every pair in the bucket. An empty or never-written bucket
// yields an empty slice.
func (s *SQLite) GetAll(ctx context.Context, bucket string) ([]KV, error) {
	if err := s.available(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value, compressed FROM kv WHERE bucket = ? ORDER BY key`, bucket)
	if err != nil {
		return nil, fmt.Errorf("store list: %w", err)
	}
	defer rows.Close()

	var out []KV
	for rows.Next() {
		var kv KV
		var compressed bool
		if err := rows.Scan(&kv.Key, &kv.Value, &compressed); err != nil {
			return nil, fmt.Errorf("store list: %w", err)
		}
		if compressed {
			kv.Value, err = s.dec.DecodeAll(kv.Value, nil)
			if err != nil {
				return nil, fmt.Errorf("store list: %w", err)
			}
		}
		out = append(out, kv)
	}
	return out, rows.Err()
}

// Close releases the database handle. Further operations return
// ErrUnavailable.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}

func (s *SQLite) available() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.db == nil {
		return ErrUnavailable
	}
	return nil
}
