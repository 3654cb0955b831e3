// Package sqlite persists cache generations in a single SQLite file so a
// restarted daemon can serve the active generation without reinstalling.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"
	_ "modernc.org/sqlite"

	"github.com/unkn0wn-root/assetcache/response"
	"github.com/unkn0wn-root/assetcache/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS generations (
	id TEXT PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS entries (
	generation TEXT NOT NULL REFERENCES generations(id) ON DELETE CASCADE,
	url        TEXT NOT NULL,
	status     INTEGER NOT NULL,
	header     BLOB NOT NULL,
	body       BLOB NOT NULL,
	PRIMARY KEY (generation, url)
);`

// Store is a store.Store backed by SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite store: path is required")
	}

	dsn := filepath.Clean(path) +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: open: %w", err)
	}
	// one writer; keeps WAL contention out of install
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite store: ping: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("sqlite store: schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

func (s *Store) Open(ctx context.Context, gen string) (store.Cache, error) {
	if gen == "" {
		return nil, store.ErrEmptyGeneration
	}
	if _, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO generations (id) VALUES (?) ON CONFLICT(id) DO NOTHING`, gen); err != nil {
		return nil, fmt.Errorf("sqlite store: open %q: %w", gen, err)
	}
	return &cache{db: s.sqlDB, gen: gen}, nil
}

func (s *Store) Delete(ctx context.Context, gen string) error {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE generation = ?`, gen); err != nil {
		return fmt.Errorf("sqlite store: delete entries of %q: %w", gen, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM generations WHERE id = ?`, gen); err != nil {
		return fmt.Errorf("sqlite store: delete %q: %w", gen, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite store: commit: %w", err)
	}
	return nil
}

func (s *Store) ListGenerations(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT id FROM generations ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: list: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite store: scan: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) Close(context.Context) error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

type cache struct {
	db  *sql.DB
	gen string
}

func (c *cache) Put(ctx context.Context, url string, r response.Response) error {
	hdr, err := msgpack.Marshal(r.Header)
	if err != nil {
		return fmt.Errorf("sqlite store: encode header: %w", err)
	}
	body := r.Body
	if body == nil {
		body = []byte{}
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO entries (generation, url, status, header, body) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(generation, url) DO UPDATE SET
		   status = excluded.status, header = excluded.header, body = excluded.body`,
		c.gen, url, r.Status, hdr, body)
	if err != nil {
		return fmt.Errorf("sqlite store: put %s: %w", url, err)
	}
	return nil
}

func (c *cache) Get(ctx context.Context, url string) (response.Response, bool, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT status, header, body FROM entries WHERE generation = ? AND url = ?`, c.gen, url)

	var (
		status int
		hdr    []byte
		body   []byte
	)
	if err := row.Scan(&status, &hdr, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return response.Response{}, false, nil
		}
		return response.Response{}, false, fmt.Errorf("sqlite store: get %s: %w", url, err)
	}
	var h http.Header
	if err := msgpack.Unmarshal(hdr, &h); err != nil {
		return response.Response{}, false, fmt.Errorf("sqlite store: decode header: %w", err)
	}
	return response.Response{URL: url, Status: status, Header: h, Body: body}, true, nil
}
