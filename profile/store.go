// Package profile stores per-host outline predicates in SQLite and
// watches the table so edits made by another process reach a running
// engine without a restart.
package profile

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/chattoc/dom"
)

// ErrNotFound is returned by Lookup when no profile covers the host.
var ErrNotFound = errors.New("profile: not found")

// Schema creates the profile table.
const Schema = `
CREATE TABLE IF NOT EXISTS toc_profiles (
	host           TEXT PRIMARY KEY,
	predicates     TEXT NOT NULL,
	secondary_attr TEXT NOT NULL DEFAULT '',
	container      TEXT NOT NULL DEFAULT '',
	updated_at     INTEGER NOT NULL
);`

// Profile overrides the outline settings for one host. Empty fields keep
// the configured values.
type Profile struct {
	Host          string    `json:"host"`
	Predicates    []string  `json:"predicates"`
	SecondaryAttr string    `json:"secondary_attr,omitempty"`
	Container     string    `json:"container,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Selectors parses the profile's predicates.
func (p *Profile) Selectors() ([]dom.Selector, error) {
	sels, err := dom.ParseSelectors(p.Predicates)
	if err != nil {
		return nil, fmt.Errorf("profile: %s: %w", p.Host, err)
	}
	return sels, nil
}

// Store is the SQLite-backed profile table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (creating if needed) the database at path with WAL and a
// busy timeout, and applies the schema.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("profile: mkdir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("profile: open: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("profile: %s: %w", p, err)
		}
	}
	s, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New applies the schema on an open database.
func New(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("profile: schema: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// DB exposes the handle for watchers.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Upsert inserts or replaces the profile for p.Host.
func (s *Store) Upsert(ctx context.Context, p Profile) error {
	host := strings.ToLower(strings.TrimSpace(p.Host))
	if host == "" {
		return fmt.Errorf("profile: empty host")
	}
	if _, err := p.Selectors(); err != nil {
		return err
	}
	preds, err := json.Marshal(p.Predicates)
	if err != nil {
		return fmt.Errorf("profile: marshal predicates: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO toc_profiles (host, predicates, secondary_attr, container, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(host) DO UPDATE SET
			predicates = excluded.predicates,
			secondary_attr = excluded.secondary_attr,
			container = excluded.container,
			updated_at = excluded.updated_at`,
		host, string(preds), p.SecondaryAttr, p.Container, s.now().UnixNano())
	if err != nil {
		return fmt.Errorf("profile: upsert %s: %w", host, err)
	}
	return nil
}

// Delete removes the profile for host.
func (s *Store) Delete(ctx context.Context, host string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM toc_profiles WHERE host = ?`, strings.ToLower(host)); err != nil {
		return fmt.Errorf("profile: delete %s: %w", host, err)
	}
	return nil
}

// Lookup returns the profile for host, falling back to its parent
// domains: chat.example.com, then example.com.
func (s *Store) Lookup(ctx context.Context, host string) (*Profile, error) {
	host = strings.ToLower(host)
	for h := host; h != ""; {
		p, err := s.get(ctx, h)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		i := strings.IndexByte(h, '.')
		if i < 0 || !strings.Contains(h[i+1:], ".") {
			break
		}
		h = h[i+1:]
	}
	return nil, ErrNotFound
}

func (s *Store) get(ctx context.Context, host string) (*Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT host, predicates, secondary_attr, container, updated_at
		FROM toc_profiles WHERE host = ?`, host)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns every profile ordered by host.
func (s *Store) List(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT host, predicates, secondary_attr, container, updated_at
		FROM toc_profiles ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("profile: list: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(sc scanner) (*Profile, error) {
	var p Profile
	var preds string
	var updated int64
	if err := sc.Scan(&p.Host, &preds, &p.SecondaryAttr, &p.Container, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(preds), &p.Predicates); err != nil {
		return nil, fmt.Errorf("profile: %s: decode predicates: %w", p.Host, err)
	}
	p.UpdatedAt = time.Unix(0, updated)
	return &p, nil
}

// HostOf extracts the lower-cased host of a location.
func HostOf(loc string) string {
	u, err := url.Parse(loc)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
