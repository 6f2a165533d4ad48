package profile

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"
)

// ChangeDetector reads a version token; two different values mean the
// table changed.
type ChangeDetector func(ctx context.Context, db *sql.DB) (int64, error)

// TableToken changes on every insert, update or delete of toc_profiles,
// whichever connection made it.
func TableToken(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(updated_at), 0) + COUNT(*) FROM toc_profiles`).Scan(&v)
	return v, err
}

// PragmaDataVersion changes whenever another connection writes to the
// database file. It misses writes made on the watcher's own connection.
func PragmaDataVersion(ctx context.Context, db *sql.DB) (int64, error) {
	var v int64
	err := db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&v)
	return v, err
}

// WatchOptions tunes a Watcher.
type WatchOptions struct {
	// Interval is the polling frequency. Default: 2s.
	Interval time.Duration
	// Debounce is the quiet period after an edit before the profile is
	// re-applied, so a burst of edits costs one reboot. Default: 0.
	Debounce time.Duration
	// Detector defaults to TableToken.
	Detector ChangeDetector
	Logger   *slog.Logger
}

func (o *WatchOptions) defaults() {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.Detector == nil {
		o.Detector = TableToken
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Target is the outline a Watcher keeps in step with the store.
type Target interface {
	// Host returns the host of the page shown now.
	Host(ctx context.Context) (string, error)
	// Apply installs p. A nil p restores the configured selectors.
	Apply(ctx context.Context, p *Profile) error
}

// Watcher re-applies the profile covering the target's current host
// whenever that profile is edited, deleted or replaced, or the target
// moves to a host covered by a different profile. Edits to other hosts'
// profiles cost a lookup and nothing else.
type Watcher struct {
	store *Store
	opts  WatchOptions

	checks  atomic.Int64
	changes atomic.Int64
	errors  atomic.Int64
	reloads atomic.Int64
}

// WatchStats are point-in-time counters.
type WatchStats struct {
	Checks          int64 `json:"checks"`
	ChangesDetected int64 `json:"changes_detected"`
	Errors          int64 `json:"errors"`
	Reloads         int64 `json:"reloads"`
}

// NewWatcher creates a Watcher over s.
func NewWatcher(s *Store, opts WatchOptions) *Watcher {
	opts.defaults()
	return &Watcher{store: s, opts: opts}
}

func (w *Watcher) Stats() WatchStats {
	return WatchStats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
}

// probe is what one poll observed: the page host and the table token.
// Equal probes need no lookup.
type probe struct {
	host  string
	token int64
}

// fingerprint identifies the effective profile: the matched host and its
// edit time. "" means no profile covers the host.
func fingerprint(p *Profile) string {
	if p == nil {
		return ""
	}
	return p.Host + "@" + strconv.FormatInt(p.UpdatedAt.UnixNano(), 10)
}

// Run blocks until ctx is done. The profile in force when Run starts is
// taken as already applied.
func (w *Watcher) Run(ctx context.Context, t Target) {
	log := w.opts.Logger

	seen, _ := w.probe(ctx, t)
	applied := ""
	if p, err := w.effective(ctx, seen.host); err == nil {
		applied = fingerprint(p)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounce *time.Timer
	var debounceCh <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.probe(ctx, t)
			if err != nil {
				w.errors.Add(1)
				log.Warn("profile: poll failed", "error", err)
				continue
			}
			if cur == seen {
				continue
			}
			seen = cur
			w.changes.Add(1)
			if w.opts.Debounce <= 0 {
				applied = w.reconcile(ctx, t, cur.host, applied, &seen)
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			debounceCh = debounce.C

		case <-debounceCh:
			debounceCh = nil
			applied = w.reconcile(ctx, t, seen.host, applied, &seen)
		}
	}
}

func (w *Watcher) probe(ctx context.Context, t Target) (probe, error) {
	host, err := t.Host(ctx)
	if err != nil {
		return probe{}, err
	}
	tok, err := w.opts.Detector(ctx, w.store.db)
	if err != nil {
		return probe{}, err
	}
	return probe{host: host, token: tok}, nil
}

func (w *Watcher) effective(ctx context.Context, host string) (*Profile, error) {
	p, err := w.store.Lookup(ctx, host)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return p, err
}

// reconcile applies the effective profile for host when it differs from
// applied, and returns the fingerprint now in force. On failure seen is
// cleared so the next poll retries.
func (w *Watcher) reconcile(ctx context.Context, t Target, host, applied string, seen *probe) string {
	log := w.opts.Logger
	p, err := w.effective(ctx, host)
	if err != nil {
		w.errors.Add(1)
		log.Warn("profile: lookup failed", "host", host, "error", err)
		*seen = probe{}
		return applied
	}
	fp := fingerprint(p)
	if fp == applied {
		return applied
	}
	if err := t.Apply(ctx, p); err != nil {
		w.errors.Add(1)
		log.Error("profile: apply failed", "host", host, "error", err)
		*seen = probe{}
		return applied
	}
	w.reloads.Add(1)
	if p == nil {
		log.Info("profile: cleared", "host", host)
	} else {
		log.Info("profile: applied", "host", host, "profile", p.Host, "predicates", len(p.Predicates))
	}
	return fp
}
