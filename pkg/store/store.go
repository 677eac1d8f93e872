// Package store persists discovered healers, budget actions and operator
// settings in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/codeGROOVE-dev/healerscout/pkg/budget"
	"github.com/codeGROOVE-dev/healerscout/pkg/profile"
)

const schema = `
CREATE TABLE IF NOT EXISTS healers (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	dedup_key        TEXT NOT NULL UNIQUE,
	name             TEXT NOT NULL,
	email            TEXT,
	emails           TEXT NOT NULL DEFAULT '[]',
	phones           TEXT NOT NULL DEFAULT '[]',
	website          TEXT,
	location         TEXT,
	specialties      TEXT NOT NULL DEFAULT '[]',
	credentials      TEXT NOT NULL DEFAULT '[]',
	source           TEXT NOT NULL,
	url              TEXT,
	bio              TEXT,
	followers        INTEGER,
	posts            INTEGER,
	years_experience INTEGER NOT NULL DEFAULT 0,
	confidence       REAL NOT NULL DEFAULT 0,
	status           TEXT NOT NULL DEFAULT 'discovered',
	notes            TEXT,
	discovered_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_healers_source ON healers(source);
CREATE INDEX IF NOT EXISTS idx_healers_status ON healers(status);

CREATE TABLE IF NOT EXISTS budget_actions (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	platform TEXT NOT NULL,
	action   TEXT NOT NULL,
	at       INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_budget_actions_at ON budget_actions(at);

CREATE TABLE IF NOT EXISTS settings (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

// defaultSettings are written once when a database is created.
var defaultSettings = map[string]string{
	budget.SettingCurrentWeek:   "1",
	budget.SettingWeekendMode:   "true",
	budget.SettingEmergencyStop: "false",
}

// StatusDiscovered is the status of newly added healers.
const StatusDiscovered = "discovered"

// Store is a SQLite-backed repository. It implements budget.ActionLog and budget.Settings.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open opens (creating if needed) the database at path.
func Open(path string, opts ...Option) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("store: mkdir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if path == ":memory:" {
		// each connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.init(); err != nil {
		db.Close() //nolint:errcheck,gosec // already failing
		return nil, err
	}
	return s, nil
}

// OpenMemory opens an in-memory database.
func OpenMemory(opts ...Option) (*Store, error) {
	return Open(":memory:", opts...)
}

func (s *Store) init() error {
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("store: %s: %w", p, err)
		}
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("store: schema: %w", err)
	}
	ts := s.now().UTC().Format(time.RFC3339)
	for k, v := range defaultSettings {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO settings (key, value, updated_at) VALUES (?, ?, ?)`, k, v, ts); err != nil {
			return fmt.Errorf("store: default setting %s: %w", k, err)
		}
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DedupKey returns the uniqueness key for p: its first email, or else its
// lower-cased name and location.
func DedupKey(p *profile.Profile) string {
	if e := p.PrimaryEmail(); e != "" {
		return "email:" + e
	}
	name := strings.ToLower(strings.TrimSpace(p.Name))
	loc := strings.ToLower(strings.TrimSpace(p.Location))
	if name == "" && p.URL != "" {
		return "url:" + strings.ToLower(p.URL)
	}
	return "name:" + name + "|" + loc
}

// AddHealer inserts p unless a healer with the same DedupKey exists, in which
// case it returns profile.ErrDuplicate and leaves the stored row untouched.
func (s *Store) AddHealer(ctx context.Context, p *profile.Profile) (int64, error) {
	discovered := p.DiscoveredAt
	if discovered.IsZero() {
		discovered = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO healers (
			dedup_key, name, email, emails, phones, website, location, specialties, credentials,
			source, url, bio, followers, posts, years_experience, confidence, status, notes, discovered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`,
		DedupKey(p), p.Name, nullString(p.PrimaryEmail()), jsonList(p.Emails), jsonList(p.Phones),
		nullString(p.Website), nullString(p.Location), jsonList(p.Specialties), jsonList(p.Credentials),
		string(p.Source), nullString(p.URL), nullString(p.Bio), nullInt(p.Followers), nullInt(p.Posts),
		p.YearsExperience, p.Confidence, StatusDiscovered, nullString(p.Notes),
		discovered.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert healer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("insert healer: %w", err)
	}
	if n == 0 {
		return 0, profile.ErrDuplicate
	}
	return res.LastInsertId()
}

// Filter narrows Healers results. Zero values match everything.
type Filter struct {
	Source        profile.Source
	Status        string
	MinConfidence float64
	Limit         int
}

// Healers returns stored healers, highest confidence first.
func (s *Store) Healers(ctx context.Context, f Filter) ([]*profile.Profile, error) {
	q := `SELECT name, emails, phones, website, location, specialties, credentials, source, url, bio,
		followers, posts, years_experience, confidence, notes, discovered_at
		FROM healers WHERE confidence >= ?`
	args := []any{f.MinConfidence}
	if f.Source != "" {
		q += " AND source = ?"
		args = append(args, string(f.Source))
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	q += " ORDER BY confidence DESC, id ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query healers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []*profile.Profile
	for rows.Next() {
		var (
			p                                          profile.Profile
			emails, phones, specialties, creds, source string
			website, location, url, bio, notes         sql.NullString
			followers, posts                           sql.NullInt64
			discovered                                 string
		)
		if err := rows.Scan(&p.Name, &emails, &phones, &website, &location, &specialties, &creds, &source,
			&url, &bio, &followers, &posts, &p.YearsExperience, &p.Confidence, &notes, &discovered); err != nil {
			return nil, fmt.Errorf("scan healer: %w", err)
		}
		p.Source = profile.Source(source)
		p.Emails = parseList(emails)
		p.Phones = parseList(phones)
		p.Specialties = parseList(specialties)
		p.Credentials = parseList(creds)
		p.Website, p.Location, p.URL, p.Bio, p.Notes = website.String, location.String, url.String, bio.String, notes.String
		p.Followers = intPtr(followers)
		p.Posts = intPtr(posts)
		if t, err := time.Parse(time.RFC3339Nano, discovered); err == nil {
			p.DiscoveredAt = t
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// Stats summarizes the healer table and today's budget activity.
type Stats struct {
	Total        int            `json:"total"`
	WithEmail    int            `json:"with_email"`
	WithPhone    int            `json:"with_phone"`
	BySource     map[string]int `json:"by_source"`
	ByStatus     map[string]int `json:"by_status"`
	ActionsToday map[string]int `json:"actions_today"` // key: platform/action
}

// Stats returns aggregate counts.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{BySource: map[string]int{}, ByStatus: map[string]int{}, ActionsToday: map[string]int{}}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*),
		COALESCE(SUM(CASE WHEN email IS NOT NULL THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN phones != '[]' THEN 1 ELSE 0 END), 0)
		FROM healers`).Scan(&st.Total, &st.WithEmail, &st.WithPhone)
	if err != nil {
		return nil, fmt.Errorf("count healers: %w", err)
	}

	if err := s.groupCount(ctx, `SELECT source, COUNT(*) FROM healers GROUP BY source`, st.BySource); err != nil {
		return nil, err
	}
	if err := s.groupCount(ctx, `SELECT status, COUNT(*) FROM healers GROUP BY status`, st.ByStatus); err != nil {
		return nil, err
	}

	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := s.groupCount(ctx,
		`SELECT platform || '/' || action, COUNT(*) FROM budget_actions WHERE at >= ? GROUP BY platform, action`,
		st.ActionsToday, midnight.UnixNano()); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) groupCount(ctx context.Context, q string, into map[string]int, args ...any) error {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("group count: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return fmt.Errorf("group count: %w", err)
		}
		into[k] = n
	}
	return rows.Err()
}

// AppendAction implements budget.ActionLog.
func (s *Store) AppendAction(ctx context.Context, a budget.Action) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO budget_actions (platform, action, at) VALUES (?, ?, ?)`,
		a.Platform, a.Action, a.At.UnixNano())
	if err != nil {
		return fmt.Errorf("append action: %w", err)
	}
	return nil
}

// LoadActions implements budget.ActionLog.
func (s *Store) LoadActions(ctx context.Context, since time.Time) ([]budget.Action, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, action, at FROM budget_actions WHERE at > ? ORDER BY at`, since.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("load actions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []budget.Action
	for rows.Next() {
		var a budget.Action
		var at int64
		if err := rows.Scan(&a.Platform, &a.Action, &at); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.At = time.Unix(0, at)
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneActions deletes actions recorded before cutoff.
func (s *Store) PruneActions(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM budget_actions WHERE at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune actions: %w", err)
	}
	return res.RowsAffected()
}

// Setting implements budget.Settings.
func (s *Store) Setting(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read setting %s: %w", key, err)
	}
	return v, true, nil
}

// SetSetting implements budget.Settings.
func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, s.now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

func jsonList(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func parseList(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil || len(out) == 0 {
		return nil
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(n *int) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*n), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
