// Package store provides SQLite-backed persistence for the terse ledger.
package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/scbrown/terse/internal/model"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// tsLayout is fixed-width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store using a local SQLite database. Concurrent
// writers in separate processes are serialized by SQLite's WAL locking;
// busy_timeout bounds how long a writer waits for the lock.
type SQLiteStore struct {
	db *sql.DB
}

// New opens (or creates) a SQLite database at dbPath.
// It auto-creates the parent directory (e.g. ~/.terse/) and runs
// schema migrations to ensure the database is up to date.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Single connection for WAL mode simplicity.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate brings the schema up to schemaVersion. Every statement is
// idempotent so processes racing on a fresh ledger converge.
func (s *SQLiteStore) migrate() error {
	var ver int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&ver); err != nil {
		return fmt.Errorf("read version: %w", err)
	}
	if ver < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) migrateV1() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS invocations (
			id               TEXT PRIMARY KEY,
			tool             TEXT NOT NULL,
			subcommand       TEXT,
			args             TEXT,
			command          TEXT NOT NULL,
			raw_tokens       INTEGER NOT NULL,
			condensed_tokens INTEGER NOT NULL,
			saved_tokens     INTEGER NOT NULL,
			savings_pct      REAL NOT NULL,
			exit_code        INTEGER NOT NULL,
			outcome          TEXT NOT NULL,
			rule_id          TEXT,
			duration_ms      INTEGER NOT NULL,
			instance_id      TEXT,
			cwd              TEXT,
			timestamp        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_timestamp ON invocations(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_tool ON invocations(tool)`,
		`CREATE INDEX IF NOT EXISTS idx_invocations_outcome ON invocations(outcome)`,
		fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate v1: %w", err)
		}
	}
	return nil
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewID returns a time-sortable ULID for t.
func NewID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// prepare fills in defaults and checks the record before it is written.
func prepare(inv model.Invocation) (model.Invocation, error) {
	if inv.Timestamp.IsZero() {
		inv.Timestamp = time.Now()
	}
	if inv.ID == "" {
		inv.ID = NewID(inv.Timestamp)
	}
	if inv.Command == "" {
		inv.Command = inv.Tool
	}
	if err := inv.Validate(); err != nil {
		return inv, err
	}
	return inv, nil
}

// Append persists a single invocation as one atomic row insert.
func (s *SQLiteStore) Append(ctx context.Context, inv model.Invocation) error {
	inv, err := prepare(inv)
	if err != nil {
		return err
	}
	var args any
	if len(inv.Args) > 0 {
		data, err := json.Marshal(inv.Args)
		if err != nil {
			return fmt.Errorf("encode args: %w", err)
		}
		args = string(data)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, tool, subcommand, args, command, raw_tokens, condensed_tokens,
			saved_tokens, savings_pct, exit_code, outcome, rule_id, duration_ms, instance_id, cwd, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.Tool,
		nullableString(inv.Subcommand),
		args,
		inv.Command,
		inv.RawTokens,
		inv.CondensedTokens,
		inv.SavedTokens(),
		inv.SavingsPct,
		inv.ExitCode,
		string(inv.Outcome),
		nullableString(inv.RuleID),
		inv.DurationMs,
		nullableString(inv.InstanceID),
		nullableString(inv.CWD),
		formatTime(inv.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert invocation: %w", err)
	}
	return nil
}

// where builds the shared WHERE clause for QueryOpts.
func where(opts QueryOpts) (string, []any) {
	clause := " WHERE 1=1"
	var args []any
	if !opts.Since.IsZero() {
		clause += " AND timestamp >= ?"
		args = append(args, formatTime(opts.Since))
	}
	if opts.Tool != "" {
		clause += " AND tool = ?"
		args = append(args, opts.Tool)
	}
	return clause, args
}

// Summary returns ledger-wide totals.
func (s *SQLiteStore) Summary(ctx context.Context, opts QueryOpts) (Summary, error) {
	var sum Summary
	clause, args := where(opts)

	// One read transaction so every aggregate comes from the same snapshot.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return sum, fmt.Errorf("summary: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var earliest, latest sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(outcome = 'filtered'), 0),
			COALESCE(SUM(raw_tokens), 0),
			COALESCE(SUM(condensed_tokens), 0),
			COALESCE(SUM(saved_tokens), 0),
			COALESCE(SUM(duration_ms), 0),
			MIN(timestamp), MAX(timestamp)
		 FROM invocations`+clause, args...).
		Scan(&sum.Invocations, &sum.Filtered, &sum.RawTokens, &sum.CondensedTokens,
			&sum.SavedTokens, &sum.TotalDurationMs, &earliest, &latest)
	if err != nil {
		return sum, fmt.Errorf("summary: %w", err)
	}
	sum.SavingsPct = pct(sum.SavedTokens, sum.RawTokens)
	if earliest.Valid {
		sum.Earliest, _ = parseTime(earliest.String)
		sum.Latest, _ = parseTime(latest.String)
	}

	rows, err := tx.QueryContext(ctx,
		"SELECT outcome, COUNT(*) AS cnt FROM invocations"+clause+" GROUP BY outcome ORDER BY cnt DESC, outcome", args...)
	if err != nil {
		return sum, fmt.Errorf("outcomes: %w", err)
	}
	for rows.Next() {
		var nc NameCount
		if err := rows.Scan(&nc.Name, &nc.Count); err != nil {
			rows.Close()
			return sum, fmt.Errorf("scan outcome: %w", err)
		}
		sum.ByOutcome = append(sum.ByOutcome, nc)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return sum, err
	}

	// Time-window counts.
	now := time.Now()
	for _, w := range []struct {
		dur time.Duration
		dst *int
	}{
		{24 * time.Hour, &sum.Last24h},
		{7 * 24 * time.Hour, &sum.Last7d},
		{30 * 24 * time.Hour, &sum.Last30d},
	} {
		wc, wargs := where(QueryOpts{Since: now.Add(-w.dur), Tool: opts.Tool})
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM invocations"+wc, wargs...).Scan(w.dst); err != nil {
			return sum, fmt.Errorf("count since %v: %w", w.dur, err)
		}
	}
	return sum, nil
}

// ByTool returns per-tool totals ordered by saved tokens, then count.
func (s *SQLiteStore) ByTool(ctx context.Context, opts QueryOpts) ([]ToolStats, error) {
	clause, args := where(opts)
	rows, err := s.db.QueryContext(ctx,
		`SELECT tool, COUNT(*) AS cnt,
			SUM(outcome = 'filtered'),
			SUM(raw_tokens), SUM(condensed_tokens), SUM(saved_tokens) AS saved,
			AVG(duration_ms)
		 FROM invocations`+clause+`
		 GROUP BY tool
		 ORDER BY saved DESC, cnt DESC, tool`, args...)
	if err != nil {
		return nil, fmt.Errorf("by tool: %w", err)
	}
	defer rows.Close()

	var out []ToolStats
	for rows.Next() {
		var ts ToolStats
		if err := rows.Scan(&ts.Tool, &ts.Invocations, &ts.Filtered, &ts.RawTokens,
			&ts.CondensedTokens, &ts.SavedTokens, &ts.AvgDurationMs); err != nil {
			return nil, fmt.Errorf("scan tool stats: %w", err)
		}
		ts.SavingsPct = pct(ts.SavedTokens, ts.RawTokens)
		out = append(out, ts)
	}
	return out, rows.Err()
}

// Daily returns per-day (UTC) totals for the last days days, newest first.
func (s *SQLiteStore) Daily(ctx context.Context, days int) ([]DayStats, error) {
	if days <= 0 {
		days = 30
	}
	since := time.Now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
	rows, err := s.db.QueryContext(ctx,
		`SELECT substr(timestamp, 1, 10) AS day, COUNT(*),
			SUM(raw_tokens), SUM(condensed_tokens), SUM(saved_tokens)
		 FROM invocations
		 WHERE timestamp >= ?
		 GROUP BY day
		 ORDER BY day DESC`, formatTime(since))
	if err != nil {
		return nil, fmt.Errorf("daily: %w", err)
	}
	defer rows.Close()

	var out []DayStats
	for rows.Next() {
		var d DayStats
		if err := rows.Scan(&d.Day, &d.Invocations, &d.RawTokens, &d.CondensedTokens, &d.SavedTokens); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		d.SavingsPct = pct(d.SavedTokens, d.RawTokens)
		out = append(out, d)
	}
	return out, rows.Err()
}

// History returns the most recent invocations, newest first. Ties on
// timestamp are broken by the time-sortable ID.
func (s *SQLiteStore) History(ctx context.Context, opts HistoryOpts) ([]model.Invocation, error) {
	clause, args := where(QueryOpts{Since: opts.Since, Tool: opts.Tool})
	if opts.Outcome != "" {
		clause += " AND outcome = ?"
		args = append(args, string(opts.Outcome))
	}
	query := `SELECT id, tool, subcommand, args, command, raw_tokens, condensed_tokens, savings_pct,
			exit_code, outcome, rule_id, duration_ms, instance_id, cwd, timestamp
		 FROM invocations` + clause + " ORDER BY timestamp DESC, id DESC"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []model.Invocation
	for rows.Next() {
		var inv model.Invocation
		var sub, argsJSON, ruleID, instanceID, cwd sql.NullString
		var outcome, ts string
		if err := rows.Scan(&inv.ID, &inv.Tool, &sub, &argsJSON, &inv.Command, &inv.RawTokens,
			&inv.CondensedTokens, &inv.SavingsPct, &inv.ExitCode, &outcome, &ruleID,
			&inv.DurationMs, &instanceID, &cwd, &ts); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		inv.Subcommand = sub.String
		inv.RuleID = ruleID.String
		inv.InstanceID = instanceID.String
		inv.CWD = cwd.String
		inv.Outcome = model.Outcome(outcome)
		if argsJSON.Valid && argsJSON.String != "" {
			if err := json.Unmarshal([]byte(argsJSON.String), &inv.Args); err != nil {
				return nil, fmt.Errorf("decode args for %s: %w", inv.ID, err)
			}
		}
		t, err := parseTime(ts)
		if err != nil {
			return nil, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		inv.Timestamp = t
		out = append(out, inv)
	}
	return out, rows.Err()
}

// Discover ranks (tool, subcommand) pairs recorded with outcome
// fallback-no-rule by frequency.
func (s *SQLiteStore) Discover(ctx context.Context, opts DiscoverOpts) ([]Candidate, error) {
	query := `SELECT tool, COALESCE(subcommand, '') AS sub, COUNT(*) AS cnt,
			SUM(raw_tokens) AS raw, MAX(timestamp)
		 FROM invocations
		 WHERE outcome = ?`
	args := []any{string(model.OutcomeNoRule)}
	if !opts.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, formatTime(opts.Since))
	}
	query += " GROUP BY tool, sub ORDER BY cnt DESC, raw DESC, tool, sub"
	if opts.Top > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Top)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var last string
		if err := rows.Scan(&c.Tool, &c.Subcommand, &c.Count, &c.RawTokens, &last); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		c.LastSeen, _ = parseTime(last)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close releases the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// pct returns part as a percentage of whole, 0 when whole is 0.
func pct(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return 100 * float64(part) / float64(whole)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(tsLayout, s)
}

// nullableString returns nil for empty strings, otherwise the string value.
func nullableString[T ~string](s T) any {
	if s == "" {
		return nil
	}
	return string(s)
}
