package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Store defines the interface for sitetime aggregate operations.
type Store interface {
	Upsert(ctx context.Context, d Delta) error
	QueryRange(ctx context.Context, r Range) (map[string]VisitSummary, error)
	Records(ctx context.Context, r Range, hostname string) ([]BrowsingRecord, error)
	ClearAll(ctx context.Context) error
	PruneBefore(ctx context.Context, day string) (int64, error)
	CountBefore(ctx context.Context, day string) (int64, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLocation sets the timezone used to derive calendar days. The default
// is time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *SQLiteStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	loc *time.Location

	// Serializes writes so a debounced visit and a session-close delta
	// never interleave on the same key.
	writeMu sync.Mutex

	upsert    *sql.Stmt
	countDays *sql.Stmt
}

// NewSQLiteStore creates a new SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB, opts ...Option) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.upsert, err = s.db.Prepare(`
		INSERT INTO browsing_records
			(hostname, day, title, icon, visit_count, time_spent_ms, first_seen_ms, last_seen_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (hostname, day) DO UPDATE SET
			visit_count   = visit_count + excluded.visit_count,
			time_spent_ms = time_spent_ms + excluded.time_spent_ms,
			title         = CASE WHEN excluded.title <> '' THEN excluded.title ELSE title END,
			icon          = CASE WHEN excluded.icon <> '' THEN excluded.icon ELSE icon END,
			first_seen_ms = MIN(first_seen_ms, excluded.first_seen_ms),
			last_seen_ms  = MAX(last_seen_ms, excluded.last_seen_ms)
	`)
	if err != nil {
		return err
	}

	s.countDays, err = s.db.Prepare(`SELECT COUNT(*) FROM browsing_records WHERE day < ?`)
	if err != nil {
		return err
	}

	return nil
}

// Location returns the timezone calendar days are derived in.
func (s *SQLiteStore) Location() *time.Location {
	return s.loc
}

// Day returns the calendar-day partition for a millisecond timestamp.
func (s *SQLiteStore) Day(ms int64) string {
	return CalendarDay(ms, s.loc)
}

// CalendarDay formats a millisecond timestamp as YYYY-MM-DD in loc.
func CalendarDay(ms int64, loc *time.Location) string {
	return time.UnixMilli(ms).In(loc).Format(DayLayout)
}

// Upsert applies a delta to the record at (hostname, calendarDay(WhenMs)),
// creating it if absent. Counters are added, never overwritten; title and
// icon change only when the delta carries a non-empty value; LastSeenMs
// never moves backwards.
func (s *SQLiteStore) Upsert(ctx context.Context, d Delta) error {
	if d.Hostname == "" {
		return fmt.Errorf("upsert: empty hostname")
	}
	day := s.Day(d.WhenMs)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, err := s.upsert.ExecContext(ctx,
		d.Hostname, day, d.Title, d.Icon,
		d.VisitCount, d.TimeSpentMs, d.WhenMs, d.WhenMs,
	)
	if err != nil {
		return opError("upsert", err)
	}

	upsertCounter.Inc()
	lastWriteGauge.SetToCurrentTime()
	return nil
}

// QueryRange folds every record whose day falls within the range into one
// summary per hostname.
func (s *SQLiteStore) QueryRange(ctx context.Context, r Range) (map[string]VisitSummary, error) {
	records, err := s.Records(ctx, r, "")
	if err != nil {
		return nil, err
	}
	return Summarize(records), nil
}

// Records returns raw per-day records in the range ordered by day, then
// hostname. A non-empty hostname restricts the result to that hostname.
func (s *SQLiteStore) Records(ctx context.Context, r Range, hostname string) ([]BrowsingRecord, error) {
	var clauses []string
	var args []interface{}

	if !r.From.IsZero() {
		clauses = append(clauses, "day >= ?")
		args = append(args, r.From.In(s.loc).Format(DayLayout))
	}
	if !r.To.IsZero() {
		clauses = append(clauses, "day <= ?")
		args = append(args, r.To.In(s.loc).Format(DayLayout))
	}
	if hostname != "" {
		clauses = append(clauses, "hostname = ?")
		args = append(args, hostname)
	}

	query := `
		SELECT hostname, day, title, icon, visit_count, time_spent_ms, first_seen_ms, last_seen_ms
		FROM browsing_records
	`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY day ASC, hostname ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, opError("query", err)
	}
	defer rows.Close()

	records := []BrowsingRecord{}
	for rows.Next() {
		var rec BrowsingRecord
		if err := rows.Scan(
			&rec.Hostname, &rec.Day, &rec.Title, &rec.Icon,
			&rec.VisitCount, &rec.TimeSpentMs, &rec.FirstSeenMs, &rec.LastSeenMs,
		); err != nil {
			return nil, opError("query", fmt.Errorf("scan record: %w", err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, opError("query", err)
	}

	return records, nil
}

// ClearAll deletes every browsing record.
func (s *SQLiteStore) ClearAll(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return opError("clear", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM browsing_records")
	if err != nil {
		return opError("clear", err)
	}
	n, _ := res.RowsAffected()

	if err := audit(ctx, tx, "clear_all", fmt.Sprintf("%d records", n)); err != nil {
		return opError("clear", err)
	}

	return opError("clear", tx.Commit())
}

// PruneBefore deletes records whose day is strictly before day
// (YYYY-MM-DD) and returns how many were removed.
func (s *SQLiteStore) PruneBefore(ctx context.Context, day string) (int64, error) {
	if _, err := time.Parse(DayLayout, day); err != nil {
		return 0, fmt.Errorf("prune: invalid day %q: %w", day, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, opError("prune", fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, "DELETE FROM browsing_records WHERE day < ?", day)
	if err != nil {
		return 0, opError("prune", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, opError("prune", err)
	}

	if err := audit(ctx, tx, "prune", fmt.Sprintf("%d records before %s", n, day)); err != nil {
		return 0, opError("prune", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, opError("prune", err)
	}
	return n, nil
}

// CountBefore reports how many records PruneBefore(day) would delete.
func (s *SQLiteStore) CountBefore(ctx context.Context, day string) (int64, error) {
	var n int64
	if err := s.countDays.QueryRowContext(ctx, day).Scan(&n); err != nil {
		return 0, opError("count", err)
	}
	return n, nil
}

// GetStats returns aggregate statistics about the database.
func (s *SQLiteStore) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT hostname), COUNT(DISTINCT day),
		       COALESCE(SUM(time_spent_ms), 0), COALESCE(SUM(visit_count), 0),
		       COALESCE(MIN(day), ''), COALESCE(MAX(day), '')
		FROM browsing_records
	`).Scan(
		&stats.TotalRecords, &stats.TotalHostnames, &stats.TotalDays,
		&stats.TotalTimeMs, &stats.TotalVisits,
		&stats.OldestDay, &stats.NewestDay,
	)
	if err != nil {
		return nil, opError("stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT hostname, SUM(time_spent_ms) AS t, SUM(visit_count) AS v
		FROM browsing_records
		GROUP BY hostname
		ORDER BY t DESC, v DESC, hostname ASC
		LIMIT 10
	`)
	if err != nil {
		return nil, opError("stats", err)
	}
	defer rows.Close()

	for rows.Next() {
		var h HostnameTotal
		if err := rows.Scan(&h.Hostname, &h.TimeSpentMs, &h.VisitCount); err != nil {
			return nil, opError("stats", err)
		}
		stats.TopHostnames = append(stats.TopHostnames, h)
	}

	if err := rows.Err(); err != nil {
		return nil, opError("stats", err)
	}
	return stats, nil
}

// LastAction returns when an audit action (clear_all, prune) last ran.
func (s *SQLiteStore) LastAction(ctx context.Context, action string) (time.Time, bool, error) {
	var tsStr string
	err := s.db.QueryRowContext(ctx,
		"SELECT ts FROM audit_log WHERE action = ? ORDER BY id DESC LIMIT 1", action,
	).Scan(&tsStr)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, opError("audit", err)
	}
	ts, err := parseTimestamp(tsStr)
	if err != nil {
		return time.Time{}, false, opError("audit", err)
	}
	return ts, true, nil
}

func audit(ctx context.Context, tx *sql.Tx, action, detail string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO audit_log (action, detail) VALUES (?, ?)", action, detail,
	)
	if err != nil {
		return fmt.Errorf("audit %s: %w", action, err)
	}
	return nil
}

// parseTimestamp tries several common SQLite timestamp formats.
func parseTimestamp(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05Z",
	}
	for _, f := range formats {
		if t, err := time.Parse(f, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp: %s", s)
}

// Close releases all prepared statements. The underlying *sql.DB is NOT
// closed; that is the caller's responsibility.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.upsert, s.countDays} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return nil
}
