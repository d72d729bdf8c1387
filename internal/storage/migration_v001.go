package storage

import (
	"context"
	"database/sql"
)

// migrateV001 creates the browsing_records aggregate table keyed by
// (hostname, day), the settings key-value table and the audit log.
func migrateV001(ctx context.Context, tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS browsing_records (
			hostname      TEXT NOT NULL,
			day           TEXT NOT NULL,
			title         TEXT NOT NULL DEFAULT '',
			icon          TEXT NOT NULL DEFAULT '',
			visit_count   INTEGER NOT NULL DEFAULT 0 CHECK (visit_count >= 0),
			time_spent_ms INTEGER NOT NULL DEFAULT 0 CHECK (time_spent_ms >= 0),
			first_seen_ms INTEGER NOT NULL,
			last_seen_ms  INTEGER NOT NULL,
			PRIMARY KEY (hostname, day)
		)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			id     INTEGER PRIMARY KEY AUTOINCREMENT,
			action TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			ts     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_browsing_records_day ON browsing_records(day)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_ts         ON audit_log(ts)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action     ON audit_log(action)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	// Settings defaults. INSERT OR IGNORE keeps user values on re-run.
	const seedSQL = `INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)`
	defaults := [][2]string{
		{SettingHiddenSites, "[]"},
		{SettingShowHiddenSites, "false"},
	}
	for _, kv := range defaults {
		if _, err := tx.ExecContext(ctx, seedSQL, kv[0], kv[1]); err != nil {
			return err
		}
	}

	return nil
}
