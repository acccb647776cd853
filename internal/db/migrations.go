package db

import (
	"context"
	"fmt"
)

// Migrate applies all required schema objects. It is idempotent.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		// settings: API token hash, CurseForge key
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		// targets: servers reachable over SSH
		`CREATE TABLE IF NOT EXISTS targets (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE,
			host TEXT NOT NULL,
			port INTEGER NOT NULL DEFAULT 22,
			ssh_user TEXT NOT NULL,
			root_dir TEXT NOT NULL,
			unit TEXT NOT NULL,
			run_as TEXT NOT NULL DEFAULT '',
			rcon_port INTEGER NOT NULL DEFAULT 0,
			rcon_password TEXT NOT NULL DEFAULT '',
			profiles_supported INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL
		);`,
		// installs: one row per install run
		`CREATE TABLE IF NOT EXISTS installs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL UNIQUE,
			target_id INTEGER NOT NULL,
			provider TEXT NOT NULL,
			modpack_id TEXT NOT NULL,
			version_id TEXT NOT NULL,
			delete_existing INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			reason TEXT,
			format TEXT,
			manifest_hash TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(target_id) REFERENCES targets(id) ON DELETE CASCADE
		);`,
		// install_steps: append-only step log for each install
		`CREATE TABLE IF NOT EXISTS install_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			install_id INTEGER NOT NULL,
			ts DATETIME NOT NULL,
			name TEXT NOT NULL,
			status TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			FOREIGN KEY(install_id) REFERENCES installs(id) ON DELETE CASCADE
		);`,
		// jobs: internal queue
		`CREATE TABLE IF NOT EXISTS jobs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			status TEXT NOT NULL,
			install_id INTEGER,
			run_after DATETIME NOT NULL,
			last_error TEXT,
			attempts INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(install_id) REFERENCES installs(id) ON DELETE SET NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_installs_target ON installs(target_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_install_steps_install ON install_steps(install_id, id);`,
	}

	for i, stmt := range stmts {
		if _, err := d.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
