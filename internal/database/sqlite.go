// Package database opens the local SQLite database that backs moderation
// state (per-IP sessions, message logs, moderation actions) and the tool
// embedding cache. It uses modernc.org/sqlite, a pure Go, CGo-free driver.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Open opens (creating if necessary) the database at path and runs migrations.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return db, nil
}

func migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_sessions (
			ip_address TEXT PRIMARY KEY,
			session_start TEXT NOT NULL,
			messages_sent INTEGER NOT NULL DEFAULT 0,
			flagged_messages INTEGER NOT NULL DEFAULT 0,
			warnings_issued INTEGER NOT NULL DEFAULT 0,
			last_activity TEXT NOT NULL,
			user_agent TEXT NOT NULL DEFAULT '',
			is_blocked INTEGER NOT NULL DEFAULT 0,
			block_reason TEXT NOT NULL DEFAULT '',
			block_expires TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS message_logs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ip_address TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			message_content TEXT NOT NULL,
			is_flagged INTEGER NOT NULL DEFAULT 0,
			flag_reasons TEXT NOT NULL DEFAULT '[]',
			user_agent TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_message_logs_ip_time
			ON message_logs(ip_address, timestamp)`,
		`CREATE TABLE IF NOT EXISTS moderation_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ip_address TEXT NOT NULL,
			action_type TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			timestamp TEXT NOT NULL,
			admin_id TEXT NOT NULL DEFAULT 'system',
			expires_at TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS tool_embeddings (
			tool_id INTEGER PRIMARY KEY,
			text_hash TEXT NOT NULL,
			vector TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
