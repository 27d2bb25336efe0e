// Package sqlite persists the last good lead snapshot so the chat list
// can paint stage buckets immediately at startup, before the first CRM
// fetch finishes.
package sqlite

import (
	"database/sql"
	"fmt"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/maniya81/whatsapp-crm-extension/internal/log"
)

// schema is applied on every open; all statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS leads (
	id TEXT PRIMARY KEY,
	stage_slug TEXT NOT NULL,
	display_name TEXT NOT NULL,
	phone TEXT NOT NULL DEFAULT '',
	conversation_id TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS stages (
	slug TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	ord INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshot_meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	fetched_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_conversation ON leads(conversation_id);
`

// Open opens (creating if needed) the warm-cache database at path and
// bootstraps the schema.
func Open(path string) (*sql.DB, error) {
	log.Debug(log.CatDB, "Opening warm cache", "path", path)
	db, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		log.ErrorErr(log.CatDB, "Failed to open warm cache", err, "path", path)
		return nil, fmt.Errorf("opening warm cache: %w", err)
	}
	if err := db.Ping(); err != nil {
		log.ErrorErr(log.CatDB, "Failed to ping warm cache", err, "path", path)
		_ = db.Close()
		return nil, fmt.Errorf("pinging warm cache: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bootstrapping warm cache schema: %w", err)
	}
	log.Info(log.CatDB, "Warm cache ready", "path", path)
	return db, nil
}

// OpenInMemory opens a throwaway in-memory database with the schema
// applied. Tests use it in place of a file.
func OpenInMemory() (*sql.DB, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
