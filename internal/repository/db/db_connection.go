package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// Conservative pool settings for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA foreign_keys = ON;",
		"PRAGMA busy_timeout = 5000;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

const sqliteDriverName = "sqlite"

const schemaAppliances = `
CREATE TABLE IF NOT EXISTS appliances (
    serial TEXT PRIMARY KEY,
    name TEXT,
    api_key TEXT NOT NULL,
    user_id TEXT,
    ip_address TEXT,
    location_id TEXT,
    added_at TIMESTAMP NOT NULL
);
`

const schemaDeviceState = `
CREATE TABLE IF NOT EXISTS device_state (
    serial TEXT PRIMARY KEY,
    on_derived BOOLEAN NOT NULL,
    power BOOLEAN NOT NULL,
    thermostat BOOLEAN NOT NULL,
    pilot BOOLEAN NOT NULL,
    flame_height INTEGER NOT NULL,
    fan_speed INTEGER NOT NULL,
    light INTEGER NOT NULL,
    setpoint_c INTEGER NOT NULL,
    timer_s INTEGER NOT NULL,
    room_temp_c INTEGER NOT NULL,
    error_codes TEXT,
    has_light BOOLEAN NOT NULL,
    has_fan BOOLEAN NOT NULL,
    has_thermostat BOOLEAN NOT NULL,
    ip_address TEXT,
    firmware TEXT,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaRetainedValues = `
CREATE TABLE IF NOT EXISTS retained_values (
    serial TEXT PRIMARY KEY,
    fan_speed INTEGER NOT NULL,
    light INTEGER NOT NULL,
    setpoint_c INTEGER NOT NULL
);
`

const schemaCloudSession = `
CREATE TABLE IF NOT EXISTS cloud_session (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    cookies TEXT,
    generation INTEGER NOT NULL DEFAULT 0,
    email TEXT,
    password TEXT
);
`

const schemaFireplaceEvents = `
CREATE TABLE IF NOT EXISTS fireplace_events (
    id TEXT PRIMARY KEY,
    serial TEXT,
    occurred_at TIMESTAMP NOT NULL,
    type TEXT NOT NULL,
    message TEXT NOT NULL,
    meta TEXT
);
`

const schemaUsers = `
CREATE TABLE IF NOT EXISTS users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username TEXT UNIQUE NOT NULL,
    password_hash TEXT NOT NULL
);
`

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		// In case of panic, rollback to avoid leaving an open transaction
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{
		schemaAppliances,
		schemaDeviceState,
		schemaRetainedValues,
		schemaCloudSession,
		schemaFireplaceEvents,
		schemaUsers,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}
