package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type SessionSQLite struct {
	db *sql.DB
}

func NewSessionSQLite(db *sql.DB) *SessionSQLite { return &SessionSQLite{db: db} }

var _ SessionRepo = (*SessionSQLite)(nil)

// Single-row table: the cloud session is account-wide, not per-appliance.
const (
	sessionRowID = 1

	upsertSessionSQL = `
		INSERT INTO cloud_session (id, cookies, generation)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			cookies=excluded.cookies,
			generation=excluded.generation
	`
	selectSessionSQL = `SELECT cookies, generation FROM cloud_session WHERE id = ?`

	upsertCredentialsSQL = `
		INSERT INTO cloud_session (id, email, password, generation)
		VALUES (?, ?, ?, 0)
		ON CONFLICT(id) DO UPDATE SET
			email=excluded.email,
			password=excluded.password
	`
	selectCredentialsSQL = `SELECT COALESCE(email, ''), COALESCE(password, '') FROM cloud_session WHERE id = ?`
	clearCredentialsSQL  = `UPDATE cloud_session SET email = NULL, password = NULL WHERE id = ?`
)

func (r *SessionSQLite) SaveSession(ctx context.Context, cookies map[string]string, generation uint64) error {
	b, err := json.Marshal(cookies)
	if err != nil {
		return fmt.Errorf("marshal session cookies: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, upsertSessionSQL, sessionRowID, string(b), generation); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (r *SessionSQLite) LoadSession(ctx context.Context) (map[string]string, uint64, error) {
	var cookiesJSON sql.NullString
	var generation uint64
	err := r.db.QueryRowContext(ctx, selectSessionSQL, sessionRowID).Scan(&cookiesJSON, &generation)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("load session: %w", err)
	}
	cookies := map[string]string{}
	if cookiesJSON.Valid && cookiesJSON.String != "" {
		if err := json.Unmarshal([]byte(cookiesJSON.String), &cookies); err != nil {
			return nil, 0, fmt.Errorf("unmarshal session cookies: %w", err)
		}
	}
	return cookies, generation, nil
}

func (r *SessionSQLite) SaveCredentials(ctx context.Context, email, password string) error {
	if _, err := r.db.ExecContext(ctx, upsertCredentialsSQL, sessionRowID, email, password); err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return nil
}

func (r *SessionSQLite) LoadCredentials(ctx context.Context) (string, string, error) {
	var email, password string
	err := r.db.QueryRowContext(ctx, selectCredentialsSQL, sessionRowID).Scan(&email, &password)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("load credentials: %w", err)
	}
	return email, password, nil
}

func (r *SessionSQLite) ClearCredentials(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, clearCredentialsSQL, sessionRowID); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}
	return nil
}
