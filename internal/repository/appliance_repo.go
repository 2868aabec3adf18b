package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hearthsync/internal/models"
)

// ErrNotFound is returned when a requested appliance has never been onboarded.
var ErrNotFound = errors.New("appliance not found")

type ApplianceSQLite struct {
	db *sql.DB
}

func NewApplianceSQLite(db *sql.DB) *ApplianceSQLite { return &ApplianceSQLite{db: db} }

var _ ApplianceRepo = (*ApplianceSQLite)(nil)

const (
	upsertApplianceSQL = `
		INSERT INTO appliances (serial, name, api_key, user_id, ip_address, location_id, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(serial) DO UPDATE SET
			name=excluded.name,
			api_key=excluded.api_key,
			user_id=excluded.user_id,
			ip_address=excluded.ip_address,
			location_id=excluded.location_id
	`
	selectApplianceSQL  = `SELECT serial, name, api_key, user_id, ip_address, location_id, added_at FROM appliances WHERE serial = ?`
	selectAppliancesSQL = `SELECT serial, name, api_key, user_id, ip_address, location_id, added_at FROM appliances ORDER BY serial`
	updateApplianceIPSQL = `UPDATE appliances SET ip_address = ? WHERE serial = ?`
)

func (r *ApplianceSQLite) Save(ctx context.Context, a models.ApplianceIdentity) error {
	added := a.AddedAt
	if added.IsZero() {
		added = time.Now().UTC()
	} else {
		added = added.UTC()
	}
	_, err := r.db.ExecContext(ctx, upsertApplianceSQL,
		a.Serial, a.Name, a.APIKey, a.UserID, a.IPAddress, a.LocationID, added)
	if err != nil {
		return fmt.Errorf("save appliance %q: %w", a.Serial, err)
	}
	return nil
}

func (r *ApplianceSQLite) Get(ctx context.Context, serial string) (models.ApplianceIdentity, error) {
	var a models.ApplianceIdentity
	err := r.db.QueryRowContext(ctx, selectApplianceSQL, serial).Scan(
		&a.Serial, &a.Name, &a.APIKey, &a.UserID, &a.IPAddress, &a.LocationID, &a.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ApplianceIdentity{}, ErrNotFound
		}
		return models.ApplianceIdentity{}, fmt.Errorf("select appliance %q: %w", serial, err)
	}
	a.AddedAt = a.AddedAt.UTC()
	return a, nil
}

func (r *ApplianceSQLite) List(ctx context.Context) ([]models.ApplianceIdentity, error) {
	rows, err := r.db.QueryContext(ctx, selectAppliancesSQL)
	if err != nil {
		return nil, fmt.Errorf("list appliances: %w", err)
	}
	defer rows.Close()

	var out []models.ApplianceIdentity
	for rows.Next() {
		var a models.ApplianceIdentity
		if err := rows.Scan(&a.Serial, &a.Name, &a.APIKey, &a.UserID, &a.IPAddress, &a.LocationID, &a.AddedAt); err != nil {
			return nil, fmt.Errorf("scan appliance: %w", err)
		}
		a.AddedAt = a.AddedAt.UTC()
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ApplianceSQLite) UpdateIP(ctx context.Context, serial, ip string) error {
	if _, err := r.db.ExecContext(ctx, updateApplianceIPSQL, ip, serial); err != nil {
		return fmt.Errorf("update appliance %q ip: %w", serial, err)
	}
	return nil
}
