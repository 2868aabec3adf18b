package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"hearthsync/internal/models"
)

type RetainedSQLite struct {
	db *sql.DB
}

func NewRetainedSQLite(db *sql.DB) *RetainedSQLite { return &RetainedSQLite{db: db} }

var _ RetainedRepo = (*RetainedSQLite)(nil)

const (
	upsertRetainedSQL = `
		INSERT INTO retained_values (serial, fan_speed, light, setpoint_c)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(serial) DO UPDATE SET
			fan_speed=excluded.fan_speed,
			light=excluded.light,
			setpoint_c=excluded.setpoint_c
	`
	selectRetainedSQL = `SELECT fan_speed, light, setpoint_c FROM retained_values WHERE serial = ?`
)

func (r *RetainedSQLite) Save(ctx context.Context, serial string, v models.RetainedValues) error {
	if _, err := r.db.ExecContext(ctx, upsertRetainedSQL, serial, v.FanSpeed, v.Light, v.SetpointC); err != nil {
		return fmt.Errorf("save retained values for %q: %w", serial, err)
	}
	return nil
}

// Load returns zero values when the appliance has no retained row yet.
func (r *RetainedSQLite) Load(ctx context.Context, serial string) (models.RetainedValues, error) {
	var v models.RetainedValues
	err := r.db.QueryRowContext(ctx, selectRetainedSQL, serial).Scan(&v.FanSpeed, &v.Light, &v.SetpointC)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.RetainedValues{}, nil
		}
		return models.RetainedValues{}, fmt.Errorf("load retained values for %q: %w", serial, err)
	}
	return v, nil
}
