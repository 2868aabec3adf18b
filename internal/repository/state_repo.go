package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"hearthsync/internal/models"
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

var _ StateRepo = (*StateSQLite)(nil)

const (
	insertOrUpdateStateSQL = `
		INSERT INTO device_state (serial, on_derived, power, thermostat, pilot, flame_height,
			fan_speed, light, setpoint_c, timer_s, room_temp_c, error_codes,
			has_light, has_fan, has_thermostat, ip_address, firmware, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(serial) DO UPDATE SET
			on_derived=excluded.on_derived,
			power=excluded.power,
			thermostat=excluded.thermostat,
			pilot=excluded.pilot,
			flame_height=excluded.flame_height,
			fan_speed=excluded.fan_speed,
			light=excluded.light,
			setpoint_c=excluded.setpoint_c,
			timer_s=excluded.timer_s,
			room_temp_c=excluded.room_temp_c,
			error_codes=excluded.error_codes,
			has_light=excluded.has_light,
			has_fan=excluded.has_fan,
			has_thermostat=excluded.has_thermostat,
			ip_address=excluded.ip_address,
			firmware=excluded.firmware,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT serial, on_derived, power, thermostat, pilot, flame_height,
			fan_speed, light, setpoint_c, timer_s, room_temp_c, error_codes,
			has_light, has_fan, has_thermostat, ip_address, firmware, updated_at
		FROM device_state WHERE serial=?
	`
)

// marshalErrorCodes converts the slice to a JSON string.
func marshalErrorCodes(codes []string) (string, error) {
	b, err := json.Marshal(codes)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalErrorCodes parses a JSON string into a slice.
func unmarshalErrorCodes(s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	var codes []string
	if err := json.Unmarshal([]byte(s), &codes); err != nil {
		return nil, err
	}
	return codes, nil
}

// Save upserts the per-appliance state row.
func (r *StateSQLite) Save(ctx context.Context, state models.DeviceState) error {
	if strings.TrimSpace(state.Serial) == "" {
		return errors.New("device state without serial")
	}
	errorsJSONStr, err := marshalErrorCodes(state.ErrorCodes)
	if err != nil {
		return err
	}

	// ensure UpdatedAt is always persisted as UTC; set if zero
	tsUTC := state.UpdatedAt
	if tsUTC.IsZero() {
		tsUTC = time.Now().UTC()
	} else {
		tsUTC = tsUTC.UTC()
	}

	_, err = r.db.ExecContext(ctx, insertOrUpdateStateSQL,
		state.Serial,
		state.On,
		state.Power,
		state.Thermostat,
		state.Pilot,
		state.FlameHeight,
		state.FanSpeed,
		state.Light,
		state.SetpointC,
		state.TimerS,
		state.RoomTempC,
		errorsJSONStr,
		state.HasLight,
		state.HasFan,
		state.HasThermostat,
		state.IPAddress,
		state.Firmware,
		tsUTC,
	)
	return err
}

// Load fetches the state row for one appliance. Returns a zero state with the
// serial filled in when nothing was cached yet.
func (r *StateSQLite) Load(ctx context.Context, serial string) (models.DeviceState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, serial)

	var s models.DeviceState
	var errorsJSONStr string
	if err := row.Scan(
		&s.Serial,
		&s.On,
		&s.Power,
		&s.Thermostat,
		&s.Pilot,
		&s.FlameHeight,
		&s.FanSpeed,
		&s.Light,
		&s.SetpointC,
		&s.TimerS,
		&s.RoomTempC,
		&errorsJSONStr,
		&s.HasLight,
		&s.HasFan,
		&s.HasThermostat,
		&s.IPAddress,
		&s.Firmware,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.DeviceState{Serial: serial}, nil // no state yet
		}
		return models.DeviceState{}, err
	}

	codes, err := unmarshalErrorCodes(errorsJSONStr)
	if err != nil {
		return models.DeviceState{}, err
	}
	s.ErrorCodes = codes
	s.UpdatedAt = s.UpdatedAt.UTC()

	return s, nil
}
