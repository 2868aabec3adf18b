package models

import "time"

// DeviceState is the cached snapshot of a fireplace. It is only ever mutated
// by the reconciler when a poll lands; issuing a command does not touch it.
type DeviceState struct {
	Serial string `json:"serial"`

	// On is derived: power OR thermostat (the thermostat can drive the
	// flame while the raw power flag reads 0).
	On         bool `json:"on"`
	Power      bool `json:"power"`
	Thermostat bool `json:"thermostat"`
	Pilot      bool `json:"pilot"`

	FlameHeight int `json:"flame_height"`       // 0–4
	FanSpeed    int `json:"fan_speed"`          // 0–4
	Light       int `json:"light"`              // 0–3
	SetpointC   int `json:"setpoint_c"`         // hundredths of °C
	TimerS      int `json:"timer_s,omitempty"`  // sleep timer countdown, seconds
	RoomTempC   int `json:"room_temp_c"`        // hundredths of °C, valid only with thermostat

	// ErrorCodes holds the symbolic names of active fault codes;
	// unrecognized codes pass through as their numeric string.
	ErrorCodes []string `json:"error_codes,omitempty"`

	HasLight      bool `json:"has_light"`
	HasFan        bool `json:"has_fan"`
	HasThermostat bool `json:"has_thermostat"`

	IPAddress string    `json:"ip_address,omitempty"`
	Firmware  string    `json:"firmware,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RetainedValues remembers the last non-zero fan/light/setpoint settings so
// they can be restored after the appliance resets them to zero on disable.
type RetainedValues struct {
	FanSpeed  int `json:"fan_speed"`
	Light     int `json:"light"`
	SetpointC int `json:"setpoint_c"`
}
