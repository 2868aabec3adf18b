// Package catalog holds the static command table for the fireplace: abstract
// command names, their per-transport wire names, and the accepted value range.
package catalog

import "fmt"

// Abstract command names accepted by the control surface.
const (
	Power              = "power"
	Pilot              = "pilot"
	Beep               = "beep"
	Light              = "light"
	FlameHeight        = "flame_height"
	FanSpeed           = "fan_speed"
	ThermostatSetpoint = "thermostat_setpoint"
	SleepTimer         = "sleep_timer"
	SoftReset          = "soft_reset"
	FirmwareUpgrade    = "firmware_upgrade"
)

// Command describes one catalog entry. LocalName and CloudName are the wire
// names the two transports expect; values outside [Min, Max] are rejected
// before any network call.
type Command struct {
	Name      string
	LocalName string
	CloudName string
	Min       int
	Max       int
}

// OutOfRangeError reports a pre-flight validation failure. The command is
// dropped without being sent.
type OutOfRangeError struct {
	Command string
	Value   int
	Min     int
	Max     int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("command %q: value %d out of range [%d, %d]", e.Command, e.Value, e.Min, e.Max)
}

var commands = []Command{
	{Name: Power, LocalName: "power", CloudName: "power", Min: 0, Max: 1},
	{Name: Pilot, LocalName: "pilot", CloudName: "pilot", Min: 0, Max: 1},
	{Name: Beep, LocalName: "beep", CloudName: "beep", Min: 0, Max: 1},
	{Name: Light, LocalName: "light", CloudName: "light", Min: 0, Max: 3},
	{Name: FlameHeight, LocalName: "height", CloudName: "height", Min: 0, Max: 4},
	{Name: FanSpeed, LocalName: "fanspeed", CloudName: "fanspeed", Min: 0, Max: 4},
	{Name: ThermostatSetpoint, LocalName: "thermostat_setpoint", CloudName: "setpoint", Min: 0, Max: 3700},
	// Sleep timer in seconds, capped at 3 hours.
	{Name: SleepTimer, LocalName: "time", CloudName: "timer", Min: 0, Max: 10800},
	{Name: SoftReset, LocalName: "soft_reset", CloudName: "soft_reset", Min: 0, Max: 1},
	{Name: FirmwareUpgrade, LocalName: "fw_upgrade", CloudName: "fw_upgrade", Min: 0, Max: 1},
}

// Lookup returns the catalog entry for an abstract command name.
func Lookup(name string) (Command, error) {
	for _, c := range commands {
		if c.Name == name {
			return c, nil
		}
	}
	return Command{}, fmt.Errorf("unknown command %q", name)
}

// Names lists every abstract command name in the catalog.
func Names() []string {
	names := make([]string, 0, len(commands))
	for _, c := range commands {
		names = append(names, c.Name)
	}
	return names
}

// Validate checks value against the command's range.
func (c Command) Validate(value int) error {
	if value < c.Min || value > c.Max {
		return &OutOfRangeError{Command: c.Name, Value: value, Min: c.Min, Max: c.Max}
	}
	return nil
}
