package catalog

import "strconv"

// fault couples the symbolic name reported through the API with the
// operator-facing message surfaced when the code is raised.
type fault struct {
	name    string
	message string
}

var faults = map[int]fault{
	2:    {"pilot_flame", "Pilot flame error"},
	4:    {"fan_delay", "Fan is delayed, check installation"},
	6:    {"flame", "Flame sensor error"},
	64:   {"maintenance", "Maintenance required, contact dealer"},
	129:  {"disabled", "Appliance safely disabled, contact dealer"},
	130:  {"pilot_flame", "Pilot flame error"},
	132:  {"fan", "Fan error"},
	133:  {"lights", "Lights error"},
	134:  {"accessory", "Accessory error"},
	144:  {"soft_lock_out", "Appliance locked out after failed ignition"},
	145:  {"disabled", "Appliance safely disabled, contact dealer"},
	642:  {"offline", "Appliance reports offline"},
	3269: {"ecm_offline", "Control module offline"},
}

// FaultName maps a raw fault code to its symbolic name. Unrecognized codes
// pass through as their numeric string.
func FaultName(code int) string {
	if f, ok := faults[code]; ok {
		return f.name
	}
	return strconv.Itoa(code)
}

// FaultMessage returns the operator-facing message for a raw fault code.
func FaultMessage(code int) string {
	if f, ok := faults[code]; ok {
		return f.message
	}
	return "Unknown appliance fault " + strconv.Itoa(code)
}
