// Package snapshot models the flat key-value status report the appliance
// returns on either transport. Field presence varies by transport and
// firmware, and the cloud relay sends numeric fields as strings, so values
// are kept as a tagged union with explicit coercion helpers.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Snapshot field names shared by both transports.
const (
	FieldPower             = "power"
	FieldThermostat        = "thermostat"
	FieldPilot             = "pilot"
	FieldHeight            = "height"
	FieldFanSpeed          = "fanspeed"
	FieldLight             = "light"
	FieldTemperature       = "temperature"
	FieldSetpoint          = "setpoint"
	FieldTimer             = "timer"
	FieldErrors            = "errors"
	FieldFeatureLight      = "feature_light"
	FieldFeatureFan        = "feature_fan"
	FieldFeatureThermostat = "feature_thermostat"
	FieldSerial            = "serial"
	FieldIPAddress         = "ipv4_address"
	FieldFirmware          = "firmware_version"
)

// Kind discriminates the union held by a Value.
type Kind int

const (
	Absent Kind = iota
	Integer
	String
	IntList
)

// Value is one snapshot field. Exactly one member is meaningful per Kind.
type Value struct {
	Kind Kind
	Int  int
	Str  string
	Ints []int
}

// UnmarshalJSON decodes a field into the union: JSON numbers become Integer,
// strings become String, arrays become IntList (string elements coerced).
func (v *Value) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		*v = Value{Kind: Absent}
	case json.Number:
		n, err := strconv.Atoi(t.String())
		if err != nil {
			return fmt.Errorf("non-integer snapshot number %q: %w", t.String(), err)
		}
		*v = Value{Kind: Integer, Int: n}
	case string:
		*v = Value{Kind: String, Str: t}
	case bool:
		n := 0
		if t {
			n = 1
		}
		*v = Value{Kind: Integer, Int: n}
	case []any:
		ints := make([]int, 0, len(t))
		for _, el := range t {
			switch e := el.(type) {
			case json.Number:
				n, err := strconv.Atoi(e.String())
				if err != nil {
					return fmt.Errorf("non-integer list element %q: %w", e.String(), err)
				}
				ints = append(ints, n)
			case string:
				n, err := strconv.Atoi(e)
				if err != nil {
					return fmt.Errorf("non-integer list element %q: %w", e, err)
				}
				ints = append(ints, n)
			default:
				return fmt.Errorf("unsupported list element %T", el)
			}
		}
		*v = Value{Kind: IntList, Ints: ints}
	default:
		return fmt.Errorf("unsupported snapshot value %T", raw)
	}
	return nil
}

// Snapshot is a flat field map as reported by the appliance.
type Snapshot map[string]Value

// Parse decodes a raw JSON status body from either transport.
func Parse(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return s, nil
}

// Has reports whether the field is present and non-absent.
func (s Snapshot) Has(key string) bool {
	v, ok := s[key]
	return ok && v.Kind != Absent
}

// Int coerces a field to an integer. Cloud-transport snapshots carry numerics
// as text, so String values are parsed too.
func (s Snapshot) Int(key string) (int, bool) {
	v, ok := s[key]
	if !ok {
		return 0, false
	}
	switch v.Kind {
	case Integer:
		return v.Int, true
	case String:
		n, err := strconv.Atoi(v.Str)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Bool coerces a field to a flag (non-zero integer, or "0"/"1" text).
func (s Snapshot) Bool(key string) (bool, bool) {
	n, ok := s.Int(key)
	return n != 0, ok
}

// Str returns a field as text; integers are formatted.
func (s Snapshot) Str(key string) (string, bool) {
	v, ok := s[key]
	if !ok {
		return "", false
	}
	switch v.Kind {
	case String:
		return v.Str, true
	case Integer:
		return strconv.Itoa(v.Int), true
	default:
		return "", false
	}
}

// IntList returns a field as an integer list (e.g. active fault codes).
func (s Snapshot) IntList(key string) ([]int, bool) {
	v, ok := s[key]
	if !ok || v.Kind != IntList {
		return nil, false
	}
	return v.Ints, true
}
