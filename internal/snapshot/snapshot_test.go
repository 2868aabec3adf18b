package snapshot

import (
	"reflect"
	"testing"
)

func TestParse_LocalNativeNumbers(t *testing.T) {
	body := `{"power":1,"thermostat":0,"height":3,"fanspeed":2,"light":1,
		"temperature":2150,"setpoint":2200,"errors":[4,64],
		"feature_thermostat":1,"serial":"ABC123","ipv4_address":"192.168.1.40"}`
	s, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n, ok := s.Int(FieldHeight); !ok || n != 3 {
		t.Errorf("height = %d, %v; want 3, true", n, ok)
	}
	if on, ok := s.Bool(FieldPower); !ok || !on {
		t.Errorf("power = %v, %v; want true, true", on, ok)
	}
	if on, ok := s.Bool(FieldThermostat); !ok || on {
		t.Errorf("thermostat = %v, %v; want false, true", on, ok)
	}
	if codes, ok := s.IntList(FieldErrors); !ok || !reflect.DeepEqual(codes, []int{4, 64}) {
		t.Errorf("errors = %v, %v; want [4 64]", codes, ok)
	}
	if ip, ok := s.Str(FieldIPAddress); !ok || ip != "192.168.1.40" {
		t.Errorf("ipv4_address = %q, %v", ip, ok)
	}
}

func TestParse_CloudStringNumbers(t *testing.T) {
	body := `{"power":"1","fanspeed":"4","temperature":"2150","errors":["642"],"serial":"ABC123"}`
	s, err := Parse([]byte(body))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n, ok := s.Int(FieldFanSpeed); !ok || n != 4 {
		t.Errorf("fanspeed = %d, %v; want 4 coerced from text", n, ok)
	}
	if on, ok := s.Bool(FieldPower); !ok || !on {
		t.Errorf("power = %v, %v; want coerced true", on, ok)
	}
	if codes, ok := s.IntList(FieldErrors); !ok || !reflect.DeepEqual(codes, []int{642}) {
		t.Errorf("errors = %v, %v; want [642]", codes, ok)
	}
}

func TestSnapshot_AbsentAndBadFields(t *testing.T) {
	s, err := Parse([]byte(`{"light":null,"serial":"X"}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Has(FieldLight) {
		t.Errorf("null field should be absent")
	}
	if _, ok := s.Int(FieldFanSpeed); ok {
		t.Errorf("missing field should not coerce")
	}
	if _, ok := s.Int(FieldSerial); ok {
		t.Errorf("non-numeric text should not coerce to int")
	}
}

func TestParse_RejectsFloats(t *testing.T) {
	if _, err := Parse([]byte(`{"temperature":21.5}`)); err == nil {
		t.Fatalf("expected error for fractional snapshot number")
	}
}
