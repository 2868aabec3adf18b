package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"hearthsync/internal/catalog"
	"hearthsync/internal/control"
	"hearthsync/internal/models"
)

func TestHealth(t *testing.T) {
	s, _, _, _, _ := testServices()
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/health", "", false)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestTurnOnDispatchesToService(t *testing.T) {
	s, fp, mon, _, _ := testServices()
	mon.states["FP-1"] = models.DeviceState{Serial: "FP-1", On: true, UpdatedAt: time.Now().UTC()}
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/api/v1/fireplaces/FP-1/on", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(fp.onCalls) != 1 || fp.onCalls[0] != "FP-1" {
		t.Fatalf("on not dispatched: %v", fp.onCalls)
	}

	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp["status"] != statusOn {
		t.Fatalf("unexpected status %v", resp["status"])
	}
	if _, ok := resp["state"]; !ok {
		t.Fatal("state missing from response")
	}
}

func TestTurnOffUnknownSerial404(t *testing.T) {
	s, fp, _, _, _ := testServices()
	fp.offErr = control.ErrUnknownAppliance
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/api/v1/fireplaces/nope/off", "", true)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestSendCommand(t *testing.T) {
	s, fp, mon, _, _ := testServices()
	mon.states["FP-1"] = models.DeviceState{Serial: "FP-1"}
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/api/v1/fireplaces/FP-1/command",
		`{"command":"flame_height","value":3}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	want := dispatchedCommand{"FP-1", "flame_height", 3}
	if fp.lastCommand != want {
		t.Fatalf("dispatched %+v, want %+v", fp.lastCommand, want)
	}
}

func TestSendCommandOutOfRange400(t *testing.T) {
	s, fp, _, _, _ := testServices()
	fp.commandErr = &catalog.OutOfRangeError{Command: "fan_speed", Value: 9, Min: 0, Max: 4}
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/api/v1/fireplaces/FP-1/command",
		`{"command":"fan_speed","value":9}`, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestSendCommandMissingBody400(t *testing.T) {
	s, fp, _, _, _ := testServices()
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/api/v1/fireplaces/FP-1/command", `{}`, true)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if fp.commands != 0 {
		t.Fatal("command dispatched despite invalid body")
	}
}

func TestGetState(t *testing.T) {
	s, _, mon, _, _ := testServices()
	mon.states["FP-1"] = models.DeviceState{
		Serial:     "FP-1",
		On:         true,
		FanSpeed:   2,
		ErrorCodes: []string{"fan_delay"},
	}
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/fireplaces/FP-1/state", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var st models.DeviceState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if !st.On || st.FanSpeed != 2 || len(st.ErrorCodes) != 1 {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestListFireplaces(t *testing.T) {
	s, _, mon, _, _ := testServices()
	mon.list = []models.ApplianceIdentity{
		{Serial: "FP-1", Name: "Living room"},
		{Serial: "FP-2", Name: "Den"},
	}
	r := newTestRouter(s)

	w := doRequest(r, http.MethodGet, "/api/v1/fireplaces", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Count      int                       `json:"count"`
		Fireplaces []models.ApplianceIdentity `json:"fireplaces"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad body: %v", err)
	}
	if resp.Count != 2 || len(resp.Fireplaces) != 2 {
		t.Fatalf("unexpected list: %+v", resp)
	}
}

func TestRefreshRequestsPoll(t *testing.T) {
	s, fp, _, _, _ := testServices()
	r := newTestRouter(s)

	w := doRequest(r, http.MethodPost, "/api/v1/fireplaces/FP-1/refresh", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(fp.refreshed) != 1 || fp.refreshed[0] != "FP-1" {
		t.Fatalf("refresh not dispatched: %v", fp.refreshed)
	}
}
