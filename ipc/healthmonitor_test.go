package ipc

import (
	"encoding/json"
	"testing"

	"github.com/shaban/modhost-bridge/health"
)

func TestHandleHealthRequest(t *testing.T) {
	h := health.New(nil)
	m := &HealthMonitor{health: h}

	resp := m.handle([]byte(`{"action":"health"}`))
	var snap health.Snapshot
	if err := json.Unmarshal(resp, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Status != health.StatusStarting {
		t.Fatalf("Status = %s, want starting", snap.Status)
	}
}

func TestHandleInvalidAction(t *testing.T) {
	h := health.New(nil)
	m := &HealthMonitor{health: h}

	resp := m.handle([]byte(`{"action":"not-health"}`))
	var got map[string]string
	json.Unmarshal(resp, &got)
	if got["error"] != "Invalid health request" {
		t.Fatalf("unexpected response: %s", resp)
	}
}

func TestHandleMalformedJSON(t *testing.T) {
	h := health.New(nil)
	m := &HealthMonitor{health: h}

	resp := m.handle([]byte(`{not json`))
	var got map[string]string
	json.Unmarshal(resp, &got)
	if got["error"] != "Invalid JSON format" {
		t.Fatalf("unexpected response: %s", resp)
	}
}

func TestHandleReflectsLiveHealthState(t *testing.T) {
	h := health.New(nil)
	h.UpdateCommandConnection(true)
	h.UpdateFeedbackConnection(true)
	m := &HealthMonitor{health: h}

	resp := m.handle([]byte(`{"action":"health"}`))
	var snap health.Snapshot
	json.Unmarshal(resp, &snap)
	if snap.Status != health.StatusHealthy {
		t.Fatalf("Status = %s, want healthy", snap.Status)
	}
}
