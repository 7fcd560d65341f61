package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModHostHost != "127.0.0.1" {
		t.Errorf("ModHostHost = %q", cfg.ModHostHost)
	}
	if cfg.ModHostPort != 5555 {
		t.Errorf("ModHostPort = %d", cfg.ModHostPort)
	}
	if cfg.ModHostFeedbackPort != 5556 {
		t.Errorf("ModHostFeedbackPort = %d", cfg.ModHostFeedbackPort)
	}
	if cfg.RepAddr != "tcp://127.0.0.1:6000" {
		t.Errorf("RepAddr = %q", cfg.RepAddr)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MOD_HOST_PORT", "7777")
	t.Setenv("MODHOST_BRIDGE_REP", "tcp://0.0.0.0:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ModHostPort != 7777 {
		t.Errorf("ModHostPort = %d", cfg.ModHostPort)
	}
	if cfg.RepAddr != "tcp://0.0.0.0:9000" {
		t.Errorf("RepAddr = %q", cfg.RepAddr)
	}
}

func TestLoadInvalidInt(t *testing.T) {
	t.Setenv("MOD_HOST_PORT", "not-a-number")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid MOD_HOST_PORT")
	}
}
