package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func Test_Default_HasSaneKnobs(t *testing.T) {
	c := Default()
	if c.HeartbeatMaxDroped <= 0 {
		t.Fatal("expected a positive heartbeat miss threshold")
	}
	if c.HeartbeatTimeout() != time.Second {
		t.Fatalf("expected 1s heartbeat timeout, got %v", c.HeartbeatTimeout())
	}
	if c.CommandRetryBaseDelay() != 100*time.Millisecond {
		t.Fatalf("expected 100ms retry base delay, got %v", c.CommandRetryBaseDelay())
	}
}

func Test_Load_OverlaysDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "master.json")
	if err := os.WriteFile(path, []byte(`{"heartbeat_max_droped": 9, "hosts_file": "hosts.json"}`), 0644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.HeartbeatMaxDroped != 9 {
		t.Fatalf("expected overridden value 9, got %d", c.HeartbeatMaxDroped)
	}
	if c.HostsFile != "hosts.json" {
		t.Fatalf("expected hosts_file to be set, got %q", c.HostsFile)
	}
	// Untouched fields keep their defaults.
	if c.NumJobSendThread != Default().NumJobSendThread {
		t.Fatalf("expected untouched field to keep its default, got %d", c.NumJobSendThread)
	}
}

func Test_Load_MissingFileIsAnError(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
