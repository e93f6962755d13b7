package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data := `
api:
  base_url: "http://localhost:5000/api"
  enabled: true
outbox:
  policy:
    max_queue_len: 10
    on_queue_full: reject
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.API.Timeout != 5*time.Second {
		t.Fatalf("expected api timeout default 5s, got %s", cfg.API.Timeout)
	}
	if cfg.Poller.Interval != 2*time.Second || cfg.Poller.SubscriberBuffer != 8 {
		t.Fatalf("unexpected poller defaults %+v", cfg.Poller)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("expected default http addr :8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.Outbox.Policy.MaxQueueLen != 10 || cfg.Outbox.Policy.OnQueueFull != "reject" {
		t.Fatalf("explicit policy values must survive defaults: %+v", cfg.Outbox.Policy)
	}
	if cfg.Outbox.Policy.OnWALFull != "block" || cfg.Outbox.Dir != "./data/outbox" {
		t.Fatalf("unexpected outbox defaults %+v", cfg.Outbox)
	}
	if cfg.Archive.Table != "stats_snapshots" || cfg.Relay.Subject != "citypulse.stats" {
		t.Fatalf("unexpected sink defaults %+v %+v", cfg.Archive, cfg.Relay)
	}
}

func TestParseDurations(t *testing.T) {
	cfg, err := Parse([]byte("poller:\n  interval: 500ms\napi:\n  timeout: 1s\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Poller.Interval != 500*time.Millisecond || cfg.API.Timeout != time.Second {
		t.Fatalf("unexpected durations %s %s", cfg.Poller.Interval, cfg.API.Timeout)
	}
}

func TestParseValidation(t *testing.T) {
	cases := map[string]string{
		"enabled without url": "api:\n  enabled: true\n",
		"relative url":        "api:\n  enabled: true\n  base_url: /api\n",
		"negative interval":   "poller:\n  interval: -1s\n",
		"bad queue policy":    "outbox:\n  policy:\n    on_queue_full: panic\n",
		"bad wal policy":      "outbox:\n  policy:\n    on_wal_full: wait\n",
		"bad log format":      "log:\n  format: xml\n",
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "nope.yaml") {
		t.Fatalf("expected missing file error, got %v", err)
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if cfg.API.Enabled {
		t.Fatalf("default config must not call a remote api")
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
