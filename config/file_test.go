package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.DBDriver != "sqlite3" {
		t.Errorf("Expected default driver sqlite3, got %q", c.DBDriver)
	}
	every, _, _ := c.RateLimitDurations()
	if every != 10*time.Second {
		t.Errorf("Expected default rate every 10s, got %v", every)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jotlet.yaml")
	body := "port: \"9090\"\ndb_driver: sqlite\nredis_url: redis://cache:6379/0\nrate_limit:\n  burst: 9\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOTLET_PORT", "7070")

	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if c.Port != "7070" {
		t.Errorf("Expected env to override port, got %q", c.Port)
	}
	if c.DBDriver != "sqlite" || c.RateLimit.Burst != 9 {
		t.Errorf("File values not applied: %+v", c)
	}
	if c.RedisURL != "redis://cache:6379/0" {
		t.Errorf("Unexpected redis url %q", c.RedisURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown driver", "db_driver: postgres\n"},
		{"bad duration", "rate_limit:\n  every: soon\n"},
		{"zero burst", "rate_limit:\n  burst: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			if err := os.WriteFile(path, []byte(tt.body), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}
