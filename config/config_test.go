package config

import (
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load with defaults failed: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("default Port = %s, want 8000", cfg.Port)
	}
	if cfg.DataDir != "data" {
		t.Errorf("default DataDir = %s, want data", cfg.DataDir)
	}
	if cfg.SyncAt != "03:00" {
		t.Errorf("default SyncAt = %s", cfg.SyncAt)
	}
	if !strings.HasPrefix(cfg.SnapshotBaseURL, "https://") {
		t.Errorf("default SnapshotBaseURL should be https, got %s", cfg.SnapshotBaseURL)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"privileged port", "PORT", "80"},
		{"non-numeric port", "PORT", "abc"},
		{"port out of range", "PORT", "70000"},
		{"bad address", "ADDRESS", "not-an-ip"},
		{"bad env", "ENV", "production!"},
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"bad snapshot url", "SNAPSHOT_BASE_URL", "ftp://example.com"},
		{"bad sync time", "SYNC_AT", "25:00"},
		{"bad sync format", "SYNC_AT", "0300"},
		{"zero body limit", "MAX_REQUEST_BODY", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load should reject %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoadAcceptsMultipleSyncTimes(t *testing.T) {
	t.Setenv("SYNC_AT", "06:00;18:00")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load rejected valid SYNC_AT: %v", err)
	}
	if cfg.SyncAt != "06:00;18:00" {
		t.Errorf("SyncAt = %s", cfg.SyncAt)
	}
}
