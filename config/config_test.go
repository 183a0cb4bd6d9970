package config

import (
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port == "" {
		t.Error("Port default missing")
	}
	if !cfg.Feedback.Enabled {
		t.Error("feedback should be enabled by default")
	}
	if cfg.Feedback.DefaultSLAHours <= 0 {
		t.Errorf("DefaultSLAHours = %d", cfg.Feedback.DefaultSLAHours)
	}
	if cfg.Upload.MaxSizeBytes != 4*1024*1024*1024 {
		t.Errorf("MaxSizeBytes = %d", cfg.Upload.MaxSizeBytes)
	}
	if cfg.Upload.TTLHours != 24 {
		t.Errorf("TTLHours = %d", cfg.Upload.TTLHours)
	}
	if cfg.Sweeper.IntervalSeconds != 300 {
		t.Errorf("IntervalSeconds = %d", cfg.Sweeper.IntervalSeconds)
	}
}

func TestFeedbackFlagFromEnv(t *testing.T) {
	t.Setenv("FEEDBACK_REQUESTS_ENABLED", "false")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Feedback.Enabled {
		t.Error("FEEDBACK_REQUESTS_ENABLED=false not honored")
	}
}

func TestDSNFromComponents(t *testing.T) {
	db := DatabaseConfig{
		Host: "db", Port: "5432", User: "app", Password: "pw", DBName: "practika", SSLMode: "disable",
	}
	want := "postgres://app:pw@db:5432/practika?sslmode=disable"
	if got := db.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}

func TestDSNPrefersURL(t *testing.T) {
	db := DatabaseConfig{URL: "postgres://elsewhere/other", Host: "db"}
	if got := db.DSN(); got != "postgres://elsewhere/other" {
		t.Errorf("DSN = %q, want the URL as-is", got)
	}
}
