package config

import (
	"strings"
	"testing"
	"time"

	"bloodbank-backend/internal/models"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("x", 32))
	t.Setenv("SEGREGATION_TIMEOUT", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := Load("testdata/does-not-exist.env")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.HTTPPort)
	}
	if cfg.SegregationTimeout != 15*time.Second {
		t.Errorf("Expected default segregation timeout 15s, got %v", cfg.SegregationTimeout)
	}
	if cfg.Alerts.RareCheckCron != "0 8 * * *" {
		t.Errorf("Unexpected rare alert schedule %q", cfg.Alerts.RareCheckCron)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
		t.Errorf("Unexpected log defaults %+v", cfg.Log)
	}
	if len(cfg.Warnings()) == 0 {
		t.Error("Expected warnings for default DSN and CORS origins")
	}
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")
	if _, err := Load("testdata/does-not-exist.env"); err == nil {
		t.Fatal("Expected error for short JWT secret")
	}
}

func TestLoad_RejectsBadDuration(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("x", 32))
	t.Setenv("SEGREGATION_TIMEOUT", "soon")
	if _, err := Load("testdata/does-not-exist.env"); err == nil {
		t.Fatal("Expected error for unparsable duration")
	}
}

func TestLoad_LockTimeoutBoundedBySegregationTimeout(t *testing.T) {
	t.Setenv("JWT_SECRET", strings.Repeat("x", 32))
	t.Setenv("SEGREGATION_TIMEOUT", "5s")
	t.Setenv("SEGREGATION_LOCK_TIMEOUT", "10s")
	if _, err := Load("testdata/does-not-exist.env"); err == nil {
		t.Fatal("Expected error when lock timeout exceeds segregation timeout")
	}
}

func TestLocation(t *testing.T) {
	cfg := &Config{Alerts: AlertsConfig{Timezone: "Asia/Kolkata"}}
	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location failed: %v", err)
	}
	midnight := time.Date(2026, 10, 18, 0, 0, 0, 0, loc)
	if got := midnight.UTC().Format("2006-01-02 15:04"); got != "2026-10-17 18:30" {
		t.Errorf("Expected IST offset, got %s", got)
	}

	cfg.Alerts.Timezone = "Mars/Olympus"
	if _, err := cfg.Location(); err == nil {
		t.Error("Expected error for unknown timezone")
	}
}

func TestCORSOriginList(t *testing.T) {
	cfg := &Config{CORSOrigins: " https://a.example , ,https://b.example"}
	got := cfg.CORSOriginList()
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("Unexpected origins %v", got)
	}
}

func TestParseComponentSettings(t *testing.T) {
	raw := []byte(`
components:
  - component: rbc
    ratio: 0.5
    shelf_life_days: 42
  - component: Platelets
    ratio: 0.1
    shelf_life_days: 7
`)
	settings, err := ParseComponentSettings(raw)
	if err != nil {
		t.Fatalf("ParseComponentSettings failed: %v", err)
	}
	if len(settings) != 2 {
		t.Fatalf("Expected 2 settings, got %d", len(settings))
	}
	if settings[0].Component != models.ComponentRBC {
		t.Errorf("Expected canonical RBC, got %s", settings[0].Component)
	}
	if settings[0].ShelfLifeDays != 42 {
		t.Errorf("Expected 42 days, got %d", settings[0].ShelfLifeDays)
	}
}

func TestParseComponentSettings_Invalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"unknown component", "components:\n  - component: WholeBlood\n    ratio: 0.5\n    shelf_life_days: 1\n"},
		{"zero ratio", "components:\n  - component: RBC\n    ratio: 0\n    shelf_life_days: 1\n"},
		{"ratio above one", "components:\n  - component: RBC\n    ratio: 1.5\n    shelf_life_days: 1\n"},
		{"negative shelf life", "components:\n  - component: RBC\n    ratio: 0.5\n    shelf_life_days: -1\n"},
		{"duplicate", "components:\n  - component: RBC\n    ratio: 0.5\n    shelf_life_days: 1\n  - component: rbc\n    ratio: 0.4\n    shelf_life_days: 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseComponentSettings([]byte(tt.raw)); err == nil {
				t.Error("Expected error")
			}
		})
	}
}
