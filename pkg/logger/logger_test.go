package logger

import (
	"testing"

	"go.uber.org/zap"
)

func TestNew_Level(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"", false, true},
		{"debug", true, true},
		{"warn", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			log, err := New(Options{Level: tt.level, Service: "bloodbank"})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if got := log.Core().Enabled(zap.DebugLevel); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := log.Core().Enabled(zap.InfoLevel); got != tt.wantInfo {
				t.Errorf("info enabled = %v, want %v", got, tt.wantInfo)
			}
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Options{Level: "loud"}); err == nil {
		t.Error("Expected error for unknown level")
	}
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("Expected error for unknown format")
	}
	if _, err := New(Options{Format: "console"}); err != nil {
		t.Errorf("console format failed: %v", err)
	}
}

func TestNamed_NilBase(t *testing.T) {
	if Named(nil, "x") == nil {
		t.Fatal("Expected a no-op logger")
	}
}
