package database

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestReportDuplicateKeys(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	log := zap.New(core)

	reportDuplicateKeys(log, 4, nil)
	reportDuplicateKeys(log, 0, errors.New("relation does not exist"))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["count"]; got != int64(4) {
		t.Errorf("Expected count 4, got %v", got)
	}
	failed := entries[1]
	if failed.Message != "duplicate segregation keys could not be counted" {
		t.Errorf("Unexpected message %q", failed.Message)
	}
	if _, ok := failed.ContextMap()["count"]; ok {
		t.Error("A failed count must not be logged as a count")
	}
	if failed.ContextMap()["error"] != "relation does not exist" {
		t.Errorf("Expected the query error, got %v", failed.ContextMap()["error"])
	}
}
