package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendCreatesFile(t *testing.T) {
	tempDir := t.TempDir()
	log := At(tempDir)

	err := log.Append(Entry{Operation: "onboard", Principal: "alice", Group: "developer"})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	logPath := filepath.Join(tempDir, ".keywarden", "audit.jsonl")
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Fatal("audit log file was not created")
	}
}

func TestAppendFillsIDAndTimestamp(t *testing.T) {
	log := At(t.TempDir())

	if err := log.Append(Entry{Operation: "reconcile", Outcome: "ok"}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	entries, err := log.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].ID == "" {
		t.Error("ID was not filled in")
	}
	if entries[0].Timestamp == "" {
		t.Error("Timestamp was not filled in")
	}
	if !strings.HasSuffix(entries[0].Timestamp, "Z") {
		t.Errorf("Timestamp %q is not UTC", entries[0].Timestamp)
	}
}

func TestAppendPreservesOrder(t *testing.T) {
	log := At(t.TempDir())

	for _, op := range []string{"onboard", "reconcile", "rotate", "offboard"} {
		if err := log.Append(Entry{Operation: op}); err != nil {
			t.Fatalf("Append(%s) failed: %v", op, err)
		}
	}

	entries, err := log.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	want := []string{"onboard", "reconcile", "rotate", "offboard"}
	for i, entry := range entries {
		if entry.Operation != want[i] {
			t.Errorf("entry %d operation = %q, want %q", i, entry.Operation, want[i])
		}
	}
}

func TestReadMissingLog(t *testing.T) {
	log := At(t.TempDir())

	entries, err := log.Read()
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries from missing log, want 0", len(entries))
	}
}

func TestParseEntriesSkipsMalformedLines(t *testing.T) {
	data := []byte(`{"id":"1","op":"onboard","principal":"alice"}
this is not json
{"id":"2","op":"offboard","principal":"alice"}

{"id":"3","op":"rotate","path":"docs/dev/x.sealed"}
`)

	entries, err := ParseEntries(data)
	if err != nil {
		t.Fatalf("ParseEntries failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	if entries[1].Operation != "offboard" {
		t.Errorf("entry 1 operation = %q, want offboard", entries[1].Operation)
	}
	if entries[2].Path != "docs/dev/x.sealed" {
		t.Errorf("entry 2 path = %q", entries[2].Path)
	}
}

func TestNilLogIsNoOp(t *testing.T) {
	var log *Log
	if err := log.Append(Entry{Operation: "onboard"}); err != nil {
		t.Errorf("nil log Append returned error: %v", err)
	}
	entries, err := log.Read()
	if err != nil || entries != nil {
		t.Errorf("nil log Read = (%v, %v), want (nil, nil)", entries, err)
	}
}
