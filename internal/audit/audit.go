package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Entry is a single immutable audit record. Entries are appended, never
// mutated or deleted.
type Entry struct {
	ID        string `json:"id"`
	Timestamp string `json:"ts"` // RFC3339 with microseconds.
	Operation string `json:"op"` // onboard, offboard, rotate, reconcile.

	// Optional fields depending on operation.
	Principal      string `json:"principal,omitempty"`       // Target principal name.
	Group          string `json:"group,omitempty"`           // Target principal group.
	KeyFingerprint string `json:"key_fp,omitempty"`          // Short fingerprint of the target key.
	Outcome        string `json:"outcome,omitempty"`         // ok, partial, failed.
	DocsAttempted  int    `json:"docs_attempted,omitempty"`  // For reconcile outcomes.
	DocsFailed     int    `json:"docs_failed,omitempty"`     // For reconcile outcomes.
	RotatedCount   int    `json:"rotated_count,omitempty"`   // For offboard-with-rotation.
	FieldsChanged  int    `json:"fields_changed,omitempty"`  // For rotate.
	Path           string `json:"path,omitempty"`            // For rotate.
	Classification string `json:"classification,omitempty"`  // For rotate.
}

// Log is an append-only JSONL sink. The path is explicit rather than
// ambient so the engine can be tested without a real project tree.
type Log struct {
	Path string
}

// At returns a log writing to <root>/.keywarden/audit.jsonl.
func At(root string) *Log {
	return &Log{Path: filepath.Join(root, ".keywarden", "audit.jsonl")}
}

// Append writes one entry, filling in ID and timestamp when unset.
// Callers treat failures as warnings: access-control correctness must
// not depend on a downstream logging side effect succeeding.
func (l *Log) Append(entry Entry) error {
	if l == nil || l.Path == "" {
		return nil
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = time.Now().UTC().Format("2006-01-02T15:04:05.000000Z")
	}

	if err := os.MkdirAll(filepath.Dir(l.Path), 0700); err != nil {
		return fmt.Errorf("creating audit directory: %w", err)
	}

	// #nosec G306 -- the audit log is meant to be readable by the team.
	f, err := os.OpenFile(l.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding audit entry: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// Read returns all entries in append order. A missing log yields an
// empty slice.
func (l *Log) Read() ([]Entry, error) {
	if l == nil || l.Path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(l.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ParseEntries(data)
}

// ParseEntries parses JSON Lines data into audit entries.
// Malformed lines are silently skipped.
func ParseEntries(data []byte) ([]Entry, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var entries []Entry
	start := 0

	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := data[start:i]
			start = i + 1

			if len(line) == 0 {
				continue
			}

			var entry Entry
			if err := json.Unmarshal(line, &entry); err != nil {
				// Skip malformed entries.
				continue
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}
