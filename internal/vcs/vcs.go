package vcs

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Sink records which files a lifecycle operation touched. It is strictly
// best-effort: a failing sink is reported as a warning and never blocks
// the operation that produced the change.
type Sink interface {
	RecordChange(ctx context.Context, paths []string, message string) error
}

// GitSink stages and commits changed paths in the repository at Dir.
type GitSink struct {
	Dir string
}

func (s *GitSink) RecordChange(ctx context.Context, paths []string, message string) error {
	if len(paths) == 0 {
		return nil
	}

	args := append([]string{"add", "--"}, paths...)
	if out, err := s.git(ctx, args...); err != nil {
		return fmt.Errorf("git add: %v: %s", err, strings.TrimSpace(out))
	}

	if out, err := s.git(ctx, "commit", "-m", message); err != nil {
		return fmt.Errorf("git commit: %v: %s", err, strings.TrimSpace(out))
	}
	return nil
}

func (s *GitSink) git(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = s.Dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// Nop discards change records. Used when the project is not under
// version control or change tracking is disabled.
type Nop struct{}

func (Nop) RecordChange(context.Context, []string, string) error { return nil }
