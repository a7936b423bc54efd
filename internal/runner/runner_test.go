package runner

import (
	"context"
	"errors"
	"runtime"
	"strings"
	"testing"
	"time"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestRun(t *testing.T) {
	skipWithoutShell(t)
	r := NewExecRunner()

	out, err := r.Run(context.Background(), "sh", "-c", "echo stdout-line; echo stderr-line >&2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.TrimSpace(string(out)) != "stdout-line" {
		t.Errorf("stdout = %q", out)
	}
}

func TestRun_NonZeroExitCarriesStderr(t *testing.T) {
	skipWithoutShell(t)
	r := NewExecRunner()

	_, err := r.Run(context.Background(), "sh", "-c", "echo broken >&2; exit 3")
	if err == nil {
		t.Fatal("expected an error")
	}
	var cmdErr *CmdError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CmdError, got %T", err)
	}
	if !strings.Contains(cmdErr.Stderr, "broken") {
		t.Errorf("stderr not captured: %q", cmdErr.Stderr)
	}
	if !strings.Contains(err.Error(), "broken") {
		t.Errorf("message should surface stderr: %s", err)
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	skipWithoutShell(t)
	r := NewExecRunner()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, "sh", "-c", "sleep 10")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected context.DeadlineExceeded, got %v", err)
	}
}

func TestStream(t *testing.T) {
	skipWithoutShell(t)
	r := NewExecRunner()

	var lines []string
	err := r.Stream(context.Background(), func(l string) { lines = append(lines, l) },
		"sh", "-c", "echo one; echo two >&2; echo three")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// stderr is interleaved with stdout; only the line set is deterministic.
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %v", lines)
	}
	seen := strings.Join(lines, ",")
	for _, want := range []string{"one", "two", "three"} {
		if !strings.Contains(seen, want) {
			t.Errorf("missing line %q in %v", want, lines)
		}
	}
}

func TestStream_NonZeroExitAfterOutput(t *testing.T) {
	skipWithoutShell(t)
	r := NewExecRunner()

	var lines []string
	err := r.Stream(context.Background(), func(l string) { lines = append(lines, l) },
		"sh", "-c", "echo partial; exit 1")
	var cmdErr *CmdError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("expected *CmdError, got %v", err)
	}
	if len(lines) != 1 || lines[0] != "partial" {
		t.Errorf("output before the failure must be delivered: %v", lines)
	}
}
