// Package runner provides a small abstraction over external process
// execution so that components driving ffmpeg, ffprobe or yt-dlp depend on
// an interface rather than on os/exec directly.
package runner

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Runner executes external commands.
type Runner interface {
	// Run executes a command and returns its stdout.
	// A non-zero exit status is returned as a *CmdError carrying stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)

	// Stream executes a command and invokes onLine for each line of
	// combined output as it is produced. A non-zero exit status is
	// returned as a *CmdError after all lines have been delivered.
	Stream(ctx context.Context, onLine func(line string), name string, args ...string) error
}

// Compile-time check that ExecRunner implements Runner.
var _ Runner = (*ExecRunner)(nil)

// ExecRunner runs commands with exec.CommandContext.
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes a command and captures stdout and stderr separately.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	// #nosec G204 - command names are set by the application, not user input
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		return nil, &CmdError{Name: name, Args: args, Stderr: stderr.String(), Err: err}
	}

	return stdout.Bytes(), nil
}

// Stream executes a command, delivering combined output line by line.
func (r *ExecRunner) Stream(ctx context.Context, onLine func(string), name string, args ...string) error {
	// #nosec G204 - command names are set by the application, not user input
	cmd := exec.CommandContext(ctx, name, args...)

	pipe, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		onLine(scanner.Text())
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%s cancelled: %w", name, ctx.Err())
		}
		return &CmdError{Name: name, Args: args, Err: err}
	}
	return scanner.Err()
}

// CmdError represents a failed external command, including its stderr output.
type CmdError struct {
	Name   string
	Args   []string
	Stderr string
	Err    error
}

func (e *CmdError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s error: %v\nargs: %v", e.Name, e.Err, e.Args)
	}
	return fmt.Sprintf("%s error: %v\nargs: %v\nstderr: %s", e.Name, e.Err, e.Args, e.Stderr)
}

func (e *CmdError) Unwrap() error {
	return e.Err
}
