package scm

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	gkerrors "gatekeeper.dev/gatekeeper/internal/errors"
)

// DefaultCommandTimeout is the default timeout for SCM commands
const DefaultCommandTimeout = 5 * time.Minute

// CommandRunner handles execution of an SCM command line tool in a working directory
type CommandRunner struct {
	command    string
	workingDir string
	env        []string
}

// NewCommandRunner creates a new CommandRunner for command (e.g. "git" or "hg")
func NewCommandRunner(command, workingDir string, env ...string) *CommandRunner {
	return &CommandRunner{command: command, workingDir: workingDir, env: env}
}

// Run executes the command with the given context and returns the trimmed output
func (r *CommandRunner) Run(ctx context.Context, args ...string) (string, error) {
	return r.runInternal(ctx, nil, args...)
}

// RunWithEnv executes the command with additional environment variables
func (r *CommandRunner) RunWithEnv(ctx context.Context, env []string, args ...string) (string, error) {
	return r.runInternal(ctx, env, args...)
}

// RunLines executes the command and returns non-empty output lines
func (r *CommandRunner) RunLines(ctx context.Context, args ...string) ([]string, error) {
	output, err := r.Run(ctx, args...)
	if err != nil {
		return nil, err
	}
	if output == "" {
		return []string{}, nil
	}
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (r *CommandRunner) runInternal(ctx context.Context, env []string, args ...string) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	// If no timeout/deadline is set in the context, add the default one
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCommandTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.command, args...)
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}
	if len(r.env) > 0 || len(env) > 0 {
		cmd.Env = append(append(os.Environ(), r.env...), env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", gkerrors.NewCommandError(r.command, args, stdout.String(), stderr.String(), ctx.Err())
		}
		return "", gkerrors.NewCommandError(r.command, args, stdout.String(), stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// ExitCode returns the process exit code carried by a command error, or -1
func ExitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
