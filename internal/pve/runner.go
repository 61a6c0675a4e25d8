// Package pve is the boundary between kiln and the Proxmox VE command-line
// tools. Everything kiln learns about the host (used IDs, storages, cloud-init
// snippets) and every change it makes goes through a Runner, so the rest of
// the program can be exercised against a fake.
package pve

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Result is the outcome of one command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stdout and stderr joined, trimmed of surrounding whitespace.
func (r Result) Output() string {
	return strings.TrimSpace(strings.TrimSpace(r.Stdout) + "\n" + strings.TrimSpace(r.Stderr))
}

// Runner executes an external command to completion.
//
// A command that starts and exits non-zero yields a Result with its exit code
// and an *ExitError. A command that cannot be started yields ExitCode -1.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExitError reports a command that ran and exited non-zero.
type ExitError struct {
	Command  string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Command, e.ExitCode)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// sensitiveFlags have their following argument redacted in logs.
var sensitiveFlags = map[string]bool{
	"--cipassword": true,
}

// RedactArgs returns a copy of args safe for logging.
func RedactArgs(args []string) []string {
	out := make([]string, len(args))
	copy(out, args)
	for i := 0; i < len(out)-1; i++ {
		if sensitiveFlags[out[i]] {
			out[i+1] = "********"
			i++
		}
	}
	return out
}

// ExecRunner runs commands on the local host with os/exec.
type ExecRunner struct {
	Logger *zap.Logger
}

// NewExecRunner returns a runner that logs through logger.
func NewExecRunner(logger *zap.Logger) *ExecRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecRunner{Logger: logger}
}

// Run executes name with args and captures its output.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	command := name + " " + strings.Join(RedactArgs(args), " ")
	logger.Debug("running command", zap.String("command", command))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			res.ExitCode = exitErr.ExitCode()
			logger.Debug("command failed",
				zap.String("command", command),
				zap.Int("exit_code", res.ExitCode))
			return res, &ExitError{Command: name, ExitCode: res.ExitCode, Stderr: strings.TrimSpace(res.Stderr)}
		}
		res.ExitCode = -1
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, fmt.Errorf("%s interrupted: %w", name, ctxErr)
		}
		return res, fmt.Errorf("failed to run %s: %w", name, err)
	}

	return res, nil
}
