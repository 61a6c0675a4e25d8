package template

import (
	"context"
	"strings"
	"sync"

	"github.com/jbweber/kiln/internal/pve"
)

// recordingRunner records every command and fails those whose command line
// contains a configured substring.
type recordingRunner struct {
	mu sync.Mutex

	failures map[string]pve.Result
	onRun    func(args []string)

	calls []string
}

func newRecordingRunner() *recordingRunner {
	return &recordingRunner{failures: make(map[string]pve.Result)}
}

func (r *recordingRunner) failOn(substr string, exitCode int, stderr string) {
	r.failures[substr] = pve.Result{ExitCode: exitCode, Stderr: stderr}
}

func (r *recordingRunner) Run(ctx context.Context, name string, args ...string) (pve.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	command := strings.TrimSpace(name + " " + strings.Join(args, " "))
	r.calls = append(r.calls, command)

	if r.onRun != nil {
		r.onRun(args)
	}
	if err := ctx.Err(); err != nil {
		return pve.Result{ExitCode: -1}, err
	}
	for substr, res := range r.failures {
		if strings.Contains(command, substr) {
			return res, &pve.ExitError{Command: name, ExitCode: res.ExitCode, Stderr: res.Stderr}
		}
	}
	return pve.Result{}, nil
}

func (r *recordingRunner) ran(substr string) bool {
	for _, c := range r.calls {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}
