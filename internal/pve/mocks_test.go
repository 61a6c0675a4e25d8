package pve

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// mockRunner answers commands from a table keyed by the full command line.
type mockRunner struct {
	mu sync.Mutex

	responses map[string]Result
	errors    map[string]error

	calls []string
}

func newMockRunner() *mockRunner {
	return &mockRunner{
		responses: make(map[string]Result),
		errors:    make(map[string]error),
	}
}

func (m *mockRunner) on(command, stdout string) {
	m.responses[command] = Result{Stdout: stdout}
}

func (m *mockRunner) fail(command string, err error) {
	m.errors[command] = err
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	command := strings.TrimSpace(name + " " + strings.Join(args, " "))
	m.calls = append(m.calls, command)

	if err, ok := m.errors[command]; ok {
		return Result{ExitCode: 1}, err
	}
	if res, ok := m.responses[command]; ok {
		return res, nil
	}
	return Result{ExitCode: 127}, fmt.Errorf("unexpected command: %s", command)
}
