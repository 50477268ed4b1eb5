package testsupport

import (
	"context"
	"path/filepath"
	"sync"

	"reelsmith/internal/toolexec"
)

// StubRunner is a toolexec.Runner for tests. Responses are keyed by the
// binary's base name; unknown binaries succeed with empty output.
type StubRunner struct {
	mu       sync.Mutex
	outputs  map[string][]byte
	errors   map[string]error
	handlers map[string]func(toolexec.Command) (toolexec.Result, error)
	calls    []toolexec.Command
}

// NewStubRunner constructs an empty stub runner.
func NewStubRunner() *StubRunner {
	return &StubRunner{
		outputs:  make(map[string][]byte),
		errors:   make(map[string]error),
		handlers: make(map[string]func(toolexec.Command) (toolexec.Result, error)),
	}
}

// Respond registers a canned output and error for a binary.
func (r *StubRunner) Respond(binary string, output []byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[binary] = output
	r.errors[binary] = err
}

// Handle registers a function invoked for each call to a binary. Handlers
// take precedence over canned responses and can create output files.
func (r *StubRunner) Handle(binary string, fn func(toolexec.Command) (toolexec.Result, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[binary] = fn
}

// Run records the command and returns the configured response.
func (r *StubRunner) Run(_ context.Context, cmd toolexec.Command) (toolexec.Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, cmd)
	key := filepath.Base(cmd.Binary)
	handler := r.handlers[key]
	output := r.outputs[key]
	err := r.errors[key]
	r.mu.Unlock()

	if handler != nil {
		return handler(cmd)
	}
	return toolexec.Result{Output: output}, err
}

// Calls returns a copy of every command the runner has observed.
func (r *StubRunner) Calls() []toolexec.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]toolexec.Command, len(r.calls))
	copy(out, r.calls)
	return out
}

// CallsFor returns only the recorded commands for a given binary base name.
func (r *StubRunner) CallsFor(binary string) []toolexec.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []toolexec.Command
	for _, cmd := range r.calls {
		if filepath.Base(cmd.Binary) == binary {
			out = append(out, cmd)
		}
	}
	return out
}
