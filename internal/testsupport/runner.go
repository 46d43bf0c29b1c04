// Package testsupport provides shared helpers for package tests.
package testsupport

import (
	"context"
	"sync"

	"jellyhook/internal/tools"
)

// Call records one invocation observed by a FakeRunner.
type Call struct {
	Binary string
	Args   []string
}

// FakeRunner implements tools.Runner for tests. The Handler decides each
// invocation's outcome; a nil Handler succeeds with empty output.
type FakeRunner struct {
	mu      sync.Mutex
	calls   []Call
	Handler func(binary string, args []string) (tools.Result, error)
}

// Run records the call and delegates to the Handler.
func (f *FakeRunner) Run(_ context.Context, binary string, args ...string) (tools.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Binary: binary, Args: append([]string(nil), args...)})
	f.mu.Unlock()

	if f.Handler == nil {
		return tools.Result{}, nil
	}
	return f.Handler(binary, args)
}

// Calls returns a copy of the recorded invocations.
func (f *FakeRunner) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// Binaries returns the binaries invoked, in call order.
func (f *FakeRunner) Binaries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.calls))
	for _, call := range f.calls {
		names = append(names, call.Binary)
	}
	return names
}

// Invoked reports whether the named binary was ever run.
func (f *FakeRunner) Invoked(binary string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, call := range f.calls {
		if call.Binary == binary {
			return true
		}
	}
	return false
}
