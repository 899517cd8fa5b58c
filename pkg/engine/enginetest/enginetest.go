// Package enginetest provides a recording Runner for testing code that
// drives the Connectomist engine without the proprietary binaries.
package enginetest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"goconnectomist/pkg/engine"
)

// Call is one recorded command.
type Call struct {
	Name string
	Args []string
}

// Flag returns the argument following flag, or "" when absent.
func (c Call) Flag(flag string) string {
	for i := 0; i < len(c.Args)-1; i++ {
		if c.Args[i] == flag {
			return c.Args[i+1]
		}
	}
	return ""
}

// String renders the call as a command line.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Handler produces the result of a call.
type Handler func(call Call) (*engine.Result, error)

// Runner records every call and delegates results to Handler. A nil
// Handler succeeds with empty output.
type Runner struct {
	Handler Handler

	// Missing lists command names LookPath fails to resolve.
	Missing map[string]bool

	mu    sync.Mutex
	calls []Call
}

// LookPath implements engine.Runner.
func (r *Runner) LookPath(name string) (string, error) {
	if r.Missing[name] {
		return "", fmt.Errorf("exec: %q: executable file not found in $PATH", name)
	}
	return "/usr/local/bin/" + name, nil
}

// Run implements engine.Runner.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (*engine.Result, error) {
	call := Call{Name: name, Args: append([]string(nil), args...)}
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()

	if r.Handler == nil {
		return &engine.Result{}, nil
	}
	return r.Handler(call)
}

// Calls returns a copy of the recorded calls.
func (r *Runner) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

// CallsTo returns the recorded calls of command name (matched on base name).
func (r *Runner) CallsTo(name string) []Call {
	var out []Call
	for _, c := range r.Calls() {
		if filepath.Base(c.Name) == name {
			out = append(out, c)
		}
	}
	return out
}

// Algorithms returns the engine algorithms invoked, in order.
func (r *Runner) Algorithms() []string {
	var out []string
	for _, c := range r.Calls() {
		if alg := c.Flag("-p"); alg != "" {
			out = append(out, alg)
		}
	}
	return out
}

// Reset forgets the recorded calls.
func (r *Runner) Reset() {
	r.mu.Lock()
	r.calls = nil
	r.mu.Unlock()
}

// CreateOutput is a Handler that writes a small file at the path given by
// the -o flag, mimicking a converter.
func CreateOutput(call Call) (*engine.Result, error) {
	if out := call.Flag("-o"); out != "" {
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return nil, err
		}
		content := fmt.Sprintf("%s %s\n", filepath.Base(call.Name), call.Flag("-i"))
		if err := os.WriteFile(out, []byte(content), 0644); err != nil {
			return nil, err
		}
	}
	return &engine.Result{}, nil
}

// Fail returns a Handler exiting with code and stderr for calls matching
// match, delegating the others to next.
func Fail(match func(Call) bool, code int, stderr string, next Handler) Handler {
	return func(call Call) (*engine.Result, error) {
		if match(call) {
			return &engine.Result{ExitCode: code, Stderr: []byte(stderr)}, nil
		}
		if next == nil {
			return &engine.Result{}, nil
		}
		return next(call)
	}
}

// Launcher writes a fake engine launcher carrying a PTK_RELEASE marker
// (omitted when release is empty) and returns its path.
func Launcher(t testing.TB, release string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "connectomist")
	content := "#!/bin/sh\n"
	if release != "" {
		content += "PTK_RELEASE=" + release + "\n"
	}
	content += "exec ptk \"$@\"\n"
	if err := os.WriteFile(path, []byte(content), 0755); err != nil {
		t.Fatalf("Failed to write launcher: %v", err)
	}
	return path
}

// NewWrapper returns a verified engine.Wrapper over a fake launcher and
// runner.
func NewWrapper(t testing.TB, runner *Runner) *engine.Wrapper {
	t.Helper()
	w, err := engine.NewWrapper(context.Background(), Launcher(t, engine.SupportedRelease), engine.WithRunner(runner))
	if err != nil {
		t.Fatalf("Failed to create wrapper: %v", err)
	}
	runner.Reset()
	return w
}

// Touch creates every path (and its parent directories) with placeholder
// content.
func Touch(t testing.TB, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", filepath.Dir(p), err)
		}
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", p, err)
		}
	}
}
