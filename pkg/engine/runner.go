package engine

import (
	"bytes"
	"context"
	"os"
	"os/exec"

	"github.com/pkg/errors"
)

// Result contains the outcome of one subprocess invocation.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte

	// Stderr is the captured standard error.
	Stderr []byte

	// ExitCode is the process exit code, 0 on success.
	ExitCode int
}

// Runner starts external commands. The default implementation is
// ExecRunner; tests substitute a recording fake.
type Runner interface {
	// LookPath resolves a command name the way a shell would.
	LookPath(name string) (string, error)

	// Run executes name with args and waits for it. A non-zero exit is
	// reported through Result.ExitCode, not as an error. The error is
	// reserved for commands that could not be started.
	Run(ctx context.Context, name string, args ...string) (*Result, error)
}

// ExecRunner runs commands with os/exec, inheriting the process environment
// plus Env.
type ExecRunner struct {
	// Env holds extra KEY=VALUE entries appended to the environment.
	Env []string
}

// LookPath implements Runner.
func (r *ExecRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), r.Env...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, errors.Wrapf(err, "starting %s", name)
		}
		exitCode = exitErr.ExitCode()
	}

	return &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

// formatOutput renders captured output the way runtime errors embed it.
func formatOutput(res *Result) string {
	return "STDOUT\n----\n" + string(res.Stdout) + "\nSTDERR\n----\n" + string(res.Stderr)
}
