package engine

import (
	"context"
	"strings"

	"goconnectomist/internal/logger"
	"goconnectomist/pkg/errdefs"
)

// toolAlgorithm names PTK tool failures in runtime errors.
const toolAlgorithm = "PTK"

// Tools runs the PTK command line tools (converters, volume operators).
type Tools struct {
	runner Runner
}

// NewTools returns Tools backed by runner, or by an ExecRunner when runner
// is nil.
func NewTools(runner Runner) *Tools {
	if runner == nil {
		runner = &ExecRunner{}
	}
	return &Tools{runner: runner}
}

// Run resolves name on PATH, then runs it with args followed by the quiet
// flags every PTK tool accepts.
func (t *Tools) Run(ctx context.Context, name string, args ...string) error {
	if _, err := t.runner.LookPath(name); err != nil {
		return errdefs.Configuration(name)
	}

	full := append(append([]string(nil), args...), "-verbose", "False", "-verbosePluginLoading", "False")
	commandLine := strings.Join(append([]string{name}, full...), " ")
	log := logger.FromContext(ctx, "ptk")
	log.Debug().Str("command", commandLine).Msg("running PTK tool")

	res, err := t.runner.Run(ctx, name, full...)
	if err != nil {
		return errdefs.Runtime(toolAlgorithm, commandLine, err.Error())
	}
	if res.ExitCode != 0 {
		return errdefs.Runtime(toolAlgorithm, commandLine, formatOutput(res))
	}
	return nil
}
