// Package cli holds the setup shared by the connectomist commands: config
// loading, logging, engine verification, cancellation and the stage plan
// dump.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"goconnectomist/internal/logger"
	"goconnectomist/pkg/config"
	"goconnectomist/pkg/convert"
	"goconnectomist/pkg/engine"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/plan"
)

// Common are the flags of every command.
type Common struct {
	ConfigPath string
	PlanPath   string
	EnginePath string
	LogLevel   string
	JSONLogs   bool
}

// Bind registers the common flags on cmd.
func (c *Common) Bind(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVar(&c.ConfigPath, "config", "connectomist.yaml", "YAML configuration file")
	f.StringVar(&c.PlanPath, "plan", "", "write the stage plan with the final statuses to this DOT file")
	f.StringVar(&c.EnginePath, "connectomist", "", "Connectomist launcher, overrides the configuration")
	f.StringVar(&c.LogLevel, "log-level", "", "log level, overrides the configuration")
	f.BoolVar(&c.JSONLogs, "json-logs", false, "log JSON events instead of console lines")
}

// Setup loads and validates the configuration, applies the flag overrides
// and attaches the logger to ctx.
func (c *Common) Setup(ctx context.Context) (context.Context, *config.Config, error) {
	cfg, err := config.LoadConfig(c.ConfigPath)
	if err != nil {
		return ctx, nil, err
	}
	if c.EnginePath != "" {
		cfg.Engine.Path = c.EnginePath
	}
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if c.JSONLogs {
		cfg.Logging.Format = "json"
	}
	if err := cfg.Validate(); err != nil {
		return ctx, nil, err
	}

	level := logger.ParseLevel(cfg.Logging.Level)
	var l zerolog.Logger
	if cfg.Logging.Format == "json" {
		l = logger.New(os.Stderr, level)
	} else {
		l = logger.NewConsole(level)
	}
	return l.WithContext(ctx), cfg, nil
}

// Engine verifies the configured launcher and returns the engine wrapper
// with a converter over the PTK tools.
func Engine(ctx context.Context, cfg *config.Config) (*engine.Wrapper, *convert.PTK, error) {
	eng, err := engine.NewWrapper(ctx, cfg.Engine.Path)
	if err != nil {
		return nil, nil, err
	}
	return eng, convert.NewPTK(engine.NewTools(&engine.ExecRunner{})), nil
}

// WritePlan dumps pl to path when path is set. Failures are logged, not
// returned.
func WritePlan(ctx context.Context, pl *plan.Plan, path string) {
	if path == "" || pl == nil {
		return
	}
	log := logger.FromContext(ctx, "cli")
	if err := pl.WriteFile(path); err != nil {
		log.Warn().Err(err).Str("file", path).Msg("unable to write the stage plan")
		return
	}
	log.Info().Str("file", path).Msg("stage plan written")
}

// Execute runs cmd with a context canceled on SIGINT and SIGTERM and
// returns the process exit code.
func Execute(cmd *cobra.Command) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if e, ok := errdefs.As(err); ok {
			return exitCode(e.Kind)
		}
		return 1
	}
	return 0
}

// exitCode separates bad invocations from failed runs.
func exitCode(kind errdefs.Kind) int {
	switch kind {
	case errdefs.KindValidation, errdefs.KindBadManufacturer, errdefs.KindMissingParameters, errdefs.KindBadFile:
		return 2
	case errdefs.KindConfiguration:
		return 3
	}
	return 1
}
