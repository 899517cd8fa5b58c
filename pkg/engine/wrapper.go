// Package engine drives the Connectomist executable and the PTK command
// line tools shipped with it.
package engine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"goconnectomist/internal/logger"
	"goconnectomist/pkg/errdefs"
	"goconnectomist/pkg/paramfile"
)

const (
	// DefaultPath is the usual install location of the engine launcher.
	DefaultPath = "/i2bm/local/Ubuntu-14.04-x86_64/ptk/bin/connectomist"

	// SupportedRelease is the PTK release the parameter sets target.
	SupportedRelease = "5.0"

	// maxLauncherSize bounds how much of the launcher is scanned for the
	// release marker.
	maxLauncherSize = 4 << 20
)

var releasePattern = regexp.MustCompile(`(?m)^\s*(?:export\s+)?PTK_RELEASE=["']?([^"'\s]*)`)

// Engine runs one algorithm with a parameter mapping and returns its output
// directory. *Wrapper is the production implementation.
type Engine interface {
	Run(ctx context.Context, algorithm string, params paramfile.Params, outdir string) (string, error)
}

// Wrapper invokes the Connectomist executable. It is verified once at
// construction and then reused for every stage.
type Wrapper struct {
	path    string
	release string
	runner  Runner
}

// Option configures a Wrapper.
type Option func(*Wrapper)

// WithRunner replaces the subprocess runner.
func WithRunner(r Runner) Option {
	return func(w *Wrapper) {
		w.runner = r
	}
}

// NewWrapper checks that path is a launcher file, warns when its
// PTK_RELEASE marker differs from SupportedRelease and verifies that
// `path --help` exits with status zero.
func NewWrapper(ctx context.Context, path string, opts ...Option) (*Wrapper, error) {
	w := &Wrapper{path: path, runner: &ExecRunner{}}
	for _, opt := range opts {
		opt(w)
	}
	log := logger.FromContext(ctx, "engine")

	release, err := detectRelease(path)
	if err != nil {
		return nil, err
	}
	w.release = release
	switch {
	case release == "":
		log.Debug().Str("path", path).Msg("no PTK_RELEASE marker in launcher")
	case release != SupportedRelease:
		log.Warn().
			Str("installed", release).
			Str("supported", SupportedRelease).
			Msg("installed Connectomist release has not been tested")
	}

	res, err := w.runner.Run(ctx, path, "--help")
	if err != nil || res.ExitCode != 0 {
		return nil, errdefs.Configuration(path)
	}

	log.Debug().Str("path", path).Str("release", release).Msg("engine ready")
	return w, nil
}

// detectRelease returns the PTK_RELEASE value found in the launcher, or an
// empty string when the launcher carries no marker.
func detectRelease(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", errdefs.Configuration(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", errdefs.Configuration(path)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxLauncherSize))
	if err != nil {
		return "", errors.Wrapf(err, "reading launcher '%s'", path)
	}
	match := releasePattern.FindSubmatch(data)
	if match == nil {
		return "", nil
	}
	return string(match[1]), nil
}

// Path returns the launcher path.
func (w *Wrapper) Path() string {
	return w.path
}

// Release returns the detected PTK release, empty when unknown.
func (w *Wrapper) Release() string {
	return w.release
}

// WriteConfig writes the parameter file <outdir>/<algorithm>.py, creating
// outdir when needed, and returns its path.
func (w *Wrapper) WriteConfig(algorithm string, params paramfile.Params, outdir string) (string, error) {
	if err := os.MkdirAll(outdir, 0755); err != nil {
		return "", errors.Wrapf(err, "creating output directory '%s'", outdir)
	}
	data, err := paramfile.EncodeConfig(algorithm, params)
	if err != nil {
		return "", err
	}
	configPath := filepath.Join(outdir, algorithm+".py")
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return "", errors.Wrapf(err, "writing parameter file '%s'", configPath)
	}
	return configPath, nil
}

// Invoke runs `<engine> -p <algorithm> -f <configPath>` and waits for it.
// A non-zero exit is a runtime error embedding the captured output.
func (w *Wrapper) Invoke(ctx context.Context, algorithm, configPath, outdir string) error {
	log := logger.FromContext(ctx, "engine").With().
		Str("algorithm", algorithm).
		Str("outdir", outdir).
		Logger()
	args := []string{"-p", algorithm, "-f", configPath}
	commandLine := strings.Join(append([]string{w.path}, args...), " ")

	log.Info().Msg("invoking Connectomist")
	res, err := w.runner.Run(ctx, w.path, args...)
	if err != nil {
		if ctx.Err() != nil {
			return errors.Wrapf(ctx.Err(), "running '%s'", algorithm)
		}
		return errdefs.Runtime(algorithm, commandLine, err.Error())
	}
	if res.ExitCode != 0 {
		log.Error().Int("exit_code", res.ExitCode).Msg("Connectomist call failed")
		return errdefs.Runtime(algorithm, commandLine, formatOutput(res))
	}
	log.Info().Msg("Connectomist call done")
	return nil
}

// Run writes the parameter file for algorithm into outdir and invokes the
// engine with it. It returns outdir.
func (w *Wrapper) Run(ctx context.Context, algorithm string, params paramfile.Params, outdir string) (string, error) {
	configPath, err := w.WriteConfig(algorithm, params, outdir)
	if err != nil {
		return "", err
	}
	if err := w.Invoke(ctx, algorithm, configPath, outdir); err != nil {
		return "", err
	}
	return outdir, nil
}
