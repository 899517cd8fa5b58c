// Package errdefs defines the error kinds raised while driving the
// Connectomist engine. Every failure surfaced by the pipeline packages is an
// *Error, possibly wrapped with extra context.
package errdefs

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind int

const (
	// KindValidation covers closed-set parameter violations and gradient
	// table inconsistencies.
	KindValidation Kind = iota
	// KindConfiguration means the engine or one of its tools cannot be
	// located or invoked.
	KindConfiguration
	// KindRuntime means an invocation exited with a non-zero status.
	KindRuntime
	// KindBadManufacturer means a vendor name outside the supported set.
	KindBadManufacturer
	// KindMissingParameters means vendor-required fields were left unset.
	KindMissingParameters
	// KindBadFile means a required path is absent or a sidecar is corrupt.
	KindBadFile
	// KindPipeline means a stage ran out of sequence, for example a prior
	// stage directory is missing.
	KindPipeline
)

var kindNames = map[Kind]string{
	KindValidation:        "validation",
	KindConfiguration:     "configuration",
	KindRuntime:           "runtime",
	KindBadManufacturer:   "bad manufacturer",
	KindMissingParameters: "missing parameters",
	KindBadFile:           "bad file",
	KindPipeline:          "pipeline",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the single error type of the module. Only the fields relevant to
// its Kind are set.
type Error struct {
	Kind Kind

	// Command is the engine or tool command that could not be found.
	Command string
	// Algorithm is the engine algorithm (or "PTK" for auxiliary tools).
	Algorithm string
	// CommandLine is the full command line of a failed invocation.
	CommandLine string
	// Output holds the captured stdout and stderr of a failed invocation.
	Output string
	// Manufacturer is the rejected vendor name.
	Manufacturer string
	// Allowed lists the accepted vendor names.
	Allowed []string
	// Missing lists every unset parameter name.
	Missing []string
	// Path is the missing or corrupted file.
	Path string
	// Message is the free-form text of validation and pipeline errors.
	Message string
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConfiguration:
		return fmt.Sprintf("Connectomist command '%s' not found.", e.Command)
	case KindRuntime:
		return fmt.Sprintf("Connectomist call for '%s' failed, with parameters: '%s'. Error:: %s.",
			e.Algorithm, e.CommandLine, e.Output)
	case KindBadManufacturer:
		return fmt.Sprintf("Incorrect manufacturer name: '%s', should be in %v.", e.Manufacturer, e.Allowed)
	case KindMissingParameters:
		return fmt.Sprintf("Missing parameters for '%s': %v.", e.Algorithm, e.Missing)
	case KindBadFile:
		return fmt.Sprintf("Missing or corrupted file: '%s'.", e.Path)
	default:
		return e.Message
	}
}

// Configuration reports an engine binary or tool that cannot be invoked.
func Configuration(command string) error {
	return &Error{Kind: KindConfiguration, Command: command}
}

// Runtime reports a non-zero exit of algorithm.
func Runtime(algorithm, commandLine, output string) error {
	return &Error{Kind: KindRuntime, Algorithm: algorithm, CommandLine: commandLine, Output: output}
}

// BadManufacturer reports a vendor name outside allowed.
func BadManufacturer(name string, allowed []string) error {
	return &Error{Kind: KindBadManufacturer, Manufacturer: name, Allowed: allowed}
}

// MissingParameters reports all unset parameters of algorithm. Names are
// sorted so the message is stable.
func MissingParameters(algorithm string, missing []string) error {
	names := append([]string(nil), missing...)
	sort.Strings(names)
	return &Error{Kind: KindMissingParameters, Algorithm: algorithm, Missing: names}
}

// BadFile reports a missing or corrupted file.
func BadFile(path string) error {
	return &Error{Kind: KindBadFile, Path: path}
}

// Validation reports a rejected parameter value or inconsistent input.
func Validation(format string, args ...interface{}) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Pipeline reports a sequencing problem between stages.
func Pipeline(format string, args ...interface{}) error {
	return &Error{Kind: KindPipeline, Message: fmt.Sprintf(format, args...)}
}

// As extracts the *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err's chain holds an *Error of kind.
func IsKind(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
