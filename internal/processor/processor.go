// Package processor holds what the media stages share: locating external
// executables and turning their failures into ExternalToolErrors.
package processor

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/abdul-hamid-achik/av-pairtree/internal/apperror"
)

var (
	ErrToolNotFound     = errors.New("processor: executable not found in PATH")
	ErrProcessingFailed = errors.New("processor: processing failed")
	ErrMissingOutput    = errors.New("processor: tool produced no output")
)

// CheckInstalled verifies that the named executable can be run.
func CheckInstalled(name string) (string, error) {
	path, err := exec.LookPath(name)
	if err != nil {
		return "", apperror.Wrap(fmt.Errorf("%w: %v", ErrToolNotFound, err), apperror.KindConfiguration,
			"processor", fmt.Sprintf("%s is not installed", name))
	}
	return path, nil
}

func CommandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

// ToolError describes a failed external command.
type ToolError struct {
	CommandLine string
	ExitCode    int
	Stderr      string
	Err         error
}

func (e *ToolError) Error() string {
	if e.ExitCode >= 0 {
		return fmt.Sprintf("%q exited with code %d: %s", e.CommandLine, e.ExitCode, strings.TrimSpace(e.Stderr))
	}
	return fmt.Sprintf("%q could not be run: %v", e.CommandLine, e.Err)
}

func (e *ToolError) Unwrap() error {
	if e.Err == nil {
		return ErrProcessingFailed
	}
	return errors.Join(ErrProcessingFailed, e.Err)
}

// Failure wraps a command error as an ExternalToolError for op. Exit codes
// are extracted from *exec.ExitError; launch failures report -1.
func Failure(op, cmdline string, err error, stderr []byte) error {
	te := &ToolError{CommandLine: cmdline, ExitCode: -1, Stderr: string(stderr), Err: err}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		te.ExitCode = exitErr.ExitCode()
	}

	return apperror.Wrap(te, apperror.KindExternalTool, op, "external command failed")
}
