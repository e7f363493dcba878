package cmd

import (
	"errors"

	"github.com/cqlabs/cqs/internal/signalctl"
)

// exitCodeError lets a command report a specific process exit code (e.g.
// ExitNoResults) without it being treated as a failure message to print.
type exitCodeError struct {
	code signalctl.ExitCode
}

func (e *exitCodeError) Error() string {
	return "" // printed nowhere; Execute() special-cases this error
}

// errExitCode wraps code as an error RunE can return to set the process
// exit code without cobra printing a spurious "Error: " line.
func errExitCode(code signalctl.ExitCode) error {
	return &exitCodeError{code: code}
}

// exitCodeOf extracts the exit code a RunE handler requested via
// errExitCode, if any.
func exitCodeOf(err error) (signalctl.ExitCode, bool) {
	var e *exitCodeError
	if errors.As(err, &e) {
		return e.code, true
	}
	return 0, false
}
