package cmd

import (
	"errors"
	"fmt"
)

// Exit codes for the pagewatch CLI
const (
	// ExitSuccess indicates every job ran
	ExitSuccess = 0

	// ExitJobFailure indicates one or more jobs failed, or a value was absent
	ExitJobFailure = 1

	// ExitParseError indicates the watch file could not be parsed
	ExitParseError = 2

	// ExitConfigError indicates the watch file is invalid
	ExitConfigError = 3

	// ExitNetworkError indicates the browser or the store could not be reached
	ExitNetworkError = 4

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries a process exit code out of a command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command to a process exit code
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return ExitJobFailure
}
