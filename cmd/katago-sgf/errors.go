package main

import "fmt"

// Exit codes for CLI commands.
const (
	exitSuccess          = 0
	exitError            = 1
	exitDaemonNotRunning = 2
	exitFileNotFound     = 3
)

// ExitError represents an error that should cause the process to exit with a specific code.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string { return e.Message }

func errDaemonNotRunning() *ExitError {
	return &ExitError{
		Code:    exitDaemonNotRunning,
		Message: "Daemon is not running.\nRun: katago-sgf start",
	}
}

func errFileNotFound(path string) *ExitError {
	return &ExitError{
		Code:    exitFileNotFound,
		Message: fmt.Sprintf("File '%s' not found.", path),
	}
}

func errFilesFailed(failed, total int) *ExitError {
	return &ExitError{
		Code:    exitError,
		Message: fmt.Sprintf("%d of %d files failed.", failed, total),
	}
}
