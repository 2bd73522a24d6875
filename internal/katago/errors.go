package katago

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRunning is returned when a query is submitted without a live engine.
	ErrNotRunning = errors.New("engine not running")
	// ErrBufferFull is returned when buffered engine output exceeds the limit.
	ErrBufferFull = errors.New("engine output buffer full")
	// ErrDuplicateTurn is returned when an (id, turn) pair is already pending.
	ErrDuplicateTurn = errors.New("turn already pending")
	// ErrEngineRestarted fails completions abandoned by a restart.
	ErrEngineRestarted = errors.New("engine restarted")
)

// ProcessOp represents an engine process operation.
type ProcessOp string

const (
	ProcessOpStart ProcessOp = "start"
	ProcessOpReady ProcessOp = "ready"
	ProcessOpExit  ProcessOp = "exit"
)

// ProcessError indicates an engine process operation failed.
type ProcessError struct {
	Op  ProcessOp
	Err error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("%s katago: %v", e.Op, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsProcessError reports whether err indicates an engine process failure.
func IsProcessError(err error) bool {
	var pe *ProcessError
	return errors.As(err, &pe)
}

// EngineError is a query error reported by the engine.
type EngineError struct {
	ID      string
	Message string
	Field   string
}

func (e *EngineError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("query %s: %s (field %s)", e.ID, e.Message, e.Field)
	}
	return fmt.Sprintf("query %s: %s", e.ID, e.Message)
}

// IsEngineError reports whether err is an engine-reported query error.
func IsEngineError(err error) bool {
	var ee *EngineError
	return errors.As(err, &ee)
}

// FrameError reports engine output that was not part of any JSON object.
// It is not fatal; the bytes have been discarded.
type FrameError struct {
	Data []byte
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed engine output %q: %v", e.Data, e.Err)
	}
	return fmt.Sprintf("stray engine output %q", e.Data)
}

func (e *FrameError) Unwrap() error {
	return e.Err
}
