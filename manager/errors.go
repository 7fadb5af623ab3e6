package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates a handle that does not name a live connection.
	ErrNotFound = errors.New("connection not found")

	// ErrNilTask indicates Connect without a cyclic task.
	ErrNilTask = errors.New("cyclic task is nil")

	// ErrInvalidInterval indicates an unknown polling interval.
	ErrInvalidInterval = errors.New("invalid polling interval")

	// ErrTaskPanic indicates a cyclic task that panicked. The panic value is in the message.
	ErrTaskPanic = errors.New("cyclic task panicked")
)

// TaskError is the terminal error of a worker whose cyclic task failed.
type TaskError struct {
	Handle Handle
	Cycle  uint64
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("manager: %s: cyclic task failed at cycle %d: %v", e.Handle, e.Cycle, e.Err)
}

func (e *TaskError) Unwrap() error { return e.Err }
