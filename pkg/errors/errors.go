package errors

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrStoreClosed indicates an operation on a closed queue store.
	ErrStoreClosed = errors.New("queue store is closed")

	// ErrQueueClosed indicates an offer or lifecycle call on a closed queue.
	ErrQueueClosed = errors.New("queue is closed")
)

// ErrorCategory classifies different types of errors that can occur
// during queue operations. This helps in proper error handling,
// monitoring, and debugging of the system.
type ErrorCategory int

const (
	// ErrorStorage indicates errors related to underlying storage operations
	// such as file I/O, disk space, permissions, or filesystem issues.
	ErrorStorage ErrorCategory = iota + 1

	// ErrorCodec indicates a record that could not be encoded on append
	// or a malformed line that could not be decoded on read.
	ErrorCodec

	// ErrorMarker indicates the marker file could not be read or persisted.
	ErrorMarker

	// ErrorListener indicates the listener failed or panicked while
	// handling a delivered batch.
	ErrorListener

	// ErrorCleanup indicates a consumed segment could not be deleted or archived.
	ErrorCleanup
)

// String returns the string representation of the error category.
// This is useful for logging, metrics, and error reporting.
func (c ErrorCategory) String() string {
	switch c {
	case ErrorStorage:
		return "storage"
	case ErrorCodec:
		return "codec"
	case ErrorMarker:
		return "marker"
	case ErrorListener:
		return "listener"
	case ErrorCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// QueueError wraps a failure with the operation that produced it.
type QueueError struct {
	Err       error
	Operation string
	Timestamp time.Time
	Category  ErrorCategory
}

// NewQueueError creates a QueueError stamped with the current time.
func NewQueueError(category ErrorCategory, operation string, err error) *QueueError {
	return &QueueError{Err: err, Operation: operation, Category: category, Timestamp: time.Now()}
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("[%v] %s: %v", e.Category, e.Operation, e.Err)
}

func (e *QueueError) Unwrap() error {
	return e.Err
}

// IsRetryAble returns whether errors of this category can be retried.
// This helps callers decide whether to retry failed operations.
func (e *QueueError) IsRetryAble() bool {
	switch e.Category {
	case ErrorStorage:
		// Storage errors might be temporary (e.g., disk full, permissions fixed later).
		return true
	case ErrorCodec:
		// A malformed record stays malformed.
		return false
	case ErrorMarker:
		return true
	case ErrorListener:
		return false
	case ErrorCleanup:
		return true
	default:
		return false
	}
}

// IsCategory reports whether err wraps a QueueError of the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var qe *QueueError
	if errors.As(err, &qe) {
		return qe.Category == category
	}
	return false
}
