package e2

import (
	"errors"
	"fmt"
)

var (
	// ErrClientStopped is returned by every operation attempted after the
	// client's channels have been closed. No network I/O happens.
	ErrClientStopped = errors.New("e2: client is stopped")

	// ErrSessionClosed is returned by Recv after the session has been
	// closed, or after a task failure has already been delivered.
	ErrSessionClosed = errors.New("e2: subscription session closed")
)

// ProtocolError wraps an error the remote peer explicitly returned for a
// request. Protocol errors are never retried.
type ProtocolError struct {
	Op    string
	Cause error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("e2: %s rejected by peer: %v", e.Op, e.Cause)
}

func (e *ProtocolError) Unwrap() error { return e.Cause }

// ExhaustedError reports that every attempt of an operation failed with a
// transient transport fault.
type ExhaustedError struct {
	Op       string
	Attempts uint
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("e2: %s exceeded %d retry attempts: %v", e.Op, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// TaskError carries the failure detail of a subscription task the control
// plane reported as FAILED. Terminal for the session.
type TaskError struct {
	SubscriptionID SubscriptionID
	Detail         string
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("e2: subscription %s task failed: %s", e.SubscriptionID, e.Detail)
}
