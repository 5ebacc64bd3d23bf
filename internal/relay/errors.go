package relay

import "errors"

var (
	// ErrTimeout is returned by Hub.Query when no reply arrives in time.
	ErrTimeout = errors.New("timed out waiting for reply")
	// ErrMailboxFull is returned when the mailbox depth limit is reached.
	ErrMailboxFull = errors.New("prompt mailbox full")
)

// InferenceError is returned by Hub.Query when the model call for the query
// failed and failures are reported to callers.
type InferenceError struct{ Err error }

func (e *InferenceError) Error() string { return "inference failed: " + e.Err.Error() }

func (e *InferenceError) Unwrap() error { return e.Err }

// IsInferenceError reports whether err carries a failed model call.
func IsInferenceError(err error) bool {
	var ie *InferenceError
	return errors.As(err, &ie)
}
