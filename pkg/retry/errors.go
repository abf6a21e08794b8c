package retry

import "fmt"

// ValidationError reports malformed input (bad device token shape, missing
// required fields). It is never retried and always surfaced to the
// immediate caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientError reports an infrastructure failure that is expected to
// clear on its own: throttling, 5xx responses, timeouts, connection
// resets. TransientError is retryable under the default classification.
type TransientError struct {
	// Op names the operation that failed.
	Op string

	// StatusCode is the HTTP-equivalent status (0 if not applicable).
	StatusCode int

	// Err is the underlying error.
	Err error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient failure (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient failure: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError reports an infrastructure failure that will not clear by
// retrying: auth failures, resource not found, malformed requests.
type PermanentError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *PermanentError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: permanent failure (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: permanent failure: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// FromStatus wraps err as transient or permanent based on the HTTP status
// code: 429 and 5xx are transient, everything else is permanent.
func FromStatus(op string, status int, err error) error {
	if status == 429 || status >= 500 {
		return &TransientError{Op: op, StatusCode: status, Err: err}
	}
	return &PermanentError{Op: op, StatusCode: status, Err: err}
}
