package core

import (
	"errors"
	"fmt"
)

// ErrAPIKeyMissing means no credential is configured. Nothing can succeed
// without it, so callers surface it before scheduling any work.
var ErrAPIKeyMissing = errors.New("API key is not set")

// RemoteError is a well-formed error answer from the endpoint, including a
// 2xx response whose body carries an error object instead of choices. The
// endpoint understood the request and rejected it, so retrying cannot help.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remote error: " + e.Message
}

// RetryExhaustedError wraps the last error observed after the retry ceiling.
type RetryExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("request failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.Last
}
