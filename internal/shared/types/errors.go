package types

import (
	"errors"
	"fmt"
)

var (
	// ErrDisposed is returned by mutating operations invoked on a
	// connection after Dispose.
	ErrDisposed = errors.New("session connection is disposed")

	// ErrNotFound is returned when a lookup by id or path matches
	// neither the local cache nor the server.
	ErrNotFound = errors.New("session not found")
)

// TransportError reports a non-success HTTP status or network failure
// from the session service. Surfaced verbatim to the caller; the client
// performs no retries beyond the transport's own policy.
type TransportError struct {
	Op         string
	URL        string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s: transport failure: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Op, e.URL, e.StatusCode, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ValidationError reports a server payload that fails shape checks.
// Unrecoverable for that call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid session model: field %q %s", e.Field, e.Reason)
}

// IsNotFound reports whether err represents the distinguished
// not-found condition, either the sentinel or a 404 transport error.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var te *TransportError
	return errors.As(err, &te) && te.StatusCode == 404
}
