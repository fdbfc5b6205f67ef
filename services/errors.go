package services

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when a chat or image request is already in flight.
// Submissions are not queued; the caller just tries again later.
var ErrBusy = errors.New("another request is already being processed")

// ValidationError reports rejected user input (empty message, missing image).
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError reports a failed call to the inference API: the request
// never completed, or it completed with a non-2xx status.
type TransportError struct {
	Status int    // 0 when the request itself failed
	Body   string // response body, when there was one
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("inference API error %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("inference API call failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MalformedResponseError reports a 2xx inference response whose payload could
// not be parsed into the expected schema, even after JSON extraction.
type MalformedResponseError struct {
	Raw string
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed inference response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// ReferenceNotFoundError reports an UPDATE/DELETE whose target id is not in
// the store. Non-fatal: the mutation degrades to a no-op.
type ReferenceNotFoundError struct {
	ID string
}

func (e *ReferenceNotFoundError) Error() string {
	return fmt.Sprintf("log entry %q not found", e.ID)
}
