package flight

import (
	"errors"
	"fmt"
)

// ValidationError is returned when the input normalizes to an empty identifier.
// No request is made for it.
type ValidationError struct {
	Input string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("empty flight number (input %q)", e.Input)
}

// BusinessFailure is a well-formed response that carries no usable flight:
// a non-ok status, a missing flight, or flight.error.
type BusinessFailure struct {
	Message    string // flight.error text, empty when the backend gave none
	StatusCode int
}

func (e *BusinessFailure) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("no flight data (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("lookup failed (status %d): %s", e.StatusCode, e.Message)
}

// TransportFailure means the request itself failed or the body could not be decoded
type TransportFailure struct {
	Err error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("lookup transport failure: %v", e.Err)
}

func (e *TransportFailure) Unwrap() error { return e.Err }

// ErrNotFound is returned by providers when a flight or station has no data
var ErrNotFound = errors.New("not found")
