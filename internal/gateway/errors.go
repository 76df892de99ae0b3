package gateway

import (
	"errors"
	"fmt"
)

// StatusUnknown is the sentinel status for failures that never produced an
// HTTP response (connection refused, DNS failure, timeout).
const StatusUnknown = -1

// StatusError indicates the gateway answered with a non-200 status.
type StatusError struct {
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("gateway returned status %d", e.StatusCode)
}

// TransportError indicates the request failed before any HTTP status was
// received.
type TransportError struct {
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("gateway request failed: %v", e.Err)
}

// Unwrap exposes the underlying transport failure.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError indicates a 200 response whose body could not be decoded.
type DecodeError struct {
	Err error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("gateway response undecodable: %v", e.Err)
}

// Unwrap exposes the underlying decode failure.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusOf extracts the HTTP status carried by err.
// Returns StatusUnknown for transport and decode failures.
// Uses errors.As to handle wrapped errors.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return StatusUnknown
}

// IsTransport returns true if err is a transport-level failure.
// Uses errors.As to handle wrapped errors.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsDecode returns true if err is a response decode failure.
// Uses errors.As to handle wrapped errors.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
