package engine

import (
	"errors"
	"fmt"

	"github.com/shinara/shinara-go/internal/gateway"
)

// Error represents a failed engine operation.
//
// Status carries the HTTP status the gateway answered with, or
// gateway.StatusUnknown when the failure happened below the HTTP layer
// (transport, decode) or before any request was issued.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Status is the HTTP status for gateway-reported failures.
	Status int

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeKeyNotSet indicates an operation that requires an API key ran
	// before Initialize supplied one.
	ErrCodeKeyNotSet ErrorCode = "KEY_NOT_SET"

	// ErrCodeValidationFailed indicates key or referral code validation
	// was rejected by the gateway or could not complete.
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// ErrCodeNoReferralCode indicates registration ran without a resolved
	// referral code.
	ErrCodeNoReferralCode ErrorCode = "NO_REFERRAL_CODE"

	// ErrCodeRegistrationFailed indicates the gateway rejected a user
	// registration.
	ErrCodeRegistrationFailed ErrorCode = "REGISTRATION_FAILED"

	// ErrCodeAttributionFailed indicates the gateway rejected a purchase
	// attribution.
	ErrCodeAttributionFailed ErrorCode = "ATTRIBUTION_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Status != gateway.StatusUnknown && e.Status != 0 {
		return fmt.Sprintf("%s: %s (status=%d)", e.Code, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause for errors.Is/As chains, so callers
// can still detect gateway.TransportError and gateway.DecodeError.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsKeyNotSet returns true if the error reports a missing API key.
// Uses errors.As to handle wrapped errors.
func IsKeyNotSet(err error) bool {
	return hasCode(err, ErrCodeKeyNotSet)
}

// IsValidationFailed returns true if the error reports a failed key or
// referral code validation.
func IsValidationFailed(err error) bool {
	return hasCode(err, ErrCodeValidationFailed)
}

// IsNoReferralCode returns true if the error reports a registration
// attempted without a stored referral code.
func IsNoReferralCode(err error) bool {
	return hasCode(err, ErrCodeNoReferralCode)
}

// IsRegistrationFailed returns true if the error reports a rejected user
// registration.
func IsRegistrationFailed(err error) bool {
	return hasCode(err, ErrCodeRegistrationFailed)
}

// IsAttributionFailed returns true if the error reports a rejected
// purchase attribution.
func IsAttributionFailed(err error) bool {
	return hasCode(err, ErrCodeAttributionFailed)
}

// StatusOf extracts the HTTP status carried by an engine error.
// Returns gateway.StatusUnknown when no status applies.
func StatusOf(err error) int {
	var ee *Error
	if errors.As(err, &ee) {
		if ee.Status == 0 {
			return gateway.StatusUnknown
		}
		return ee.Status
	}
	return gateway.StatusOf(err)
}

func hasCode(err error, code ErrorCode) bool {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

// errKeyNotSet creates the error for operations invoked before Initialize.
func errKeyNotSet() *Error {
	return &Error{
		Code:    ErrCodeKeyNotSet,
		Status:  gateway.StatusUnknown,
		Message: "api key is not set",
	}
}

// errNoReferralCode creates the error for registration without a resolved
// referral code.
func errNoReferralCode() *Error {
	return &Error{
		Code:    ErrCodeNoReferralCode,
		Status:  gateway.StatusUnknown,
		Message: "no stored referral code; resolve a referral code before registering a user",
	}
}

// wrapGatewayError maps a gateway failure onto an engine error code while
// keeping the cause reachable through Unwrap.
func wrapGatewayError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Status:  gateway.StatusOf(err),
		Message: message,
		Err:     err,
	}
}
