package shinara

import (
	"github.com/shinara/shinara-go/internal/engine"
	"github.com/shinara/shinara-go/internal/gateway"
)

// StatusUnknown is reported by StatusOf for failures that never produced
// an HTTP status.
const StatusUnknown = gateway.StatusUnknown

// IsKeyNotSet reports whether err was caused by calling an operation
// before Initialize supplied an API key.
func IsKeyNotSet(err error) bool {
	return engine.IsKeyNotSet(err)
}

// IsValidationFailed reports whether err was caused by a rejected or
// incomplete key/referral code validation.
func IsValidationFailed(err error) bool {
	return engine.IsValidationFailed(err)
}

// IsNoReferralCode reports whether err was caused by registering a user
// before any referral code was resolved.
func IsNoReferralCode(err error) bool {
	return engine.IsNoReferralCode(err)
}

// IsRegistrationFailed reports whether err was caused by a rejected user
// registration.
func IsRegistrationFailed(err error) bool {
	return engine.IsRegistrationFailed(err)
}

// IsAttributionFailed reports whether err was caused by a rejected
// purchase attribution.
func IsAttributionFailed(err error) bool {
	return engine.IsAttributionFailed(err)
}

// IsTransportError reports whether err was caused by a request failing
// below the HTTP layer (connection refused, DNS failure, timeout).
func IsTransportError(err error) bool {
	return gateway.IsTransport(err)
}

// IsDecodeError reports whether err was caused by an undecodable gateway
// response body.
func IsDecodeError(err error) bool {
	return gateway.IsDecode(err)
}

// StatusOf extracts the HTTP status carried by err, or StatusUnknown when
// none applies.
func StatusOf(err error) int {
	return engine.StatusOf(err)
}
