// Package gateway implements the JSON HTTP client for the Shinara SDK
// gateway.
//
// All requests go to a single fixed base URL and carry the X-API-Key and
// X-SDK-Platform headers. The client performs no retries and imposes no
// sequencing of its own; the engine owns both.
//
// Failures are typed: *StatusError for a non-200 response, *TransportError
// for request-level failures with no HTTP status, and *DecodeError for a
// 200 whose body cannot be decoded.
package gateway
