// Package engine implements the attribution state machine of the Shinara
// SDK.
//
// The engine owns every business rule: API key validation, referral code
// resolution, user registration, purchase attribution, and the policy for
// synthesizing a fallback user identity before a real one exists.
//
// ARCHITECTURE:
//
// Single Serialization Point:
// One mutex guards the API key, the in-memory state snapshot, and the
// in-flight call map. Every operation performs its checks and its commit
// under the lock; only the network call runs outside it. Concurrent calls
// for the same user id or transaction id do not issue duplicate requests -
// later callers wait for the first call's outcome and observe it.
//
// Write-After-Confirm:
// Durable state mutates only after the gateway confirmed the corresponding
// remote action. A crash can lose the local record of a successful remote
// action, never record a failed one.
//
// Identity Policy:
// At most one of the external user id and the auto-generated user id is
// active. The synthetic id is created in memory on the first purchase that
// has no identity, reused across attempts, persisted with the first
// confirmed purchase, and retired forever once a real registration
// succeeds.
//
// The app-open notification fired from Initialize is detached: it runs on
// its own goroutine with a background context, and its failure is logged
// and discarded.
package engine
