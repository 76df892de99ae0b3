// Package state provides SQLite-backed durable storage for attribution state.
//
// The store holds a single logical record:
//   - Referral fields: referral code, program id, referral code id
//   - Identity fields: external user id, auto-generated external user id
//   - Dedup sets: registered user ids, processed transaction ids
//
// Scalar fields live in one key/value table; the dedup sets get their own
// tables so membership inserts stay idempotent via primary key constraints.
//
// Every mutator runs in a single transaction. Callers persist only after the
// corresponding remote call has been confirmed, so a crash can lose the local
// record of a successful remote action but never record a failed one.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package state
