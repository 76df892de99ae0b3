package state

import (
	"context"
	"fmt"
)

// Snapshot is a full copy of the persisted attribution state.
//
// The engine loads one snapshot at startup and keeps it in sync with the
// store on every confirmed mutation, so reads never touch the database.
type Snapshot struct {
	ReferralCode   string
	ProgramID      string
	CodeID         string
	ExternalUserID string
	AutoGenUserID  string

	RegisteredUsers       map[string]struct{}
	ProcessedTransactions map[string]struct{}
}

// Load reads the complete attribution state from the database.
// Returns a snapshot with initialized (possibly empty) sets.
func (s *Store) Load(ctx context.Context) (Snapshot, error) {
	snap := Snapshot{
		RegisteredUsers:       make(map[string]struct{}),
		ProcessedTransactions: make(map[string]struct{}),
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM attribution_state
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("query attribution state: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Snapshot{}, fmt.Errorf("scan attribution state: %w", err)
		}
		switch key {
		case keyReferralCode:
			snap.ReferralCode = value
		case keyProgramID:
			snap.ProgramID = value
		case keyCodeID:
			snap.CodeID = value
		case keyExternalUserID:
			snap.ExternalUserID = value
		case keyAutoGenUserID:
			snap.AutoGenUserID = value
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterate attribution state: %w", err)
	}

	if err := s.loadSet(ctx, "SELECT user_id FROM registered_users", snap.RegisteredUsers); err != nil {
		return Snapshot{}, fmt.Errorf("load registered users: %w", err)
	}
	if err := s.loadSet(ctx, "SELECT transaction_id FROM processed_transactions", snap.ProcessedTransactions); err != nil {
		return Snapshot{}, fmt.Errorf("load processed transactions: %w", err)
	}

	return snap, nil
}

// loadSet reads a single-column id table into the given set.
func (s *Store) loadSet(ctx context.Context, query string, dst map[string]struct{}) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		dst[id] = struct{}{}
	}
	return rows.Err()
}
