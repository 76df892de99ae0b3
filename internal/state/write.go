package state

import (
	"context"
	"database/sql"
	"fmt"
)

// SetReferral overwrites the referral fields in a single transaction.
//
// All three fields change together: a reader never observes the new code
// next to the old program id. An empty codeID clears any stored code id
// (older gateway responses omit it).
func (s *Store) SetReferral(ctx context.Context, code, programID, codeID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("set referral: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := upsertValue(ctx, tx, keyReferralCode, code); err != nil {
		return fmt.Errorf("set referral: %w", err)
	}
	if err := upsertValue(ctx, tx, keyProgramID, programID); err != nil {
		return fmt.Errorf("set referral: %w", err)
	}
	if codeID == "" {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attribution_state WHERE key = ?`, keyCodeID); err != nil {
			return fmt.Errorf("set referral: clear code id: %w", err)
		}
	} else {
		if err := upsertValue(ctx, tx, keyCodeID, codeID); err != nil {
			return fmt.Errorf("set referral: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("set referral: commit: %w", err)
	}
	return nil
}

// RecordRegistration commits a confirmed user registration: the external
// user id is set, the auto-generated id is retired, and the user joins the
// registered set. The set insert uses ON CONFLICT DO NOTHING so replays of
// an already recorded registration are harmless.
func (s *Store) RecordRegistration(ctx context.Context, userID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record registration: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := upsertValue(ctx, tx, keyExternalUserID, userID); err != nil {
		return fmt.Errorf("record registration: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM attribution_state WHERE key = ?`, keyAutoGenUserID); err != nil {
		return fmt.Errorf("record registration: clear auto id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO registered_users (user_id) VALUES (?)
		ON CONFLICT(user_id) DO NOTHING
	`, userID); err != nil {
		return fmt.Errorf("record registration: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record registration: commit: %w", err)
	}
	return nil
}

// RecordPurchase commits a confirmed purchase attribution. A non-empty
// autoGenID persists the synthetic identity that the purchase was reported
// under, so later purchases before a real registration reuse it.
func (s *Store) RecordPurchase(ctx context.Context, transactionID, autoGenID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record purchase: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO processed_transactions (transaction_id) VALUES (?)
		ON CONFLICT(transaction_id) DO NOTHING
	`, transactionID); err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	if autoGenID != "" {
		if err := upsertValue(ctx, tx, keyAutoGenUserID, autoGenID); err != nil {
			return fmt.Errorf("record purchase: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record purchase: commit: %w", err)
	}
	return nil
}

// upsertValue writes a scalar field inside an open transaction.
func upsertValue(ctx context.Context, tx *sql.Tx, key, value string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO attribution_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", key, err)
	}
	return nil
}
