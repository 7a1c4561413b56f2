package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Well-known keys in the per-user durable store.
const (
	KeySessions       = "therapy_sessions"
	KeyActiveState    = "active_session_state"
	KeyPreferences    = "user_preferences"
	KeyActivatedUnits = "activated_units"
	KeyReports        = "reports"
)

// UserDataRepository is a durable per-user key-value store backed by a single
// JSONB table. Keys are independent; callers never get multi-key atomicity
// out of Get/Set/Delete. Read-modify-write sequences that must not lose
// updates go through WithUserLock, which serializes on the user's row set.
type UserDataRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewUserDataRepository creates a new UserDataRepository
func NewUserDataRepository(db *pgxpool.Pool, logger *zap.Logger) *UserDataRepository {
	return &UserDataRepository{
		db:     db,
		logger: logger,
	}
}

// Get unmarshals the stored value for (userID, key) into out. Returns false
// when the key is absent. Stored JSON that no longer parses is treated as
// absent rather than an error: the caller falls back to defaults instead of
// failing the whole request.
func (r *UserDataRepository) Get(ctx context.Context, userID, key string, out any) (bool, error) {
	query := `
		SELECT value
		FROM user_data
		WHERE user_id = $1 AND key = $2
	`

	var raw []byte
	err := r.db.QueryRow(ctx, query, userID, key).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		r.logger.Error("failed to get user data", zap.Error(err), zap.String("user_id", userID), zap.String("key", key))
		return false, fmt.Errorf("failed to get user data: %w", err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		r.logger.Warn("corrupt stored value, treating as absent",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("key", key),
		)
		return false, nil
	}

	return true, nil
}

// Set stores value for (userID, key), replacing any previous value.
func (r *UserDataRepository) Set(ctx context.Context, userID, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal user data: %w", err)
	}

	query := `
		INSERT INTO user_data (user_id, key, value, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`

	_, err = r.db.Exec(ctx, query, userID, key, raw)
	if err != nil {
		r.logger.Error("failed to set user data", zap.Error(err), zap.String("user_id", userID), zap.String("key", key))
		return fmt.Errorf("failed to set user data: %w", err)
	}

	return nil
}

// Delete removes the stored value for (userID, key). Deleting an absent key
// is not an error.
func (r *UserDataRepository) Delete(ctx context.Context, userID, key string) error {
	query := `
		DELETE FROM user_data
		WHERE user_id = $1 AND key = $2
	`

	_, err := r.db.Exec(ctx, query, userID, key)
	if err != nil {
		r.logger.Error("failed to delete user data", zap.Error(err), zap.String("user_id", userID), zap.String("key", key))
		return fmt.Errorf("failed to delete user data: %w", err)
	}

	return nil
}

// DeleteAll removes every stored key for a user. Used by data erasure.
func (r *UserDataRepository) DeleteAll(ctx context.Context, userID string) error {
	query := `
		DELETE FROM user_data
		WHERE user_id = $1
	`

	_, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to delete all user data", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to delete all user data: %w", err)
	}

	return nil
}

// WithUserLock runs fn inside a transaction holding an advisory lock scoped
// to userID. Append-to-history and snapshot updates run under it so two
// concurrent requests for the same user cannot interleave a read-modify-write
// and lose sessions.
func (r *UserDataRepository) WithUserLock(ctx context.Context, userID string, fn func(tx pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
		r.logger.Error("failed to take user lock", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("failed to take user lock: %w", err)
	}

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTx is Get running on an open transaction.
func (r *UserDataRepository) GetTx(ctx context.Context, tx pgx.Tx, userID, key string, out any) (bool, error) {
	var raw []byte
	err := tx.QueryRow(ctx, `SELECT value FROM user_data WHERE user_id = $1 AND key = $2`, userID, key).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to get user data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		r.logger.Warn("corrupt stored value, treating as absent",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("key", key),
		)
		return false, nil
	}
	return true, nil
}

// SetTx is Set running on an open transaction.
func (r *UserDataRepository) SetTx(ctx context.Context, tx pgx.Tx, userID, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal user data: %w", err)
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO user_data (user_id, key, value, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, userID, key, raw)
	if err != nil {
		return fmt.Errorf("failed to set user data: %w", err)
	}
	return nil
}
