package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// SessionRepository stores per-user therapy state on top of the key-value
// store: the immutable session history, the in-flight active-state snapshot,
// preferences, and activated plaster units.
type SessionRepository struct {
	store  *UserDataRepository
	logger *zap.Logger
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(db *pgxpool.Pool, logger *zap.Logger) *SessionRepository {
	return &SessionRepository{
		store:  NewUserDataRepository(db, logger),
		logger: logger,
	}
}

// Store exposes the underlying key-value store for collaborators that need
// raw access (data erasure).
func (r *SessionRepository) Store() *UserDataRepository {
	return r.store
}

// GetSessions returns the user's session history in chronological order.
// Absent or corrupt history reads as empty.
func (r *SessionRepository) GetSessions(ctx context.Context, userID string) ([]model.TherapySession, error) {
	var sessions []model.TherapySession
	if _, err := r.store.Get(ctx, userID, KeySessions, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// AppendSession adds a finished session to the history. The read and write
// run under the per-user lock so concurrent appends cannot lose entries.
func (r *SessionRepository) AppendSession(ctx context.Context, userID string, session model.TherapySession) error {
	err := r.store.WithUserLock(ctx, userID, func(tx pgx.Tx) error {
		var sessions []model.TherapySession
		if _, err := r.store.GetTx(ctx, tx, userID, KeySessions, &sessions); err != nil {
			return err
		}
		sessions = append(sessions, session)
		return r.store.SetTx(ctx, tx, userID, KeySessions, sessions)
	})
	if err != nil {
		return fmt.Errorf("failed to append session: %w", err)
	}

	r.logger.Info("session appended to history",
		zap.String("user_id", userID),
		zap.String("session_id", session.ID),
		zap.String("status", string(session.Status)),
	)
	return nil
}

// GetActiveState returns the persisted in-flight snapshot, nil when absent.
func (r *SessionRepository) GetActiveState(ctx context.Context, userID string) (*model.ActiveSessionState, error) {
	var state model.ActiveSessionState
	found, err := r.store.Get(ctx, userID, KeyActiveState, &state)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	if state.Version != model.ActiveStateVersion {
		r.logger.Warn("active state version mismatch, discarding",
			zap.String("user_id", userID),
			zap.Int("version", state.Version),
		)
		return nil, nil
	}
	return &state, nil
}

// SetActiveState persists the in-flight snapshot.
func (r *SessionRepository) SetActiveState(ctx context.Context, userID string, state model.ActiveSessionState) error {
	return r.store.Set(ctx, userID, KeyActiveState, state)
}

// ClearActiveState removes the in-flight snapshot.
func (r *SessionRepository) ClearActiveState(ctx context.Context, userID string) error {
	return r.store.Delete(ctx, userID, KeyActiveState)
}

// GetPreferences returns stored preferences, defaults when absent.
func (r *SessionRepository) GetPreferences(ctx context.Context, userID string) (model.UserPreferences, error) {
	prefs := model.DefaultPreferences()
	if _, err := r.store.Get(ctx, userID, KeyPreferences, &prefs); err != nil {
		return model.DefaultPreferences(), err
	}
	return prefs, nil
}

// SetPreferences stores the user's preferences.
func (r *SessionRepository) SetPreferences(ctx context.Context, userID string, prefs model.UserPreferences) error {
	return r.store.Set(ctx, userID, KeyPreferences, prefs)
}

// RecordActivatedUnit remembers a plaster unit id the user has activated.
// It reports whether the id was newly recorded; a unit that was activated
// before returns false so callers can reject the re-use.
func (r *SessionRepository) RecordActivatedUnit(ctx context.Context, userID, plasterID string) (bool, error) {
	fresh := false
	err := r.store.WithUserLock(ctx, userID, func(tx pgx.Tx) error {
		var units []string
		if _, err := r.store.GetTx(ctx, tx, userID, KeyActivatedUnits, &units); err != nil {
			return err
		}
		for _, u := range units {
			if u == plasterID {
				return nil
			}
		}
		fresh = true
		units = append(units, plasterID)
		return r.store.SetTx(ctx, tx, userID, KeyActivatedUnits, units)
	})
	if err != nil {
		return false, err
	}
	return fresh, nil
}

// GetActivatedUnits returns every plaster unit id the user has activated.
func (r *SessionRepository) GetActivatedUnits(ctx context.Context, userID string) ([]string, error) {
	var units []string
	if _, err := r.store.Get(ctx, userID, KeyActivatedUnits, &units); err != nil {
		return nil, err
	}
	return units, nil
}

// GetReports returns the user's generated report records.
func (r *SessionRepository) GetReports(ctx context.Context, userID string) ([]model.Report, error) {
	var reports []model.Report
	if _, err := r.store.Get(ctx, userID, KeyReports, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// AppendReport adds a report record under the per-user lock.
func (r *SessionRepository) AppendReport(ctx context.Context, userID string, record model.Report) error {
	return r.store.WithUserLock(ctx, userID, func(tx pgx.Tx) error {
		var reports []model.Report
		if _, err := r.store.GetTx(ctx, tx, userID, KeyReports, &reports); err != nil {
			return err
		}
		reports = append(reports, record)
		return r.store.SetTx(ctx, tx, userID, KeyReports, reports)
	})
}

// EraseAll removes every trace of the user from the store. Irreversible.
func (r *SessionRepository) EraseAll(ctx context.Context, userID string) error {
	if err := r.store.DeleteAll(ctx, userID); err != nil {
		return err
	}
	r.logger.Info("erased all user data", zap.String("user_id", userID))
	return nil
}
