package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/audit"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/azure"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/repository"
	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// PrivacyService handles data-protection operations: full erasure and
// portable export of everything stored for a user. blobClient may be nil
// when no blob storage is wired, erasure then covers the database only.
type PrivacyService struct {
	repo         *repository.SessionRepository
	orchestrator *SessionOrchestrator
	blobClient   azure.BlobStorage
	auditLogger  *audit.Logger
	logger       *zap.Logger
}

// NewPrivacyService creates a new PrivacyService
func NewPrivacyService(
	repo *repository.SessionRepository,
	orchestrator *SessionOrchestrator,
	blobClient azure.BlobStorage,
	auditLogger *audit.Logger,
	logger *zap.Logger,
) *PrivacyService {
	return &PrivacyService{
		repo:         repo,
		orchestrator: orchestrator,
		blobClient:   blobClient,
		auditLogger:  auditLogger,
		logger:       logger,
	}
}

// UserDataExport represents all user data for export
type UserDataExport struct {
	Sessions       []model.TherapySession    `json:"sessions"`
	ActiveState    *model.ActiveSessionState `json:"active_state,omitempty"`
	Preferences    model.UserPreferences     `json:"preferences"`
	ActivatedUnits []string                  `json:"activated_units,omitempty"`
	ExportedAt     time.Time                 `json:"exported_at"`
}

// DeleteUserData erases every stored key for the user (right to be
// forgotten) and drops any in-memory workflow so nothing survives the wipe.
func (s *PrivacyService) DeleteUserData(ctx context.Context, userID, ipAddress, userAgent string) error {
	s.logger.Info("Starting user data deletion",
		zap.String("user_id", userID),
	)

	if err := s.repo.EraseAll(ctx, userID); err != nil {
		return fmt.Errorf("failed to erase user data: %w", err)
	}
	s.orchestrator.Forget(userID)

	// Stored report PDFs live under reports/<userID>/ in blob storage
	if s.blobClient != nil {
		if err := s.blobClient.DeletePrefix(ctx, fmt.Sprintf("reports/%s/", userID)); err != nil {
			s.logger.Error("Failed to delete report blobs",
				zap.Error(err),
				zap.String("user_id", userID),
			)
			return fmt.Errorf("failed to delete report blobs: %w", err)
		}
	}

	if err := s.auditLogger.LogDelete(ctx, userID, string(audit.ResourceUser), userID, ipAddress, userAgent); err != nil {
		s.logger.Error("Failed to log audit entry for user deletion", zap.Error(err))
	}

	s.logger.Info("User data deletion completed",
		zap.String("user_id", userID),
	)
	return nil
}

// ExportUserData exports all user data to JSON (right to data portability).
func (s *PrivacyService) ExportUserData(ctx context.Context, userID, ipAddress, userAgent string) ([]byte, error) {
	s.logger.Info("Starting user data export",
		zap.String("user_id", userID),
	)

	export := UserDataExport{
		ExportedAt: time.Now(),
	}

	sessions, err := s.repo.GetSessions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}
	export.Sessions = sessions

	state, err := s.repo.GetActiveState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active state: %w", err)
	}
	export.ActiveState = state

	prefs, err := s.repo.GetPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}
	export.Preferences = prefs

	units, err := s.repo.GetActivatedUnits(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get activated units: %w", err)
	}
	export.ActivatedUnits = units

	jsonData, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal export data: %w", err)
	}

	if err := s.auditLogger.LogExport(ctx, userID, string(audit.ResourceUser), userID, ipAddress, userAgent); err != nil {
		s.logger.Error("Failed to log audit entry for user export", zap.Error(err))
	}

	s.logger.Info("User data export completed",
		zap.String("user_id", userID),
		zap.Int("sessions", len(export.Sessions)),
		zap.Int("activated_units", len(export.ActivatedUnits)),
	)
	return jsonData, nil
}
