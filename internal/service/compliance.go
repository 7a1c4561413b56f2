package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/protocol"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/repository"
	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// SessionHistory is the read-only slice of the store analytics needs.
type SessionHistory interface {
	GetSessions(ctx context.Context, userID string) ([]model.TherapySession, error)
}

var _ SessionHistory = (*repository.SessionRepository)(nil)

// ComplianceService surfaces adherence analytics over a user's session
// history.
type ComplianceService struct {
	repo       SessionHistory
	calculator *protocol.ComplianceCalculator
	catalog    *protocol.Catalog
	cooldown   *protocol.CooldownManager
	clock      protocol.Clock
	advice     AdviceGenerator
	logger     *zap.Logger
}

// NewComplianceService creates a new ComplianceService. advice may be nil;
// the overview then omits the adherence summary.
func NewComplianceService(
	repo SessionHistory,
	catalog *protocol.Catalog,
	clock protocol.Clock,
	advice AdviceGenerator,
	logger *zap.Logger,
) *ComplianceService {
	return &ComplianceService{
		repo:       repo,
		calculator: protocol.NewComplianceCalculator(catalog),
		catalog:    catalog,
		cooldown:   protocol.NewCooldownManager(clock),
		clock:      clock,
		advice:     advice,
		logger:     logger,
	}
}

// ComplianceOverview is the full analytics payload for the review screen.
type ComplianceOverview struct {
	Metrics            model.ComplianceMetrics `json:"metrics"`
	Sessions           []model.TherapySession  `json:"sessions"`
	InCooldown         bool                    `json:"in_cooldown"`
	CooldownMinutes    int                     `json:"cooldown_minutes_remaining,omitempty"`
	ConsultationNotice string                  `json:"consultation_notice,omitempty"`
	ByMode             []GroupBreakdown        `json:"by_mode"`
	ByArea             []GroupBreakdown        `json:"by_area"`
	AdherenceSummary   string                  `json:"adherence_summary,omitempty"`
}

// GroupBreakdown counts sessions sharing a mode or body area.
type GroupBreakdown struct {
	Key       string `json:"key"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
}

const consultationNotice = "Your recent sessions suggest consulting a healthcare practitioner before continuing therapy."

// GetOverview computes metrics and cooldown state over the stored history.
func (s *ComplianceService) GetOverview(ctx context.Context, userID string) (*ComplianceOverview, error) {
	sessions, err := s.repo.GetSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	metrics := s.calculator.CalculateMetrics(sessions)
	overview := &ComplianceOverview{
		Metrics:  metrics,
		Sessions: sessions,
		ByMode: breakdownBy(sessions, func(sess model.TherapySession) string {
			return string(sess.Mode)
		}),
		ByArea: breakdownBy(sessions, func(sess model.TherapySession) string {
			return sess.BodyArea
		}),
	}

	if len(sessions) > 0 {
		last := sessions[len(sessions)-1]
		if profile, perr := s.catalog.ModeProfile(last.Mode); perr == nil {
			overview.InCooldown = s.cooldown.InCooldown(last.EndTime, profile.CooldownMinutes)
			if overview.InCooldown {
				overview.CooldownMinutes = s.cooldown.RemainingMinutes(last.EndTime, profile.CooldownMinutes)
			}
		}
	}
	if metrics.RecommendConsultation {
		overview.ConsultationNotice = consultationNotice
	}

	if s.advice != nil && metrics.TotalSessions > 0 {
		summary := fmt.Sprintf(
			"Sessions: %d total, %d completed, %d incomplete. Compliance score: %d%%. Consistency streak: %d. Pain trend: %s.",
			metrics.TotalSessions, metrics.CompletedSessions, metrics.IncompleteSessions,
			metrics.ComplianceScore, metrics.ConsistencyStreak, metrics.PainTrend,
		)
		text, aerr := s.advice.GenerateGuidance(ctx, summary)
		if aerr != nil {
			s.logger.Warn("adherence summary generation failed", zap.Error(aerr))
		} else {
			overview.AdherenceSummary = text
		}
	}

	s.logger.Info("compliance overview computed",
		zap.String("user_id", userID),
		zap.Int("total_sessions", metrics.TotalSessions),
		zap.Int("compliance_score", metrics.ComplianceScore),
		zap.String("pain_trend", string(metrics.PainTrend)),
		zap.Bool("recommend_consultation", metrics.RecommendConsultation),
	)
	return overview, nil
}

// GetMetrics returns only the aggregate metrics.
func (s *ComplianceService) GetMetrics(ctx context.Context, userID string) (model.ComplianceMetrics, error) {
	sessions, err := s.repo.GetSessions(ctx, userID)
	if err != nil {
		return model.ComplianceMetrics{}, err
	}
	return s.calculator.CalculateMetrics(sessions), nil
}

// GetHistory returns the session history, most recent last, optionally
// limited to sessions ending on or after since.
func (s *ComplianceService) GetHistory(ctx context.Context, userID string, since *time.Time) ([]model.TherapySession, error) {
	sessions, err := s.repo.GetSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if since == nil {
		return sessions, nil
	}
	var out []model.TherapySession
	for _, session := range sessions {
		if !session.EndTime.Before(*since) {
			out = append(out, session)
		}
	}
	return out, nil
}

// ExportHistoryCSV renders the session history as a CSV document for
// download from the review screen.
func (s *ComplianceService) ExportHistoryCSV(ctx context.Context, userID string) ([]byte, error) {
	sessions, err := s.repo.GetSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"session_id", "plaster_id", "body_area", "mode", "condition",
		"start_time", "end_time", "duration_minutes", "status",
		"sensation_check", "pain_before", "pain_after", "termination_reason", "notes",
	}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, sess := range sessions {
		row := []string{
			sess.ID,
			sess.PlasterID,
			sess.BodyArea,
			string(sess.Mode),
			string(sess.Condition),
			sess.StartTime.UTC().Format(time.RFC3339),
			sess.EndTime.UTC().Format(time.RFC3339),
			fmt.Sprintf("%d", sess.DurationMinutes),
			string(sess.Status),
			deref(sensationString(sess.SensationCheck)),
			fmt.Sprintf("%d", sess.PainBefore),
			intPtrString(sess.PainAfter),
			deref(sess.TerminationReason),
			deref(sess.Notes),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV: %w", err)
	}

	s.logger.Info("session history exported as CSV",
		zap.String("user_id", userID),
		zap.Int("session_count", len(sessions)),
	)
	return buf.Bytes(), nil
}

func breakdownBy(sessions []model.TherapySession, keyFn func(model.TherapySession) string) []GroupBreakdown {
	groups := make(map[string]*GroupBreakdown)
	for _, sess := range sessions {
		key := keyFn(sess)
		g, ok := groups[key]
		if !ok {
			g = &GroupBreakdown{Key: key}
			groups[key] = g
		}
		g.Total++
		if sess.Status == model.SessionCompleted {
			g.Completed++
		}
	}

	out := make([]GroupBreakdown, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func intPtrString(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func sensationString(level *model.SensationLevel) *string {
	if level == nil {
		return nil
	}
	s := string(*level)
	return &s
}
