package protocol

import (
	"math"
	"time"

	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// ComplianceCalculator derives aggregate adherence metrics from a user's
// chronological session history. All methods are pure; the history slice is
// never mutated.
type ComplianceCalculator struct {
	catalog *Catalog
}

// NewComplianceCalculator creates a calculator backed by the protocol catalog
// (needed to resolve the cooldown of the most recent session's mode).
func NewComplianceCalculator(catalog *Catalog) *ComplianceCalculator {
	return &ComplianceCalculator{catalog: catalog}
}

// CalculateMetrics computes the full metric set for sessions, which must be
// in chronological order (oldest first).
func (c *ComplianceCalculator) CalculateMetrics(sessions []model.TherapySession) model.ComplianceMetrics {
	m := model.ComplianceMetrics{
		TotalSessions: len(sessions),
		PainTrend:     c.DetectPainTrend(sessions),
	}
	if len(sessions) == 0 {
		return m
	}

	for _, s := range sessions {
		if s.Status == model.SessionCompleted {
			m.CompletedSessions++
		} else {
			m.IncompleteSessions++
		}
	}
	m.ComplianceScore = int(math.Round(float64(m.CompletedSessions) / float64(m.TotalSessions) * 100))

	for i := len(sessions) - 1; i >= 0; i-- {
		if sessions[i].Status != model.SessionCompleted {
			break
		}
		m.ConsistencyStreak++
	}

	last := sessions[len(sessions)-1]
	lastEnd := last.EndTime
	m.LastSessionTime = &lastEnd
	if profile, err := c.catalog.ModeProfile(last.Mode); err == nil {
		endsAt := lastEnd.Add(time.Duration(profile.CooldownMinutes) * time.Minute)
		m.CooldownEndsAt = &endsAt
	}

	m.RecommendConsultation = c.ShouldRecommendConsultation(sessions)
	return m
}

// DetectPainTrend classifies the recent pain trajectory. Only COMPLETED
// sessions with a recorded pain-after value qualify; with fewer than 2 the
// trend is insufficient_data. The mean of painAfter - painBefore over the
// last 3 qualifying sessions decides: < -1 improving, > 1 worsening, else
// stable.
func (c *ComplianceCalculator) DetectPainTrend(sessions []model.TherapySession) model.PainTrend {
	qualifying := sessionsWithPainAfter(sessions)
	if len(qualifying) < 2 {
		return model.TrendInsufficientData
	}
	recent := lastN(qualifying, 3)

	var sum float64
	for _, s := range recent {
		sum += float64(*s.PainAfter - s.PainBefore)
	}
	mean := sum / float64(len(recent))

	switch {
	case mean < -1:
		return model.TrendImproving
	case mean > 1:
		return model.TrendWorsening
	default:
		return model.TrendStable
	}
}

// ShouldRecommendConsultation flags histories that warrant practitioner
// review. The three checks are independent and OR-combined: a worsening pain
// trend, two or more early terminations within the last 5 sessions, or a
// mean recent pain-after of 7 or higher.
func (c *ComplianceCalculator) ShouldRecommendConsultation(sessions []model.TherapySession) bool {
	if c.DetectPainTrend(sessions) == model.TrendWorsening {
		return true
	}

	earlyTerminations := 0
	for _, s := range lastN(sessions, 5) {
		if s.Status == model.SessionTerminatedEarly {
			earlyTerminations++
		}
	}
	if earlyTerminations >= 2 {
		return true
	}

	recent := lastN(sessionsWithPainAfter(sessions), 3)
	if len(recent) > 0 {
		var sum float64
		for _, s := range recent {
			sum += float64(*s.PainAfter)
		}
		if sum/float64(len(recent)) >= 7 {
			return true
		}
	}
	return false
}

func sessionsWithPainAfter(sessions []model.TherapySession) []model.TherapySession {
	var out []model.TherapySession
	for _, s := range sessions {
		if s.Status == model.SessionCompleted && s.PainAfter != nil {
			out = append(out, s)
		}
	}
	return out
}

func lastN(sessions []model.TherapySession, n int) []model.TherapySession {
	if len(sessions) <= n {
		return sessions
	}
	return sessions[len(sessions)-n:]
}
