package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

func intPtr(v int) *int { return &v }

func makeSession(status model.SessionStatus, painBefore int, painAfter *int, end time.Time) model.TherapySession {
	return model.TherapySession{
		ID:              "s-" + end.Format("150405"),
		PlasterID:       "AYR-TEST-0001",
		BodyArea:        "knee",
		Mode:            model.ModeMildPain,
		Condition:       model.ConditionInternalPain,
		StartTime:       end.Add(-30 * time.Minute),
		EndTime:         end,
		DurationMinutes: 30,
		Status:          status,
		PainBefore:      painBefore,
		PainAfter:       painAfter,
	}
}

func TestCalculateMetrics_Empty(t *testing.T) {
	calc := NewComplianceCalculator(NewCatalog())

	m := calc.CalculateMetrics(nil)

	assert.Equal(t, 0, m.TotalSessions)
	assert.Equal(t, 0, m.CompletedSessions)
	assert.Equal(t, 0, m.ComplianceScore)
	assert.Equal(t, 0, m.ConsistencyStreak)
	assert.Equal(t, model.TrendInsufficientData, m.PainTrend)
	assert.Nil(t, m.LastSessionTime)
	assert.Nil(t, m.CooldownEndsAt)
}

func TestCalculateMetrics_ScoreAndStreak(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	sessions := []model.TherapySession{
		makeSession(model.SessionCompleted, 5, intPtr(4), base),
		makeSession(model.SessionCompleted, 5, intPtr(4), base.Add(12*time.Hour)),
		makeSession(model.SessionTerminatedEarly, 5, nil, base.Add(24*time.Hour)),
		makeSession(model.SessionCompleted, 5, intPtr(4), base.Add(36*time.Hour)),
	}

	calc := NewComplianceCalculator(NewCatalog())
	m := calc.CalculateMetrics(sessions)

	assert.Equal(t, 4, m.TotalSessions)
	assert.Equal(t, 3, m.CompletedSessions)
	assert.Equal(t, 75, m.ComplianceScore)
	// The early termination breaks the streak; only the trailing COMPLETED counts.
	assert.Equal(t, 1, m.ConsistencyStreak)

	require.NotNil(t, m.LastSessionTime)
	assert.Equal(t, base.Add(36*time.Hour), *m.LastSessionTime)
	require.NotNil(t, m.CooldownEndsAt)
	assert.Equal(t, base.Add(36*time.Hour).Add(240*time.Minute), *m.CooldownEndsAt)
}

func TestCalculateMetrics_ScoreRounds(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	sessions := []model.TherapySession{
		makeSession(model.SessionCompleted, 5, intPtr(4), base),
		makeSession(model.SessionCompleted, 5, intPtr(4), base.Add(12*time.Hour)),
		makeSession(model.SessionIncomplete, 5, nil, base.Add(24*time.Hour)),
	}

	m := NewComplianceCalculator(NewCatalog()).CalculateMetrics(sessions)

	// 2/3 = 66.67 rounds to 67.
	assert.Equal(t, 67, m.ComplianceScore)
}

func TestDetectPainTrend(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	calc := NewComplianceCalculator(NewCatalog())

	completed := func(before, after int, offset time.Duration) model.TherapySession {
		return makeSession(model.SessionCompleted, before, intPtr(after), base.Add(offset))
	}

	t.Run("insufficient data", func(t *testing.T) {
		assert.Equal(t, model.TrendInsufficientData, calc.DetectPainTrend(nil))
		assert.Equal(t, model.TrendInsufficientData,
			calc.DetectPainTrend([]model.TherapySession{completed(6, 4, 0)}))
	})

	t.Run("incomplete sessions do not qualify", func(t *testing.T) {
		sessions := []model.TherapySession{
			completed(6, 4, 0),
			makeSession(model.SessionTerminatedEarly, 6, intPtr(2), base.Add(12*time.Hour)),
		}
		assert.Equal(t, model.TrendInsufficientData, calc.DetectPainTrend(sessions))
	})

	t.Run("improving", func(t *testing.T) {
		sessions := []model.TherapySession{
			completed(7, 5, 0),
			completed(7, 5, 12*time.Hour),
			completed(6, 4, 24*time.Hour),
		}
		assert.Equal(t, model.TrendImproving, calc.DetectPainTrend(sessions))
	})

	t.Run("worsening", func(t *testing.T) {
		sessions := []model.TherapySession{
			completed(4, 6, 0),
			completed(4, 6, 12*time.Hour),
		}
		assert.Equal(t, model.TrendWorsening, calc.DetectPainTrend(sessions))
	})

	t.Run("stable at threshold", func(t *testing.T) {
		// Mean delta exactly -1 is stable, not improving.
		sessions := []model.TherapySession{
			completed(5, 4, 0),
			completed(5, 4, 12*time.Hour),
		}
		assert.Equal(t, model.TrendStable, calc.DetectPainTrend(sessions))
	})

	t.Run("only last three qualifying count", func(t *testing.T) {
		// Old improvements followed by three flat sessions: stable.
		sessions := []model.TherapySession{
			completed(9, 2, 0),
			completed(9, 2, 12*time.Hour),
			completed(5, 5, 24*time.Hour),
			completed(5, 5, 36*time.Hour),
			completed(5, 5, 48*time.Hour),
		}
		assert.Equal(t, model.TrendStable, calc.DetectPainTrend(sessions))
	})
}

func TestShouldRecommendConsultation(t *testing.T) {
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	calc := NewComplianceCalculator(NewCatalog())

	t.Run("worsening trend triggers", func(t *testing.T) {
		sessions := []model.TherapySession{
			makeSession(model.SessionCompleted, 3, intPtr(6), base),
			makeSession(model.SessionCompleted, 3, intPtr(6), base.Add(12*time.Hour)),
		}
		assert.True(t, calc.ShouldRecommendConsultation(sessions))
	})

	t.Run("repeated early terminations trigger", func(t *testing.T) {
		sessions := []model.TherapySession{
			makeSession(model.SessionCompleted, 5, intPtr(5), base),
			makeSession(model.SessionTerminatedEarly, 5, nil, base.Add(12*time.Hour)),
			makeSession(model.SessionCompleted, 5, intPtr(5), base.Add(24*time.Hour)),
			makeSession(model.SessionTerminatedEarly, 5, nil, base.Add(36*time.Hour)),
		}
		assert.True(t, calc.ShouldRecommendConsultation(sessions))
	})

	t.Run("old early terminations outside window do not trigger", func(t *testing.T) {
		sessions := []model.TherapySession{
			makeSession(model.SessionTerminatedEarly, 5, nil, base),
			makeSession(model.SessionTerminatedEarly, 5, nil, base.Add(12*time.Hour)),
		}
		for i := 0; i < 5; i++ {
			sessions = append(sessions,
				makeSession(model.SessionCompleted, 5, intPtr(5), base.Add(time.Duration(24+12*i)*time.Hour)))
		}
		assert.False(t, calc.ShouldRecommendConsultation(sessions))
	})

	t.Run("high recent pain triggers", func(t *testing.T) {
		sessions := []model.TherapySession{
			makeSession(model.SessionCompleted, 8, intPtr(8), base),
			makeSession(model.SessionCompleted, 8, intPtr(7), base.Add(12*time.Hour)),
			makeSession(model.SessionCompleted, 8, intPtr(7), base.Add(24*time.Hour)),
		}
		assert.True(t, calc.ShouldRecommendConsultation(sessions))
	})

	t.Run("healthy history does not trigger", func(t *testing.T) {
		sessions := []model.TherapySession{
			makeSession(model.SessionCompleted, 5, intPtr(5), base),
			makeSession(model.SessionCompleted, 5, intPtr(5), base.Add(12*time.Hour)),
			makeSession(model.SessionCompleted, 5, intPtr(4), base.Add(24*time.Hour)),
		}
		assert.False(t, calc.ShouldRecommendConsultation(sessions))
	})
}
