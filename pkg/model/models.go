package model

import "time"

// TherapyMode identifies the protocol profile a session runs under
type TherapyMode string

const (
	ModeMildPain     TherapyMode = "MILD_PAIN"
	ModeModeratePain TherapyMode = "MODERATE_PAIN"
	ModePostActivity TherapyMode = "POST_ACTIVITY"
)

// SessionStatus represents the outcome of a therapy session
type SessionStatus string

const (
	SessionCompleted       SessionStatus = "COMPLETED"
	SessionIncomplete      SessionStatus = "INCOMPLETE"
	SessionTerminatedEarly SessionStatus = "TERMINATED_EARLY"
)

// SensationLevel is the answer to the mandatory mid-session sensation check
type SensationLevel string

const (
	SensationMildWarmth       SensationLevel = "MILD_WARMTH"
	SensationNone             SensationLevel = "NO_SENSATION"
	SensationStrongDiscomfort SensationLevel = "STRONG_DISCOMFORT"
)

// TherapyPhase is a phase of the supervised therapy workflow
type TherapyPhase string

const (
	PhaseIdle             TherapyPhase = "IDLE"
	PhaseQRScan           TherapyPhase = "QR_SCAN"
	PhaseSetup            TherapyPhase = "SETUP"
	PhaseLiveSession      TherapyPhase = "LIVE_SESSION"
	PhaseSessionEnd       TherapyPhase = "SESSION_END"
	PhasePainLogging      TherapyPhase = "PAIN_LOGGING"
	PhaseComplianceReview TherapyPhase = "COMPLIANCE_REVIEW"
)

// ConditionCategory classifies what the plaster is being applied for
type ConditionCategory string

const (
	ConditionInternalPain           ConditionCategory = "INTERNAL_PAIN"
	ConditionExternalPain           ConditionCategory = "EXTERNAL_PAIN"
	ConditionMinorSuperficialWounds ConditionCategory = "MINOR_SUPERFICIAL_WOUNDS"
	ConditionNotSupported           ConditionCategory = "NOT_SUPPORTED"
)

// TherapySession is the immutable record of one completed or early-terminated
// session. It is created only once pain logging finishes and is never updated
// afterwards. PainBefore is always set; PainAfter and SensationCheck are set
// only when pain logging / the sensation check actually happened. A status of
// TERMINATED_EARLY implies a non-empty TerminationReason.
type TherapySession struct {
	ID                string            `json:"id"`
	PlasterID         string            `json:"plaster_id"`
	BodyArea          string            `json:"body_area"`
	Mode              TherapyMode       `json:"mode"`
	Condition         ConditionCategory `json:"condition,omitempty"`
	StartTime         time.Time         `json:"start_time"`
	EndTime           time.Time         `json:"end_time"`
	DurationMinutes   int               `json:"duration_minutes"`
	Status            SessionStatus     `json:"status"`
	SensationCheck    *SensationLevel   `json:"sensation_check,omitempty"`
	PainBefore        int               `json:"pain_before"`
	PainAfter         *int              `json:"pain_after,omitempty"`
	Notes             *string           `json:"notes,omitempty"`
	TerminationReason *string           `json:"termination_reason,omitempty"`
}

// ComplianceMetrics aggregates a user's session history
type ComplianceMetrics struct {
	TotalSessions         int        `json:"total_sessions"`
	CompletedSessions     int        `json:"completed_sessions"`
	IncompleteSessions    int        `json:"incomplete_sessions"`
	ComplianceScore       int        `json:"compliance_score"`
	ConsistencyStreak     int        `json:"consistency_streak"`
	PainTrend             PainTrend  `json:"pain_trend"`
	RecommendConsultation bool       `json:"recommend_consultation"`
	LastSessionTime       *time.Time `json:"last_session_time,omitempty"`
	CooldownEndsAt        *time.Time `json:"cooldown_ends_at,omitempty"`
}

// PainTrend is the direction of recent pain-after readings
type PainTrend string

const (
	TrendImproving        PainTrend = "improving"
	TrendStable           PainTrend = "stable"
	TrendWorsening        PainTrend = "worsening"
	TrendInsufficientData PainTrend = "insufficient_data"
)

// ActiveStateVersion is the current schema version of ActiveSessionState.
// Snapshots with a different version are discarded on read.
const ActiveStateVersion = 1

// ActiveSessionState is the per-user snapshot of an in-flight workflow,
// persisted whenever the phase is outside {IDLE, COMPLIANCE_REVIEW} so an
// interrupted flow can be restored after a restart. SessionStartedAt carries
// the live timer's start so a LIVE_SESSION resume keeps the original countdown.
type ActiveSessionState struct {
	Version           int               `json:"version"`
	Phase             TherapyPhase      `json:"phase"`
	PlasterID         string            `json:"plaster_id,omitempty"`
	BodyArea          string            `json:"body_area,omitempty"`
	Mode              TherapyMode       `json:"mode,omitempty"`
	Condition         ConditionCategory `json:"condition,omitempty"`
	PainBefore        *int              `json:"pain_before,omitempty"`
	SessionStartedAt  *time.Time        `json:"session_started_at,omitempty"`
	SessionStatus     SessionStatus     `json:"session_status,omitempty"`
	SensationChecked  bool              `json:"sensation_checked,omitempty"`
	Sensation         *SensationLevel   `json:"sensation,omitempty"`
	ElapsedMinutes    int               `json:"elapsed_minutes,omitempty"`
	TerminationReason string            `json:"termination_reason,omitempty"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// UserPreferences holds per-user UI/behaviour preferences
type UserPreferences struct {
	DarkMode      bool   `json:"dark_mode"`
	ReminderHours []int  `json:"reminder_hours,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

// DefaultPreferences returns the preferences applied to users who have never
// saved any.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		DarkMode: false,
		Locale:   "en",
	}
}

// Report represents a generated compliance report
type Report struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	DateRangeStart time.Time `json:"date_range_start"`
	DateRangeEnd   time.Time `json:"date_range_end"`
	FilePath       string    `json:"file_path"`
	GeneratedAt    time.Time `json:"generated_at"`
	CreatedAt      time.Time `json:"created_at"`
}
