package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saisiddhant-g/ayurnxt-backend/internal/protocol"
	"github.com/saisiddhant-g/ayurnxt-backend/internal/repository"
	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

const strongDiscomfortReason = "Strong discomfort reported during sensation check"

// SessionStore is the persistence surface the orchestrator needs.
type SessionStore interface {
	GetSessions(ctx context.Context, userID string) ([]model.TherapySession, error)
	AppendSession(ctx context.Context, userID string, session model.TherapySession) error
	GetActiveState(ctx context.Context, userID string) (*model.ActiveSessionState, error)
	SetActiveState(ctx context.Context, userID string, state model.ActiveSessionState) error
	ClearActiveState(ctx context.Context, userID string) error
	RecordActivatedUnit(ctx context.Context, userID, plasterID string) (bool, error)
}

var _ SessionStore = (*repository.SessionRepository)(nil)

// userFlow is the in-memory half of one user's workflow: the state machine
// and, during LIVE_SESSION, the running timer. Everything needed to rebuild
// it lives in the persisted ActiveSessionState.
type userFlow struct {
	fsm   *protocol.StateManager
	timer *protocol.SessionTimer
	state model.ActiveSessionState
}

// SessionOrchestrator drives the therapy workflow: it seats every phase
// transition on the state machine, polls the timer, applies cooldown and
// condition policy, and persists a restorable snapshot of in-flight sessions.
//
// All operations serialize on a single mutex; at most one user action or
// timer side effect is applied at a time.
type SessionOrchestrator struct {
	mu    sync.Mutex
	flows map[string]*userFlow

	repo       SessionStore
	catalog    *protocol.Catalog
	cooldown   *protocol.CooldownManager
	compliance *protocol.ComplianceCalculator
	clock      protocol.Clock
	logger     *zap.Logger

	// durationScale compresses session durations for demonstration runs.
	durationScale float64
}

// NewSessionOrchestrator creates a new SessionOrchestrator
func NewSessionOrchestrator(
	repo SessionStore,
	catalog *protocol.Catalog,
	clock protocol.Clock,
	durationScale float64,
	logger *zap.Logger,
) *SessionOrchestrator {
	return &SessionOrchestrator{
		flows:         make(map[string]*userFlow),
		repo:          repo,
		catalog:       catalog,
		cooldown:      protocol.NewCooldownManager(clock),
		compliance:    protocol.NewComplianceCalculator(catalog),
		clock:         clock,
		logger:        logger,
		durationScale: durationScale,
	}
}

// FlowStatus is the poll response: current phase plus, during LIVE_SESSION,
// the timer readings and whether the sensation check should be shown.
type FlowStatus struct {
	Phase             model.TherapyPhase      `json:"phase"`
	PlasterID         string                  `json:"plaster_id,omitempty"`
	BodyArea          string                  `json:"body_area,omitempty"`
	Mode              model.TherapyMode       `json:"mode,omitempty"`
	Condition         model.ConditionCategory `json:"condition,omitempty"`
	RemainingSeconds  int                     `json:"remaining_seconds"`
	ProgressPercent   float64                 `json:"progress_percent"`
	ElapsedMinutes    int                     `json:"elapsed_minutes"`
	SensationCheckDue bool                    `json:"sensation_check_due"`
	SensationChecked  bool                    `json:"sensation_checked"`
}

// getFlow returns the user's in-memory flow, restoring it from the persisted
// snapshot on first touch after a restart. Caller holds the mutex.
func (o *SessionOrchestrator) getFlow(ctx context.Context, userID string) (*userFlow, error) {
	if f, ok := o.flows[userID]; ok {
		return f, nil
	}

	f := &userFlow{
		fsm:   protocol.NewStateManager(),
		state: model.ActiveSessionState{Version: model.ActiveStateVersion, Phase: model.PhaseIdle},
	}

	snapshot, err := o.repo.GetActiveState(ctx, userID)
	if err != nil {
		return nil, err
	}
	if snapshot != nil {
		if err := f.fsm.RestoreTo(snapshot.Phase); err != nil {
			o.logger.Warn("discarding unrestorable snapshot",
				zap.String("user_id", userID),
				zap.String("phase", string(snapshot.Phase)),
				zap.Error(err),
			)
			if derr := o.repo.ClearActiveState(ctx, userID); derr != nil {
				o.logger.Error("failed to clear bad snapshot", zap.Error(derr), zap.String("user_id", userID))
			}
		} else {
			f.state = *snapshot
			if snapshot.Phase == model.PhaseLiveSession && snapshot.SessionStartedAt != nil {
				profile, perr := o.catalog.ModeProfile(snapshot.Mode)
				if perr != nil {
					return nil, fmt.Errorf("restore session timer: %w", perr)
				}
				f.timer = protocol.ResumeSessionTimer(o.clock, *snapshot.SessionStartedAt, profile.DurationMinutes, o.durationScale)
			}
			o.logger.Info("restored in-flight session",
				zap.String("user_id", userID),
				zap.String("phase", string(snapshot.Phase)),
			)
		}
	}

	o.flows[userID] = f
	return f, nil
}

// persist writes or clears the snapshot according to the current phase. IDLE
// and COMPLIANCE_REVIEW carry no restorable work, so their snapshot is removed.
func (o *SessionOrchestrator) persist(ctx context.Context, userID string, f *userFlow) error {
	phase := f.fsm.Current()
	if phase == model.PhaseIdle || phase == model.PhaseComplianceReview {
		return o.repo.ClearActiveState(ctx, userID)
	}
	f.state.Phase = phase
	f.state.Version = model.ActiveStateVersion
	f.state.UpdatedAt = o.clock.Now()
	return o.repo.SetActiveState(ctx, userID, f.state)
}

// transition applies one FSM step and persists. A rejected transition leaves
// both memory and store untouched.
func (o *SessionOrchestrator) transition(ctx context.Context, userID string, f *userFlow, target model.TherapyPhase) error {
	from := f.fsm.Current()
	if !f.fsm.TransitionTo(target) {
		return denied(DenialIllegalTransition, "cannot move from %s to %s", from, target)
	}
	if err := o.persist(ctx, userID, f); err != nil {
		return err
	}
	o.logger.Info("phase transition",
		zap.String("user_id", userID),
		zap.String("from", string(from)),
		zap.String("to", string(target)),
	)
	return nil
}

// BeginScan starts a new workflow run by entering QR_SCAN.
func (o *SessionOrchestrator) BeginScan(ctx context.Context, userID string) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := o.transition(ctx, userID, f, model.PhaseQRScan); err != nil {
		return nil, err
	}
	return o.status(f), nil
}

// CompleteScan records the scanned plaster id and advances to SETUP. An empty
// plasterID means scanning was unavailable and a synthetic id is generated.
func (o *SessionOrchestrator) CompleteScan(ctx context.Context, userID, plasterID string) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.fsm.Current() != model.PhaseQRScan {
		return nil, denied(DenialIllegalTransition, "scan can only complete during QR_SCAN, current phase is %s", f.fsm.Current())
	}

	if plasterID == "" {
		plasterID = protocol.GeneratePlasterID(o.clock)
	}

	fresh, err := o.repo.RecordActivatedUnit(ctx, userID, plasterID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		return nil, denied(DenialInvalidInput, "plaster unit %q has already been activated", plasterID)
	}
	f.state.PlasterID = plasterID

	if err := o.transition(ctx, userID, f, model.PhaseSetup); err != nil {
		return nil, err
	}
	return o.status(f), nil
}

// ConfigureSession captures the setup form: body area, condition category,
// therapy mode and the pre-session pain score. Unsupported conditions are
// denied with their safety notice; the condition's own cooldown is enforced
// against the user's most recent session.
func (o *SessionOrchestrator) ConfigureSession(
	ctx context.Context,
	userID string,
	bodyArea string,
	condition model.ConditionCategory,
	mode model.TherapyMode,
	painBefore int,
) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.fsm.Current() != model.PhaseSetup {
		return nil, denied(DenialIllegalTransition, "session can only be configured during SETUP, current phase is %s", f.fsm.Current())
	}

	if !o.catalog.IsValidBodyArea(bodyArea) {
		return nil, denied(DenialInvalidInput, "unknown body area %q", bodyArea)
	}
	if painBefore < 0 || painBefore > 10 {
		return nil, denied(DenialInvalidInput, "pain score must be between 0 and 10")
	}
	if _, err := o.catalog.ModeProfile(mode); err != nil {
		return nil, denied(DenialInvalidInput, "unknown therapy mode %q", mode)
	}

	sessions, err := o.repo.GetSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	var lastEnd *time.Time
	if len(sessions) > 0 {
		end := sessions[len(sessions)-1].EndTime
		lastEnd = &end
	}
	if decision := o.catalog.CanStartSession(o.clock, condition, lastEnd); !decision.Allowed {
		code := DenialCooldownActive
		if !o.catalog.IsSupported(condition) {
			code = DenialUnsupportedCondition
		}
		return nil, &DeniedError{Code: code, Message: decision.Reason}
	}

	pain := painBefore
	f.state.BodyArea = bodyArea
	f.state.Condition = condition
	f.state.Mode = mode
	f.state.PainBefore = &pain

	if err := o.persist(ctx, userID, f); err != nil {
		return nil, err
	}
	return o.status(f), nil
}

// StartSession moves SETUP to LIVE_SESSION and starts the countdown. The
// cooldown of the user's previous session blocks the start until it clears:
// the prior session's mode governs the delay, not the newly chosen one.
func (o *SessionOrchestrator) StartSession(ctx context.Context, userID string) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.fsm.Current() != model.PhaseSetup {
		return nil, denied(DenialIllegalTransition, "session can only start from SETUP, current phase is %s", f.fsm.Current())
	}
	if f.state.PainBefore == nil || f.state.Mode == "" {
		return nil, denied(DenialInvalidInput, "session is not configured")
	}

	sessions, err := o.repo.GetSessions(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(sessions) > 0 {
		last := sessions[len(sessions)-1]
		profile, perr := o.catalog.ModeProfile(last.Mode)
		if perr != nil {
			// An unrecognized stored mode must not waive the cooldown
			o.logger.Error("stored session has unknown mode, refusing start",
				zap.String("user_id", userID),
				zap.String("session_id", last.ID),
				zap.String("mode", string(last.Mode)),
			)
			return nil, denied(DenialInvalidInput, "previous session has unrecognized mode %q", last.Mode)
		}
		if o.cooldown.InCooldown(last.EndTime, profile.CooldownMinutes) {
			remaining := o.cooldown.RemainingMinutes(last.EndTime, profile.CooldownMinutes)
			return nil, denied(DenialCooldownActive,
				"Cooldown period active. %d minutes remaining before next session.", remaining)
		}
	}

	profile, err := o.catalog.ModeProfile(f.state.Mode)
	if err != nil {
		return nil, denied(DenialInvalidInput, "unknown therapy mode %q", f.state.Mode)
	}

	start := o.clock.Now()
	f.timer = protocol.NewSessionTimer(o.clock, profile.DurationMinutes, o.durationScale)
	f.state.SessionStartedAt = &start
	f.state.SensationChecked = false
	f.state.Sensation = nil

	if err := o.transition(ctx, userID, f, model.PhaseLiveSession); err != nil {
		f.timer = nil
		f.state.SessionStartedAt = nil
		return nil, err
	}
	return o.status(f), nil
}

// Tick polls the live timer and applies at most one side effect: completing
// the session once the duration has elapsed and the sensation check has been
// answered. The sensation prompt itself is signalled through the returned
// status, never triggered twice after an answer.
func (o *SessionOrchestrator) Tick(ctx context.Context, userID string) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}

	if f.fsm.Current() == model.PhaseLiveSession && f.timer != nil {
		// Completion is gated on both the timer and the sensation answer.
		if f.timer.IsComplete() && f.state.SensationChecked {
			f.state.SessionStatus = model.SessionCompleted
			f.state.ElapsedMinutes = f.timer.ElapsedMinutes()
			if err := o.transition(ctx, userID, f, model.PhaseSessionEnd); err != nil {
				return nil, err
			}
		}
	}

	return o.status(f), nil
}

// AnswerSensationCheck records the mid-session skin sensation answer. A
// STRONG_DISCOMFORT answer terminates the session immediately with a recorded
// reason; that termination is final.
func (o *SessionOrchestrator) AnswerSensationCheck(ctx context.Context, userID string, level model.SensationLevel) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.fsm.Current() != model.PhaseLiveSession || f.timer == nil {
		return nil, denied(DenialNoActiveSession, "no live session to answer a sensation check for")
	}
	if f.state.SensationChecked {
		return nil, denied(DenialInvalidInput, "sensation check already answered")
	}
	if f.timer.ProgressPercent() < 50 {
		return nil, denied(DenialInvalidInput, "sensation check is not due yet")
	}
	switch level {
	case model.SensationMildWarmth, model.SensationNone, model.SensationStrongDiscomfort:
	default:
		return nil, denied(DenialInvalidInput, "unknown sensation level %q", level)
	}

	sensation := level
	f.state.SensationChecked = true
	f.state.Sensation = &sensation

	if level == model.SensationStrongDiscomfort {
		f.state.SessionStatus = model.SessionTerminatedEarly
		f.state.TerminationReason = strongDiscomfortReason
		f.state.ElapsedMinutes = f.timer.ElapsedMinutes()
		if err := o.transition(ctx, userID, f, model.PhaseSessionEnd); err != nil {
			return nil, err
		}
		o.logger.Warn("session terminated early on strong discomfort",
			zap.String("user_id", userID),
			zap.String("plaster_id", f.state.PlasterID),
		)
		return o.status(f), nil
	}

	if err := o.persist(ctx, userID, f); err != nil {
		return nil, err
	}
	return o.status(f), nil
}

// ProceedToPainLogging acknowledges the session end screen.
func (o *SessionOrchestrator) ProceedToPainLogging(ctx context.Context, userID string) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := o.transition(ctx, userID, f, model.PhasePainLogging); err != nil {
		return nil, err
	}
	return o.status(f), nil
}

// CompletePainLogging records the post-session pain score and notes, appends
// the finished session to the durable history, and advances to the compliance
// review. This is the only point a TherapySession record is created.
func (o *SessionOrchestrator) CompletePainLogging(ctx context.Context, userID string, painAfter *int, notes string) (*model.TherapySession, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.fsm.Current() != model.PhasePainLogging {
		return nil, denied(DenialIllegalTransition, "pain logging can only complete during PAIN_LOGGING, current phase is %s", f.fsm.Current())
	}
	if painAfter != nil && (*painAfter < 0 || *painAfter > 10) {
		return nil, denied(DenialInvalidInput, "pain score must be between 0 and 10")
	}
	if f.state.PainBefore == nil || f.state.SessionStartedAt == nil {
		return nil, denied(DenialNoActiveSession, "no session data to log")
	}

	session := o.buildSession(f, painAfter, notes)
	if err := o.repo.AppendSession(ctx, userID, *session); err != nil {
		return nil, err
	}
	if err := o.transition(ctx, userID, f, model.PhaseComplianceReview); err != nil {
		return nil, err
	}
	return session, nil
}

func (o *SessionOrchestrator) buildSession(f *userFlow, painAfter *int, notes string) *model.TherapySession {
	status := f.state.SessionStatus
	if status == "" {
		status = model.SessionIncomplete
	}
	duration := f.state.ElapsedMinutes
	if status == model.SessionCompleted {
		if profile, err := o.catalog.ModeProfile(f.state.Mode); err == nil {
			duration = profile.DurationMinutes
		}
	}

	start := *f.state.SessionStartedAt
	session := &model.TherapySession{
		ID:              uuid.New().String(),
		PlasterID:       f.state.PlasterID,
		BodyArea:        f.state.BodyArea,
		Mode:            f.state.Mode,
		Condition:       f.state.Condition,
		StartTime:       start,
		EndTime:         o.clock.Now(),
		DurationMinutes: duration,
		Status:          status,
		SensationCheck:  f.state.Sensation,
		PainBefore:      *f.state.PainBefore,
		PainAfter:       painAfter,
	}
	if notes != "" {
		session.Notes = &notes
	}
	if status == model.SessionTerminatedEarly {
		reason := f.state.TerminationReason
		session.TerminationReason = &reason
	}
	return session
}

// StartNewSession loops the compliance review back into a fresh scan.
func (o *SessionOrchestrator) StartNewSession(ctx context.Context, userID string) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	if f.fsm.Current() != model.PhaseComplianceReview {
		return nil, denied(DenialIllegalTransition, "a new session can only start from COMPLIANCE_REVIEW, current phase is %s", f.fsm.Current())
	}
	f.resetSessionData()
	if err := o.transition(ctx, userID, f, model.PhaseQRScan); err != nil {
		return nil, err
	}
	return o.status(f), nil
}

// ReturnToIdle finishes the workflow, dropping any unsaved in-flight state.
// Valid from COMPLIANCE_REVIEW as the normal exit and from any other phase as
// an explicit abandon (logout), which resets the machine outright.
func (o *SessionOrchestrator) ReturnToIdle(ctx context.Context, userID string) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}

	if f.fsm.Current() == model.PhaseComplianceReview {
		if err := o.transition(ctx, userID, f, model.PhaseIdle); err != nil {
			return nil, err
		}
	} else {
		f.fsm.Reset()
		if err := o.persist(ctx, userID, f); err != nil {
			return nil, err
		}
	}
	f.resetSessionData()
	return o.status(f), nil
}

// Status reports the current phase and timer readings without side effects.
func (o *SessionOrchestrator) Status(ctx context.Context, userID string) (*FlowStatus, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	f, err := o.getFlow(ctx, userID)
	if err != nil {
		return nil, err
	}
	return o.status(f), nil
}

// Forget drops the user's in-memory flow. Data erasure calls it so a later
// request rebuilds from the (now empty) store.
func (o *SessionOrchestrator) Forget(userID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.flows, userID)
}

func (f *userFlow) resetSessionData() {
	f.timer = nil
	f.state = model.ActiveSessionState{Version: model.ActiveStateVersion, Phase: f.fsm.Current()}
}

func (o *SessionOrchestrator) status(f *userFlow) *FlowStatus {
	s := &FlowStatus{
		Phase:            f.fsm.Current(),
		PlasterID:        f.state.PlasterID,
		BodyArea:         f.state.BodyArea,
		Mode:             f.state.Mode,
		Condition:        f.state.Condition,
		SensationChecked: f.state.SensationChecked,
	}
	if f.fsm.Current() == model.PhaseLiveSession && f.timer != nil {
		s.RemainingSeconds = f.timer.RemainingSeconds()
		s.ProgressPercent = f.timer.ProgressPercent()
		s.ElapsedMinutes = f.timer.ElapsedMinutes()
		s.SensationCheckDue = s.ProgressPercent >= 50 && !f.state.SensationChecked
	}
	return s
}
