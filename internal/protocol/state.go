package protocol

import (
	"fmt"

	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// validTransitions is the complete successor table of the therapy workflow.
// Every phase must be visited in order; there is no force transition and no
// short-circuit path (e.g. LIVE_SESSION cannot jump to PAIN_LOGGING).
var validTransitions = map[model.TherapyPhase][]model.TherapyPhase{
	model.PhaseIdle:             {model.PhaseQRScan},
	model.PhaseQRScan:           {model.PhaseSetup},
	model.PhaseSetup:            {model.PhaseLiveSession},
	model.PhaseLiveSession:      {model.PhaseSessionEnd},
	model.PhaseSessionEnd:       {model.PhasePainLogging},
	model.PhasePainLogging:      {model.PhaseComplianceReview},
	model.PhaseComplianceReview: {model.PhaseQRScan, model.PhaseIdle},
}

// StateManager enforces the clinical workflow sequencing. It guarantees a user
// cannot skip the sensation check, skip pain logging, or resume mid-session
// without passing through the documented phases.
//
// StateManager is not safe for concurrent use; callers serialize access.
type StateManager struct {
	current model.TherapyPhase
	history []model.TherapyPhase
}

// NewStateManager creates a StateManager in the IDLE phase.
func NewStateManager() *StateManager {
	return &StateManager{current: model.PhaseIdle}
}

// CanTransitionTo reports whether target is a legal successor of the current
// phase. Pure function of current state, no side effects.
func (m *StateManager) CanTransitionTo(target model.TherapyPhase) bool {
	for _, next := range validTransitions[m.current] {
		if next == target {
			return true
		}
	}
	return false
}

// TransitionTo moves to target if legal, recording the previous phase in the
// history. On an illegal request the state is left untouched and false is
// returned; the caller must not assume the phase changed.
func (m *StateManager) TransitionTo(target model.TherapyPhase) bool {
	if !m.CanTransitionTo(target) {
		return false
	}
	m.history = append(m.history, m.current)
	m.current = target
	return true
}

// Current returns the active phase.
func (m *StateManager) Current() model.TherapyPhase {
	return m.current
}

// History returns the previously visited phases, oldest first. Diagnostics
// only; transition legality never consults it.
func (m *StateManager) History() []model.TherapyPhase {
	out := make([]model.TherapyPhase, len(m.history))
	copy(out, m.history)
	return out
}

// Reset unconditionally returns to IDLE and clears the history. Used both for
// "start a new session" and for logout, regardless of the current phase.
func (m *StateManager) Reset() {
	m.current = model.PhaseIdle
	m.history = nil
}

// RestoreTo rebuilds the manager's state after an external restart by
// replaying the legal transition prefix from IDLE up to phase. Restoration is
// not a single jump: each intermediate phase is visited through TransitionTo,
// so an unreachable target is rejected and the manager stays reset at IDLE.
func (m *StateManager) RestoreTo(phase model.TherapyPhase) error {
	path, ok := pathFromIdle(phase)
	if !ok {
		return fmt.Errorf("phase %s is not reachable from IDLE", phase)
	}
	m.Reset()
	for _, step := range path {
		if !m.TransitionTo(step) {
			m.Reset()
			return fmt.Errorf("replay to %s failed at %s", phase, step)
		}
	}
	return nil
}

// pathFromIdle returns the transition sequence from IDLE to target, excluding
// IDLE itself. The workflow is a single chain with one back-edge, so a linear
// walk suffices.
func pathFromIdle(target model.TherapyPhase) ([]model.TherapyPhase, bool) {
	if target == model.PhaseIdle {
		return nil, true
	}
	chain := []model.TherapyPhase{
		model.PhaseQRScan,
		model.PhaseSetup,
		model.PhaseLiveSession,
		model.PhaseSessionEnd,
		model.PhasePainLogging,
		model.PhaseComplianceReview,
	}
	var path []model.TherapyPhase
	for _, step := range chain {
		path = append(path, step)
		if step == target {
			return path, true
		}
	}
	return nil, false
}

// Phases lists every workflow phase in visiting order.
func Phases() []model.TherapyPhase {
	return []model.TherapyPhase{
		model.PhaseIdle,
		model.PhaseQRScan,
		model.PhaseSetup,
		model.PhaseLiveSession,
		model.PhaseSessionEnd,
		model.PhasePainLogging,
		model.PhaseComplianceReview,
	}
}

// SuccessorsOf returns the legal successor set of a phase.
func SuccessorsOf(phase model.TherapyPhase) []model.TherapyPhase {
	succ := validTransitions[phase]
	out := make([]model.TherapyPhase, len(succ))
	copy(out, succ)
	return out
}
