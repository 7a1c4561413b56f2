package protocol

import "time"

// SessionTimer tracks the wall-clock progress of one live plaster session.
// It holds no ticker of its own: callers sample it (RemainingSeconds,
// ProgressPercent, IsComplete) on whatever cadence the UI needs, so a missed
// or delayed poll can never corrupt the timer state.
type SessionTimer struct {
	clock    Clock
	start    time.Time
	duration time.Duration
}

// NewSessionTimer starts a timer for durationMinutes beginning at clock.Now().
// scale compresses the real duration for demonstration runs; scale <= 0 or
// scale == 1 means real time.
func NewSessionTimer(clock Clock, durationMinutes int, scale float64) *SessionTimer {
	return ResumeSessionTimer(clock, clock.Now(), durationMinutes, scale)
}

// ResumeSessionTimer rebuilds a timer around a persisted start instant, so a
// process restart mid-session resumes with the exact remaining time rather
// than restarting the countdown.
func ResumeSessionTimer(clock Clock, startedAt time.Time, durationMinutes int, scale float64) *SessionTimer {
	d := time.Duration(durationMinutes) * time.Minute
	if scale > 0 && scale != 1 {
		d = time.Duration(float64(d) / scale)
	}
	return &SessionTimer{clock: clock, start: startedAt, duration: d}
}

// StartedAt returns the instant the session began.
func (t *SessionTimer) StartedAt() time.Time {
	return t.start
}

// Duration returns the effective (possibly scaled) total duration.
func (t *SessionTimer) Duration() time.Duration {
	return t.duration
}

func (t *SessionTimer) elapsed() time.Duration {
	e := t.clock.Now().Sub(t.start)
	if e < 0 {
		return 0
	}
	return e
}

// RemainingSeconds returns whole seconds until completion, never negative.
func (t *SessionTimer) RemainingSeconds() int {
	remaining := t.duration - t.elapsed()
	if remaining <= 0 {
		return 0
	}
	return int(remaining / time.Second)
}

// ProgressPercent returns completion as 0..100, capped at 100 once the
// duration has elapsed.
func (t *SessionTimer) ProgressPercent() float64 {
	if t.duration <= 0 {
		return 100
	}
	pct := float64(t.elapsed()) / float64(t.duration) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// IsComplete reports whether the full duration has elapsed.
func (t *SessionTimer) IsComplete() bool {
	return t.elapsed() >= t.duration
}

// ElapsedMinutes returns whole minutes since the session began. Used for the
// actual-duration field on terminated sessions.
func (t *SessionTimer) ElapsedMinutes() int {
	return int(t.elapsed() / time.Minute)
}
