package protocol

import (
	"math"
	"time"
)

// CooldownManager answers whether a new session is blocked by the cooldown
// window of a prior session. The cooldown duration always belongs to the
// session that just ended, not to the mode the user wants to start next: the
// prior session governs the next start delay.
//
// All methods are pure reads of the injected clock.
type CooldownManager struct {
	clock Clock
}

// NewCooldownManager creates a cooldown manager around clock.
func NewCooldownManager(clock Clock) *CooldownManager {
	return &CooldownManager{clock: clock}
}

// InCooldown reports whether now is still inside the cooldown window that
// started at lastEnd.
func (c *CooldownManager) InCooldown(lastEnd time.Time, cooldownMinutes int) bool {
	return c.clock.Now().Before(c.EndTime(lastEnd, cooldownMinutes))
}

// RemainingMinutes returns whole minutes until the cooldown clears, rounded
// up, zero once it has cleared.
func (c *CooldownManager) RemainingMinutes(lastEnd time.Time, cooldownMinutes int) int {
	remaining := c.EndTime(lastEnd, cooldownMinutes).Sub(c.clock.Now())
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Minutes()))
}

// EndTime returns the absolute instant the cooldown clears.
func (c *CooldownManager) EndTime(lastEnd time.Time, cooldownMinutes int) time.Time {
	return lastEnd.Add(time.Duration(cooldownMinutes) * time.Minute)
}
