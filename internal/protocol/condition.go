package protocol

import (
	"fmt"
	"math"
	"time"

	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// ConditionProfile is the fixed policy for one condition category: what the
// condition covers, how long and how often a session may run, and the skin
// state required before application. Immutable after process start.
type ConditionProfile struct {
	Category          model.ConditionCategory `json:"category"`
	DisplayName       string                  `json:"display_name"`
	Description       string                  `json:"description"`
	Examples          []string                `json:"examples"`
	SessionDuration   string                  `json:"session_duration"`
	MaxSessionsPerDay int                     `json:"max_sessions_per_day"`
	CooldownHours     int                     `json:"cooldown_hours"`
	ProtocolText      string                  `json:"protocol_text"`
	SkinRequirements  []string                `json:"skin_requirements"`
	Contraindication  string                  `json:"contraindication,omitempty"`
	Supported         bool                    `json:"supported"`
	SafetyNotice      string                  `json:"safety_notice,omitempty"`
}

const unsupportedSafetyNotice = `SAFETY NOTICE

Consult a healthcare professional; external plaster therapy is not appropriate for this condition.

This system is designed for external application on intact or appropriately healed skin only. Open wounds, bleeding wounds, and infected wounds require professional medical evaluation and treatment.

Please seek immediate medical attention for:
- Open or actively bleeding wounds
- Signs of infection (redness, swelling, warmth, discharge, fever)
- Deep lacerations or puncture wounds
- Burns beyond superficial first-degree
- Any wound requiring professional wound care

This is not a substitute for medical treatment.`

var conditionProfiles = map[model.ConditionCategory]ConditionProfile{
	model.ConditionInternalPain: {
		Category:    model.ConditionInternalPain,
		DisplayName: "Internal Pain",
		Description: "Deep musculoskeletal pain perceived internally",
		Examples: []string{
			"Joint pain (knee, shoulder, elbow, hip)",
			"Back pain (lower back, upper back)",
			"Muscle ache (deep tissue discomfort)",
			"Chronic stiffness",
			"Arthralgia (joint discomfort)",
		},
		SessionDuration:   "30–45 minutes",
		MaxSessionsPerDay: 1,
		CooldownHours:     10,
		ProtocolText:      "System-defined protocol default based on commonly available practitioner guidance for topical oil applications. Traditional Ayurvedic thailam-based applications often recommend gentle application followed by a period of 30–45 minutes for deep musculoskeletal discomfort. This is a demonstration protocol and not medical advice. Consult a healthcare professional for personalized treatment guidance.",
		SkinRequirements: []string{
			"Intact external skin only",
			"No open wounds or breaks in skin",
			"Clean, dry application area",
		},
		Supported: true,
	},
	model.ConditionExternalPain: {
		Category:    model.ConditionExternalPain,
		DisplayName: "External Pain",
		Description: "Surface-level discomfort on intact skin",
		Examples: []string{
			"Muscle soreness (post-activity)",
			"Sprain discomfort (closed skin)",
			"Localized tenderness",
			"Mild strain",
			"Post-exercise muscle fatigue",
		},
		SessionDuration:   "20–30 minutes",
		MaxSessionsPerDay: 1,
		CooldownHours:     8,
		ProtocolText:      "System-defined protocol default based on commonly available practitioner guidance. Topical oil applications for surface-level discomfort typically recommend 20–30 minutes of application time. This timing is derived from traditional practices where oils like Murivenna are applied and left on the skin for approximately 30 minutes. This is a demonstration protocol and not medical advice. Consult a healthcare professional for personalized treatment guidance.",
		SkinRequirements: []string{
			"Intact external skin only",
			"No open wounds or active bleeding",
			"Clean application area",
		},
		Supported: true,
	},
	model.ConditionMinorSuperficialWounds: {
		Category:    model.ConditionMinorSuperficialWounds,
		DisplayName: "Minor Superficial Wounds",
		Description: "Shallow abrasions, non-bleeding scratches, superficial burns (healed surface only)",
		Examples: []string{
			"Shallow abrasions (non-bleeding)",
			"Minor scratches (surface level, closed)",
			"Superficial burns (first-degree, healed)",
			"Paper cuts (closed, no bleeding)",
			"Minor skin irritation (healed surface)",
		},
		SessionDuration:   "15–20 minutes",
		MaxSessionsPerDay: 1,
		CooldownHours:     12,
		ProtocolText:      "System-defined protocol default for minor superficial wounds with healed surface only. Application time is limited to 15–20 minutes to minimize skin exposure. This protocol applies ONLY to non-bleeding, closed superficial wounds. This is a demonstration protocol and not medical advice. Consult a healthcare professional for wound care guidance.",
		SkinRequirements: []string{
			"Wound surface must be closed and non-bleeding",
			"No active discharge or weeping",
			"No signs of infection (redness, swelling, warmth)",
			"Superficial layer only (no deep tissue involvement)",
			"Clean, dry wound area",
		},
		Contraindication: "Do not apply to open, bleeding, or infected wounds. Discontinue immediately if irritation or discomfort occurs.",
		Supported:        true,
	},
	model.ConditionNotSupported: {
		Category:    model.ConditionNotSupported,
		DisplayName: "Not Supported",
		Description: "Conditions not appropriate for external plaster therapy",
		Examples: []string{
			"Open wounds (actively bleeding)",
			"Infected wounds (pus, discharge, fever)",
			"Deep lacerations",
			"Puncture wounds",
			"Surgical wounds (fresh)",
			"Burns (second-degree or higher)",
			"Ulcers (open)",
			"Skin with active infection",
		},
		SessionDuration:   "N/A",
		MaxSessionsPerDay: 0,
		CooldownHours:     0,
		ProtocolText:      "This condition type is not supported by the Ayurnxt external plaster therapy system.",
		Supported:         false,
		SafetyNotice:      unsupportedSafetyNotice,
	},
}

// ConditionProfile looks up the policy for a condition category.
func (c *Catalog) ConditionProfile(category model.ConditionCategory) (ConditionProfile, error) {
	p, ok := conditionProfiles[category]
	if !ok {
		return ConditionProfile{}, fmt.Errorf("unknown condition category %q", category)
	}
	return p, nil
}

// Conditions returns every condition profile in display order.
func (c *Catalog) Conditions() []ConditionProfile {
	return []ConditionProfile{
		conditionProfiles[model.ConditionInternalPain],
		conditionProfiles[model.ConditionExternalPain],
		conditionProfiles[model.ConditionMinorSuperficialWounds],
		conditionProfiles[model.ConditionNotSupported],
	}
}

// SupportedConditions returns the categories a session may be configured for.
func (c *Catalog) SupportedConditions() []model.ConditionCategory {
	var out []model.ConditionCategory
	for _, p := range c.Conditions() {
		if p.Supported {
			out = append(out, p.Category)
		}
	}
	return out
}

// IsSupported reports whether category may be used to configure a session.
func (c *Catalog) IsSupported(category model.ConditionCategory) bool {
	return conditionProfiles[category].Supported
}

// StartDecision is the outcome of a condition-policy start check. Reason is
// user-facing text populated only on denial.
type StartDecision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// CanStartSession combines the support check and the condition's own cooldown
// into one allow/deny decision. An unsupported category is always denied with
// its safety notice, regardless of the cooldown input. lastSessionTime is nil
// when the user has no prior session for the condition.
func (c *Catalog) CanStartSession(clock Clock, category model.ConditionCategory, lastSessionTime *time.Time) StartDecision {
	profile, ok := conditionProfiles[category]
	if !ok {
		return StartDecision{Allowed: false, Reason: fmt.Sprintf("Unknown condition category %q.", category)}
	}
	if !profile.Supported {
		return StartDecision{Allowed: false, Reason: profile.SafetyNotice}
	}

	if lastSessionTime != nil {
		cooldownEnds := lastSessionTime.Add(time.Duration(profile.CooldownHours) * time.Hour)
		now := clock.Now()
		if now.Before(cooldownEnds) {
			remainingHours := int(math.Ceil(cooldownEnds.Sub(now).Hours()))
			return StartDecision{
				Allowed: false,
				Reason:  fmt.Sprintf("Cooldown period active. %d hours remaining before next session.", remainingHours),
			}
		}
	}
	return StartDecision{Allowed: true}
}

// SessionDurationMinutes resolves the effective session length for a
// condition by taking the upper bound of its duration range.
func (c *Catalog) SessionDurationMinutes(category model.ConditionCategory) int {
	profile, ok := conditionProfiles[category]
	if !ok || !profile.Supported {
		return 0
	}
	var lo, hi int
	if n, _ := fmt.Sscanf(profile.SessionDuration, "%d–%d", &lo, &hi); n == 2 {
		return hi
	}
	if n, _ := fmt.Sscanf(profile.SessionDuration, "%d", &lo); n == 1 {
		return lo
	}
	return 30
}

// FormatCooldownRemaining renders the time left in a condition cooldown as
// "2h 15m" or "45m".
func (c *Catalog) FormatCooldownRemaining(clock Clock, category model.ConditionCategory, lastSessionTime time.Time) string {
	profile := conditionProfiles[category]
	cooldownEnds := lastSessionTime.Add(time.Duration(profile.CooldownHours) * time.Hour)
	remaining := cooldownEnds.Sub(clock.Now())
	if remaining < 0 {
		remaining = 0
	}
	hours := int(remaining / time.Hour)
	minutes := int((remaining % time.Hour) / time.Minute)
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}
