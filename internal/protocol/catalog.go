package protocol

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/saisiddhant-g/ayurnxt-backend/pkg/model"
)

// ModeProfile is the fixed clinical parameter set for one therapy mode.
// Loaded at process start and never mutated.
type ModeProfile struct {
	Mode            model.TherapyMode `json:"mode"`
	DurationMinutes int               `json:"duration_minutes"`
	CooldownMinutes int               `json:"cooldown_minutes"`
	SafetyNotes     []string          `json:"safety_notes"`
}

var modeProfiles = map[model.TherapyMode]ModeProfile{
	model.ModeMildPain: {
		Mode:            model.ModeMildPain,
		DurationMinutes: 30,
		CooldownMinutes: 240,
		SafetyNotes: []string{
			"Do not apply on broken or irritated skin",
			"Remove immediately if strong discomfort occurs",
			"Maximum 3 sessions per day",
		},
	},
	model.ModeModeratePain: {
		Mode:            model.ModeModeratePain,
		DurationMinutes: 45,
		CooldownMinutes: 360,
		SafetyNotes: []string{
			"Do not apply on broken or irritated skin",
			"Remove immediately if strong discomfort occurs",
			"Maximum 2 sessions per day",
			"Consult a practitioner if pain persists beyond 7 days",
		},
	},
	model.ModePostActivity: {
		Mode:            model.ModePostActivity,
		DurationMinutes: 25,
		CooldownMinutes: 180,
		SafetyNotes: []string{
			"Apply within 2 hours after activity",
			"Do not apply on broken or irritated skin",
			"Remove immediately if strong discomfort occurs",
		},
	},
}

// BodyAreas lists the supported application sites in display order.
var BodyAreas = []string{"knee", "shoulder", "lower_back", "neck", "elbow", "ankle"}

// Catalog provides read-only access to the static therapy protocol tables.
type Catalog struct{}

// NewCatalog returns the process-wide protocol catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// ModeProfile looks up the profile for a therapy mode.
func (c *Catalog) ModeProfile(mode model.TherapyMode) (ModeProfile, error) {
	p, ok := modeProfiles[mode]
	if !ok {
		return ModeProfile{}, fmt.Errorf("unknown therapy mode %q", mode)
	}
	return p, nil
}

// Modes returns every known therapy mode profile.
func (c *Catalog) Modes() []ModeProfile {
	return []ModeProfile{
		modeProfiles[model.ModeMildPain],
		modeProfiles[model.ModeModeratePain],
		modeProfiles[model.ModePostActivity],
	}
}

// IsValidBodyArea reports whether area is a supported application site.
func (c *Catalog) IsValidBodyArea(area string) bool {
	for _, a := range BodyAreas {
		if a == area {
			return true
		}
	}
	return false
}

// GeneratePlasterID produces a synthetic plaster unit identifier for flows
// where scanning is unavailable: "AYR-" + base36 timestamp + "-" + 4 random
// base36 characters, all upper case.
func GeneratePlasterID(clock Clock) string {
	ts := strings.ToUpper(strconv.FormatInt(clock.Now().UnixMilli(), 36))
	const alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	suffix := make([]byte, 4)
	for i := range suffix {
		suffix[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return fmt.Sprintf("AYR-%s-%s", ts, suffix)
}
