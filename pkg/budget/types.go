package budget

import (
	"errors"

	"mercator-hq/sentinel/pkg/notify"
)

// ErrStateWrite is returned when the alert state could not be persisted.
// No alert is sent in that case and the result is flagged for review.
var ErrStateWrite = errors.New("alert state not persisted")

// Level is the alert state of a (service, month) pair. The value is the
// crossed threshold in percent, which is also its stored representation.
type Level int

const (
	LevelNormal   Level = 0
	LevelWarned   Level = 70
	LevelCritical Level = 90
)

// String returns the alert level name used in notifications.
func (l Level) String() string {
	switch {
	case l >= LevelCritical:
		return "critical"
	case l >= LevelWarned:
		return "warning"
	default:
		return "normal"
	}
}

// Action is the outcome of a budget check.
type Action string

const (
	// ActionNone means no transition: below the warning threshold or the
	// current level was already alerted.
	ActionNone Action = "none"

	// ActionAlerted means this check raised the level and notified.
	ActionAlerted Action = "alerted"

	// ActionSkipped means the check could not be evaluated (no budget
	// configured or no cost estimate). No alert is sent.
	ActionSkipped Action = "skipped"

	// ActionReview means the alert state or the notification failed. The
	// outcome needs manual review.
	ActionReview Action = "review"
)

// Result is the outcome of CheckBudget.
type Result struct {
	Service string  `json:"service"`
	Month   string  `json:"month"`
	Amount  float64 `json:"amount"`
	Limit   float64 `json:"limit"`
	Ratio   float64 `json:"ratio"`

	// Target is the level the current spend corresponds to.
	Target Level `json:"target"`

	Action Action `json:"action"`

	// Alert is set when a notification was attempted.
	Alert *notify.Alert `json:"alert,omitempty"`

	// NeedsReview is set when an alert may have been missed or duplicated.
	NeedsReview bool `json:"needs_review"`

	// Reason explains skipped and review outcomes.
	Reason string `json:"reason,omitempty"`
}

// Status is the read-only budget state shown on the status surface.
type Status struct {
	Service   string  `json:"service"`
	Month     string  `json:"month"`
	Amount    float64 `json:"amount"`
	Limit     float64 `json:"limit"`
	Ratio     float64 `json:"ratio"`
	Level     string  `json:"level"`
	Available bool    `json:"available"`
}
