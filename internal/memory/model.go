package memory

import (
	"time"

	"github.com/google/uuid"
)

// PatientProfile is the longitudinal record for one patient. One row per
// patient, upsert-only; profiles are never hard-deleted.
type PatientProfile struct {
	PatientID      uuid.UUID `json:"patient_id"`
	Age            int       `json:"age,omitempty"`
	Gender         string    `json:"gender,omitempty"`
	Conditions     []string  `json:"conditions,omitempty"`
	Medications    []string  `json:"medications,omitempty"`
	Allergies      []string  `json:"allergies,omitempty"`
	Goals          []string  `json:"goals,omitempty"`
	Habits         []string  `json:"habits,omitempty"`
	TreatmentPlans []string  `json:"treatment_plans,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ConversationTurn is a single message in a patient's conversation history.
// Turns are immutable once written and strictly ordered by timestamp.
type ConversationTurn struct {
	TurnID    uuid.UUID `json:"turn_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Role      string    `json:"role"` // "user" or "agent"
	Text      string    `json:"text"`
	RequestID string    `json:"request_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MemorySummary is a derived, recomputable digest of conversation history.
type MemorySummary struct {
	PatientID       uuid.UUID         `json:"patient_id"`
	Topics          []string          `json:"topics"`
	Preferences     map[string]string `json:"preferences"`
	HealthGoals     []string          `json:"health_goals"`
	LastCompactedAt time.Time         `json:"last_compacted_at"`
}

// Snapshot is what Load hands the orchestrator: profile, summary and the
// recent turn window. Degraded is set when the store could not be reached
// and empty defaults were substituted.
type Snapshot struct {
	Profile     PatientProfile     `json:"profile"`
	Summary     MemorySummary      `json:"summary"`
	RecentTurns []ConversationTurn `json:"recent_turns"`
	Degraded    bool               `json:"degraded"`
}

// UpdateProfileRequest is the API shape for profile upserts.
type UpdateProfileRequest struct {
	Age            int      `json:"age" validate:"omitempty,gte=0,lte=150"`
	Gender         string   `json:"gender" validate:"omitempty,max=32"`
	Conditions     []string `json:"conditions" validate:"omitempty,dive,min=1"`
	Medications    []string `json:"medications" validate:"omitempty,dive,min=1"`
	Allergies      []string `json:"allergies" validate:"omitempty,dive,min=1"`
	Goals          []string `json:"goals" validate:"omitempty,dive,min=1"`
	Habits         []string `json:"habits" validate:"omitempty,dive,min=1"`
	TreatmentPlans []string `json:"treatment_plans" validate:"omitempty,dive,min=1"`
}
