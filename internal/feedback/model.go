package feedback

import (
	"time"

	"github.com/google/uuid"
)

// Feedback outcomes and the reward each maps to.
const (
	OutcomePositive = "positive"
	OutcomeNegative = "negative"

	RewardPositive = 0.5
	RewardNegative = -0.4
)

// rewardFor maps an outcome to its reward; unknown outcomes map to 0.
func rewardFor(outcome string) float64 {
	switch outcome {
	case OutcomePositive:
		return RewardPositive
	case OutcomeNegative:
		return RewardNegative
	default:
		return 0
	}
}

// FeedbackRecord ties a caller's verdict to the pipeline run it judges.
type FeedbackRecord struct {
	ID        uuid.UUID `json:"id"`
	RequestID string    `json:"request_id"`
	PatientID uuid.UUID `json:"patient_id"`
	Outcome   string    `json:"outcome"`
	Reward    float64   `json:"reward"`
	CreatedAt time.Time `json:"created_at"`
}

// SubmitRequest is the API shape for feedback submission.
type SubmitRequest struct {
	RequestID string `json:"request_id" validate:"required"`
	PatientID string `json:"patient_id" validate:"required,uuid"`
	Outcome   string `json:"outcome" validate:"required,oneof=positive negative"`
}
