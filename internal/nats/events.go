package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// ConsumerMaxDeliver bounds redelivery of a message that keeps failing.
const ConsumerMaxDeliver = 5

// Stream names.
const (
	StreamFeedback = "MEDITWIN_FEEDBACK"
	StreamEvents   = "MEDITWIN_EVENTS"
)

// Subject constants.
const (
	SubjectFeedbackSubmitted = "meditwin.feedback.submitted"
	SubjectAuditEvent        = "meditwin.events.audit"
)

// FeedbackSubmitted is published when a caller reports the outcome of a
// previously returned analysis. Consumed asynchronously by the reward tracker.
type FeedbackSubmitted struct {
	RequestID   string    `json:"request_id"`
	PatientID   uuid.UUID `json:"patient_id"`
	Outcome     string    `json:"outcome"` // "positive" or "negative"
	SubmittedAt time.Time `json:"submitted_at"`
}

// AuditEvent is published once per pipeline run for compliance logging.
type AuditEvent struct {
	PatientID  uuid.UUID `json:"patient_id"`
	RequestID  string    `json:"request_id"`
	EventType  string    `json:"event_type"` // e.g. "analysis_completed"
	Severity   string    `json:"severity"`   // info, warn, error
	IsFallback bool      `json:"is_fallback"`
	Details    string    `json:"details"`
	Timestamp  time.Time `json:"timestamp"`
}
