package inference

// Severity is the clinical gravity bucket parsed out of a model reply.
type Severity string

const (
	SeverityCritical   Severity = "Critical"
	SeverityConcerning Severity = "Concerning"
	SeverityModerate   Severity = "Moderate"
	SeverityGood       Severity = "Good"
	SeverityExcellent  Severity = "Excellent"
)

// Priority is the follow-up urgency bucket parsed out of a model reply.
type Priority string

const (
	PriorityUrgent Priority = "Urgent"
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Analysis is the typed result extracted from a free-text model reply.
// When IsFallback is true the field values are documented defaults rather
// than model output, and FallbackReason says why.
type Analysis struct {
	PrimaryAnalysis string   `json:"primary_analysis"`
	Inferences      string   `json:"inferences"`
	Recommendations string   `json:"recommendations"`
	Confidence      int      `json:"confidence"` // 0-100
	Severity        Severity `json:"severity"`
	Priority        Priority `json:"priority"`
	IsFallback      bool     `json:"is_fallback"`
	FallbackReason  string   `json:"fallback_reason,omitempty"`
}
