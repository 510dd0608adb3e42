package memory

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Topics are recognized by keyword lookup. The table order is the output
// order, so summarizing the same history twice yields the same summary.
var topicKeywords = []string{
	"sleep",
	"diet",
	"exercise",
	"medication",
	"stress",
	"pain",
	"weight",
	"glucose",
	"blood pressure",
	"cholesterol",
	"heart",
	"fatigue",
}

const goalMarker = "goal is "

var preferenceMarkers = []string{"i prefer ", "i'd rather ", "i would rather "}

// Summarize derives a digest from conversation history. It is a pure
// function of its inputs: recomputing over the same turns produces an
// identical summary, so compaction can run repeatedly without drift.
func Summarize(patientID uuid.UUID, turns []ConversationTurn, now time.Time) MemorySummary {
	summary := MemorySummary{
		PatientID:       patientID,
		Topics:          []string{},
		Preferences:     map[string]string{},
		HealthGoals:     []string{},
		LastCompactedAt: now,
	}

	seen := make(map[string]bool)
	for _, kw := range topicKeywords {
		for _, turn := range turns {
			if strings.Contains(strings.ToLower(turn.Text), kw) {
				if !seen[kw] {
					seen[kw] = true
					summary.Topics = append(summary.Topics, kw)
				}
				break
			}
		}
	}

	goalSeen := make(map[string]bool)
	for _, turn := range turns {
		if turn.Role != "user" {
			continue
		}
		lower := strings.ToLower(turn.Text)

		if goal := extractAfter(lower, goalMarker); goal != "" && !goalSeen[goal] {
			goalSeen[goal] = true
			summary.HealthGoals = append(summary.HealthGoals, goal)
		}

		for _, marker := range preferenceMarkers {
			pref := extractAfter(lower, marker)
			if pref == "" {
				continue
			}
			key := "general"
			for _, kw := range topicKeywords {
				if strings.Contains(lower, kw) {
					key = kw
					break
				}
			}
			summary.Preferences[key] = pref
			break
		}
	}

	return summary
}

// extractAfter returns the sentence fragment following the marker, cut at the
// first period or newline.
func extractAfter(lower, marker string) string {
	idx := strings.Index(lower, marker)
	if idx < 0 {
		return ""
	}
	rest := lower[idx+len(marker):]
	if end := strings.IndexAny(rest, ".\n"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}
