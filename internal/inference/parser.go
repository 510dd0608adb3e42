package inference

import (
	"regexp"
	"strconv"
	"strings"
)

// Section markers the prompt instructs the model to emit. Parsing slices
// from a marker to the next known marker, or to end of text.
var sectionMarkers = []string{
	"ANALYSIS:",
	"INFERENCES:",
	"RECOMMENDATIONS:",
	"CONFIDENCE:",
	"SEVERITY:",
	"PRIORITY:",
}

// Confidence is taken from the first matching rule, in rule order: a number
// immediately followed by '%', then a number next to the word "confidence".
var confidencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d{1,3})\s*%`),
	regexp.MustCompile(`(?i)confidence\D{0,12}?(\d{1,3})`),
	regexp.MustCompile(`(?i)(\d{1,3})\D{0,12}?confidence`),
}

// Keyword rule tables. Precedence is the table order, not the order of
// appearance in the text: a reply containing both "good" and "critical"
// is Critical.
var severityRules = []struct {
	keywords []string
	value    Severity
}{
	{[]string{"critical"}, SeverityCritical},
	{[]string{"concerning", "worry"}, SeverityConcerning},
	{[]string{"excellent", "optimal"}, SeverityExcellent},
	{[]string{"good", "normal"}, SeverityGood},
}

var priorityRules = []struct {
	keywords []string
	value    Priority
}{
	{[]string{"urgent", "immediate"}, PriorityUrgent},
	{[]string{"high priority", "soon"}, PriorityHigh},
	{[]string{"low priority", "routine"}, PriorityLow},
}

// Parse extracts a typed Analysis from a free-text model reply. It is pure:
// identical input and policy always produce identical output, and no
// external service is touched. Missing structure yields policy defaults,
// never an error.
func Parse(raw string, policy Policy) Analysis {
	lower := strings.ToLower(raw)

	return Analysis{
		PrimaryAnalysis: extractSection(raw, "ANALYSIS:"),
		Inferences:      extractSection(raw, "INFERENCES:"),
		Recommendations: extractSection(raw, "RECOMMENDATIONS:"),
		Confidence:      parseConfidence(raw, policy.DefaultConfidence),
		Severity:        parseSeverity(lower, policy),
		Priority:        parsePriority(lower, policy.DefaultPriority),
	}
}

func parseConfidence(text string, fallback int) int {
	for _, pat := range confidencePatterns {
		if m := pat.FindStringSubmatch(text); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil && n >= 0 && n <= 100 {
				return n
			}
		}
	}
	return fallback
}

func parseSeverity(lower string, policy Policy) Severity {
	for _, rule := range severityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.value
			}
		}
	}
	return policy.defaultSeverity()
}

func parsePriority(lower string, fallback Priority) Priority {
	for _, rule := range priorityRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.value
			}
		}
	}
	return fallback
}

// extractSection returns the text between a start marker and the next known
// marker (or end of text). An absent marker yields "", not an error.
func extractSection(text, marker string) string {
	lower := strings.ToLower(text)
	start := strings.Index(lower, strings.ToLower(marker))
	if start < 0 {
		return ""
	}
	start += len(marker)

	end := len(text)
	for _, m := range sectionMarkers {
		if strings.EqualFold(m, marker) {
			continue
		}
		if idx := strings.Index(lower[start:], strings.ToLower(m)); idx >= 0 && start+idx < end {
			end = start + idx
		}
	}
	return strings.TrimSpace(text[start:end])
}
