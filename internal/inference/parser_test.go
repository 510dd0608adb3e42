package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testPolicy() Policy {
	return Policy{
		Version:           1,
		DefaultConfidence: 75,
		DefaultSeverity:   SeverityModerate,
		ElevatedSeverity:  SeverityConcerning,
		DefaultPriority:   PriorityMedium,
		BiasCutoff:        -0.3,
		Bias:              0,
	}
}

func TestParse_ConfidencePercent(t *testing.T) {
	got := Parse("The results suggest 85% confidence in this assessment.", testPolicy())
	assert.Equal(t, 85, got.Confidence)
}

func TestParse_ConfidenceWordThenNumber(t *testing.T) {
	got := Parse("CONFIDENCE: 62", testPolicy())
	assert.Equal(t, 62, got.Confidence)
}

func TestParse_ConfidenceNumberThenWord(t *testing.T) {
	got := Parse("We estimate 90 confidence here.", testPolicy())
	assert.Equal(t, 90, got.Confidence)
}

func TestParse_ConfidenceDefault(t *testing.T) {
	got := Parse("No numbers anywhere in this reply.", testPolicy())
	assert.Equal(t, 75, got.Confidence)
}

func TestParse_ConfidenceFirstMatchWins(t *testing.T) {
	got := Parse("Roughly 40% likely, though confidence 90 overall.", testPolicy())
	assert.Equal(t, 40, got.Confidence)
}

func TestParse_SeverityKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Severity
	}{
		{"critical", "This finding is critical.", SeverityCritical},
		{"concerning", "A concerning trend in glucose.", SeverityConcerning},
		{"worry", "Nothing to worry about yet, monitor weekly.", SeverityConcerning},
		{"excellent", "Excellent markers across the board.", SeverityExcellent},
		{"optimal", "Values are optimal.", SeverityExcellent},
		{"good", "Overall a good result.", SeverityGood},
		{"normal", "Everything looks normal.", SeverityGood},
		{"default", "Inconclusive data.", SeverityModerate},
		{"case insensitive", "CRITICAL result!", SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text, testPolicy()).Severity)
		})
	}
}

func TestParse_SeverityPrecedenceOverAppearance(t *testing.T) {
	// "good" appears first in the text, but "critical" outranks it.
	got := Parse("Mostly good values, but one critical anomaly.", testPolicy())
	assert.Equal(t, SeverityCritical, got.Severity)

	// "normal" before "concerning": precedence still wins.
	got = Parse("Normal ranges overall with a concerning exception.", testPolicy())
	assert.Equal(t, SeverityConcerning, got.Severity)
}

func TestParse_PriorityKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Priority
	}{
		{"urgent", "Urgent review required.", PriorityUrgent},
		{"immediate", "Seek immediate attention.", PriorityUrgent},
		{"high priority", "This is high priority.", PriorityHigh},
		{"soon", "Schedule a follow-up soon.", PriorityHigh},
		{"low priority", "Low priority observation.", PriorityLow},
		{"routine", "Handle at the next routine visit.", PriorityLow},
		{"default", "No urgency indicated.", PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text, testPolicy()).Priority)
		})
	}
}

func TestParse_PriorityPrecedence(t *testing.T) {
	got := Parse("Routine otherwise, but urgent for the lipid panel.", testPolicy())
	assert.Equal(t, PriorityUrgent, got.Priority)
}

func TestParse_Sections(t *testing.T) {
	raw := "ANALYSIS: Elevated HbA1c consistent with poor glycemic control.\n" +
		"INFERENCES: Medication adherence may have slipped.\n" +
		"RECOMMENDATIONS: Repeat panel in 4 weeks.\n" +
		"CONFIDENCE: 80%\n" +
		"SEVERITY: concerning\n" +
		"PRIORITY: high priority"

	got := Parse(raw, testPolicy())
	assert.Equal(t, "Elevated HbA1c consistent with poor glycemic control.", got.PrimaryAnalysis)
	assert.Equal(t, "Medication adherence may have slipped.", got.Inferences)
	assert.Equal(t, "Repeat panel in 4 weeks.", got.Recommendations)
	assert.Equal(t, 80, got.Confidence)
	assert.Equal(t, SeverityConcerning, got.Severity)
	assert.Equal(t, PriorityHigh, got.Priority)
}

func TestParse_MissingSectionIsEmptyString(t *testing.T) {
	got := Parse("ANALYSIS: Something.\nCONFIDENCE: 70%", testPolicy())
	assert.Equal(t, "Something.", got.PrimaryAnalysis)
	assert.Equal(t, "", got.Inferences)
	assert.Equal(t, "", got.Recommendations)
}

func TestParse_SectionMarkersCaseInsensitive(t *testing.T) {
	got := Parse("analysis: lower-case marker works.\nrecommendations: rest well.", testPolicy())
	assert.Equal(t, "lower-case marker works.", got.PrimaryAnalysis)
	assert.Equal(t, "rest well.", got.Recommendations)
}

func TestParse_NegativeBiasElevatesDefaultSeverity(t *testing.T) {
	policy := testPolicy().WithBias(-0.5)
	got := Parse("Inconclusive data, no keywords.", policy)
	assert.Equal(t, SeverityConcerning, got.Severity)

	// Explicit keywords are unaffected by bias.
	got = Parse("Everything looks normal.", policy)
	assert.Equal(t, SeverityGood, got.Severity)
}

func TestParse_BiasAboveCutoffKeepsDefault(t *testing.T) {
	policy := testPolicy().WithBias(-0.2)
	got := Parse("Inconclusive data, no keywords.", policy)
	assert.Equal(t, SeverityModerate, got.Severity)
}

func TestParse_Pure(t *testing.T) {
	raw := "ANALYSIS: Stable.\nCONFIDENCE: 55%\nSEVERITY: good"
	policy := testPolicy()
	assert.Equal(t, Parse(raw, policy), Parse(raw, policy))
}
