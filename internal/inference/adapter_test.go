package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meditwin-platform/meditwin/internal/compressor"
)

type stubCompleter struct {
	reply string
	err   error
	calls int
	seen  string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.seen = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

func testContext() compressor.Context {
	return compressor.Context{
		Items: []compressor.Item{
			{Key: "age", Value: "54"},
			{Key: "conditions", Value: "type 2 diabetes"},
		},
		Tokens: 12,
	}
}

func TestAnalyze_StructuredReply(t *testing.T) {
	stub := &stubCompleter{reply: "ANALYSIS: Glycemic control is slipping.\n" +
		"INFERENCES: Possible adherence gap.\n" +
		"RECOMMENDATIONS: Repeat HbA1c in 4 weeks.\n" +
		"CONFIDENCE: 82%\nSEVERITY: concerning\nPRIORITY: high priority"}
	adapter := NewAdapter(stub)

	got := adapter.Analyze(context.Background(), testContext(), "how is my diabetes trending?", testPolicy())

	require.Equal(t, 1, stub.calls)
	assert.False(t, got.IsFallback)
	assert.Empty(t, got.FallbackReason)
	assert.Equal(t, "Glycemic control is slipping.", got.PrimaryAnalysis)
	assert.Equal(t, 82, got.Confidence)
	assert.Equal(t, SeverityConcerning, got.Severity)
	assert.Equal(t, PriorityHigh, got.Priority)
}

func TestAnalyze_PromptCarriesContextAndQuery(t *testing.T) {
	stub := &stubCompleter{reply: "ANALYSIS: ok"}
	adapter := NewAdapter(stub)

	adapter.Analyze(context.Background(), testContext(), "what should I watch for?", testPolicy())

	assert.Contains(t, stub.seen, "conditions: type 2 diabetes")
	assert.Contains(t, stub.seen, "what should I watch for?")
	assert.Contains(t, stub.seen, "ANALYSIS:")
}

func TestAnalyze_ServiceErrorFallsBack(t *testing.T) {
	stub := &stubCompleter{err: errors.New("connection refused")}
	adapter := NewAdapter(stub)

	got := adapter.Analyze(context.Background(), testContext(), "anything?", testPolicy())

	assert.True(t, got.IsFallback)
	assert.Equal(t, "service unavailable", got.FallbackReason)
	assert.Equal(t, FallbackAdvisory, got.PrimaryAnalysis)
	assert.Equal(t, 75, got.Confidence)
	assert.Equal(t, SeverityModerate, got.Severity)
	assert.Equal(t, PriorityMedium, got.Priority)
}

func TestAnalyze_UnstructuredReplyKeepsRawText(t *testing.T) {
	stub := &stubCompleter{reply: "  Your values look broadly stable this month.  "}
	adapter := NewAdapter(stub)

	got := adapter.Analyze(context.Background(), testContext(), "summary please", testPolicy())

	assert.True(t, got.IsFallback)
	assert.Equal(t, "unstructured reply", got.FallbackReason)
	assert.Equal(t, "Your values look broadly stable this month.", got.PrimaryAnalysis)
	assert.Equal(t, 75, got.Confidence)
}

func TestAnalyze_EmptyReplyServesAdvisory(t *testing.T) {
	stub := &stubCompleter{reply: "   "}
	adapter := NewAdapter(stub)

	got := adapter.Analyze(context.Background(), testContext(), "summary please", testPolicy())

	assert.True(t, got.IsFallback)
	assert.Equal(t, FallbackAdvisory, got.PrimaryAnalysis)
}

func TestAnalyze_FallbackHonorsBiasedPolicy(t *testing.T) {
	stub := &stubCompleter{err: errors.New("timeout")}
	adapter := NewAdapter(stub)

	got := adapter.Analyze(context.Background(), testContext(), "anything?", testPolicy().WithBias(-0.6))

	assert.True(t, got.IsFallback)
	assert.Equal(t, SeverityConcerning, got.Severity)
}
