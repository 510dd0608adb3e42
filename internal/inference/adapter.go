package inference

import (
	"context"
	"log/slog"
	"strings"

	"github.com/meditwin-platform/meditwin/internal/compressor"
	"github.com/meditwin-platform/meditwin/internal/metrics"
)

// FallbackAdvisory is returned as the primary analysis when the model call
// itself failed and there is no reply text to show.
const FallbackAdvisory = "The analysis service is temporarily unavailable. " +
	"The provided information has been recorded; please consult a healthcare " +
	"professional for guidance in the meantime."

// Completer is the slice of Client the adapter needs; tests substitute it.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Adapter turns a compressed context and query into a structured analysis.
// It never returns an error: degraded paths produce an Analysis with
// documented defaults and IsFallback set, so the orchestrator always has
// something to respond with.
type Adapter struct {
	client Completer
}

func NewAdapter(client Completer) *Adapter {
	return &Adapter{client: client}
}

// Analyze builds the prompt, calls the model and parses the reply under the
// given policy.
func (a *Adapter) Analyze(ctx context.Context, compressed compressor.Context, query string, policy Policy) Analysis {
	prompt := BuildPrompt(compressed, query)

	raw, err := a.client.Complete(ctx, prompt)
	if err != nil {
		slog.Warn("inference call failed, serving fallback analysis", "error", err)
		metrics.FallbacksTotal.WithLabelValues("inference").Inc()
		return a.fallback(FallbackAdvisory, "service unavailable", policy)
	}

	analysis := Parse(raw, policy)
	if strings.TrimSpace(analysis.PrimaryAnalysis) == "" {
		// Reply arrived but carried no locatable structure: keep the raw
		// text so the caller still sees what the model said.
		slog.Warn("inference reply had no recognizable sections")
		metrics.FallbacksTotal.WithLabelValues("parser").Inc()
		return a.fallback(strings.TrimSpace(raw), "unstructured reply", policy)
	}

	return analysis
}

func (a *Adapter) fallback(primary, reason string, policy Policy) Analysis {
	if primary == "" {
		primary = FallbackAdvisory
	}
	return Analysis{
		PrimaryAnalysis: primary,
		Confidence:      policy.DefaultConfidence,
		Severity:        policy.defaultSeverity(),
		Priority:        policy.DefaultPriority,
		IsFallback:      true,
		FallbackReason:  reason,
	}
}
