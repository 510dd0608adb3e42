package inference

import "github.com/meditwin-platform/meditwin/internal/config"

// Policy is the versioned value object that fixes parsing defaults for one
// pipeline run. It is passed into the parser explicitly so tests can pin it
// and so the reward bias feeds parsing through data, not ambient state.
type Policy struct {
	Version           int
	DefaultConfidence int
	DefaultSeverity   Severity
	ElevatedSeverity  Severity
	DefaultPriority   Priority
	BiasCutoff        float64
	Bias              float64
}

// PolicyFromConfig builds the baseline policy; Bias is stamped per request.
func PolicyFromConfig(cfg config.InferenceConfig) Policy {
	return Policy{
		Version:           1,
		DefaultConfidence: cfg.DefaultConfidence,
		DefaultSeverity:   Severity(cfg.DefaultSeverity),
		ElevatedSeverity:  Severity(cfg.ElevatedSeverity),
		DefaultPriority:   Priority(cfg.DefaultPriority),
		BiasCutoff:        cfg.BiasElevationCutoff,
	}
}

// WithBias returns a copy of the policy stamped with the current reward bias.
func (p Policy) WithBias(bias float64) Policy {
	p.Bias = bias
	return p
}

// defaultSeverity resolves the severity used when no keyword matched.
// Sustained negative feedback (bias at or below the cutoff) nudges the
// ambiguous-text default upward.
func (p Policy) defaultSeverity() Severity {
	if p.Bias <= p.BiasCutoff {
		return p.ElevatedSeverity
	}
	return p.DefaultSeverity
}
