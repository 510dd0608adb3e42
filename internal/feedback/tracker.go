package feedback

import (
	"sync"

	"github.com/meditwin-platform/meditwin/internal/metrics"
)

const defaultAlpha = 0.3

// Tracker maintains an exponentially weighted moving average of feedback
// rewards. The resulting bias nudges the analysis policy: a run of negative
// feedback pulls it down, which elevates the default severity for ambiguous
// replies. Safe for concurrent use.
type Tracker struct {
	mu    sync.Mutex
	alpha float64
	bias  float64
}

func NewTracker() *Tracker {
	return &Tracker{alpha: defaultAlpha}
}

// Record folds one outcome into the bias and returns the reward applied.
// Unknown outcomes are ignored and return 0.
func (t *Tracker) Record(outcome string) float64 {
	reward := rewardFor(outcome)
	if reward == 0 {
		return 0
	}

	t.mu.Lock()
	t.bias = (1-t.alpha)*t.bias + t.alpha*reward
	t.bias = clamp(t.bias, -1, 1)
	bias := t.bias
	t.mu.Unlock()

	metrics.RewardBias.Set(bias)
	return reward
}

// Bias returns the current reward bias, always within [-1, 1].
func (t *Tracker) Bias() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.bias
}

// Replay warms the tracker from persisted outcomes, oldest first.
func (t *Tracker) Replay(outcomes []string) {
	for _, outcome := range outcomes {
		t.Record(outcome)
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
