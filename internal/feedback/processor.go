package feedback

import (
	"context"
	"log/slog"

	inats "github.com/meditwin-platform/meditwin/internal/nats"
	"github.com/meditwin-platform/meditwin/internal/metrics"
)

// Processor applies one feedback event: persist the record, then fold the
// reward into the tracker. Shared by the NATS consumer and the synchronous
// path used when messaging is disabled.
type Processor struct {
	repo    Repository
	tracker *Tracker
}

func NewProcessor(repo Repository, tracker *Tracker) *Processor {
	return &Processor{repo: repo, tracker: tracker}
}

func (p *Processor) Process(ctx context.Context, event inats.FeedbackSubmitted) error {
	rec := &FeedbackRecord{
		RequestID: event.RequestID,
		PatientID: event.PatientID,
		Outcome:   event.Outcome,
		Reward:    rewardFor(event.Outcome),
		CreatedAt: event.SubmittedAt,
	}
	if err := p.repo.Insert(ctx, rec); err != nil {
		return err
	}

	// The bias moves only after the record is durable; a failed insert gets
	// the event redelivered, which must not fold the same reward in twice.
	p.tracker.Record(event.Outcome)

	metrics.FeedbackRecordsTotal.WithLabelValues(event.Outcome).Inc()
	slog.Debug("feedback processed",
		"request_id", event.RequestID,
		"outcome", event.Outcome,
		"bias", p.tracker.Bias(),
	)
	return nil
}

// Warm replays recent persisted outcomes into the tracker so the bias
// survives restarts. Failure leaves the bias at zero, which is harmless.
func (p *Processor) Warm(ctx context.Context, limit int) {
	outcomes, err := p.repo.ListRecentOutcomes(ctx, limit)
	if err != nil {
		slog.Warn("feedback: warming tracker failed", "error", err)
		return
	}
	p.tracker.Replay(outcomes)
}
