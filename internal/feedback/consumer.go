package feedback

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go/jetstream"

	inats "github.com/meditwin-platform/meditwin/internal/nats"
)

// Consumer listens on the feedback subject and applies each event through
// the Processor.
type Consumer struct {
	processor   *Processor
	consumerMgr *inats.ConsumerManager
}

func NewConsumer(processor *Processor, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		processor:   processor,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamFeedback, "feedback-tracker", inats.SubjectFeedbackSubmitted)
	if err != nil {
		return err
	}

	slog.Info("feedback consumer started", "consumer", "feedback-tracker")

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("feedback consumer: fetching events", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleEvent(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleEvent(ctx context.Context, msg jetstream.Msg) {
	var event inats.FeedbackSubmitted
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		slog.Error("feedback consumer: unmarshaling event", "error", err)
		_ = msg.Nak()
		return
	}

	if err := c.processor.Process(ctx, event); err != nil {
		slog.Error("feedback consumer: processing event", "error", err, "request_id", event.RequestID)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
}
