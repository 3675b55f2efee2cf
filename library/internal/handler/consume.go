package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/pkg/kafka"
)

type recomputeAvailability func(ctx context.Context, bookID *int) error

// Consumer applies availability repair requests from kafka.AvailabilityTopic.
type Consumer struct {
	recompute recomputeAvailability
	log       *zap.Logger

	attempts int
	backoff  time.Duration
}

func NewConsumer(recompute recomputeAvailability, log *zap.Logger) *Consumer {
	return &Consumer{
		recompute: recompute,
		log:       log.Named("consumer"),
		attempts:  5,
		backoff:   500 * time.Millisecond,
	}
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			if err := consumer.handleWithRetry(session.Context(), message); err != nil {
				// ends the claim before the offset is marked, so the next
				// session starts again from this message
				return errors.Wrapf(err, "offset %d", message.Offset)
			}
			consumer.log.Debug("Message claimed:", zap.String("value", string(message.Value)), zap.Time("timestamp", message.Timestamp), zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// handleWithRetry retries handle with doubling backoff until it succeeds, the
// attempts run out or the session ends.
func (consumer *Consumer) handleWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	delay := consumer.backoff
	var err error
	for attempt := 1; attempt <= consumer.attempts; attempt++ {
		if err = consumer.handle(ctx, message); err == nil {
			return nil
		}
		consumer.log.Warn("recompute availability",
			zap.Int("attempt", attempt), zap.Int64("offset", message.Offset), zap.Error(err))
		if attempt == consumer.attempts {
			break
		}
		select {
		case <-time.After(delay):
			delay *= 2
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "recompute availability")
		}
	}
	return errors.Wrap(err, "recompute availability")
}

// handle returns an error only for failures worth retrying. Malformed
// payloads are logged and dropped.
func (consumer *Consumer) handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	var req kafka.AvailabilityRequest
	if len(message.Value) > 0 {
		if err := json.Unmarshal(message.Value, &req); err != nil {
			consumer.log.Error("bad availability request", zap.ByteString("value", message.Value), zap.Error(err))
			return nil
		}
	}
	return consumer.recompute(ctx, req.BookID)
}
