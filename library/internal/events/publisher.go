package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/pkg/circuitbreaker"
	"github.com/Astemirdum/library-ledger/pkg/kafka"
)

// Publisher sends loan events after the ledger change they describe has
// committed. Delivery is best-effort.
type Publisher interface {
	Publish(ctx context.Context, event kafka.LoanEvent)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, kafka.LoanEvent) {}

type KafkaPublisher struct {
	producer sarama.SyncProducer
	cb       circuitbreaker.CircuitBreaker
	topic    string
	now      func() time.Time
	log      *zap.Logger
}

func NewKafkaPublisher(producer sarama.SyncProducer, log *zap.Logger) *KafkaPublisher {
	const (
		windowSize    = 10
		cooldown      = 30 * time.Second
		failureRatio  = 0.5
		recoveryCalls = 2
	)
	return &KafkaPublisher{
		producer: producer,
		cb:       circuitbreaker.New(windowSize, cooldown, failureRatio, recoveryCalls),
		topic:    kafka.LoanEventsTopic,
		now:      time.Now,
		log:      log.Named("publisher"),
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event kafka.LoanEvent) {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	err := p.cb.Call(func() error {
		return p.send(ctx, event)
	})
	if err != nil {
		p.log.Warn("publish loan event",
			zap.String("type", string(event.Type)),
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

func (p *KafkaPublisher) send(ctx context.Context, event kafka.LoanEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "json.Marshal")
	}
	msg := &sarama.ProducerMessage{
		Topic:     p.topic,
		Key:       sarama.StringEncoder(string(event.Type)),
		Value:     sarama.ByteEncoder(b),
		Timestamp: event.Timestamp,
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return errors.Wrap(err, "producer.SendMessage")
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
