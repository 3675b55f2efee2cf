package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
)

const (
	LoanEventsTopic   = "library-loans"
	AvailabilityTopic = "library-availability"

	AvailabilityConsumerGroup = "library-availability"
)

type Config struct {
	Addrs  []string `envconfig:"KAFKA_ADDRS"`
	Enable bool     `envconfig:"KAFKA_ENABLE" default:"false"`
}

type EventType string

const (
	EventBookIssued     EventType = "BOOK_ISSUED"
	EventBookReturned   EventType = "BOOK_RETURNED"
	EventBookDeleted    EventType = "BOOK_DELETED"
	EventStudentDeleted EventType = "STUDENT_DELETED"
)

// LoanEvent is published to LoanEventsTopic after a ledger change commits.
type LoanEvent struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	IssueID    int       `json:"issue_id,omitempty"`
	BookID     int       `json:"book_id,omitempty"`
	StudentID  int       `json:"student_id,omitempty"`
	FineAmount int       `json:"fine_amount,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// AvailabilityRequest asks for a recompute of one book, or of every book when BookID is nil.
type AvailabilityRequest struct {
	BookID *int `json:"book_id,omitempty"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Timeout = 5 * time.Second

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

func NewConsumer(cfg Config, group string) (sarama.ConsumerGroup, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	defaultCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	return sarama.NewConsumerGroup(cfg.Addrs, group, defaultCfg)
}

// Consume runs the group session loop until ctx is cancelled.
func Consume(ctx context.Context, group sarama.ConsumerGroup, handler sarama.ConsumerGroupHandler, topics ...string) error {
	for {
		if err := group.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return errors.Wrap(err, "group.Consume")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
