package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/events"
	"github.com/Astemirdum/library-ledger/library/internal/model"
	"github.com/Astemirdum/library-ledger/library/internal/reconcile"
	libraryRepo "github.com/Astemirdum/library-ledger/library/internal/repository"
	"github.com/Astemirdum/library-ledger/pkg/kafka"
)

type Service struct {
	log       *zap.Logger
	repo      libraryRepo.Repository
	engine    *reconcile.Engine
	fineRate  int
	loc       *time.Location
	now       func() time.Time
	publisher events.Publisher
}

type Option func(s *Service)

func WithFineRate(rate int) Option {
	return func(s *Service) {
		s.fineRate = rate
	}
}

// WithLocation sets the zone "today" is taken in.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func NewService(repo libraryRepo.Repository, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		log:       log.Named("service"),
		repo:      repo,
		fineRate:  reconcile.DefaultFineRate,
		loc:       time.Local,
		now:       time.Now,
		publisher: events.NopPublisher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = reconcile.New(repo, s.fineRate)
	s.fineRate = s.engine.FineRate()
	return s
}

func (s *Service) today() model.Date {
	return model.DateOf(s.now(), s.loc)
}

// inTx runs fn in one transaction with an engine bound to it.
func (s *Service) inTx(ctx context.Context, fn func(tx libraryRepo.Repository, eng *reconcile.Engine) error) error {
	return s.repo.WithTx(ctx, func(tx libraryRepo.Repository) error {
		return fn(tx, reconcile.New(tx, s.fineRate))
	})
}

func (s *Service) publish(ctx context.Context, ev kafka.LoanEvent) {
	s.publisher.Publish(ctx, ev)
}
