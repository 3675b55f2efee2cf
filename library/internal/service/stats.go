package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/model"
)

func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	return s.repo.GetStats(ctx, s.today())
}

// FixAvailability recomputes every book from the ledger.
func (s *Service) FixAvailability(ctx context.Context) (int64, error) {
	n, err := s.engine.RecomputeAll(ctx)
	if err != nil {
		return 0, err
	}
	s.log.Info("availability recomputed", zap.Int64("changed", n))
	return n, nil
}

// RecomputeAvailability handles repair requests: one book, or all when bookID is nil.
func (s *Service) RecomputeAvailability(ctx context.Context, bookID *int) error {
	if bookID == nil {
		_, err := s.FixAvailability(ctx)
		return err
	}
	return s.engine.RecomputeAvailability(ctx, *bookID)
}
