package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
	"github.com/Astemirdum/library-ledger/library/internal/reconcile"
	libraryRepo "github.com/Astemirdum/library-ledger/library/internal/repository"
	"github.com/Astemirdum/library-ledger/pkg/kafka"
)

func (s *Service) ListBooks(ctx context.Context) ([]model.Book, error) {
	return s.repo.ListBooks(ctx)
}

// AddBook merges copies into the book with the same title or creates it.
func (s *Service) AddBook(ctx context.Context, req model.CreateBookRequest) (model.AddBookResult, error) {
	if strings.TrimSpace(req.Title) == "" || req.TotalCopies <= 0 {
		return model.AddBookResult{}, errs.Invalid("Title and copies are required")
	}
	var res model.AddBookResult
	err := s.inTx(ctx, func(_ libraryRepo.Repository, eng *reconcile.Engine) error {
		var err error
		res, err = eng.MergeOrCreateBook(ctx, req)
		return err
	})
	if err != nil {
		return model.AddBookResult{}, err
	}
	s.log.Debug("AddBook", zap.Int("book_id", res.BookID), zap.Bool("merged", res.Merged))
	return res, nil
}

// EditBook overwrites the descriptive fields, resizes the copy counts and then
// reconciles availability against the active loans.
func (s *Service) EditBook(ctx context.Context, bookID int, req model.UpdateBookRequest) (model.UpdateBookResult, error) {
	if req.Title == "" || req.Author == "" || req.Genre == "" || req.TotalCopies == nil || *req.TotalCopies < 0 {
		return model.UpdateBookResult{}, errs.Invalid("All fields are required")
	}
	var res model.UpdateBookResult
	err := s.inTx(ctx, func(tx libraryRepo.Repository, eng *reconcile.Engine) error {
		book, err := tx.LockBook(ctx, bookID)
		if err != nil {
			return err
		}
		newTotal := *req.TotalCopies
		book.AvailableCopies = reconcile.ResizeCopies(book.TotalCopies, book.AvailableCopies, newTotal)
		book.TotalCopies = newTotal
		book.Title = strings.TrimSpace(req.Title)
		book.Author = req.Author
		book.Genre = req.Genre
		if err := tx.UpdateBook(ctx, book); err != nil {
			return err
		}
		if err := eng.RecomputeAvailability(ctx, bookID); err != nil {
			return err
		}
		updated, err := tx.GetBook(ctx, bookID)
		if err != nil {
			return err
		}
		res = model.UpdateBookResult{
			TotalCopies:     updated.TotalCopies,
			AvailableCopies: updated.AvailableCopies,
		}
		return nil
	})
	if err != nil {
		return model.UpdateBookResult{}, err
	}
	return res, nil
}

func (s *Service) DeleteBook(ctx context.Context, bookID int) error {
	err := s.repo.WithTx(ctx, func(tx libraryRepo.Repository) error {
		if _, err := tx.LockBook(ctx, bookID); err != nil {
			return err
		}
		active, err := tx.CountActiveLoansByBook(ctx, bookID)
		if err != nil {
			return errors.Wrap(err, "CountActiveLoansByBook")
		}
		if active > 0 {
			return errs.Conflict("Cannot delete book — it is currently issued to a student.")
		}
		return tx.DeleteBook(ctx, bookID)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, kafka.LoanEvent{Type: kafka.EventBookDeleted, BookID: bookID})
	return nil
}
