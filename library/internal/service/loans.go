package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
	"github.com/Astemirdum/library-ledger/library/internal/reconcile"
	libraryRepo "github.com/Astemirdum/library-ledger/library/internal/repository"
	"github.com/Astemirdum/library-ledger/pkg/kafka"
)

// IssueBook opens a loan dated today. The book row stays locked until commit
// so two requests cannot take the last copy.
func (s *Service) IssueBook(ctx context.Context, req model.IssueRequest) (int, error) {
	if req.StudentID <= 0 || req.BookID <= 0 {
		return 0, errs.Invalid("Student ID and Book ID are required")
	}
	var due *model.Date
	if strings.TrimSpace(req.DueDate) != "" {
		d, err := model.ParseDate(req.DueDate, s.loc)
		if err != nil {
			return 0, errs.Invalid(err.Error())
		}
		if d.Before(s.today().Time) {
			return 0, errs.Invalid("Due date cannot be before the issue date")
		}
		due = &d
	}

	var issueID int
	err := s.inTx(ctx, func(tx libraryRepo.Repository, eng *reconcile.Engine) error {
		if _, err := tx.LockStudent(ctx, req.StudentID); err != nil {
			return err
		}
		book, err := tx.LockBook(ctx, req.BookID)
		if err != nil {
			return err
		}
		if book.AvailableCopies <= 0 {
			return errs.Conflict("No copies available for this book")
		}
		issueID, err = tx.CreateLoan(ctx, model.Loan{
			StudentID: &req.StudentID,
			BookID:    &req.BookID,
			IssueDate: s.today(),
			DueDate:   due,
			Status:    model.LoanStatusIssued,
		})
		if err != nil {
			return err
		}
		return eng.RecomputeAvailability(ctx, req.BookID)
	})
	if err != nil {
		return 0, err
	}
	s.publish(ctx, kafka.LoanEvent{
		Type:      kafka.EventBookIssued,
		IssueID:   issueID,
		BookID:    req.BookID,
		StudentID: req.StudentID,
	})
	return issueID, nil
}

// ListIssued returns active loans with the fine accrued as of today.
func (s *Service) ListIssued(ctx context.Context) ([]model.IssuedBook, error) {
	loans, err := s.repo.ListActiveLoans(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()
	for i := range loans {
		loans[i].FineAmount = s.engine.Fine(loans[i].DueDate, today)
	}
	return loans, nil
}

// ReturnBook closes an active loan, records the fine and frees the copy.
func (s *Service) ReturnBook(ctx context.Context, issueID int) (model.ReturnResult, error) {
	if issueID <= 0 {
		return model.ReturnResult{}, errs.Invalid("Issue ID is required")
	}
	var (
		res  model.ReturnResult
		loan model.Loan
	)
	err := s.inTx(ctx, func(tx libraryRepo.Repository, eng *reconcile.Engine) error {
		var err error
		loan, err = tx.LockLoan(ctx, issueID)
		if err != nil {
			return err
		}
		if !loan.Active() {
			return errs.Conflict("Book already returned")
		}
		today := s.today()
		fine := eng.Fine(loan.DueDate, today)
		returnID, err := tx.CreateReturnRecord(ctx, issueID, today, fine)
		if err != nil {
			return err
		}
		if err := tx.MarkReturned(ctx, issueID, today); err != nil {
			return err
		}
		if loan.BookID != nil {
			if err := eng.RecomputeAvailability(ctx, *loan.BookID); err != nil {
				return errors.Wrap(err, "RecomputeAvailability")
			}
		}
		res = model.ReturnResult{IssueID: issueID, ReturnID: returnID, ReturnDate: today, Fine: fine}
		return nil
	})
	if err != nil {
		return model.ReturnResult{}, err
	}
	ev := kafka.LoanEvent{Type: kafka.EventBookReturned, IssueID: issueID, FineAmount: res.Fine}
	if loan.BookID != nil {
		ev.BookID = *loan.BookID
	}
	if loan.StudentID != nil {
		ev.StudentID = *loan.StudentID
	}
	s.publish(ctx, ev)
	return res, nil
}

func (s *Service) ListReturns(ctx context.Context) ([]model.ReturnRecord, error) {
	return s.repo.ListReturns(ctx)
}

// ListOverdue reports active loans past due, oldest due date first.
func (s *Service) ListOverdue(ctx context.Context) ([]model.OverdueBook, error) {
	today := s.today()
	loans, err := s.repo.ListOverdue(ctx, today)
	if err != nil {
		return nil, err
	}
	for i := range loans {
		loans[i].DaysOverdue = reconcile.OverdueDays(loans[i].DueDate, today)
		loans[i].FineAmount = reconcile.ComputeFine(loans[i].DueDate, today, s.fineRate)
	}
	return loans, nil
}
