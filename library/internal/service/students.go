package service

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
	libraryRepo "github.com/Astemirdum/library-ledger/library/internal/repository"
	"github.com/Astemirdum/library-ledger/pkg/kafka"
)

func (s *Service) ListStudents(ctx context.Context) ([]model.Student, error) {
	return s.repo.ListStudents(ctx)
}

func (s *Service) CreateStudent(ctx context.Context, req model.StudentRequest) (int, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return 0, errs.Invalid("Student name and email are required")
	}
	var id int
	err := s.repo.WithTx(ctx, func(tx libraryRepo.Repository) error {
		var err error
		id, err = tx.CreateStudent(ctx, req)
		return err
	})
	return id, err
}

// EditStudent replaces every field. A different student_id renumbers the
// student and the loan rows follow it.
func (s *Service) EditStudent(ctx context.Context, studentID int, req model.StudentRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return errs.Invalid("Student name and email are required")
	}
	return s.repo.WithTx(ctx, func(tx libraryRepo.Repository) error {
		return tx.UpdateStudent(ctx, studentID, req)
	})
}

// DeleteStudent refuses while the student holds a book. Past loans stay in the
// ledger with the student reference cleared.
func (s *Service) DeleteStudent(ctx context.Context, studentID int) error {
	err := s.repo.WithTx(ctx, func(tx libraryRepo.Repository) error {
		if _, err := tx.LockStudent(ctx, studentID); err != nil {
			return err
		}
		active, err := tx.CountActiveLoansByStudent(ctx, studentID)
		if err != nil {
			return errors.Wrap(err, "CountActiveLoansByStudent")
		}
		if active > 0 {
			return errs.Conflict("Cannot delete student — books are issued by this student.")
		}
		detached, err := tx.DetachStudentLoans(ctx, studentID)
		if err != nil {
			return errors.Wrap(err, "DetachStudentLoans")
		}
		s.log.Debug("DeleteStudent", zap.Int("student_id", studentID), zap.Int64("detached", detached))
		return tx.DeleteStudent(ctx, studentID)
	})
	if err != nil {
		return err
	}
	s.publish(ctx, kafka.LoanEvent{Type: kafka.EventStudentDeleted, StudentID: studentID})
	return nil
}
