package handler

import (
	"context"

	"github.com/Astemirdum/library-ledger/library/internal/model"
	"github.com/Astemirdum/library-ledger/library/internal/service"
)

//go:generate go run github.com/golang/mock/mockgen -source=service.go -destination=mocks/mock.go

type LibraryService interface {
	ListBooks(ctx context.Context) ([]model.Book, error)
	AddBook(ctx context.Context, req model.CreateBookRequest) (model.AddBookResult, error)
	EditBook(ctx context.Context, bookID int, req model.UpdateBookRequest) (model.UpdateBookResult, error)
	DeleteBook(ctx context.Context, bookID int) error

	ListStudents(ctx context.Context) ([]model.Student, error)
	CreateStudent(ctx context.Context, req model.StudentRequest) (int, error)
	EditStudent(ctx context.Context, studentID int, req model.StudentRequest) error
	DeleteStudent(ctx context.Context, studentID int) error

	IssueBook(ctx context.Context, req model.IssueRequest) (int, error)
	ListIssued(ctx context.Context) ([]model.IssuedBook, error)
	ReturnBook(ctx context.Context, issueID int) (model.ReturnResult, error)
	ListReturns(ctx context.Context) ([]model.ReturnRecord, error)
	ListOverdue(ctx context.Context) ([]model.OverdueBook, error)

	Stats(ctx context.Context) (model.Stats, error)
	FixAvailability(ctx context.Context) (int64, error)
}

var _ LibraryService = (*service.Service)(nil)
