// Package reconcile owns the rules that derive availability and fines from the
// loan ledger. Every mutating operation goes through it so the rules live in
// one place.
package reconcile

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
)

// DefaultFineRate is charged per whole day past the due date.
const DefaultFineRate = 10

// Store is the slice of the catalog and loan ledger the engine needs.
type Store interface {
	GetBook(ctx context.Context, bookID int) (model.Book, error)
	FindBookByTitle(ctx context.Context, title string) (model.Book, error)
	CreateBook(ctx context.Context, book model.Book) (int, error)
	AddCopies(ctx context.Context, bookID, copies int) error
	SetAvailableCopies(ctx context.Context, bookID, available int) error
	CountActiveLoansByBook(ctx context.Context, bookID int) (int, error)
	RecomputeAllAvailability(ctx context.Context) (int64, error)
}

// OverdueDays is the number of whole days asOf is past due, never negative.
func OverdueDays(due, asOf model.Date) int {
	if days := asOf.DaysSince(due); days > 0 {
		return days
	}
	return 0
}

// ComputeFine is zero up to and including the due date.
func ComputeFine(due, asOf model.Date, rate int) int {
	return OverdueDays(due, asOf) * rate
}

// ResizeCopies returns the available count after total changes to newTotal.
// Added copies are free immediately; removed copies clamp available to newTotal.
func ResizeCopies(oldTotal, oldAvailable, newTotal int) int {
	if newTotal > oldTotal {
		return oldAvailable + (newTotal - oldTotal)
	}
	return max(0, min(oldAvailable, newTotal))
}

// Available applies the availability invariant.
func Available(totalCopies, activeLoans int) int {
	return max(0, totalCopies-activeLoans)
}

// NormalizeTitle is the key titles are compared by.
func NormalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

type Engine struct {
	store    Store
	fineRate int
}

func New(store Store, fineRate int) *Engine {
	if fineRate <= 0 {
		fineRate = DefaultFineRate
	}
	return &Engine{store: store, fineRate: fineRate}
}

func (e *Engine) FineRate() int {
	return e.fineRate
}

// Fine of a loan as of a date. Loans without a due date never accrue a fine.
func (e *Engine) Fine(due *model.Date, asOf model.Date) int {
	if due == nil {
		return 0
	}
	return ComputeFine(*due, asOf, e.fineRate)
}

// RecomputeAvailability resets one book from the ledger. Unknown ids are a no-op.
func (e *Engine) RecomputeAvailability(ctx context.Context, bookID int) error {
	book, err := e.store.GetBook(ctx, bookID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return errors.Wrap(err, "GetBook")
	}
	active, err := e.store.CountActiveLoansByBook(ctx, bookID)
	if err != nil {
		return errors.Wrap(err, "CountActiveLoansByBook")
	}
	available := Available(book.TotalCopies, active)
	if available == book.AvailableCopies {
		return nil
	}
	return errors.Wrap(e.store.SetAvailableCopies(ctx, bookID, available), "SetAvailableCopies")
}

// RecomputeAll repairs every book in one statement and reports how many rows changed.
func (e *Engine) RecomputeAll(ctx context.Context) (int64, error) {
	n, err := e.store.RecomputeAllAvailability(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "RecomputeAllAvailability")
	}
	return n, nil
}

// MergeOrCreateBook adds copies to the book with the same normalized title,
// or creates it. Losing a race to create the same title falls back to merging.
func (e *Engine) MergeOrCreateBook(ctx context.Context, req model.CreateBookRequest) (model.AddBookResult, error) {
	existing, err := e.store.FindBookByTitle(ctx, req.Title)
	switch {
	case err == nil:
		return e.mergeInto(ctx, existing.ID, req.TotalCopies)
	case errors.Is(err, errs.ErrNotFound):
	default:
		return model.AddBookResult{}, errors.Wrap(err, "FindBookByTitle")
	}

	id, err := e.store.CreateBook(ctx, model.Book{
		Title:           strings.TrimSpace(req.Title),
		Author:          req.Author,
		Genre:           req.Genre,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
	})
	switch {
	case err == nil:
		return model.AddBookResult{BookID: id}, nil
	case errors.Is(err, errs.ErrConflict):
		existing, err = e.store.FindBookByTitle(ctx, req.Title)
		if err != nil {
			return model.AddBookResult{}, errors.Wrap(err, "FindBookByTitle")
		}
		return e.mergeInto(ctx, existing.ID, req.TotalCopies)
	default:
		return model.AddBookResult{}, err
	}
}

func (e *Engine) mergeInto(ctx context.Context, bookID, copies int) (model.AddBookResult, error) {
	if err := e.store.AddCopies(ctx, bookID, copies); err != nil {
		return model.AddBookResult{}, errors.Wrap(err, "AddCopies")
	}
	return model.AddBookResult{BookID: bookID, Merged: true}, nil
}
