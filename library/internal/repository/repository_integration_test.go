//go:build integration

package repository

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
	"github.com/Astemirdum/library-ledger/library/internal/reconcile"
	"github.com/Astemirdum/library-ledger/library/migrations"
	"github.com/Astemirdum/library-ledger/pkg/postgres"
)

// Run with a disposable database:
//
//	DB_HOST=localhost DB_PASSWORD=postgres DB_NAME=library_test go test -tags integration ./library/internal/repository/...
func newTestRepo(t *testing.T) *repository {
	t.Helper()
	var cfg postgres.DB
	require.NoError(t, envconfig.Process("", &cfg))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool, err := postgres.NewPostgresDB(ctx, &cfg, migrations.MigrationFiles)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `truncate return_records, issued_books, students, books restart identity cascade`)
	require.NoError(t, err)

	repo, err := NewRepository(pool, zap.NewNop())
	require.NoError(t, err)
	return repo
}

func ptr[T any](v T) *T { return &v }

func mustBook(t *testing.T, r *repository, title string, copies int) int {
	t.Helper()
	id, err := r.CreateBook(context.Background(), model.Book{Title: title, TotalCopies: copies, AvailableCopies: copies})
	require.NoError(t, err)
	return id
}

func mustStudent(t *testing.T, r *repository, req model.StudentRequest) int {
	t.Helper()
	id, err := r.CreateStudent(context.Background(), req)
	require.NoError(t, err)
	return id
}

func mustLoan(t *testing.T, r *repository, studentID, bookID int, issued model.Date, due *model.Date) int {
	t.Helper()
	id, err := r.CreateLoan(context.Background(), model.Loan{
		StudentID: &studentID, BookID: &bookID, IssueDate: issued, DueDate: due, Status: model.LoanStatusIssued,
	})
	require.NoError(t, err)
	return id
}

func TestRepository_CreateBook_TitleConflictKeepsTx(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	id := mustBook(t, r, "Dune", 2)

	err := r.WithTx(ctx, func(tx Repository) error {
		_, err := tx.CreateBook(ctx, model.Book{Title: "  dune ", TotalCopies: 1, AvailableCopies: 1})
		require.ErrorIs(t, err, errs.ErrConflict)

		// the transaction is still usable after the conflict
		book, err := tx.FindBookByTitle(ctx, "DUNE")
		if err != nil {
			return err
		}
		require.Equal(t, id, book.ID)
		return tx.AddCopies(ctx, book.ID, 1)
	})
	require.NoError(t, err)

	book, err := r.GetBook(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 3, book.TotalCopies)
	require.Equal(t, 3, book.AvailableCopies)
}

func TestRepository_MergeOrCreateBook_Concurrent(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	const writers = 8
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < writers; i++ {
		g.Go(func() error {
			return r.WithTx(gctx, func(tx Repository) error {
				_, err := reconcile.New(tx, reconcile.DefaultFineRate).
					MergeOrCreateBook(gctx, model.CreateBookRequest{Title: "Solaris", TotalCopies: 2})
				return err
			})
		})
	}
	require.NoError(t, g.Wait())

	books, err := r.ListBooks(ctx)
	require.NoError(t, err)
	require.Len(t, books, 1)
	require.Equal(t, 2*writers, books[0].TotalCopies)
	require.Equal(t, 2*writers, books[0].AvailableCopies)
}

func TestRepository_LedgerViews(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	issued := model.NewDate(2024, time.March, 1)
	asOf := model.NewDate(2024, time.March, 10)

	dune := mustBook(t, r, "Dune", 2)
	emma := mustBook(t, r, "Emma", 1)
	ann := mustStudent(t, r, model.StudentRequest{Name: "Ann", Email: "ann@uni.edu"})
	bob := mustStudent(t, r, model.StudentRequest{Name: "Bob", Email: "bob@uni.edu"})

	late := mustLoan(t, r, ann, dune, issued, ptr(model.NewDate(2024, time.March, 5)))
	returned := mustLoan(t, r, bob, emma, issued, ptr(model.NewDate(2024, time.March, 2)))
	open := mustLoan(t, r, ann, dune, issued, nil)
	onTime := mustLoan(t, r, bob, dune, issued, ptr(asOf))

	require.NoError(t, r.WithTx(ctx, func(tx Repository) error {
		loan, err := tx.LockLoan(ctx, returned)
		require.NoError(t, err)
		require.True(t, loan.Active())
		if _, err := tx.CreateReturnRecord(ctx, returned, asOf, 80); err != nil {
			return err
		}
		return tx.MarkReturned(ctx, returned, asOf)
	}))
	require.ErrorIs(t, r.MarkReturned(ctx, returned, asOf), errs.ErrConflict)
	_, err := r.CreateReturnRecord(ctx, returned, asOf, 0)
	require.ErrorIs(t, err, errs.ErrConflict)
	_, err = r.LockLoan(ctx, 999)
	require.ErrorIs(t, err, errs.ErrNotFound)

	active, err := r.ListActiveLoans(ctx)
	require.NoError(t, err)
	ids := make([]int, 0, len(active))
	for _, l := range active {
		ids = append(ids, l.ID)
	}
	require.Equal(t, []int{onTime, open, late}, ids)

	overdue, err := r.ListOverdue(ctx, asOf)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	require.Equal(t, late, overdue[0].ID)
	require.Equal(t, "Dune", *overdue[0].BookTitle)
	require.Equal(t, "Ann", *overdue[0].StudentName)

	// history survives deleting the book and the student
	require.NoError(t, r.DeleteBook(ctx, emma))
	n, err := r.DetachStudentLoans(ctx, bob)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	returns, err := r.ListReturns(ctx)
	require.NoError(t, err)
	require.Len(t, returns, 1)
	require.Equal(t, returned, returns[0].IssueID)
	require.Nil(t, returns[0].BookTitle)
	require.Nil(t, returns[0].StudentID)
	require.Equal(t, 80, returns[0].FineAmount)
	require.Equal(t, asOf, returns[0].ReturnDate)
}

func TestRepository_StatsMatchLedger(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	issued := model.NewDate(2024, time.March, 1)
	asOf := model.NewDate(2024, time.March, 10)

	dune := mustBook(t, r, "Dune", 3)
	emma := mustBook(t, r, "Emma", 1)
	mustBook(t, r, "Ulysses", 2)
	ann := mustStudent(t, r, model.StudentRequest{Name: "Ann", Email: "ann@uni.edu"})
	bob := mustStudent(t, r, model.StudentRequest{Name: "Bob", Email: "bob@uni.edu"})

	mustLoan(t, r, ann, dune, issued, ptr(model.NewDate(2024, time.March, 4)))
	mustLoan(t, r, bob, dune, issued, nil)
	back := mustLoan(t, r, bob, emma, issued, ptr(model.NewDate(2024, time.March, 2)))
	_, err := r.CreateReturnRecord(ctx, back, asOf, 80)
	require.NoError(t, err)
	require.NoError(t, r.MarkReturned(ctx, back, asOf))

	// stored availability drifted from the ledger
	require.NoError(t, r.SetAvailableCopies(ctx, dune, 3))
	require.NoError(t, r.SetAvailableCopies(ctx, emma, 0))
	fixed, err := r.RecomputeAllAvailability(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, fixed)
	fixed, err = r.RecomputeAllAvailability(ctx)
	require.NoError(t, err)
	require.Zero(t, fixed)

	books, err := r.ListBooks(ctx)
	require.NoError(t, err)
	students, err := r.ListStudents(ctx)
	require.NoError(t, err)
	active, err := r.ListActiveLoans(ctx)
	require.NoError(t, err)
	overdue, err := r.ListOverdue(ctx, asOf)
	require.NoError(t, err)
	returns, err := r.ListReturns(ctx)
	require.NoError(t, err)

	want := model.Stats{
		TotalBooks:    len(books),
		TotalStudents: len(students),
		BooksIssued:   len(active),
		OverdueBooks:  len(overdue),
		ReturnedBooks: len(returns),
	}
	for _, b := range books {
		active, err := r.CountActiveLoansByBook(ctx, b.ID)
		require.NoError(t, err)
		require.Equal(t, reconcile.Available(b.TotalCopies, active), b.AvailableCopies, b.Title)
		want.AvailableBooks += b.AvailableCopies
	}
	for _, rr := range returns {
		want.TotalFine += rr.FineAmount
	}

	got, err := r.GetStats(ctx, asOf)
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.Equal(t, model.Stats{
		TotalBooks: 3, AvailableBooks: 4, TotalStudents: 2, BooksIssued: 2, OverdueBooks: 1, ReturnedBooks: 1, TotalFine: 80,
	}, got)
}

func TestRepository_StudentSequence(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()

	explicit := mustStudent(t, r, model.StudentRequest{ID: ptr(100), Name: "Ann", Email: "ann@uni.edu"})
	require.Equal(t, 100, explicit)
	next := mustStudent(t, r, model.StudentRequest{Name: "Bob", Email: "bob@uni.edu"})
	require.Equal(t, 101, next)

	_, err := r.CreateStudent(ctx, model.StudentRequest{Name: "Ann again", Email: "ann@uni.edu"})
	require.ErrorIs(t, err, errs.ErrConflict)

	book := mustBook(t, r, "Dune", 1)
	loan := mustLoan(t, r, explicit, book, model.NewDate(2024, time.March, 1), nil)
	require.NoError(t, r.UpdateStudent(ctx, explicit, model.StudentRequest{ID: ptr(200), Name: "Ann", Email: "ann@uni.edu"}))

	got, err := r.LockLoan(ctx, loan)
	require.NoError(t, err)
	require.Equal(t, 200, *got.StudentID)

	after := mustStudent(t, r, model.StudentRequest{Name: "Cid", Email: "cid@uni.edu"})
	require.Equal(t, 201, after)

	students, err := r.ListStudents(ctx)
	require.NoError(t, err)
	ids := make([]int, 0, len(students))
	for _, s := range students {
		ids = append(ids, s.ID)
	}
	sort.Ints(ids)
	require.Equal(t, []int{101, 200, 201}, ids)
}
