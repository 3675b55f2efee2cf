package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
	"github.com/Astemirdum/library-ledger/library/internal/reconcile"
)

type Repository interface {
	reconcile.Store

	// WithTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithTx(ctx context.Context, fn func(tx Repository) error) error

	ListBooks(ctx context.Context) ([]model.Book, error)
	LockBook(ctx context.Context, bookID int) (model.Book, error)
	UpdateBook(ctx context.Context, book model.Book) error
	DeleteBook(ctx context.Context, bookID int) error

	ListStudents(ctx context.Context) ([]model.Student, error)
	LockStudent(ctx context.Context, studentID int) (model.Student, error)
	CreateStudent(ctx context.Context, req model.StudentRequest) (int, error)
	UpdateStudent(ctx context.Context, studentID int, req model.StudentRequest) error
	DeleteStudent(ctx context.Context, studentID int) error
	CountActiveLoansByStudent(ctx context.Context, studentID int) (int, error)
	DetachStudentLoans(ctx context.Context, studentID int) (int64, error)

	CreateLoan(ctx context.Context, loan model.Loan) (int, error)
	LockLoan(ctx context.Context, issueID int) (model.Loan, error)
	MarkReturned(ctx context.Context, issueID int, returnDate model.Date) error
	ListActiveLoans(ctx context.Context) ([]model.IssuedBook, error)
	ListOverdue(ctx context.Context, asOf model.Date) ([]model.OverdueBook, error)

	CreateReturnRecord(ctx context.Context, issueID int, returnDate model.Date, fine int) (int, error)
	ListReturns(ctx context.Context) ([]model.ReturnRecord, error)

	GetStats(ctx context.Context, asOf model.Date) (model.Stats, error)
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Repository = (*repository)(nil)

type repository struct {
	pool *pgxpool.Pool
	db   querier
	inTx bool
	log  *zap.Logger
}

func NewRepository(db *pgxpool.Pool, log *zap.Logger) (*repository, error) {
	if db == nil {
		return nil, errors.New("nil pool")
	}
	return &repository{
		pool: db,
		db:   db,
		log:  log.Named("repo"),
	}, nil
}

const (
	booksTableName    = `books`
	studentsTableName = `students`
	issuedTableName   = `issued_books`
	returnsTableName  = `return_records`
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

func (r *repository) WithTx(ctx context.Context, fn func(tx Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&repository{
			pool: r.pool,
			db:   tx,
			inTx: true,
			log:  r.log,
		})
	})
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// translate maps driver errors onto the errs taxonomy. Anything it does not
// recognise is wrapped with op and left for the caller to report as a store failure.
func translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if isNoRows(err) {
		return errs.NotFound("record not found")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			switch pgErr.ConstraintName {
			case "books_title_uq":
				return errs.Conflict("A book with this title already exists")
			case "return_records_issue_key":
				return errs.Conflict("Book already returned")
			default:
				return errs.Conflict("Duplicate email or duplicate student ID!")
			}
		case pgerrcode.ForeignKeyViolation:
			return errs.NotFound("Referenced student or book not found")
		case pgerrcode.CheckViolation, pgerrcode.NotNullViolation:
			return errs.Invalid(fmt.Sprintf("Invalid value for %s%s", pgErr.ColumnName, pgErr.ConstraintName))
		case pgerrcode.RaiseException:
			return errs.Invalid(pgErr.Message)
		}
	}
	return errors.Wrap(err, op)
}
