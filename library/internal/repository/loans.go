package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
)

func nullableDate(d *model.Date) any {
	if d == nil {
		return nil
	}
	return d.Time
}

func (r *repository) CreateLoan(ctx context.Context, loan model.Loan) (int, error) {
	query, args, err := qb.Insert(issuedTableName).
		Columns("student_id", "book_id", "issue_date", "due_date", "status").
		Values(loan.StudentID, loan.BookID, loan.IssueDate.Time, nullableDate(loan.DueDate), model.LoanStatusIssued).
		Suffix("returning issue_id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		r.log.Error("CreateLoan", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return 0, translate(err, "CreateLoan")
	}
	return id, nil
}

func (r *repository) LockLoan(ctx context.Context, issueID int) (model.Loan, error) {
	query, args, err := qb.Select("issue_id", "student_id", "book_id", "issue_date", "due_date", "return_date", "status").
		From(issuedTableName).
		Where(sq.Eq{"issue_id": issueID}).
		Suffix("for update").
		ToSql()
	if err != nil {
		return model.Loan{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Loan{}, translate(err, "LockLoan")
	}
	loan, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Loan])
	if err != nil {
		if isNoRows(err) {
			return model.Loan{}, errs.NotFound("Issue record not found")
		}
		return model.Loan{}, translate(err, "LockLoan")
	}
	return loan, nil
}

func (r *repository) MarkReturned(ctx context.Context, issueID int, returnDate model.Date) error {
	query, args, err := qb.Update(issuedTableName).
		Set("status", model.LoanStatusReturned).
		Set("return_date", returnDate.Time).
		Where(sq.Eq{"issue_id": issueID}).
		Where(sq.Eq{"return_date": nil}).
		ToSql()
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return translate(err, "MarkReturned")
	}
	if tag.RowsAffected() == 0 {
		return errs.Conflict("Book already returned")
	}
	return nil
}

// loanView joins a loan with the names of its book and student. Either side may
// be gone, so both joins are outer.
func loanView(columns ...string) sq.SelectBuilder {
	return qb.Select(columns...).
		From(issuedTableName + " i").
		LeftJoin(fmt.Sprintf("%s b on b.book_id = i.book_id", booksTableName)).
		LeftJoin(fmt.Sprintf("%s s on s.student_id = i.student_id", studentsTableName))
}

func (r *repository) ListActiveLoans(ctx context.Context) ([]model.IssuedBook, error) {
	query, args, err := loanView(
		"i.issue_id", "i.student_id", "b.title as book_title", "s.student_name",
		"i.issue_date", "i.due_date", "i.return_date", "i.status").
		Where(sq.Eq{"i.return_date": nil}).
		OrderBy("i.issue_id desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "ListActiveLoans")
	}
	loans, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.IssuedBook])
	if err != nil {
		return nil, translate(err, "pgx.CollectRows")
	}
	return loans, nil
}

func (r *repository) ListOverdue(ctx context.Context, asOf model.Date) ([]model.OverdueBook, error) {
	query, args, err := loanView(
		"i.issue_id", "i.student_id", "b.title as book_title", "s.student_name", "i.due_date").
		Where(sq.Eq{"i.return_date": nil}).
		Where(sq.Lt{"i.due_date": asOf.Time}).
		OrderBy("i.due_date asc", "i.issue_id asc").
		ToSql()
	if err != nil {
		return nil, err
	}
	r.log.Debug("ListOverdue", zap.String("query", query), zap.Any("args", args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "ListOverdue")
	}
	loans, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.OverdueBook])
	if err != nil {
		return nil, translate(err, "pgx.CollectRows")
	}
	return loans, nil
}

func (r *repository) CreateReturnRecord(ctx context.Context, issueID int, returnDate model.Date, fine int) (int, error) {
	query, args, err := qb.Insert(returnsTableName).
		Columns("issue_id", "return_date", "fine_amount").
		Values(issueID, returnDate.Time, fine).
		Suffix("returning return_id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, translate(err, "CreateReturnRecord")
	}
	return id, nil
}

func (r *repository) ListReturns(ctx context.Context) ([]model.ReturnRecord, error) {
	query, args, err := qb.Select(
		"rr.return_id", "rr.issue_id", "i.student_id", "b.title as book_title", "s.student_name",
		"rr.return_date", "rr.fine_amount").
		From(returnsTableName + " rr").
		Join(fmt.Sprintf("%s i on i.issue_id = rr.issue_id", issuedTableName)).
		LeftJoin(fmt.Sprintf("%s b on b.book_id = i.book_id", booksTableName)).
		LeftJoin(fmt.Sprintf("%s s on s.student_id = i.student_id", studentsTableName)).
		OrderBy("rr.return_id desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "ListReturns")
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.ReturnRecord])
	if err != nil {
		return nil, translate(err, "pgx.CollectRows")
	}
	return records, nil
}

func (r *repository) GetStats(ctx context.Context, asOf model.Date) (model.Stats, error) {
	const q = `
select
    (select count(*) from books)                                   as total_books,
    (select coalesce(sum(available_copies), 0) from books)         as available_books,
    (select count(*) from students)                                as total_students,
    (select count(*) from issued_books where return_date is null)  as books_issued,
    (select count(*) from issued_books
        where return_date is null and due_date < @as_of)           as overdue_books,
    (select count(*) from return_records)                          as returned_books,
    (select coalesce(sum(fine_amount), 0) from return_records)     as total_fine`

	rows, err := r.db.Query(ctx, q, pgx.NamedArgs{"as_of": asOf.Time})
	if err != nil {
		return model.Stats{}, translate(err, "GetStats")
	}
	stats, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Stats])
	if err != nil {
		return model.Stats{}, translate(err, "pgx.CollectRows")
	}
	return stats, nil
}
