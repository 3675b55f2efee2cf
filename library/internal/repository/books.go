package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
)

var bookColumns = []string{"book_id", "title", "author_name", "genre", "total_copies", "available_copies"}

func (r *repository) ListBooks(ctx context.Context) ([]model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		OrderBy("book_id desc").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "ListBooks")
	}
	books, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		return nil, translate(err, "pgx.CollectRows")
	}
	return books, nil
}

func (r *repository) GetBook(ctx context.Context, bookID int) (model.Book, error) {
	return r.getBook(ctx, bookID, false)
}

// LockBook reads the book and holds its row lock until the transaction ends.
func (r *repository) LockBook(ctx context.Context, bookID int) (model.Book, error) {
	return r.getBook(ctx, bookID, true)
}

func (r *repository) getBook(ctx context.Context, bookID int, lock bool) (model.Book, error) {
	q := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Eq{"book_id": bookID})
	if lock {
		q = q.Suffix("for update")
	}
	query, args, err := q.ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, translate(err, "GetBook")
	}
	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		if isNoRows(err) {
			return model.Book{}, errs.NotFound("Book not found")
		}
		return model.Book{}, translate(err, "GetBook")
	}
	return book, nil
}

func (r *repository) FindBookByTitle(ctx context.Context, title string) (model.Book, error) {
	query, args, err := qb.Select(bookColumns...).
		From(booksTableName).
		Where(sq.Expr("lower(trim(title)) = lower(trim(?))", title)).
		Limit(1).
		Suffix("for update").
		ToSql()
	if err != nil {
		return model.Book{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Book{}, translate(err, "FindBookByTitle")
	}
	book, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Book])
	if err != nil {
		if isNoRows(err) {
			return model.Book{}, errs.NotFound("Book not found")
		}
		return model.Book{}, translate(err, "FindBookByTitle")
	}
	return book, nil
}

// CreateBook inserts a new title. A concurrent insert of the same normalized
// title yields errs.ErrConflict without aborting the transaction, so the caller
// can still merge into the winner's row.
func (r *repository) CreateBook(ctx context.Context, book model.Book) (int, error) {
	query, args, err := qb.Insert(booksTableName).
		Columns("title", "author_name", "genre", "total_copies", "available_copies").
		Values(book.Title, book.Author, book.Genre, book.TotalCopies, book.AvailableCopies).
		Suffix("on conflict ((lower(trim(title)))) do nothing returning book_id").
		ToSql()
	if err != nil {
		return 0, err
	}

	var id int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if isNoRows(err) {
			return 0, errs.Conflict("A book with this title already exists")
		}
		r.log.Error("CreateBook", zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return 0, translate(err, "CreateBook")
	}
	return id, nil
}

func (r *repository) AddCopies(ctx context.Context, bookID, copies int) error {
	query, args, err := qb.Update(booksTableName).
		Set("total_copies", sq.Expr("total_copies + ?", copies)).
		Set("available_copies", sq.Expr("available_copies + ?", copies)).
		Where(sq.Eq{"book_id": bookID}).
		ToSql()
	if err != nil {
		return err
	}
	return r.execOne(ctx, "AddCopies", "Book not found", query, args...)
}

func (r *repository) UpdateBook(ctx context.Context, book model.Book) error {
	query, args, err := qb.Update(booksTableName).
		SetMap(map[string]interface{}{
			"title":            book.Title,
			"author_name":      book.Author,
			"genre":            book.Genre,
			"total_copies":     book.TotalCopies,
			"available_copies": book.AvailableCopies,
		}).
		Where(sq.Eq{"book_id": book.ID}).
		ToSql()
	if err != nil {
		return err
	}
	return r.execOne(ctx, "UpdateBook", "Book not found", query, args...)
}

func (r *repository) SetAvailableCopies(ctx context.Context, bookID, available int) error {
	query, args, err := qb.Update(booksTableName).
		Set("available_copies", available).
		Where(sq.Eq{"book_id": bookID}).
		ToSql()
	if err != nil {
		return err
	}
	return r.execOne(ctx, "SetAvailableCopies", "Book not found", query, args...)
}

func (r *repository) DeleteBook(ctx context.Context, bookID int) error {
	query, args, err := qb.Delete(booksTableName).
		Where(sq.Eq{"book_id": bookID}).
		ToSql()
	if err != nil {
		return err
	}
	return r.execOne(ctx, "DeleteBook", "Book not found", query, args...)
}

func (r *repository) CountActiveLoansByBook(ctx context.Context, bookID int) (int, error) {
	return r.countActive(ctx, "book_id", bookID)
}

// RecomputeAllAvailability rewrites available_copies for every book whose
// stored value disagrees with the ledger and returns how many were fixed.
func (r *repository) RecomputeAllAvailability(ctx context.Context) (int64, error) {
	const q = `
update books b
    set available_copies = x.available
from (
    select bk.book_id, greatest(0, bk.total_copies - count(i.issue_id)) as available
    from books bk
    left join issued_books i on i.book_id = bk.book_id and i.return_date is null
    group by bk.book_id
) x
where x.book_id = b.book_id and b.available_copies <> x.available`
	tag, err := r.db.Exec(ctx, q)
	if err != nil {
		return 0, translate(err, "RecomputeAllAvailability")
	}
	return tag.RowsAffected(), nil
}

func (r *repository) countActive(ctx context.Context, column string, id int) (int, error) {
	query, args, err := qb.Select("count(*)").
		From(issuedTableName).
		Where(sq.Eq{column: id}).
		Where(sq.Eq{"return_date": nil}).
		ToSql()
	if err != nil {
		return 0, err
	}
	var cnt int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&cnt); err != nil {
		return 0, translate(err, "countActive")
	}
	return cnt, nil
}

// execOne runs a statement that must touch at least one row.
func (r *repository) execOne(ctx context.Context, op, notFound, query string, args ...any) error {
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		r.log.Debug(op, zap.String("q", query), zap.Any("args", args), zap.Error(err))
		return translate(err, op)
	}
	if tag.RowsAffected() == 0 {
		return errs.NotFound(notFound)
	}
	return nil
}
