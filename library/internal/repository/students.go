package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
)

var studentColumns = []string{"student_id", "student_name", "email", "department", "year", "contact_no"}

func (r *repository) ListStudents(ctx context.Context) ([]model.Student, error) {
	query, args, err := qb.Select(studentColumns...).
		From(studentsTableName).
		OrderBy("student_id").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(err, "ListStudents")
	}
	students, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.Student])
	if err != nil {
		return nil, translate(err, "pgx.CollectRows")
	}
	return students, nil
}

func (r *repository) LockStudent(ctx context.Context, studentID int) (model.Student, error) {
	query, args, err := qb.Select(studentColumns...).
		From(studentsTableName).
		Where(sq.Eq{"student_id": studentID}).
		Suffix("for update").
		ToSql()
	if err != nil {
		return model.Student{}, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return model.Student{}, translate(err, "LockStudent")
	}
	student, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.Student])
	if err != nil {
		if isNoRows(err) {
			return model.Student{}, errs.NotFound("Student not found")
		}
		return model.Student{}, translate(err, "LockStudent")
	}
	return student, nil
}

func (r *repository) CreateStudent(ctx context.Context, req model.StudentRequest) (int, error) {
	q := qb.Insert(studentsTableName)
	if req.ID != nil {
		q = q.Columns(studentColumns...).
			Values(*req.ID, req.Name, req.Email, req.Department, req.Year, req.Contact)
	} else {
		q = q.Columns(studentColumns[1:]...).
			Values(req.Name, req.Email, req.Department, req.Year, req.Contact)
	}
	query, args, err := q.Suffix("returning student_id").ToSql()
	if err != nil {
		return 0, err
	}

	var id int
	if err := r.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		r.log.Error("CreateStudent", zap.String("q", query), zap.Error(err))
		return 0, translate(err, "CreateStudent")
	}
	if req.ID != nil {
		if err := r.syncStudentSequence(ctx); err != nil {
			return 0, err
		}
	}
	return id, nil
}

// syncStudentSequence moves the serial past explicitly supplied ids so later
// auto-assigned ids do not collide with them.
func (r *repository) syncStudentSequence(ctx context.Context) error {
	const q = `
select setval(pg_get_serial_sequence('students', 'student_id'),
              greatest((select max(student_id) from students), 1))`
	if _, err := r.db.Exec(ctx, q); err != nil {
		return translate(err, "syncStudentSequence")
	}
	return nil
}

func (r *repository) UpdateStudent(ctx context.Context, studentID int, req model.StudentRequest) error {
	values := map[string]interface{}{
		"student_name": req.Name,
		"email":        req.Email,
		"department":   req.Department,
		"year":         req.Year,
		"contact_no":   req.Contact,
	}
	if req.ID != nil {
		values["student_id"] = *req.ID
	}
	query, args, err := qb.Update(studentsTableName).
		SetMap(values).
		Where(sq.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		return err
	}
	if err := r.execOne(ctx, "UpdateStudent", "Student not found", query, args...); err != nil {
		return err
	}
	if req.ID != nil && *req.ID != studentID {
		return r.syncStudentSequence(ctx)
	}
	return nil
}

func (r *repository) DeleteStudent(ctx context.Context, studentID int) error {
	query, args, err := qb.Delete(studentsTableName).
		Where(sq.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		return err
	}
	return r.execOne(ctx, "DeleteStudent", "Student not found", query, args...)
}

func (r *repository) CountActiveLoansByStudent(ctx context.Context, studentID int) (int, error) {
	return r.countActive(ctx, "student_id", studentID)
}

// DetachStudentLoans clears the student reference on every loan of the
// student, keeping the rows as history.
func (r *repository) DetachStudentLoans(ctx context.Context, studentID int) (int64, error) {
	query, args, err := qb.Update(issuedTableName).
		Set("student_id", nil).
		Where(sq.Eq{"student_id": studentID}).
		ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, translate(err, "DetachStudentLoans")
	}
	return tag.RowsAffected(), nil
}
