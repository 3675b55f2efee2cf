package service_test

import (
	"context"
	"maps"
	"sort"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	"github.com/Astemirdum/library-ledger/library/internal/model"
	"github.com/Astemirdum/library-ledger/library/internal/reconcile"
	libraryRepo "github.com/Astemirdum/library-ledger/library/internal/repository"
)

type returnRow struct {
	id, issueID, fine int
	date              model.Date
}

// memRepo is an in-memory Repository. WithTx restores the previous state when
// fn fails, which is enough to observe rollback in tests.
type memRepo struct {
	books    map[int]model.Book
	students map[int]model.Student
	loans    map[int]model.Loan
	returns  map[int]returnRow

	nextBook, nextStudent, nextLoan, nextReturn int
}

var _ libraryRepo.Repository = (*memRepo)(nil)

func newMemRepo() *memRepo {
	return &memRepo{
		books:    map[int]model.Book{},
		students: map[int]model.Student{},
		loans:    map[int]model.Loan{},
		returns:  map[int]returnRow{},
	}
}

func (m *memRepo) WithTx(_ context.Context, fn func(tx libraryRepo.Repository) error) error {
	books, students, loans, returns := maps.Clone(m.books), maps.Clone(m.students), maps.Clone(m.loans), maps.Clone(m.returns)
	if err := fn(m); err != nil {
		m.books, m.students, m.loans, m.returns = books, students, loans, returns
		return err
	}
	return nil
}

func (m *memRepo) GetBook(_ context.Context, id int) (model.Book, error) {
	b, ok := m.books[id]
	if !ok {
		return model.Book{}, errs.NotFound("Book not found")
	}
	return b, nil
}

func (m *memRepo) LockBook(ctx context.Context, id int) (model.Book, error) {
	return m.GetBook(ctx, id)
}

func (m *memRepo) FindBookByTitle(_ context.Context, title string) (model.Book, error) {
	for _, b := range m.books {
		if reconcile.NormalizeTitle(b.Title) == reconcile.NormalizeTitle(title) {
			return b, nil
		}
	}
	return model.Book{}, errs.NotFound("Book not found")
}

func (m *memRepo) CreateBook(ctx context.Context, b model.Book) (int, error) {
	if _, err := m.FindBookByTitle(ctx, b.Title); err == nil {
		return 0, errs.Conflict("A book with this title already exists")
	}
	m.nextBook++
	b.ID = m.nextBook
	m.books[b.ID] = b
	return b.ID, nil
}

func (m *memRepo) AddCopies(_ context.Context, id, copies int) error {
	b, ok := m.books[id]
	if !ok {
		return errs.NotFound("Book not found")
	}
	b.TotalCopies += copies
	b.AvailableCopies += copies
	m.books[id] = b
	return nil
}

func (m *memRepo) SetAvailableCopies(_ context.Context, id, available int) error {
	b, ok := m.books[id]
	if !ok {
		return errs.NotFound("Book not found")
	}
	b.AvailableCopies = available
	m.books[id] = b
	return nil
}

func (m *memRepo) CountActiveLoansByBook(_ context.Context, id int) (int, error) {
	n := 0
	for _, l := range m.loans {
		if l.Active() && l.BookID != nil && *l.BookID == id {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) RecomputeAllAvailability(ctx context.Context) (int64, error) {
	var changed int64
	for id, b := range m.books {
		active, _ := m.CountActiveLoansByBook(ctx, id)
		if want := reconcile.Available(b.TotalCopies, active); want != b.AvailableCopies {
			b.AvailableCopies = want
			m.books[id] = b
			changed++
		}
	}
	return changed, nil
}

func (m *memRepo) ListBooks(context.Context) ([]model.Book, error) {
	books := make([]model.Book, 0, len(m.books))
	for _, b := range m.books {
		books = append(books, b)
	}
	sort.Slice(books, func(i, j int) bool { return books[i].ID > books[j].ID })
	return books, nil
}

func (m *memRepo) UpdateBook(_ context.Context, b model.Book) error {
	if _, ok := m.books[b.ID]; !ok {
		return errs.NotFound("Book not found")
	}
	m.books[b.ID] = b
	return nil
}

func (m *memRepo) DeleteBook(_ context.Context, id int) error {
	if _, ok := m.books[id]; !ok {
		return errs.NotFound("Book not found")
	}
	delete(m.books, id)
	for lid, l := range m.loans {
		if l.BookID != nil && *l.BookID == id {
			l.BookID = nil
			m.loans[lid] = l
		}
	}
	return nil
}

func (m *memRepo) ListStudents(context.Context) ([]model.Student, error) {
	students := make([]model.Student, 0, len(m.students))
	for _, s := range m.students {
		students = append(students, s)
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (m *memRepo) LockStudent(_ context.Context, id int) (model.Student, error) {
	s, ok := m.students[id]
	if !ok {
		return model.Student{}, errs.NotFound("Student not found")
	}
	return s, nil
}

func (m *memRepo) emailTaken(email string, except int) bool {
	for id, s := range m.students {
		if id != except && s.Email == email {
			return true
		}
	}
	return false
}

func (m *memRepo) CreateStudent(_ context.Context, req model.StudentRequest) (int, error) {
	id := m.nextStudent + 1
	if req.ID != nil {
		id = *req.ID
	}
	if _, ok := m.students[id]; ok || m.emailTaken(req.Email, 0) {
		return 0, errs.Conflict("Duplicate email or duplicate student ID!")
	}
	m.nextStudent = max(m.nextStudent, id)
	m.students[id] = model.Student{
		ID: id, Name: req.Name, Email: req.Email, Department: req.Department, Year: req.Year, Contact: req.Contact,
	}
	return id, nil
}

func (m *memRepo) UpdateStudent(_ context.Context, id int, req model.StudentRequest) error {
	if _, ok := m.students[id]; !ok {
		return errs.NotFound("Student not found")
	}
	newID := id
	if req.ID != nil {
		newID = *req.ID
	}
	if _, ok := m.students[newID]; (ok && newID != id) || m.emailTaken(req.Email, id) {
		return errs.Conflict("Duplicate email or duplicate student ID!")
	}
	delete(m.students, id)
	m.students[newID] = model.Student{
		ID: newID, Name: req.Name, Email: req.Email, Department: req.Department, Year: req.Year, Contact: req.Contact,
	}
	for lid, l := range m.loans {
		if l.StudentID != nil && *l.StudentID == id {
			sid := newID
			l.StudentID = &sid
			m.loans[lid] = l
		}
	}
	m.nextStudent = max(m.nextStudent, newID)
	return nil
}

func (m *memRepo) DeleteStudent(_ context.Context, id int) error {
	if _, ok := m.students[id]; !ok {
		return errs.NotFound("Student not found")
	}
	delete(m.students, id)
	return nil
}

func (m *memRepo) CountActiveLoansByStudent(_ context.Context, id int) (int, error) {
	n := 0
	for _, l := range m.loans {
		if l.Active() && l.StudentID != nil && *l.StudentID == id {
			n++
		}
	}
	return n, nil
}

func (m *memRepo) DetachStudentLoans(_ context.Context, id int) (int64, error) {
	var n int64
	for lid, l := range m.loans {
		if l.StudentID != nil && *l.StudentID == id {
			l.StudentID = nil
			m.loans[lid] = l
			n++
		}
	}
	return n, nil
}

func (m *memRepo) CreateLoan(_ context.Context, l model.Loan) (int, error) {
	if _, ok := m.students[*l.StudentID]; !ok {
		return 0, errs.NotFound("Referenced student or book not found")
	}
	if _, ok := m.books[*l.BookID]; !ok {
		return 0, errs.NotFound("Referenced student or book not found")
	}
	m.nextLoan++
	l.ID = m.nextLoan
	m.loans[l.ID] = l
	return l.ID, nil
}

func (m *memRepo) LockLoan(_ context.Context, id int) (model.Loan, error) {
	l, ok := m.loans[id]
	if !ok {
		return model.Loan{}, errs.NotFound("Issue record not found")
	}
	return l, nil
}

func (m *memRepo) MarkReturned(_ context.Context, id int, date model.Date) error {
	l, ok := m.loans[id]
	if !ok || !l.Active() {
		return errs.Conflict("Book already returned")
	}
	l.ReturnDate = &date
	l.Status = model.LoanStatusReturned
	m.loans[id] = l
	return nil
}

func (m *memRepo) names(l model.Loan) (title, name *string) {
	if l.BookID != nil {
		if b, ok := m.books[*l.BookID]; ok {
			title = &b.Title
		}
	}
	if l.StudentID != nil {
		if s, ok := m.students[*l.StudentID]; ok {
			name = &s.Name
		}
	}
	return title, name
}

func (m *memRepo) ListActiveLoans(context.Context) ([]model.IssuedBook, error) {
	var out []model.IssuedBook
	for _, l := range m.loans {
		if !l.Active() {
			continue
		}
		title, name := m.names(l)
		out = append(out, model.IssuedBook{
			ID: l.ID, StudentID: l.StudentID, BookTitle: title, StudentName: name,
			IssueDate: l.IssueDate, DueDate: l.DueDate, Status: l.Status,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) ListOverdue(_ context.Context, asOf model.Date) ([]model.OverdueBook, error) {
	var out []model.OverdueBook
	for _, l := range m.loans {
		if !l.Active() || l.DueDate == nil || !asOf.After(*l.DueDate) {
			continue
		}
		title, name := m.names(l)
		out = append(out, model.OverdueBook{
			ID: l.ID, StudentID: l.StudentID, BookTitle: title, StudentName: name, DueDate: *l.DueDate,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DueDate.Equal(out[j].DueDate.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].DueDate.Before(out[j].DueDate.Time)
	})
	return out, nil
}

func (m *memRepo) CreateReturnRecord(_ context.Context, issueID int, date model.Date, fine int) (int, error) {
	for _, r := range m.returns {
		if r.issueID == issueID {
			return 0, errs.Conflict("Book already returned")
		}
	}
	m.nextReturn++
	m.returns[m.nextReturn] = returnRow{id: m.nextReturn, issueID: issueID, fine: fine, date: date}
	return m.nextReturn, nil
}

func (m *memRepo) ListReturns(context.Context) ([]model.ReturnRecord, error) {
	var out []model.ReturnRecord
	for _, r := range m.returns {
		l := m.loans[r.issueID]
		title, name := m.names(l)
		out = append(out, model.ReturnRecord{
			ID: r.id, IssueID: r.issueID, StudentID: l.StudentID, BookTitle: title, StudentName: name,
			ReturnDate: r.date, FineAmount: r.fine,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memRepo) GetStats(ctx context.Context, asOf model.Date) (model.Stats, error) {
	st := model.Stats{TotalBooks: len(m.books), TotalStudents: len(m.students), ReturnedBooks: len(m.returns)}
	for _, b := range m.books {
		st.AvailableBooks += b.AvailableCopies
	}
	for _, l := range m.loans {
		if l.Active() {
			st.BooksIssued++
		}
	}
	overdue, _ := m.ListOverdue(ctx, asOf)
	st.OverdueBooks = len(overdue)
	for _, r := range m.returns {
		st.TotalFine += r.fine
	}
	return st, nil
}
