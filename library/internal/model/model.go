package model

type Book struct {
	ID              int    `json:"book_id" db:"book_id"`
	Title           string `json:"title" db:"title"`
	Author          string `json:"author_name" db:"author_name"`
	Genre           string `json:"genre" db:"genre"`
	TotalCopies     int    `json:"total_copies" db:"total_copies"`
	AvailableCopies int    `json:"available_copies" db:"available_copies"`
}

type CreateBookRequest struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author_name"`
	Genre       string `json:"genre"`
	TotalCopies int    `json:"total_copies" validate:"required,gt=0"`
}

type UpdateBookRequest struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author_name" validate:"required"`
	Genre       string `json:"genre" validate:"required"`
	TotalCopies *int   `json:"total_copies" validate:"required,gte=0"`
}

type Student struct {
	ID         int    `json:"student_id" db:"student_id"`
	Name       string `json:"student_name" db:"student_name"`
	Email      string `json:"email" db:"email"`
	Department string `json:"department" db:"department"`
	Year       *int   `json:"year" db:"year"`
	Contact    string `json:"contact_no" db:"contact_no"`
}

// StudentRequest is used for both create and edit. A nil ID on create lets the
// store assign one; on edit it keeps the current id.
type StudentRequest struct {
	ID         *int   `json:"student_id" validate:"omitempty,gt=0"`
	Name       string `json:"student_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department"`
	Year       *int   `json:"year" validate:"omitempty,gt=0"`
	Contact    string `json:"contact_no"`
}

type LoanStatus string

const (
	LoanStatusIssued   LoanStatus = "Issued"
	LoanStatusReturned LoanStatus = "Returned"
)

// Loan is a row of the loan ledger. ReturnDate is nil while the loan is active.
type Loan struct {
	ID         int        `json:"issue_id" db:"issue_id"`
	StudentID  *int       `json:"student_id" db:"student_id"`
	BookID     *int       `json:"book_id" db:"book_id"`
	IssueDate  Date       `json:"issue_date" db:"issue_date"`
	DueDate    *Date      `json:"due_date" db:"due_date"`
	ReturnDate *Date      `json:"return_date" db:"return_date"`
	Status     LoanStatus `json:"status" db:"status"`
}

func (l Loan) Active() bool {
	return l.ReturnDate == nil
}

// IssueRequest carries the due date as sent; it is resolved to a calendar date
// in the library's time zone.
type IssueRequest struct {
	StudentID int    `json:"student_id" validate:"required"`
	BookID    int    `json:"book_id" validate:"required"`
	DueDate   string `json:"due_date"`
}

type ReturnRequest struct {
	IssueID int `json:"issue_id" validate:"required"`
}

// IssuedBook is an active loan joined with book and student names.
type IssuedBook struct {
	ID          int        `json:"issue_id" db:"issue_id"`
	StudentID   *int       `json:"student_id" db:"student_id"`
	BookTitle   *string    `json:"book_title" db:"book_title"`
	StudentName *string    `json:"student_name" db:"student_name"`
	IssueDate   Date       `json:"issue_date" db:"issue_date"`
	DueDate     *Date      `json:"due_date" db:"due_date"`
	ReturnDate  *Date      `json:"return_date" db:"return_date"`
	FineAmount  int        `json:"fine_amount" db:"-"`
	Status      LoanStatus `json:"status" db:"status"`
}

type OverdueBook struct {
	ID          int     `json:"issue_id" db:"issue_id"`
	StudentID   *int    `json:"student_id" db:"student_id"`
	BookTitle   *string `json:"book_title" db:"book_title"`
	StudentName *string `json:"student_name" db:"student_name"`
	DueDate     Date    `json:"due_date" db:"due_date"`
	DaysOverdue int     `json:"days_overdue" db:"-"`
	FineAmount  int     `json:"fine_amount" db:"-"`
}

type ReturnRecord struct {
	ID          int     `json:"return_id" db:"return_id"`
	IssueID     int     `json:"issue_id" db:"issue_id"`
	StudentID   *int    `json:"student_id" db:"student_id"`
	BookTitle   *string `json:"book_title" db:"book_title"`
	StudentName *string `json:"student_name" db:"student_name"`
	ReturnDate  Date    `json:"return_date" db:"return_date"`
	FineAmount  int     `json:"fine_amount" db:"fine_amount"`
}

type Stats struct {
	TotalBooks     int `json:"totalBooks" db:"total_books"`
	AvailableBooks int `json:"availableBooks" db:"available_books"`
	TotalStudents  int `json:"totalStudents" db:"total_students"`
	BooksIssued    int `json:"booksIssued" db:"books_issued"`
	OverdueBooks   int `json:"overdueBooks" db:"overdue_books"`
	ReturnedBooks  int `json:"returnedBooks" db:"returned_books"`
	TotalFine      int `json:"totalFine" db:"total_fine"`
}

type AddBookResult struct {
	BookID int  `json:"book_id"`
	Merged bool `json:"merged"`
}

type UpdateBookResult struct {
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
}

type ReturnResult struct {
	IssueID    int  `json:"issue_id"`
	ReturnID   int  `json:"return_id"`
	ReturnDate Date `json:"return_date"`
	Fine       int  `json:"fine"`
}
