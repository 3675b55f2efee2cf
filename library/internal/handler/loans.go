package handler

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/library-ledger/library/internal/model"
)

type issueResponse struct {
	Response
	IssueID int `json:"issue_id"`
}

type returnResponse struct {
	Response
	model.ReturnResult
}

func (h *Handler) IssueBook(c echo.Context) error {
	var req model.IssueRequest
	if err := bindAndValidate(c, &req, "Student ID and Book ID are required"); err != nil {
		return err
	}
	id, err := h.librarySvc.IssueBook(c.Request().Context(), req)
	if err != nil {
		return h.fail(err, "Failed to issue book")
	}
	return c.JSON(http.StatusOK, issueResponse{Response: ok(""), IssueID: id})
}

func (h *Handler) ListIssued(c echo.Context) error {
	loans, err := h.librarySvc.ListIssued(c.Request().Context())
	if err != nil {
		return h.fail(err, "Failed to fetch issued books")
	}
	if loans == nil {
		loans = []model.IssuedBook{}
	}
	return c.JSON(http.StatusOK, loans)
}

func (h *Handler) ReturnBook(c echo.Context) error {
	var req model.ReturnRequest
	if err := bindAndValidate(c, &req, "Issue ID is required"); err != nil {
		return err
	}
	res, err := h.librarySvc.ReturnBook(c.Request().Context(), req.IssueID)
	if err != nil {
		return h.fail(err, "Failed to return book")
	}
	msg := "Book returned successfully"
	if res.Fine > 0 {
		msg += fmt.Sprintf(" — Fine: ₹%d", res.Fine)
	}
	return c.JSON(http.StatusOK, returnResponse{Response: ok(msg), ReturnResult: res})
}

func (h *Handler) ListReturns(c echo.Context) error {
	records, err := h.librarySvc.ListReturns(c.Request().Context())
	if err != nil {
		return h.fail(err, "Failed to fetch return records")
	}
	if records == nil {
		records = []model.ReturnRecord{}
	}
	return c.JSON(http.StatusOK, records)
}

func (h *Handler) ListOverdue(c echo.Context) error {
	loans, err := h.librarySvc.ListOverdue(c.Request().Context())
	if err != nil {
		return h.fail(err, "Failed to fetch overdue books")
	}
	if loans == nil {
		loans = []model.OverdueBook{}
	}
	return c.JSON(http.StatusOK, loans)
}
