package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/library-ledger/library/internal/model"
)

type addBookResponse struct {
	Response
	model.AddBookResult
}

type editBookResponse struct {
	Response
	model.UpdateBookResult
}

func (h *Handler) ListBooks(c echo.Context) error {
	books, err := h.librarySvc.ListBooks(c.Request().Context())
	if err != nil {
		return h.fail(err, "Failed to fetch books")
	}
	return c.JSON(http.StatusOK, books)
}

func (h *Handler) AddBook(c echo.Context) error {
	var req model.CreateBookRequest
	if err := bindAndValidate(c, &req, "Title and copies are required"); err != nil {
		return err
	}
	res, err := h.librarySvc.AddBook(c.Request().Context(), req)
	if err != nil {
		return h.fail(err, "Failed to add book")
	}
	msg := "New book added successfully"
	if res.Merged {
		msg = "Book already exists → added extra copies."
	}
	return c.JSON(http.StatusOK, addBookResponse{Response: ok(msg), AddBookResult: res})
}

func (h *Handler) EditBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.UpdateBookRequest
	if err := bindAndValidate(c, &req, "All fields are required"); err != nil {
		return err
	}
	res, err := h.librarySvc.EditBook(c.Request().Context(), id, req)
	if err != nil {
		return h.fail(err, "Failed to update book")
	}
	return c.JSON(http.StatusOK, editBookResponse{Response: ok("Book updated successfully"), UpdateBookResult: res})
}

func (h *Handler) DeleteBook(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.librarySvc.DeleteBook(c.Request().Context(), id); err != nil {
		return h.fail(err, "Failed to delete book")
	}
	return c.JSON(http.StatusOK, ok("Book deleted successfully"))
}
