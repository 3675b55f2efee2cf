package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Astemirdum/library-ledger/library/internal/model"
)

const studentRequired = "Student name and email are required"

type createStudentResponse struct {
	Response
	StudentID int `json:"student_id"`
}

func (h *Handler) ListStudents(c echo.Context) error {
	students, err := h.librarySvc.ListStudents(c.Request().Context())
	if err != nil {
		return h.fail(err, "Failed to fetch students")
	}
	return c.JSON(http.StatusOK, students)
}

func (h *Handler) CreateStudent(c echo.Context) error {
	var req model.StudentRequest
	if err := bindAndValidate(c, &req, studentRequired); err != nil {
		return err
	}
	id, err := h.librarySvc.CreateStudent(c.Request().Context(), req)
	if err != nil {
		return h.fail(err, "Database insert failed")
	}
	return c.JSON(http.StatusOK, createStudentResponse{Response: ok(""), StudentID: id})
}

func (h *Handler) EditStudent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req model.StudentRequest
	if err := bindAndValidate(c, &req, studentRequired); err != nil {
		return err
	}
	if err := h.librarySvc.EditStudent(c.Request().Context(), id, req); err != nil {
		return h.fail(err, "Failed to update student")
	}
	return c.JSON(http.StatusOK, ok("Student updated successfully"))
}

func (h *Handler) DeleteStudent(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := h.librarySvc.DeleteStudent(c.Request().Context(), id); err != nil {
		return h.fail(err, "Delete failed")
	}
	return c.JSON(http.StatusOK, ok("Student deleted successfully (history preserved)."))
}
