package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type fixResponse struct {
	Response
	Updated int64 `json:"updated"`
}

func (h *Handler) Stats(c echo.Context) error {
	stats, err := h.librarySvc.Stats(c.Request().Context())
	if err != nil {
		return h.fail(err, "Failed to fetch stats")
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *Handler) FixAvailability(c echo.Context) error {
	n, err := h.librarySvc.FixAvailability(c.Request().Context())
	if err != nil {
		return h.fail(err, "Failed to recalculate availability")
	}
	return c.JSON(http.StatusOK, fixResponse{Response: ok("Book availability recalculated for all books"), Updated: n})
}
