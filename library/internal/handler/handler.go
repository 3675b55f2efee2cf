package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-ledger/library/internal/errs"
	md "github.com/Astemirdum/library-ledger/pkg/middleware"
	"github.com/Astemirdum/library-ledger/pkg/serializer"
	"github.com/Astemirdum/library-ledger/pkg/validate"
	_ "github.com/Astemirdum/library-ledger/swagger"
)

type Handler struct {
	librarySvc LibraryService
	log        *zap.Logger
}

func New(librarySvc LibraryService, log *zap.Logger) *Handler {
	return &Handler{
		librarySvc: librarySvc,
		log:        log.Named("handler"),
	}
}

func (h *Handler) NewRouter() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	const (
		baseRPS = 10
		apiRPS  = 100
	)
	e.JSONSerializer = serializer.JSONIter{}
	e.HTTPErrorHandler = h.HTTPErrorHandler
	e.Validator = validate.NewCustomValidator()

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10, // 4 KB
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodOptions, http.MethodHead, http.MethodPut, http.MethodPost, http.MethodDelete},
	}))

	base := e.Group("", md.NewRateLimiter(baseRPS))
	base.GET("/manage/health", h.Health)
	base.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api",
		middleware.RequestID(),
		middleware.RequestLoggerWithConfig(md.RequestLoggerConfig(h.log)),
		md.NewRateLimiter(apiRPS),
	)

	api.GET("/books", h.ListBooks)
	api.POST("/books", h.AddBook)
	api.PUT("/books/:id", h.EditBook)
	api.DELETE("/books/:id", h.DeleteBook)

	api.GET("/students", h.ListStudents)
	api.POST("/students", h.CreateStudent)
	api.PUT("/students/:id", h.EditStudent)
	api.DELETE("/students/:id", h.DeleteStudent)

	api.GET("/issued", h.ListIssued)
	api.POST("/issued", h.IssueBook)
	api.GET("/returns", h.ListReturns)
	api.POST("/returns", h.ReturnBook)
	api.GET("/overdue", h.ListOverdue)

	api.GET("/stats", h.Stats)
	api.GET("/fix-availability", h.FixAvailability)

	return e
}

func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// HTTPErrorHandler writes every error as {"error": "..."}.
func (h *Handler) HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		default:
			msg = fmt.Sprint(m)
		}
	} else {
		h.log.Error("unhandled error", zap.Error(err))
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errs.ErrorResponse{Error: msg})
	}
	if err != nil {
		h.log.Error("write error response", zap.Error(err))
	}
}

// fail turns a service error into an HTTP error. Errors outside the errs
// taxonomy are logged and reported with the generic message.
func (h *Handler) fail(err error, generic string) error {
	var e *errs.Error
	if errors.As(err, &e) {
		if errors.Is(e.Kind, errs.ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, e.Msg)
		}
		return echo.NewHTTPError(http.StatusBadRequest, e.Msg)
	}
	h.log.Error(generic, zap.Error(err))
	return echo.NewHTTPError(http.StatusInternalServerError, generic)
}

func bindAndValidate(c echo.Context, req interface{}, msg string) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	}
	if err := c.Validate(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			for _, fe := range ve {
				if fe.Tag() == "email" {
					return echo.NewHTTPError(http.StatusBadRequest, "Invalid email address")
				}
			}
		}
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	}
	return nil
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func ok(message string) Response {
	return Response{Success: true, Message: message}
}
