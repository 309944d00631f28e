package borrow

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"unilib/app/echoServer/jwtx"
	"unilib/model"
	bs "unilib/service/borrow"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc bs.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/borrows
func (h *Controller) Borrow(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	var req BorrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}

	rec, err := h.Svc.Borrow(c.Request().Context(), who, req.BookID)
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrNotStudent:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "staff cannot borrow books"})
		case bs.ErrStudentNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student record not found"})
		case bs.ErrAlreadyBorrowed:
			return c.JSON(http.StatusConflict, echo.Map{"message": "you already have an active borrow for this book"})
		case bs.ErrBorrowLimit:
			return c.JSON(http.StatusConflict, echo.Map{"message": "borrow limit reached"})
		case bs.ErrBookUnavailable:
			return c.JSON(http.StatusConflict, echo.Map{"message": "no copies available"})
		default:
			h.Log.Error("borrow", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": rec})
}

// POST /v1/borrows/:id/return-request
func (h *Controller) RequestReturn(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	if err := h.Svc.RequestReturn(c.Request().Context(), who, id); err != nil {
		switch bs.Code(err) {
		case bs.ErrNotStudent, bs.ErrNotOwner:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case bs.ErrStudentNotFound, bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "record not found"})
		case bs.ErrNotBorrowed:
			return c.JSON(http.StatusConflict, echo.Map{"message": "loan is not in a returnable state"})
		default:
			h.Log.Error("return request", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "return requested"})
}

// POST /v1/borrows/:id/approve-return (staff)
func (h *Controller) ApproveReturn(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	if err := h.Svc.ApproveReturn(c.Request().Context(), id); err != nil {
		switch bs.Code(err) {
		case bs.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "record not found"})
		case bs.ErrNotRequested:
			return c.JSON(http.StatusConflict, echo.Map{"message": "return was not requested"})
		default:
			h.Log.Error("approve return", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "return approved"})
}

// POST /v1/borrows/request
func (h *Controller) RequestBorrow(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	var req BorrowReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}

	rec, err := h.Svc.RequestBorrow(c.Request().Context(), who, req.BookID)
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrNotStudent:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "staff cannot borrow books"})
		case bs.ErrStudentNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student record not found"})
		default:
			h.Log.Error("borrow request", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": rec})
}

// POST /v1/borrows/:id/approve (staff)
func (h *Controller) Approve(c echo.Context) error {
	return h.setOutcome(c, h.Svc.ApproveRequest, "request approved")
}

// POST /v1/borrows/:id/reject (staff)
func (h *Controller) Reject(c echo.Context) error {
	return h.setOutcome(c, h.Svc.RejectRequest, "request rejected")
}

func (h *Controller) setOutcome(c echo.Context, fn func(ctx context.Context, recordID int64) error, msg string) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid id"})
	}

	if err := fn(c.Request().Context(), id); err != nil {
		switch bs.Code(err) {
		case bs.ErrNotPending:
			return c.JSON(http.StatusConflict, echo.Map{"message": "request is not pending"})
		default:
			h.Log.Error("request outcome", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg})
}

// GET /v1/borrows/my
func (h *Controller) MyLoans(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	rows, err := h.Svc.MyLoans(c.Request().Context(), who)
	if err != nil {
		switch bs.Code(err) {
		case bs.ErrNotStudent:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case bs.ErrStudentNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student record not found"})
		default:
			h.Log.Error("my loans", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

// GET /v1/borrows (staff)
func (h *Controller) Loans(c echo.Context) error {
	var q ListQuery
	if err := c.Bind(&q); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid query"})
	}

	f := bs.ListFilter{
		StudentID: q.StudentID,
		BookID:    q.BookID,
		Status:    model.BorrowStatus(q.Status),
	}
	var err error
	if f.From, err = parseDate(q.From); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid from date"})
	}
	if f.To, err = parseDate(q.To); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid to date"})
	}

	rows, err := h.Svc.Loans(c.Request().Context(), f)
	if err != nil {
		h.Log.Error("loans", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
