package reservation

import (
	"log/slog"
	"net/http"

	"unilib/app/echoServer/jwtx"
	rs "unilib/service/reservation"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type ReserveReq struct {
	BookID int64 `json:"book_id" validate:"required,gt=0"`
}

type Controller struct {
	Svc rs.Service
	V   *validator.Validate
	Log *slog.Logger
}

// POST /v1/reservations
func (h *Controller) Reserve(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	var req ReserveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := h.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}

	res, err := h.Svc.Reserve(c.Request().Context(), who, req.BookID)
	if err != nil {
		switch rs.Code(err) {
		case rs.ErrNotStudent:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "staff cannot reserve books"})
		case rs.ErrBookNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "book not found"})
		case rs.ErrDuplicate:
			return c.JSON(http.StatusConflict, echo.Map{"message": "you already have a reservation for this book"})
		default:
			h.Log.Error("reserve", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"data": res})
}

// GET /v1/reservations/my
func (h *Controller) Mine(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	rows, err := h.Svc.Mine(c.Request().Context(), who)
	if err != nil {
		h.Log.Error("reservations", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"data": rows})
}
