package recommend

import (
	"log/slog"
	"net/http"

	"unilib/app/echoServer/jwtx"
	rs "unilib/service/recommend"

	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc rs.Service
	Log *slog.Logger
}

// GET /v1/recommendations
func (h *Controller) ForMe(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	books, err := h.Svc.ForStudent(c.Request().Context(), who)
	if err != nil {
		switch rs.Code(err) {
		case rs.ErrNotStudent:
			return c.JSON(http.StatusForbidden, echo.Map{"message": "forbidden"})
		case rs.ErrStudentNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "student record not found"})
		default:
			h.Log.Error("recommendations", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"data": books})
}
