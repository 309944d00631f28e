package account

import (
	"log/slog"
	"net/http"

	"unilib/app/echoServer/jwtx"
	"unilib/model"
	authsvc "unilib/service/auth"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

type Controller struct {
	Svc authsvc.Service
	V   *validator.Validate
	Log *slog.Logger
}

// GET /v1/account
func (ct *Controller) Me(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	u, err := ct.Svc.Profile(c.Request().Context(), who)
	if err != nil {
		if authsvc.Code(err) == authsvc.ErrNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"message": "account not found"})
		}
		ct.Log.Error("profile", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"user": u})
}

// PUT /v1/account/password
func (ct *Controller) UpdatePassword(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	var req model.UpdatePasswordReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "invalid JSON"})
	}
	if err := ct.V.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "validation error", "errors": err.Error()})
	}

	if err := ct.Svc.UpdatePassword(c.Request().Context(), who, req); err != nil {
		switch authsvc.Code(err) {
		case authsvc.ErrInvalidCreds:
			return c.JSON(http.StatusUnauthorized, echo.Map{"message": "current password is wrong"})
		case authsvc.ErrNotFound:
			return c.JSON(http.StatusNotFound, echo.Map{"message": "account not found"})
		default:
			ct.Log.Error("update password", "err", err)
			return c.JSON(http.StatusInternalServerError, echo.Map{"message": "internal error"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// POST /v1/account/photo
func (ct *Controller) UploadPhoto(c echo.Context) error {
	who, err := jwtx.IdentityFromContext(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"message": "unauthorized"})
	}

	fh, err := c.FormFile("photo")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "photo file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"message": "cannot read photo"})
	}
	defer f.Close()

	url, err := ct.Svc.UploadPhoto(c.Request().Context(), who, fh.Filename, f, fh.Header.Get("Content-Type"))
	if err != nil {
		ct.Log.Error("photo upload", "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"message": "upload failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"photo_url": url})
}
