// app/echoServer/jwtx/identity.go
package jwtx

import (
	"errors"

	"unilib/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// IdentityFromContext rebuilds the authenticated identity from the verified
// JWT. Every operation takes this value explicitly; nothing downstream reads
// session state ambiently.
func IdentityFromContext(c echo.Context) (model.Identity, error) {
	tok, ok := c.Get("user").(*jwt.Token)
	if !ok || tok == nil {
		return model.Identity{}, errors.New("no jwt token in context")
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return model.Identity{}, errors.New("invalid jwt claims")
	}

	var id model.Identity
	if f, ok := claims["sub"].(float64); ok {
		id.UserID = int64(f)
	} else {
		return model.Identity{}, errors.New("sub missing in claims")
	}
	if s, ok := claims["email"].(string); ok && s != "" {
		id.Email = s
	} else {
		return model.Identity{}, errors.New("email missing in claims")
	}
	if s, ok := claims["role"].(string); ok && s != "" {
		id.Role = model.Role(s)
	} else {
		return model.Identity{}, errors.New("role missing in claims")
	}
	return id, nil
}
