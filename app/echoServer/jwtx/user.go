package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// UserIDFromContext reads the authenticated user id, either the value
// the claims middleware stashed or the raw token's sub claim.
func UserIDFromContext(c echo.Context) (int64, error) {
	if id, ok := c.Get("user_id").(int64); ok && id > 0 {
		return id, nil
	}
	mc, err := claims(c)
	if err != nil {
		return 0, err
	}
	if f, ok := mc["sub"].(float64); ok {
		return int64(f), nil
	}
	return 0, errors.New("sub missing in claims")
}

// RoleFromContext reads the authenticated user's role claim.
func RoleFromContext(c echo.Context) (string, error) {
	if role, ok := c.Get("role").(string); ok && role != "" {
		return role, nil
	}
	mc, err := claims(c)
	if err != nil {
		return "", err
	}
	if s, ok := mc["role"].(string); ok && s != "" {
		return s, nil
	}
	return "", errors.New("role missing in claims")
}

func claims(c echo.Context) (jwt.MapClaims, error) {
	switch v := c.Get("user").(type) {
	case *jwt.Token:
		if mc, ok := v.Claims.(jwt.MapClaims); ok {
			return mc, nil
		}
	case jwt.MapClaims:
		return v, nil
	}
	return nil, errors.New("no jwt claims in context")
}
