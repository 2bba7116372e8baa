package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// Context keys set by JWT.
const (
	UsernameKey = "username"
	AdminKey    = "admin"
)

// Claims are the API token claims.
type Claims struct {
	Username string `json:"username"`
	Admin    bool   `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// JWT validates the bearer token in the Authorization header and stores the
// username and admin flag on the context. A bare token without the "Bearer"
// scheme is accepted as well.
func JWT(key []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := strings.TrimSpace(c.Request().Header.Get("Authorization"))
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			raw := header
			if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
				raw = strings.TrimSpace(rest)
			}

			claims := &Claims{}
			tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return key, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			switch {
			case errors.Is(err, jwt.ErrTokenSignatureInvalid):
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token signature")
			case errors.Is(err, jwt.ErrTokenExpired):
				return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
			case err != nil:
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			case !tkn.Valid || claims.Username == "":
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(UsernameKey, claims.Username)
			c.Set(AdminKey, claims.Admin)
			return next(c)
		}
	}
}

// RequireAdmin rejects requests whose token lacks the admin claim. It must
// run after JWT.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if admin, _ := c.Get(AdminKey).(bool); !admin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		return next(c)
	}
}
