package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var key = []byte("k")

func token(t *testing.T, claims *Claims, method jwt.SigningMethod, signKey any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(signKey)
	require.NoError(t, err)
	return s
}

func serve(t *testing.T, header string, h echo.HandlerFunc, mws ...echo.MiddlewareFunc) int {
	t.Helper()
	e := echo.New()
	e.GET("/", h, mws...)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func ok(c echo.Context) error { return c.NoContent(http.StatusNoContent) }

func TestJWTSetsContext(t *testing.T) {
	tok := token(t, &Claims{Username: "alice", Admin: true}, jwt.SigningMethodHS256, key)

	var user string
	var admin bool
	h := func(c echo.Context) error {
		user, _ = c.Get(UsernameKey).(string)
		admin, _ = c.Get(AdminKey).(bool)
		return ok(c)
	}

	for _, header := range []string{"Bearer " + tok, "bearer " + tok, tok} {
		assert.Equal(t, http.StatusNoContent, serve(t, header, h, JWT(key)), header)
		assert.Equal(t, "alice", user)
		assert.True(t, admin)
	}
}

func TestJWTRejects(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"garbage", "Bearer not-a-token"},
		{"wrong key", "Bearer " + token(t, &Claims{Username: "alice"}, jwt.SigningMethodHS256, []byte("other"))},
		{"expired", "Bearer " + token(t, &Claims{Username: "alice", RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}, jwt.SigningMethodHS256, key)},
		{"wrong method", "Bearer " + token(t, &Claims{Username: "alice"}, jwt.SigningMethodHS512, key)},
		{"no username", "Bearer " + token(t, &Claims{}, jwt.SigningMethodHS256, key)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serve(t, tt.header, ok, JWT(key)))
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	user := token(t, &Claims{Username: "alice"}, jwt.SigningMethodHS256, key)
	admin := token(t, &Claims{Username: "root", Admin: true}, jwt.SigningMethodHS256, key)

	assert.Equal(t, http.StatusForbidden, serve(t, "Bearer "+user, ok, JWT(key), RequireAdmin))
	assert.Equal(t, http.StatusNoContent, serve(t, "Bearer "+admin, ok, JWT(key), RequireAdmin))
}
