package server

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const userIDContextKey = "user_id"

// requireAuth validates the bearer token and checks the user still exists
// before letting the request through.
func (s *Server) requireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		token := c.Request().Header.Get(echo.HeaderAuthorization)
		if token == "" {
			return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
		}
		token = strings.TrimPrefix(token, "Bearer ")

		claims, err := s.Tokens.ValidateToken(token)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
		}
		if _, err := s.Store.GetUser(claims.UserID); err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
		}

		c.Set(userIDContextKey, claims.UserID)
		return next(c)
	}
}

func userID(c echo.Context) int64 {
	id, _ := c.Get(userIDContextKey).(int64)
	return id
}
