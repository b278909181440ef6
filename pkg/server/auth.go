package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"plottheplot/pkg/store"
	"plottheplot/pkg/utils"
)

type credentialsReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResp struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// POST /api/auth/register
func (s *Server) handlePostRegister(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("username and password are required"))
	}

	user, err := s.Store.CreateUser(req.Username, req.Password)
	if errors.Is(err, store.ErrUsernameTaken) {
		return c.JSON(http.StatusConflict, utils.ErrJSON("username already exists"))
	}
	if err != nil {
		log.Error("failed to create user", "username", req.Username, "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to create user"))
	}

	token, err := s.Tokens.GenerateToken(user.ID)
	if err != nil {
		log.Error("failed to sign token", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to create session"))
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message": "user created successfully",
		"token":   token,
		"user":    userResp{ID: user.ID, Username: user.Username},
	})
}

// POST /api/auth/login
func (s *Server) handlePostLogin(c echo.Context) error {
	var req credentialsReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if req.Username == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("username and password are required"))
	}

	user, err := s.Store.AuthenticateUser(req.Username, req.Password)
	if errors.Is(err, store.ErrInvalidCredentials) {
		return c.JSON(http.StatusUnauthorized, utils.ErrJSON("invalid username or password"))
	}
	if err != nil {
		log.Error("failed to authenticate user", "username", req.Username, "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to log in"))
	}

	token, err := s.Tokens.GenerateToken(user.ID)
	if err != nil {
		log.Error("failed to sign token", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to create session"))
	}

	return c.JSON(http.StatusOK, map[string]any{
		"message": "login successful",
		"token":   token,
		"user":    userResp{ID: user.ID, Username: user.Username},
	})
}

// GET /api/auth/check
func (s *Server) handleGetCheck(c echo.Context) error {
	token := c.Request().Header.Get(echo.HeaderAuthorization)
	if token == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	token = strings.TrimPrefix(token, "Bearer ")

	claims, err := s.Tokens.ValidateToken(token)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
	}

	user, err := s.Store.GetUser(claims.UserID)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "user not found")
	}

	return c.JSON(http.StatusOK, userResp{ID: user.ID, Username: user.Username})
}

// POST /api/auth/logout
//
// Tokens are stateless; nothing to revoke server-side.
func (s *Server) handlePostLogout(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"message": "logged out successfully"})
}
