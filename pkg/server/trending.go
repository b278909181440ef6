package server

import (
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"plottheplot/pkg/store"
	"plottheplot/pkg/utils"
)

// GET /api/trending?limit=
func (s *Server) handleGetTrending(c echo.Context) error {
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, utils.ErrJSON("limit must be a positive integer"))
		}
		limit = parsed
	}

	trending, err := s.Store.Trending(limit)
	if err != nil {
		log.Error("failed to query trending books", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to query trending books"))
	}
	if trending == nil {
		trending = []store.TrendingBook{}
	}
	return c.JSON(http.StatusOK, trending)
}

// GET /api/search/history
func (s *Server) handleGetSearchHistory(c echo.Context) error {
	history, err := s.Store.SearchHistory(userID(c))
	if err != nil {
		log.Error("failed to query search history", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to query search history"))
	}
	if history == nil {
		history = []store.SearchEntry{}
	}
	return c.JSON(http.StatusOK, history)
}
