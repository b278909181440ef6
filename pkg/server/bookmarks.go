package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"plottheplot/pkg/store"
	"plottheplot/pkg/utils"
)

type bookmarkReq struct {
	BookID       string          `json:"book_id"`
	Title        string          `json:"title"`
	ResponseData json.RawMessage `json:"response_data"`
	Note         string          `json:"note"`
}

type bookmarkSummary struct {
	ID        string    `json:"id"`
	BookID    string    `json:"book_id"`
	Title     string    `json:"title"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GET /api/bookmarks
func (s *Server) handleGetBookmarks(c echo.Context) error {
	bookmarks, err := s.Store.UserBookmarks(userID(c))
	if err != nil {
		log.Error("failed to list bookmarks", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to list bookmarks"))
	}
	if bookmarks == nil {
		bookmarks = []store.Bookmark{}
	}
	return c.JSON(http.StatusOK, bookmarks)
}

// POST /api/bookmarks
func (s *Server) handlePostBookmark(c echo.Context) error {
	var req bookmarkReq
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	if req.BookID == "" || req.Title == "" || len(req.ResponseData) == 0 {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("missing required fields"))
	}

	bookmark, err := s.Store.AddBookmark(userID(c), req.BookID, req.Title, req.ResponseData, req.Note)
	if err != nil {
		log.Error("failed to add bookmark", "book_id", req.BookID, "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to add bookmark"))
	}

	return c.JSON(http.StatusCreated, map[string]any{
		"message":     "bookmark added successfully",
		"bookmark_id": bookmark.ID,
	})
}

// GET /api/bookmarks/list
func (s *Server) handleListBookmarks(c echo.Context) error {
	bookmarks, err := s.Store.UserBookmarks(userID(c))
	if err != nil {
		log.Error("failed to list bookmarks", "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to list bookmarks"))
	}

	summaries := make([]bookmarkSummary, 0, len(bookmarks))
	for _, b := range bookmarks {
		summaries = append(summaries, bookmarkSummary{
			ID:        b.ID,
			BookID:    b.BookID,
			Title:     b.Title,
			Note:      b.Note,
			CreatedAt: b.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, summaries)
}

// GET /api/bookmarks/:id
func (s *Server) handleGetBookmark(c echo.Context) error {
	bookmark, err := s.Store.Bookmark(c.Param("id"), userID(c))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, utils.ErrJSON("bookmark not found"))
	}
	if err != nil {
		log.Error("failed to fetch bookmark", "id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("failed to fetch bookmark"))
	}
	return c.JSON(http.StatusOK, bookmark)
}
