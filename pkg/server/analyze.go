package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/labstack/echo/v4"

	"plottheplot/pkg/gutenberg"
	"plottheplot/pkg/plot"
	"plottheplot/pkg/schema"
	"plottheplot/pkg/utils"
)

type analyzeReq struct {
	BookID   string `json:"book_id"`
	Validate bool   `json:"validate"`
}

type analyzeResp struct {
	Title string `json:"title"`
	*schema.Analysis
	Validation *schema.Validation `json:"validation,omitempty"`
}

// POST /api/analyze
func (s *Server) handlePostAnalyze(c echo.Context) error {
	var req analyzeReq
	if err := c.Bind(&req); err != nil {
		log.Error("invalid JSON in /api/analyze", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid json")
	}
	req.BookID = strings.TrimSpace(req.BookID)
	if req.BookID == "" {
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("missing book_id"))
	}

	result, err := s.Pipeline.Run(c.Request().Context(), plot.Request{
		BookID:   req.BookID,
		Validate: req.Validate,
		UserID:   userID(c),
	})
	if err != nil {
		return s.analyzeError(c, req.BookID, err)
	}

	return c.JSON(http.StatusOK, analyzeResp{
		Title:      result.Title,
		Analysis:   result.Analysis,
		Validation: result.Validation,
	})
}

// analyzeError maps pipeline failures to responses. Fetch problems are the
// caller's to fix; exhausted retry budgets surface as a generic server error
// with the cause kept in the logs.
func (s *Server) analyzeError(c echo.Context, bookID string, err error) error {
	switch {
	case errors.Is(err, gutenberg.ErrSourceUnavailable):
		log.Warn("text fetch failed", "book_id", bookID, "error", err)
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("could not fetch text for this book"))
	case errors.Is(err, gutenberg.ErrMetadataUnavailable):
		log.Warn("metadata fetch failed", "book_id", bookID, "error", err)
		return c.JSON(http.StatusBadRequest, utils.ErrJSON("could not read metadata for this book"))
	case errors.Is(err, plot.ErrExtractionFailed), errors.Is(err, plot.ErrValidationFailed):
		log.Error("analysis failed", "book_id", bookID, "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("analysis failed, please try again later"))
	default:
		log.Error("unexpected analysis error", "book_id", bookID, "error", err)
		return c.JSON(http.StatusInternalServerError, utils.ErrJSON("internal error"))
	}
}
