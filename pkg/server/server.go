package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"plottheplot/pkg/auth"
	"plottheplot/pkg/plot"
	"plottheplot/pkg/store"
)

type Server struct {
	Echo     *echo.Echo
	Pipeline *plot.Pipeline
	Store    *store.Store
	Tokens   *auth.Manager
}

func NewServer(pipeline *plot.Pipeline, db *store.Store, tokens *auth.Manager) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.CORS())

	s := &Server{
		Echo:     e,
		Pipeline: pipeline,
		Store:    db,
		Tokens:   tokens,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.Echo.GET("/", s.handleGetRoot)

	api := s.Echo.Group("/api")
	api.POST("/analyze", s.handlePostAnalyze, s.requireAuth)
	api.GET("/trending", s.handleGetTrending)

	authGroup := api.Group("/auth")
	authGroup.POST("/register", s.handlePostRegister)
	authGroup.POST("/login", s.handlePostLogin)
	authGroup.GET("/check", s.handleGetCheck)
	authGroup.POST("/logout", s.handlePostLogout, s.requireAuth)

	api.GET("/bookmarks", s.handleGetBookmarks, s.requireAuth)
	api.POST("/bookmarks", s.handlePostBookmark, s.requireAuth)
	api.GET("/bookmarks/list", s.handleListBookmarks, s.requireAuth)
	api.GET("/bookmarks/:id", s.handleGetBookmark, s.requireAuth)
	api.GET("/search/history", s.handleGetSearchHistory, s.requireAuth)
}

func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
