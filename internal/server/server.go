// Package server exposes the assistant and the recipe collection over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sous-chef/server/internal/agent/classifier"
	"github.com/sous-chef/server/internal/agent/graph"
	"github.com/sous-chef/server/internal/agent/model"
	"github.com/sous-chef/server/internal/agent/router"
	"github.com/sous-chef/server/internal/core"
	"github.com/sous-chef/server/internal/store"
	logx "github.com/sous-chef/server/pkg/logger"
)

const shutdownTimeout = 5 * time.Second

// Deps are the services behind the routes. Classifier may be nil.
type Deps struct {
	Environment   core.Environment
	Runner        graph.Runner
	Recipes       store.Repository
	Searcher      *store.Searcher
	Router        *router.Router
	Classifier    *classifier.Classifier
	Conversations model.ConversationRepository
}

// Server represents the HTTP server
type Server struct {
	router *gin.Engine
	deps   Deps
}

// New builds the gin engine and registers every route.
func New(deps Deps) *Server {
	if deps.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{router: engine, deps: deps}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.health)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/conversations", s.postMessage)
		v1.POST("/conversations/:id/messages", s.postMessage)
		v1.GET("/conversations/:id/messages", s.listMessages)
		v1.DELETE("/conversations/:id", s.clearConversation)

		v1.POST("/classify", s.classify)

		recipes := v1.Group("/recipes")
		recipes.GET("", s.listRecipes)
		recipes.GET("/search", s.searchRecipes)
		recipes.GET("/:id", s.getRecipe)
	}
}

// Handler returns the engine, e.g. for httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logx.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logx.Info().Msg("HTTP server shutting down")
	return srv.Shutdown(shutdownCtx)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		ev := logx.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logx.Error()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
