// Package api serves the DevMind HTTP surface: bridge chat, Jira prompt
// injection, dashboard cards and the multi-model router.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/devmind/internal/bridge"
	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/logging"
	"github.com/HendryAvila/devmind/internal/models"
)

// Version is reported by the root endpoint.
var Version = "dev"

// Bridge is the part of *bridge.Manager the handlers use.
type Bridge interface {
	SendPrompt(ctx context.Context, prompt string, timeout time.Duration, opts bridge.Options) (*bridge.Message, error)
	Send(ctx context.Context, prompt string, opts bridge.Options) (string, error)
	Connected() bool
}

// Store is the dashboard data the handlers read and write.
type Store interface {
	JiraExists(ctx context.Context, jiraID string) (bool, error)
	PromptTemplate(ctx context.Context, key string) (string, error)
	SaveTmpPrompt(ctx context.Context, jiraID, prompt string) bool
	ListCards(ctx context.Context) ([]dashboard.Card, error)
}

// Database is probed by the health check.
type Database interface {
	Ping(ctx context.Context) error
	Path() string
}

// ModelRouter dispatches /api/v1/ai/chat.
type ModelRouter interface {
	Chat(ctx context.Context, key string, req models.Request) (*models.Response, error)
	Models() []models.ModelInfo
	Availability() map[string]bool
}

// Deps are the collaborators of a Server. Models may be nil, which
// disables the multi-model endpoints.
type Deps struct {
	Bridge Bridge
	Store  Store
	DB     Database
	Models ModelRouter
	Logger *slog.Logger
}

// Server is the DevMind API server.
type Server struct {
	bridge Bridge
	store  Store
	db     Database
	models ModelRouter
	log    *slog.Logger
	now    func() time.Time
	router *gin.Engine
}

// NewServer wires the routes.
func NewServer(d Deps) *Server {
	router := gin.New()
	router.Use(gin.Recovery(), cors())

	s := &Server{
		bridge: d.Bridge,
		store:  d.Store,
		db:     d.DB,
		models: d.Models,
		log:    logging.OrDefault(d.Logger).With("component", "api"),
		now:    time.Now,
		router: router,
	}
	router.Use(s.requestLog())

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/copilot/chat", s.handleCopilotChat)
		v1.POST("/injectAndSavePrompt", s.handleInjectAndSave)
		v1.GET("/jiraCards", s.handleJiraCards)
		if s.models != nil {
			v1.GET("/models", s.handleModels)
			v1.POST("/ai/chat", s.handleAIChat)
		}
	}

	return s
}

// Handler exposes the engine for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// cors allows any origin, as the dashboard runs on its own port.
func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed", time.Since(start))
	}
}

func (s *Server) timestamp() string {
	return s.now().Format("2006-01-02T15:04:05.000000")
}
