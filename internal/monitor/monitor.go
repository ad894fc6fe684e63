// Package monitor is the real-time monitoring service: task listings over
// HTTP, live task and progress updates over websockets.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/logging"
)

// Store is the dashboard data the service reads.
type Store interface {
	Tasks(ctx context.Context) ([]dashboard.Task, error)
	Task(ctx context.Context, jiraID string) (*dashboard.Task, error)
	PromptFlags(ctx context.Context, jiraID string) (*dashboard.PromptFlags, error)
	LastUpdated(ctx context.Context) (map[string]string, error)
}

// Database is probed by the health check.
type Database interface {
	Ping(ctx context.Context) error
}

// Options tune polling and keepalives.
type Options struct {
	PollInterval time.Duration
	KeepAlive    time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.KeepAlive <= 0 {
		o.KeepAlive = 30 * time.Second
	}
	return o
}

// Service serves the monitoring API.
type Service struct {
	store    Store
	db       Database
	hub      *Hub
	opts     Options
	log      *slog.Logger
	now      func() time.Time
	router   *gin.Engine
	upgrader websocket.Upgrader
}

// New wires the routes. Call Run to serve and poll.
func New(store Store, db Database, opts Options, log *slog.Logger) *Service {
	log = logging.OrDefault(log).With("component", "monitor")
	router := gin.New()
	router.Use(gin.Recovery(), cors())

	s := &Service{
		store:  store,
		db:     db,
		hub:    NewHub(log),
		opts:   opts.withDefaults(),
		log:    log,
		now:    time.Now,
		router: router,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "DevMind Monitoring Service", "status": "active"})
	})
	api := router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.GET("/tasks", s.handleTasks)
		api.GET("/tasks/:jira", s.handleTask)
		api.POST("/tasks/:jira/notify", s.handleNotify)
		api.POST("/progress", s.handleProgress)
	}
	router.GET("/ws/monitor", s.handleMonitorWS)
	router.GET("/ws/monitor/:jira", s.handleProgressWS)

	return s
}

// Handler exposes the engine for tests and embedding.
func (s *Service) Handler() http.Handler { return s.router }

// Hub returns the subscriber hub.
func (s *Service) Hub() *Hub { return s.hub }

// Run serves on addr and polls the database until ctx is cancelled.
func (s *Service) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}

	pollCtx, stopPoll := context.WithCancel(ctx)
	defer stopPoll()
	go s.Poll(pollCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("monitor listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.hub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "*")
		h.Set("Access-Control-Allow-Headers", "*")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

const timestampLayout = "2006-01-02T15:04:05.000000"

func (s *Service) timestamp() string {
	return s.now().Format(timestampLayout)
}

// ─── HTTP ───────────────────────────────────────────────────────────────────

func (s *Service) handleHealth(c *gin.Context) {
	dbStatus := "connected"
	if err := s.db.Ping(c.Request.Context()); err != nil {
		s.log.Warn("database ping failed", "err", err)
		dbStatus = "disconnected"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":             "healthy",
		"database":           dbStatus,
		"timestamp":          s.timestamp(),
		"active_connections": s.hub.Connections(),
	})
}

func (s *Service) handleTasks(c *gin.Context) {
	tasks, err := s.store.Tasks(c.Request.Context())
	if err != nil {
		s.log.Error("listing tasks", "err", err)
		tasks = []dashboard.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

func (s *Service) handleTask(c *gin.Context) {
	jira := c.Param("jira")
	ctx := c.Request.Context()
	task, err := s.store.Task(ctx, jira)
	if errors.Is(err, dashboard.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	prompts, err := s.store.PromptFlags(ctx, jira)
	if err != nil {
		s.log.Warn("loading prompt flags", "jira", jira, "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"task": task, "prompts": prompts, "timestamp": s.timestamp()})
}

// TaskUpdate is pushed by tools as a Jira moves through the pipeline.
type TaskUpdate struct {
	JiraNumber string `json:"jira_number"`
	Status     string `json:"status" binding:"required"`
	Stage      string `json:"stage" binding:"required"`
	Message    string `json:"message"`
	Timestamp  string `json:"timestamp"`
	Progress   int    `json:"progress" binding:"gte=0,lte=100"`
}

func (s *Service) handleNotify(c *gin.Context) {
	var u TaskUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if u.JiraNumber == "" {
		u.JiraNumber = c.Param("jira")
	}
	if u.Timestamp == "" {
		u.Timestamp = s.timestamp()
	}
	s.log.Info("task update", "jira", u.JiraNumber, "stage", u.Stage, "message", u.Message)
	s.hub.Broadcast(gin.H{"type": "task_update", "data": u})
	c.JSON(http.StatusOK, gin.H{"status": "broadcasted", "connections": s.hub.Connections()})
}

func (s *Service) handleProgress(c *gin.Context) {
	var u ProgressUpdate
	if err := c.ShouldBindJSON(&u); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if u.Timestamp == "" {
		u.Timestamp = s.timestamp()
	}
	s.log.Info("progress update", "jira", u.JiraNumber, "progress", u.Progress, "message", u.Message)
	s.hub.BroadcastProgress(u)
	c.JSON(http.StatusOK, gin.H{"status": "broadcasted"})
}
