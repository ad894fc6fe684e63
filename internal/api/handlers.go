package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/HendryAvila/devmind/internal/bridge"
	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/models"
)

const (
	defaultTimeoutSeconds = 60
	defaultTemperature    = 0.7
	defaultMaxTokens      = 2000
	bridgeDownMessage     = "VS Code Copilot bridge is not available. Prompt saved to database. Please ensure VS Code extension is running on port 8765."
)

// ─── Root / health ──────────────────────────────────────────────────────────

func (s *Server) handleRoot(c *gin.Context) {
	endpoints := gin.H{
		"getCopilotResponseWithVSCodeBridge": "/api/v1/copilot/chat",
		"injectAndSavePrompt":                "/api/v1/injectAndSavePrompt",
		"jiraCards":                          "/api/v1/jiraCards",
		"health":                             "/health",
	}
	if s.models != nil {
		endpoints["chat"] = "/api/v1/ai/chat"
		endpoints["models"] = "/api/v1/models"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":   "DevMindAPI - VS Code Copilot Bridge",
		"version":   Version,
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	dbOK := true
	if err := s.db.Ping(c.Request.Context()); err != nil {
		s.log.Warn("database connectivity test failed", "err", err)
		dbOK = false
	}
	status := "healthy"
	if !dbOK {
		status = "degraded"
	}
	body := gin.H{
		"status":             status,
		"bridge_connected":   s.bridge.Connected(),
		"database_connected": dbOK,
		"database_path":      s.db.Path(),
		"timestamp":          s.timestamp(),
	}
	if s.models != nil {
		body["available_models"] = s.models.Availability()
	}
	c.JSON(http.StatusOK, body)
}

// ─── Copilot chat ───────────────────────────────────────────────────────────

type promptRequest struct {
	Prompt  string `json:"prompt"`
	Timeout *int   `json:"timeout"`
}

// bindPrompt decodes the body and rejects an empty or whitespace prompt.
func bindPrompt(c *gin.Context, dst any, prompt *string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid request body: " + err.Error()})
		return false
	}
	*prompt = strings.TrimSpace(*prompt)
	if *prompt == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "Prompt cannot be empty or whitespace only"})
		return false
	}
	return true
}

func timeoutOf(seconds *int) (time.Duration, int) {
	n := defaultTimeoutSeconds
	if seconds != nil && *seconds > 0 {
		n = *seconds
	}
	return time.Duration(n) * time.Second, n
}

func (s *Server) handleCopilotChat(c *gin.Context) {
	var req promptRequest
	if !bindPrompt(c, &req, &req.Prompt) {
		return
	}
	timeout, secs := timeoutOf(req.Timeout)
	s.log.Info("copilot chat", "prompt", preview(req.Prompt))

	msg, err := s.bridge.SendPrompt(c.Request.Context(), req.Prompt, timeout, bridge.Options{})
	if err != nil {
		s.log.Error("copilot chat failed", "err", err)
		if errors.Is(err, bridge.ErrTimeout) {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"detail": fmt.Sprintf("Timeout waiting for Copilot response after %d seconds", secs),
			})
			return
		}
		abortWithError(c, err)
		return
	}

	switch msg.Type {
	case bridge.TypeResponse:
		c.JSON(http.StatusOK, gin.H{
			"success":   true,
			"response":  msg.Response,
			"prompt":    req.Prompt,
			"timestamp": s.timestamp(),
			"error":     nil,
		})
	case bridge.TypeError:
		errText := msg.Error
		if errText == "" {
			errText = "Unknown error from VS Code bridge"
		}
		c.JSON(http.StatusOK, gin.H{
			"success":   false,
			"response":  "",
			"prompt":    req.Prompt,
			"timestamp": s.timestamp(),
			"error":     errText,
		})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": "Unexpected response format from VS Code bridge"})
	}
}

// ─── Inject and save ────────────────────────────────────────────────────────

type injectRequest struct {
	JiraID string `json:"jira_id"`
}

type injectResponse struct {
	IsValidJiraID        bool    `json:"isValidJiraId"`
	IsPromptInjectVScode bool    `json:"isPromptInjectVScode"`
	GeneratedPrompt      *string `json:"genratedPrompt"`
	Error                *string `json:"error"`
}

func (s *Server) handleInjectAndSave(c *gin.Context) {
	var req injectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"detail": "invalid request body: " + err.Error()})
		return
	}
	jiraID := strings.TrimSpace(req.JiraID)
	fail := func(msg string) {
		c.JSON(http.StatusOK, injectResponse{Error: &msg})
	}
	if jiraID == "" {
		fail("JIRA ID cannot be empty")
		return
	}

	ctx := c.Request.Context()
	exists, err := s.store.JiraExists(ctx, jiraID)
	if err != nil {
		s.log.Error("checking jira id", "jira", jiraID, "err", err)
		fail(detailFor(err))
		return
	}
	if !exists {
		fail(fmt.Sprintf("JIRA ID '%s' not found in database", jiraID))
		return
	}
	tmpl, err := s.store.PromptTemplate(ctx, dashboard.TemplateAnalysis)
	if err != nil {
		s.log.Error("loading prompt template", "err", err)
		fail(detailFor(err))
		return
	}
	prompt := dashboard.RenderTemplate(tmpl, jiraID)

	injected := true
	if _, err := s.bridge.Send(ctx, prompt, bridge.Options{}); err != nil {
		s.log.Warn("prompt not injected, saving to database only", "jira", jiraID, "err", err)
		injected = false
	}
	if !s.store.SaveTmpPrompt(ctx, jiraID, prompt) {
		s.log.Warn("failed to save prompt to database", "jira", jiraID)
	}

	resp := injectResponse{IsValidJiraID: true, IsPromptInjectVScode: injected, GeneratedPrompt: &prompt}
	if !injected {
		msg := bridgeDownMessage
		resp.Error = &msg
	}
	c.JSON(http.StatusOK, resp)
}

// ─── Jira cards ─────────────────────────────────────────────────────────────

func (s *Server) handleJiraCards(c *gin.Context) {
	cards, err := s.store.ListCards(c.Request.Context())
	if err != nil {
		msg := "Failed to retrieve JIRA cards: " + detailFor(err)
		s.log.Error("listing jira cards", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"detail": gin.H{
			"error":     "Database Error",
			"message":   msg,
			"timestamp": s.timestamp(),
		}})
		return
	}
	if cards == nil {
		cards = []dashboard.Card{}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"message":     fmt.Sprintf("Successfully retrieved %d JIRA cards", len(cards)),
		"data":        cards,
		"total_count": len(cards),
		"timestamp":   s.timestamp(),
	})
}

// ─── Multi-model ────────────────────────────────────────────────────────────

func (s *Server) handleModels(c *gin.Context) {
	list := s.models.Models()
	available := 0
	for _, m := range list {
		if m.Available {
			available++
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"total_models":    len(list),
		"available_count": available,
		"models":          list,
	})
}

type aiChatRequest struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	Timeout     *int     `json:"timeout"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	MaxTokens   *int     `json:"max_tokens" binding:"omitempty,gte=1,lte=4000"`
}

func (s *Server) handleAIChat(c *gin.Context) {
	var req aiChatRequest
	if !bindPrompt(c, &req, &req.Prompt) {
		return
	}
	if req.Model == "" {
		req.Model = models.BridgeKey
	}
	temperature := defaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	timeout, secs := timeoutOf(req.Timeout)

	resp, err := s.models.Chat(c.Request.Context(), req.Model, models.Request{
		Prompt:      req.Prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	})
	if err != nil {
		if errors.Is(err, bridge.ErrTimeout) {
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, gin.H{
				"detail": fmt.Sprintf("Timeout waiting for Copilot response after %d seconds", secs),
			})
			return
		}
		if errors.Is(err, models.ErrProviderFailed) && req.Model != models.BridgeKey {
			c.JSON(http.StatusOK, gin.H{
				"success":   false,
				"response":  "",
				"prompt":    req.Prompt,
				"model":     req.Model,
				"provider":  "error",
				"timestamp": s.timestamp(),
				"error":     err.Error(),
			})
			return
		}
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"response":  resp.Text,
		"prompt":    req.Prompt,
		"model":     req.Model,
		"provider":  resp.Provider,
		"timestamp": s.timestamp(),
		"error":     nil,
		"metadata": gin.H{
			"temperature": temperature,
			"max_tokens":  maxTokens,
		},
	})
}

func preview(s string) string {
	if len(s) <= 50 {
		return s
	}
	return s[:50] + "..."
}
