// Package resources implements the DevMind MCP resources.
//
// Resources are read-only data the host can pull for context, addressed
// by devmind:// URIs.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/devmind/internal/dashboard"
)

// Database is probed for the health report.
type Database interface {
	Ping(ctx context.Context) error
	Path() string
}

// StandardsReader produces the Oracle standards report.
type StandardsReader interface {
	Analyze(ctx context.Context) (*dashboard.StandardsReport, error)
}

// Handler serves the resource endpoints.
type Handler struct {
	dashboardDB Database
	standardsDB Database
	standards   StandardsReader
	jiraReady   func(ctx context.Context) error
	svnBaseURL  string
	now         func() time.Time
}

// Options are the components the health report inspects. Nil members
// are reported as not configured.
type Options struct {
	DashboardDB Database
	StandardsDB Database
	Standards   StandardsReader
	JiraReady   func(ctx context.Context) error
	SVNBaseURL  string
}

// NewHandler creates a resource Handler.
func NewHandler(o Options) *Handler {
	return &Handler{
		dashboardDB: o.DashboardDB,
		standardsDB: o.StandardsDB,
		standards:   o.Standards,
		jiraReady:   o.JiraReady,
		svnBaseURL:  o.SVNBaseURL,
		now:         time.Now,
	}
}

// HealthResource returns the devmind://health resource definition.
func (h *Handler) HealthResource() mcp.Resource {
	return mcp.NewResource(
		"devmind://health",
		"DevMind Health",
		mcp.WithResourceDescription("Database, Jira and SVN readiness of this MCP server"),
		mcp.WithMIMEType("application/json"),
	)
}

type componentHealth struct {
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

type healthReport struct {
	Status     string                     `json:"status"`
	Components map[string]componentHealth `json:"components"`
	Timestamp  string                     `json:"timestamp"`
}

// HandleHealth probes every configured component. Status is "healthy"
// only when all of them are.
func (h *Handler) HandleHealth(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	report := healthReport{
		Status:     "healthy",
		Components: map[string]componentHealth{},
		Timestamp:  h.now().Format(time.RFC3339),
	}
	set := func(name string, c componentHealth) {
		report.Components[name] = c
		if !c.OK {
			report.Status = "degraded"
		}
	}

	set("dashboard_db", probeDB(ctx, h.dashboardDB))
	set("standards_db", probeDB(ctx, h.standardsDB))
	switch {
	case h.jiraReady == nil:
		set("jira", componentHealth{Detail: "not configured"})
	default:
		if err := h.jiraReady(ctx); err != nil {
			set("jira", componentHealth{Detail: err.Error()})
		} else {
			set("jira", componentHealth{OK: true})
		}
	}
	if h.svnBaseURL == "" {
		set("svn", componentHealth{Detail: "base URL not configured"})
	} else {
		set("svn", componentHealth{OK: true, Detail: h.svnBaseURL})
	}

	return jsonContents(req.Params.URI, report)
}

func probeDB(ctx context.Context, db Database) componentHealth {
	if db == nil {
		return componentHealth{Detail: "not configured"}
	}
	if err := db.Ping(ctx); err != nil {
		return componentHealth{Detail: err.Error()}
	}
	return componentHealth{OK: true, Detail: db.Path()}
}

// StandardsResource returns the devmind://oracle/standards resource definition.
func (h *Handler) StandardsResource() mcp.Resource {
	return mcp.NewResource(
		"devmind://oracle/standards",
		"Oracle Development Standards",
		mcp.WithResourceDescription("SVN layout, standard procedures, DDL templates and naming rules"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStandards returns the standards report as JSON.
func (h *Handler) HandleStandards(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.standards == nil {
		return errorResource(req.Params.URI, "standards database not configured"), nil
	}
	report, err := h.standards.Analyze(ctx)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}
	return jsonContents(req.Params.URI, report)
}

func jsonContents(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
