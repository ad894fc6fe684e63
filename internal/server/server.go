// Package server wires the DevMind MCP components and creates the server
// instance. It is the composition root: concrete stores and clients are
// built by the caller and injected here. No business logic lives here.
package server

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/devmind/internal/dashboard"
	"github.com/HendryAvila/devmind/internal/logging"
	"github.com/HendryAvila/devmind/internal/prompts"
	"github.com/HendryAvila/devmind/internal/resources"
	"github.com/HendryAvila/devmind/internal/svn"
	"github.com/HendryAvila/devmind/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Deps are the components the tools run against. Standards and SVN are
// optional: their tools are not registered when nil.
type Deps struct {
	Store       *dashboard.Store
	DashboardDB resources.Database
	Standards   *dashboard.Standards
	StandardsDB resources.Database
	Jira        tools.JiraSource
	SVN         *svn.Client
	SVNBaseURL  string
	Notifier    tools.Notifier
	Logger      *slog.Logger
}

// New creates the MCP server with every tool, prompt and resource
// registered.
func New(d Deps) *server.MCPServer {
	log := logging.OrDefault(d.Logger).With("component", "mcp")

	s := server.NewMCPServer(
		"devmind",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Jira tools ---
	//
	// Registered unconditionally. The source connects lazily, so missing
	// credentials surface as a tool error on first use.

	registerJiraTools(s, d.Jira)

	// --- Dashboard, knowledge base and prompt history ---

	kbSearch := tools.NewKnowledgeSearchTool(d.Store)
	s.AddTool(kbSearch.Definition(), kbSearch.Handle)

	kbAdd := tools.NewKnowledgeAddTool(d.Store)
	s.AddTool(kbAdd.Definition(), kbAdd.Handle)

	tmpPrompt := tools.NewTmpPromptTool(d.Store)
	s.AddTool(tmpPrompt.Definition(), tmpPrompt.Handle)

	getPrompt := tools.NewGetPromptTool(d.Store)
	s.AddTool(getPrompt.Definition(), getPrompt.Handle)

	insertPrompt := tools.NewInsertPromptTool(d.Store, d.Notifier)
	s.AddTool(insertPrompt.Definition(), insertPrompt.Handle)

	updatePrompt := tools.NewUpdatePromptTool(d.Store, d.Notifier)
	s.AddTool(updatePrompt.Definition(), updatePrompt.Handle)

	dash := tools.NewDashboardTool(d.Store, d.Notifier)
	s.AddTool(dash.Definition(), dash.Handle)

	svnMappings := tools.NewSVNMappingsTool(d.Store)
	s.AddTool(svnMappings.Definition(), svnMappings.Handle)

	// --- Oracle standards ---

	if d.Standards != nil {
		standards := tools.NewStandardsTool(d.Standards)
		s.AddTool(standards.Definition(), standards.Handle)
	} else {
		log.Warn("oracle standards database not configured, analyze_oracle_standards disabled")
	}

	// --- SVN ---

	if d.SVN != nil {
		fileVersion := tools.NewFileVersionTool(d.SVN)
		s.AddTool(fileVersion.Definition(), fileVersion.Handle)

		latest := tools.NewLatestVersionTool(d.SVN)
		s.AddTool(latest.Definition(), latest.Handle)

		svnPath := tools.NewSVNPathTool(d.Store, d.SVN)
		s.AddTool(svnPath.Definition(), svnPath.Handle)
	} else {
		log.Warn("svn not configured, svn tools disabled")
	}

	// --- Prompts ---

	analysis := prompts.NewAnalysisPrompt(d.Store)
	s.AddPrompt(analysis.Definition(), analysis.Handle)

	status := prompts.NewStatusPrompt()
	s.AddPrompt(status.Definition(), status.Handle)

	// --- Resources ---

	opts := resources.Options{
		DashboardDB: d.DashboardDB,
		StandardsDB: d.StandardsDB,
		SVNBaseURL:  d.SVNBaseURL,
	}
	if d.Standards != nil {
		opts.Standards = d.Standards
	}
	if d.Jira != nil {
		opts.JiraReady = func(ctx context.Context) error {
			_, err := d.Jira(ctx)
			return err
		}
	}
	rh := resources.NewHandler(opts)
	s.AddResource(rh.HealthResource(), rh.HandleHealth)
	s.AddResource(rh.StandardsResource(), rh.HandleStandards)

	return s
}

func registerJiraTools(s *server.MCPServer, src tools.JiraSource) {
	issue := tools.NewJiraIssueTool(src)
	s.AddTool(issue.Definition(), issue.Handle)

	jql := tools.NewJQLSearchTool(src)
	s.AddTool(jql.Definition(), jql.Handle)

	assignee := tools.NewAssigneeSearchTool(src)
	s.AddTool(assignee.Definition(), assignee.Handle)

	addComment := tools.NewAddCommentTool(src)
	s.AddTool(addComment.Definition(), addComment.Handle)

	comments := tools.NewCommentsTool(src)
	s.AddTool(comments.Definition(), comments.Handle)

	transitions := tools.NewTransitionsTool(src)
	s.AddTool(transitions.Definition(), transitions.Handle)

	updateStatus := tools.NewUpdateStatusTool(src)
	s.AddTool(updateStatus.Definition(), updateStatus.Handle)
}

func serverInstructions() string {
	return `You have access to DevMind, a Jira-driven development assistant for Oracle database work.

## TYPICAL FLOW FOR ONE JIRA ISSUE

1. get_jira_issue and get_issue_comments to understand the requirement.
2. search_similar_jira_requirements to reuse past solutions.
3. analyze_oracle_standards before writing any SQL or PL/SQL.
4. get_svn_path_for_requirement for every object you create or change.
5. get_latest_component_version to confirm the baseline revision.
6. Store the analysis, code and tests with insert_jira_prompt (or update_jira_prompt).
7. add_or_update_jira_dashboard to record status and decision.
8. update_issue_status once development is done, then add_to_jira_kb.

## RULES

- Never invent SVN paths. If a requirement type has no mapping, list the
  available ones with list_svn_path_mappings and ask the user.
- Artifact fields of insert_jira_prompt accept a file path; prefer that for
  large generated files.
- Jira credentials live in ~/.devmind/credentials.ini. If a Jira tool
  reports a connection error, tell the user to check that file.`
}
