// Package prompts implements the DevMind MCP prompts.
//
// Prompts are user-triggered workflows (like slash commands). Unlike
// tools, which the model calls, the user starts them.
package prompts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/devmind/internal/dashboard"
)

// TemplateStore loads prompt templates.
type TemplateStore interface {
	PromptTemplate(ctx context.Context, key string) (string, error)
}

// AnalysisPrompt handles the jira-analysis prompt. It renders the stored
// analysis template for one Jira issue.
type AnalysisPrompt struct {
	store TemplateStore
}

// NewAnalysisPrompt creates an AnalysisPrompt.
func NewAnalysisPrompt(store TemplateStore) *AnalysisPrompt {
	return &AnalysisPrompt{store: store}
}

// Definition returns the MCP prompt definition for registration.
func (p *AnalysisPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("jira-analysis",
		mcp.WithPromptDescription(
			"Analyze a Jira issue end to end: requirement, similar past work, "+
				"Oracle standards, SVN paths, code and test generation.",
		),
		mcp.WithArgument("jira_id",
			mcp.ArgumentDescription("Jira issue key, e.g. CMU-105"),
			mcp.RequiredArgument(),
		),
	)
}

// Handle renders the template. When the dashboard database has no
// template the built-in default is used.
func (p *AnalysisPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	jiraID := strings.TrimSpace(req.Params.Arguments["jira_id"])
	if jiraID == "" {
		return nil, fmt.Errorf("jira_id is required")
	}

	tmpl, err := p.store.PromptTemplate(ctx, dashboard.TemplateAnalysis)
	switch {
	case errors.Is(err, dashboard.ErrTemplateNotFound):
		tmpl = dashboard.DefaultAnalysisTemplate
	case err != nil:
		return nil, fmt.Errorf("loading analysis template: %w", err)
	}

	return &mcp.GetPromptResult{
		Description: "Analyze " + jiraID,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(dashboard.RenderTemplate(tmpl, jiraID)),
			},
		},
	}, nil
}
