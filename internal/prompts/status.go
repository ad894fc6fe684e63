package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the jira-status prompt.
type StatusPrompt struct{}

func NewStatusPrompt() *StatusPrompt { return &StatusPrompt{} }

func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("jira-status",
		mcp.WithPromptDescription("Summarize where a Jira issue stands in Jira and in the DevMind dashboard."),
		mcp.WithArgument("jira_id",
			mcp.ArgumentDescription("Jira issue key"),
			mcp.RequiredArgument(),
		),
	)
}

func (p *StatusPrompt) Handle(_ context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	jiraID := strings.TrimSpace(req.Params.Arguments["jira_id"])
	if jiraID == "" {
		return nil, fmt.Errorf("jira_id is required")
	}
	return &mcp.GetPromptResult{
		Description: "Status of " + jiraID,
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Report the status of %[1]s.\n\n"+
						"1. Run `get_jira_issue` with issue_key='%[1]s' and format='summary'\n"+
						"2. Run `get_issue_transitions` to list where it can move next\n"+
						"3. Run `get_jira_prompt` with jira_id='%[1]s' to see which artifacts exist\n"+
						"4. Tell me what is missing (analysis, code, tests, deployment) and what to do next",
					jiraID)),
			},
		},
	}, nil
}
