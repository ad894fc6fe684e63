package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/devmind/internal/dashboard"
)

// DashboardTool handles add_or_update_jira_dashboard.
type DashboardTool struct {
	store  *dashboard.Store
	notify Notifier
}

func NewDashboardTool(store *dashboard.Store, n Notifier) *DashboardTool {
	return &DashboardTool{store: store, notify: orNop(n)}
}

var dashboardFields = []struct {
	key, desc string
}{
	{"jira_heading", "Issue title"},
	{"assignee", "Assignee name"},
	{"priority", "Priority (default on insert: Medium)"},
	{"issue_type", "Issue type (default on insert: Story)"},
	{"requirement_clarity", "Clear or Unclear (default on insert: Clear)"},
	{"automation", "Yes or No (default on insert: No)"},
	{"comment", "Free-form comment"},
	{"decision", "Decision (default on insert: PENDING)"},
	{"status", "Workflow status"},
}

func (t *DashboardTool) Definition() mcp.Tool {
	opts := []mcp.ToolOption{
		mcp.WithDescription("Add a Jira issue to the dashboard, or update the given fields of an existing row."),
		mcp.WithString("jira_number", mcp.Required(), mcp.Description("Jira issue key")),
	}
	for _, f := range dashboardFields {
		opts = append(opts, mcp.WithString(f.key, mcp.Description(f.desc)))
	}
	return mcp.NewTool("add_or_update_jira_dashboard", opts...)
}

func (t *DashboardTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jiraID, bad := required(req, "jira_number")
	if bad != nil {
		return bad, nil
	}
	f := dashboard.IssueFields{
		JiraHeading:        optString(req, "jira_heading"),
		Assignee:           optString(req, "assignee"),
		Priority:           optString(req, "priority"),
		IssueType:          optString(req, "issue_type"),
		RequirementClarity: optString(req, "requirement_clarity"),
		Automation:         optString(req, "automation"),
		Comment:            optString(req, "comment"),
		Decision:           optString(req, "decision"),
		Status:             optString(req, "status"),
	}
	created, err := t.store.UpsertIssue(ctx, jiraID, f)
	if err != nil {
		return errResult("updating dashboard: %v", err), nil
	}

	action, msg := "updated", "Jira "+jiraID+" updated in dashboard"
	if created {
		action, msg = "created", "Jira "+jiraID+" added to dashboard"
	}
	status := "in_progress"
	if f.Status != nil {
		status = *f.Status
	}
	t.notify.Notify(ctx, jiraID, "dashboard", status, msg, 0)

	return jsonResult(map[string]any{
		"success":     true,
		"action":      action,
		"jira_number": jiraID,
		"message":     msg,
	})
}
