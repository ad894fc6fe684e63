package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/devmind/internal/jira"
)

// ─── get_jira_issue ─────────────────────────────────────────────────────────

// JiraIssueTool handles get_jira_issue.
type JiraIssueTool struct {
	jira JiraSource
}

func NewJiraIssueTool(src JiraSource) *JiraIssueTool { return &JiraIssueTool{jira: src} }

func (t *JiraIssueTool) Definition() mcp.Tool {
	return mcp.NewTool("get_jira_issue",
		mcp.WithDescription("Get Jira issue details. Format 'full' (default) shows all main fields, "+
			"'summary' a short view, 'raw' the JSON returned by Jira."),
		mcp.WithString("issue_key", mcp.Required(), mcp.Description("Jira issue key, e.g. CMU-105")),
		mcp.WithString("format", mcp.Description("full, summary or raw"), mcp.Enum("full", "summary", "raw")),
	)
}

func (t *JiraIssueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, bad := required(req, "issue_key")
	if bad != nil {
		return bad, nil
	}
	client, err := t.jira(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	switch req.GetString("format", "full") {
	case "raw":
		raw, err := client.IssueRaw(ctx, key)
		if err != nil {
			return errResult("could not retrieve "+key+": %v", err), nil
		}
		var pretty bytes.Buffer
		if json.Indent(&pretty, raw, "", "  ") != nil {
			return mcp.NewToolResultText(string(raw)), nil
		}
		return mcp.NewToolResultText(pretty.String()), nil
	case "summary":
		is, err := client.Issue(ctx, key)
		if err != nil {
			return errResult("could not retrieve "+key+": %v", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Issue: %s\nTitle: %s\nStatus: %s\nAssignee: %s\nPriority: %s",
			is.Key, is.Fields.Summary, is.StatusName(), is.AssigneeName(), is.PriorityName())), nil
	default:
		is, err := client.Issue(ctx, key)
		if err != nil {
			return errResult("could not retrieve "+key+": %v", err), nil
		}
		return mcp.NewToolResultText(formatIssue(is)), nil
	}
}

func formatIssue(is *jira.Issue) string {
	desc := is.Fields.Description
	if desc == "" {
		desc = "No description"
	}
	summary := is.Fields.Summary
	if summary == "" {
		summary = "No summary"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\nIssue: %s\n%s\n", rule, is.Key, rule)
	fmt.Fprintf(&b, "Summary: %s\nStatus: %s\nPriority: %s\nAssignee: %s\nDescription: %s\n%s\n",
		summary, is.StatusName(), is.PriorityName(), is.AssigneeName(), desc, rule)
	return b.String()
}

// ─── update_issue_status ────────────────────────────────────────────────────

// UpdateStatusTool handles update_issue_status.
type UpdateStatusTool struct {
	jira JiraSource
}

func NewUpdateStatusTool(src JiraSource) *UpdateStatusTool { return &UpdateStatusTool{jira: src} }

func (t *UpdateStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("update_issue_status",
		mcp.WithDescription("Move a Jira issue to another status (e.g. 'In Progress', 'Development Done', 'Done'), "+
			"optionally adding a comment."),
		mcp.WithString("issue_key", mcp.Required(), mcp.Description("Jira issue key")),
		mcp.WithString("target_status", mcp.Required(), mcp.Description("Target status name")),
		mcp.WithString("comment", mcp.Description("Optional comment added with the transition")),
	)
}

func (t *UpdateStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, bad := required(req, "issue_key")
	if bad != nil {
		return bad, nil
	}
	target, bad := required(req, "target_status")
	if bad != nil {
		return bad, nil
	}
	comment := req.GetString("comment", "")

	client, err := t.jira(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	is, err := client.Issue(ctx, key)
	if err != nil {
		return errResult("could not find "+key+": %v", err), nil
	}
	current := is.StatusName()
	if strings.EqualFold(current, target) {
		return mcp.NewToolResultText(fmt.Sprintf("Issue %s is already in '%s' status", key, current)), nil
	}

	transitions, err := client.Transitions(ctx, key)
	if err != nil {
		return errResult("listing transitions: %v", err), nil
	}
	tr := jira.FindTransition(transitions, target)
	if tr == nil {
		var names []string
		for _, t := range transitions {
			names = append(names, t.To.Name)
		}
		return mcp.NewToolResultError(fmt.Sprintf("no transition found from '%s' to '%s'. Available transitions: %s",
			current, target, strings.Join(names, ", "))), nil
	}
	if err := client.DoTransition(ctx, key, tr.ID, comment); err != nil {
		return errResult("transition failed: %v", err), nil
	}

	msg := fmt.Sprintf("Status changed: %s from '%s' to '%s'", key, current, target)
	if comment != "" {
		msg += fmt.Sprintf(" with comment: '%s'", comment)
	}
	return mcp.NewToolResultText(msg), nil
}

// ─── search_issues_by_assignee ──────────────────────────────────────────────

// AssigneeSearchTool handles search_issues_by_assignee.
type AssigneeSearchTool struct {
	jira JiraSource
}

func NewAssigneeSearchTool(src JiraSource) *AssigneeSearchTool { return &AssigneeSearchTool{jira: src} }

func (t *AssigneeSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_issues_by_assignee",
		mcp.WithDescription("List the issues assigned to a person, or only count them."),
		mcp.WithString("assignee_name", mcp.Required(), mcp.Description("Assignee name")),
		mcp.WithNumber("max_results", mcp.Description("Maximum issues to list (default: 20)")),
		mcp.WithBoolean("count_only", mcp.Description("Return only the total")),
	)
}

func (t *AssigneeSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, bad := required(req, "assignee_name")
	if bad != nil {
		return bad, nil
	}
	countOnly := boolArg(req, "count_only", false)
	max := intArg(req, "max_results", 20)
	if countOnly {
		max = 1
	}

	client, err := t.jira(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := client.Search(ctx, fmt.Sprintf("assignee = %q", name), max, 0)
	if err != nil {
		return errResult("search failed: %v", err), nil
	}
	if countOnly {
		return mcp.NewToolResultText(fmt.Sprintf("%s has %s", name, plural(res.Total, "issue"))), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Issues for %s: %d total\n%s\n", name, res.Total, rule)
	for _, is := range res.Issues {
		fmt.Fprintf(&b, "- %s: %s\n  Status: %s\n", is.Key, is.Fields.Summary, is.StatusName())
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── search_issues_by_jql ───────────────────────────────────────────────────

// JQLSearchTool handles search_issues_by_jql.
type JQLSearchTool struct {
	jira JiraSource
}

func NewJQLSearchTool(src JiraSource) *JQLSearchTool { return &JQLSearchTool{jira: src} }

func (t *JQLSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("search_issues_by_jql",
		mcp.WithDescription("Search Jira issues with a JQL query."),
		mcp.WithString("jql_query", mcp.Required(), mcp.Description("JQL query")),
		mcp.WithNumber("max_results", mcp.Description("Maximum issues to return (default: 20, max: 100)")),
	)
}

func (t *JQLSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jql, bad := required(req, "jql_query")
	if bad != nil {
		return bad, nil
	}
	client, err := t.jira(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := client.Search(ctx, jql, intArg(req, "max_results", 20), 0)
	if err != nil {
		return errResult("search failed: %v", err), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "JQL Results: %d issues\n%s\n", len(res.Issues), rule)
	for _, is := range res.Issues {
		fmt.Fprintf(&b, "- %s: %s\n", is.Key, is.Fields.Summary)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── add_comment_to_issue ───────────────────────────────────────────────────

// AddCommentTool handles add_comment_to_issue.
type AddCommentTool struct {
	jira JiraSource
}

func NewAddCommentTool(src JiraSource) *AddCommentTool { return &AddCommentTool{jira: src} }

func (t *AddCommentTool) Definition() mcp.Tool {
	return mcp.NewTool("add_comment_to_issue",
		mcp.WithDescription("Add a comment to a Jira issue."),
		mcp.WithString("issue_key", mcp.Required(), mcp.Description("Jira issue key")),
		mcp.WithString("comment", mcp.Required(), mcp.Description("Comment body")),
	)
}

func (t *AddCommentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, bad := required(req, "issue_key")
	if bad != nil {
		return bad, nil
	}
	comment, bad := required(req, "comment")
	if bad != nil {
		return bad, nil
	}
	client, err := t.jira(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := client.AddComment(ctx, key, comment); err != nil {
		return errResult("failed to add comment: %v", err), nil
	}
	return mcp.NewToolResultText("Comment added to " + key), nil
}

// ─── get_issue_comments ─────────────────────────────────────────────────────

// CommentsTool handles get_issue_comments.
type CommentsTool struct {
	jira JiraSource
}

func NewCommentsTool(src JiraSource) *CommentsTool { return &CommentsTool{jira: src} }

func (t *CommentsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_issue_comments",
		mcp.WithDescription("Get the most recent comments of a Jira issue, newest first."),
		mcp.WithString("issue_key", mcp.Required(), mcp.Description("Jira issue key")),
		mcp.WithNumber("max_comments", mcp.Description("Maximum comments (default: 10)")),
	)
}

func (t *CommentsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, bad := required(req, "issue_key")
	if bad != nil {
		return bad, nil
	}
	client, err := t.jira(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	comments, err := client.Comments(ctx, key)
	if err != nil {
		return errResult("loading comments: %v", err), nil
	}
	if len(comments) == 0 {
		return mcp.NewToolResultText("No comments for " + key), nil
	}
	if max := intArg(req, "max_comments", 10); max > 0 && len(comments) > max {
		comments = comments[:max]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Comments for %s:\n%s\n", key, rule)
	for i, c := range comments {
		author := c.Author.DisplayName
		if author == "" {
			author = "Unknown"
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, author, c.Body)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── get_issue_transitions ──────────────────────────────────────────────────

// TransitionsTool handles get_issue_transitions.
type TransitionsTool struct {
	jira JiraSource
}

func NewTransitionsTool(src JiraSource) *TransitionsTool { return &TransitionsTool{jira: src} }

func (t *TransitionsTool) Definition() mcp.Tool {
	return mcp.NewTool("get_issue_transitions",
		mcp.WithDescription("List the statuses a Jira issue can move to."),
		mcp.WithString("issue_key", mcp.Required(), mcp.Description("Jira issue key")),
		mcp.WithBoolean("detailed", mcp.Description("Include transition ids and names")),
	)
}

func (t *TransitionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key, bad := required(req, "issue_key")
	if bad != nil {
		return bad, nil
	}
	client, err := t.jira(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	transitions, err := client.Transitions(ctx, key)
	if err != nil {
		return errResult("listing transitions: %v", err), nil
	}
	if len(transitions) == 0 {
		return mcp.NewToolResultError("no transitions found for " + key), nil
	}

	var b strings.Builder
	if boolArg(req, "detailed", false) {
		fmt.Fprintf(&b, "Transitions for %s:\n%s\n", key, rule)
		for _, tr := range transitions {
			fmt.Fprintf(&b, "ID: %s | %s -> %s\n", tr.ID, tr.Name, tr.To.Name)
		}
		return mcp.NewToolResultText(b.String()), nil
	}

	current := "Unknown"
	if is, err := client.Issue(ctx, key); err == nil {
		current = is.StatusName()
	}
	fmt.Fprintf(&b, "%s - Current: %s\nAvailable transitions:\n", key, current)
	for i, tr := range transitions {
		fmt.Fprintf(&b, "%d. %s\n", i+1, tr.To.Name)
	}
	return mcp.NewToolResultText(b.String()), nil
}
