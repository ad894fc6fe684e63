package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/HendryAvila/devmind/internal/dbexec"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Card is a dashboard row joined with its latest jira_prompts entry.
type Card struct {
	ID                 int64    `json:"id"`
	JiraNumber         string   `json:"jira_number"`
	JiraHeading        *string  `json:"jira_heading"`
	Assignee           *string  `json:"assignee"`
	Created            *string  `json:"created"`
	Priority           *string  `json:"priority"`
	Type               *string  `json:"type"`
	RequirementClarity *string  `json:"requirement_clarity"`
	Automation         *string  `json:"automation"`
	Comment            *string  `json:"comment"`
	Decision           *string  `json:"decision"`
	LastUpdated        *string  `json:"last_updated"`
	Status             *string  `json:"status"`
	PromptID           *int64   `json:"prompt_id"`
	Category           *string  `json:"category"`
	AnalysisPrompt     *string  `json:"analysis_prompt"`
	GenCode            *string  `json:"gen_code"`
	GenTestCase        *string  `json:"gen_test_case"`
	DeploymentPrompt   *string  `json:"deployment_prompt"`
	Rewards            *float64 `json:"rewards"`
}

// Task is the monitoring view of a dashboard row.
type Task struct {
	JiraNumber         string  `json:"jira_number"`
	JiraHeading        *string `json:"jira_heading"`
	Status             *string `json:"status"`
	Assignee           *string `json:"assignee"`
	Priority           *string `json:"priority"`
	RequirementClarity *string `json:"requirement_clarity"`
	Automation         *string `json:"automation"`
	Created            *string `json:"created"`
	LastUpdated        *string `json:"last_updated"`
	Decision           *string `json:"decision"`
	HasCode            bool    `json:"has_code"`
	HasTest            bool    `json:"has_test"`
	Comment            *string `json:"comment"`
}

// PromptFlags summarizes which artifacts the latest prompt row carries.
type PromptFlags struct {
	PID           int64    `json:"p_id"`
	JiraNumber    string   `json:"jira_number"`
	Category      *string  `json:"category"`
	HasAnalysis   bool     `json:"has_analysis"`
	HasCode       bool     `json:"has_code"`
	HasTest       bool     `json:"has_test"`
	HasDeployment bool     `json:"has_deployment"`
	Rewards       *float64 `json:"rewards"`
	CreatedAt     *string  `json:"created_at"`
}

// IssueFields are the optional columns of add-or-update. Nil means
// "leave unchanged" on update and "use the default" on insert.
type IssueFields struct {
	JiraHeading        *string
	Assignee           *string
	Priority           *string
	IssueType          *string
	RequirementClarity *string
	Automation         *string
	Comment            *string
	Decision           *string
	Status             *string
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// JiraExists reports whether jiraID has a dashboard row.
func (s *Store) JiraExists(ctx context.Context, jiraID string) (bool, error) {
	row, err := s.queryOne(ctx, "SELECT 1 FROM jira_dashboard WHERE jira_number = ? LIMIT 1", jiraID)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

const cardsQuery = `
	SELECT
		jd.id, jd.jira_number, jd.jira_heading, jd.assignee, jd.created,
		jd.priority, jd.type, jd.requirement_clarity, jd.automation,
		jd.comment, jd.decision, jd.last_updated, jd.status,
		jp.p_id AS prompt_id, jp.category, jp.analysis_prompt,
		jp.gen_code, jp.gen_test_case, jp.deployment_prompt, jp.rewards
	FROM jira_dashboard jd
	LEFT JOIN (
		SELECT jp1.*
		FROM jira_prompts jp1
		INNER JOIN (
			SELECT jira_number, MAX(p_id) AS max_id
			FROM jira_prompts
			GROUP BY jira_number
		) jp2 ON jp1.jira_number = jp2.jira_number AND jp1.p_id = jp2.max_id
	) jp ON jd.jira_number = jp.jira_number
	ORDER BY jd.id DESC`

// ListCards returns every dashboard row, newest first, with the latest
// prompt artifacts decoded to text.
func (s *Store) ListCards(ctx context.Context) ([]Card, error) {
	rows, err := s.queryAll(ctx, cardsQuery)
	if err != nil {
		return nil, err
	}

	cards := make([]Card, 0, len(rows))
	for _, r := range rows {
		cards = append(cards, Card{
			ID:                 integer(r, "id"),
			JiraNumber:         text(r, "jira_number"),
			JiraHeading:        optText(r, "jira_heading"),
			Assignee:           optText(r, "assignee"),
			Created:            optText(r, "created"),
			Priority:           optText(r, "priority"),
			Type:               optText(r, "type"),
			RequirementClarity: optText(r, "requirement_clarity"),
			Automation:         optText(r, "automation"),
			Comment:            optText(r, "comment"),
			Decision:           optText(r, "decision"),
			LastUpdated:        optText(r, "last_updated"),
			Status:             optText(r, "status"),
			PromptID:           optInteger(r, "prompt_id"),
			Category:           optText(r, "category"),
			AnalysisPrompt:     optText(r, "analysis_prompt"),
			GenCode:            optText(r, "gen_code"),
			GenTestCase:        optText(r, "gen_test_case"),
			DeploymentPrompt:   optText(r, "deployment_prompt"),
			Rewards:            optFloat(r, "rewards"),
		})
	}
	return cards, nil
}

const taskColumns = `
	jira_number, jira_heading, status, assignee, priority,
	requirement_clarity, automation, created, last_updated, decision,
	CASE WHEN generated_code_file IS NOT NULL THEN 1 ELSE 0 END AS has_code,
	CASE WHEN test_case_file IS NOT NULL THEN 1 ELSE 0 END AS has_test,
	comment`

// Tasks returns every dashboard row, most recently updated first.
func (s *Store) Tasks(ctx context.Context) ([]Task, error) {
	rows, err := s.queryAll(ctx, "SELECT"+taskColumns+" FROM jira_dashboard ORDER BY last_updated DESC")
	if err != nil {
		return nil, err
	}
	tasks := make([]Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, taskFromRow(r))
	}
	return tasks, nil
}

// Task returns one dashboard row, or ErrNotFound.
func (s *Store) Task(ctx context.Context, jiraID string) (*Task, error) {
	row, err := s.queryOne(ctx, "SELECT"+taskColumns+" FROM jira_dashboard WHERE jira_number = ?", jiraID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: task %s", ErrNotFound, jiraID)
	}
	t := taskFromRow(row)
	return &t, nil
}

func taskFromRow(r dbexec.Row) Task {
	return Task{
		JiraNumber:         text(r, "jira_number"),
		JiraHeading:        optText(r, "jira_heading"),
		Status:             optText(r, "status"),
		Assignee:           optText(r, "assignee"),
		Priority:           optText(r, "priority"),
		RequirementClarity: optText(r, "requirement_clarity"),
		Automation:         optText(r, "automation"),
		Created:            optText(r, "created"),
		LastUpdated:        optText(r, "last_updated"),
		Decision:           optText(r, "decision"),
		HasCode:            flag(r, "has_code"),
		HasTest:            flag(r, "has_test"),
		Comment:            optText(r, "comment"),
	}
}

// LastUpdated maps every jira_number to its last_updated value.
func (s *Store) LastUpdated(ctx context.Context) (map[string]string, error) {
	rows, err := s.queryAll(ctx, "SELECT jira_number, last_updated FROM jira_dashboard")
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[text(r, "jira_number")] = text(r, "last_updated")
	}
	return out, nil
}

// PromptFlags returns the artifact flags of the latest prompt row, or nil.
func (s *Store) PromptFlags(ctx context.Context, jiraID string) (*PromptFlags, error) {
	row, err := s.queryOne(ctx, `
		SELECT
			p_id, jira_number, category,
			CASE WHEN analysis_prompt IS NOT NULL THEN 1 ELSE 0 END AS has_analysis,
			CASE WHEN gen_code IS NOT NULL THEN 1 ELSE 0 END AS has_code,
			CASE WHEN gen_test_case IS NOT NULL THEN 1 ELSE 0 END AS has_test,
			CASE WHEN deployment_prompt IS NOT NULL THEN 1 ELSE 0 END AS has_deployment,
			rewards, created_at
		FROM jira_prompts
		WHERE jira_number = ?
		ORDER BY p_id DESC
		LIMIT 1`, jiraID)
	if err != nil || row == nil {
		return nil, err
	}
	return &PromptFlags{
		PID:           integer(row, "p_id"),
		JiraNumber:    text(row, "jira_number"),
		Category:      optText(row, "category"),
		HasAnalysis:   flag(row, "has_analysis"),
		HasCode:       flag(row, "has_code"),
		HasTest:       flag(row, "has_test"),
		HasDeployment: flag(row, "has_deployment"),
		Rewards:       optFloat(row, "rewards"),
		CreatedAt:     optText(row, "created_at"),
	}, nil
}

// ─── Writes ──────────────────────────────────────────────────────────────────

// UpsertIssue inserts a dashboard row for jiraID or updates the non-nil
// fields of the existing one. It reports whether a row was created.
func (s *Store) UpsertIssue(ctx context.Context, jiraID string, f IssueFields) (bool, error) {
	exists, err := s.JiraExists(ctx, jiraID)
	if err != nil {
		return false, err
	}
	now := s.now()

	if exists {
		var sets []string
		var args []any
		for _, c := range []struct {
			col string
			val *string
		}{
			{"jira_heading", f.JiraHeading},
			{"assignee", f.Assignee},
			{"priority", f.Priority},
			{"type", f.IssueType},
			{"requirement_clarity", f.RequirementClarity},
			{"automation", f.Automation},
			{"comment", f.Comment},
			{"decision", f.Decision},
			{"status", f.Status},
		} {
			if c.val != nil {
				sets = append(sets, c.col+" = ?")
				args = append(args, *c.val)
			}
		}
		if len(sets) == 0 {
			return false, nil
		}
		sets = append(sets, "last_updated = ?")
		args = append(args, now.Format(time.RFC3339Nano), jiraID)
		_, err := s.write(ctx, "UPDATE jira_dashboard SET "+strings.Join(sets, ", ")+" WHERE jira_number = ?", args...)
		return false, err
	}

	_, err = s.write(ctx, `
		INSERT INTO jira_dashboard
			(jira_number, jira_heading, assignee, created, priority, type,
			 requirement_clarity, automation, comment, decision, status, last_updated)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jiraID,
		nullable(f.JiraHeading),
		nullable(f.Assignee),
		now.Format("2006-01-02"),
		orDefault(f.Priority, "Medium"),
		orDefault(f.IssueType, "Story"),
		orDefault(f.RequirementClarity, "Clear"),
		orDefault(f.Automation, "No"),
		nullable(f.Comment),
		orDefault(f.Decision, "PENDING"),
		nullable(f.Status),
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, err
	}
	return true, nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func orDefault(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
