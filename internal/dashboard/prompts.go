package dashboard

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// PromptKind selects columns of jira_tmp_prompts.
type PromptKind string

const (
	KindAnalysis   PromptKind = "analysis"
	KindDeployment PromptKind = "deployment"
	KindBoth       PromptKind = "both"
)

// ParsePromptKind accepts analysis, deployment or both, case-insensitively.
func ParsePromptKind(s string) (PromptKind, error) {
	switch k := PromptKind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindAnalysis, KindDeployment, KindBoth:
		return k, nil
	}
	return "", fmt.Errorf("%w %q: must be one of analysis, deployment, both", ErrInvalidKind, s)
}

// TmpPrompt is the latest staged prompt for a Jira issue. Only the
// columns selected by the requested kind are filled.
type TmpPrompt struct {
	JiraNumber       string  `json:"jira_number"`
	AnalysisPrompt   *string `json:"analysis_prompt,omitempty"`
	DeploymentPrompt *string `json:"deployment_prompt,omitempty"`
}

// PromptRecord is one jira_prompts history row. Artifact fields hold
// text, or a path to a file whose content is stored instead.
type PromptRecord struct {
	PID              int64    `json:"p_id"`
	JiraNumber       string   `json:"jira_number"`
	Category         *string  `json:"category"`
	AnalysisPrompt   *string  `json:"analysis_prompt"`
	GenCode          *string  `json:"gen_code"`
	GenTestCase      *string  `json:"gen_test_case"`
	DeploymentPrompt *string  `json:"deployment_prompt"`
	Rewards          *float64 `json:"rewards"`
}

// ─── Templates ───────────────────────────────────────────────────────────────

// PromptTemplate returns the template text stored under key.
func (s *Store) PromptTemplate(ctx context.Context, key string) (string, error) {
	row, err := s.queryOne(ctx, "SELECT p_value FROM jira_prompts_template WHERE p_key = ? LIMIT 1", key)
	if err != nil {
		return "", err
	}
	if row == nil || text(row, "p_value") == "" {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, key)
	}
	return text(row, "p_value"), nil
}

// RenderTemplate substitutes every "?" placeholder with the Jira id.
func RenderTemplate(template, jiraID string) string {
	return strings.ReplaceAll(template, "?", jiraID)
}

// ─── Staged prompts ──────────────────────────────────────────────────────────

// SaveTmpPrompt stages an analysis prompt. Failure is logged and reported
// as false.
func (s *Store) SaveTmpPrompt(ctx context.Context, jiraID, prompt string) bool {
	if _, err := s.write(ctx, "INSERT INTO jira_tmp_prompts (jira_no, analysis_prompt) VALUES (?, ?)", jiraID, prompt); err != nil {
		s.log.Error("saving staged prompt", "jira", jiraID, "err", err)
		return false
	}
	return true
}

// LatestTmpPrompt returns the most recently staged prompt for jiraID.
func (s *Store) LatestTmpPrompt(ctx context.Context, jiraID string, kind PromptKind) (*TmpPrompt, error) {
	row, err := s.queryOne(ctx, `
		SELECT jira_no, analysis_prompt, deployment_prompt
		FROM jira_tmp_prompts
		WHERE jira_no = ?
		ORDER BY rowid DESC
		LIMIT 1`, jiraID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: no staged prompt for %s", ErrNotFound, jiraID)
	}

	tp := &TmpPrompt{JiraNumber: text(row, "jira_no")}
	if kind == KindAnalysis || kind == KindBoth {
		tp.AnalysisPrompt = optText(row, "analysis_prompt")
	}
	if kind == KindDeployment || kind == KindBoth {
		tp.DeploymentPrompt = optText(row, "deployment_prompt")
	}
	return tp, nil
}

// ─── Prompt history ──────────────────────────────────────────────────────────

// LatestPrompt returns the newest jira_prompts row for jiraID.
func (s *Store) LatestPrompt(ctx context.Context, jiraID string) (*PromptRecord, error) {
	row, err := s.queryOne(ctx, `
		SELECT p_id, jira_number, category, analysis_prompt, gen_code,
		       gen_test_case, deployment_prompt, rewards
		FROM jira_prompts
		WHERE jira_number = ?
		ORDER BY p_id DESC
		LIMIT 1`, jiraID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: no prompts for %s", ErrNotFound, jiraID)
	}
	return &PromptRecord{
		PID:              integer(row, "p_id"),
		JiraNumber:       text(row, "jira_number"),
		Category:         optText(row, "category"),
		AnalysisPrompt:   optText(row, "analysis_prompt"),
		GenCode:          optText(row, "gen_code"),
		GenTestCase:      optText(row, "gen_test_case"),
		DeploymentPrompt: optText(row, "deployment_prompt"),
		Rewards:          optFloat(row, "rewards"),
	}, nil
}

// InsertPrompt appends a history row and returns its p_id.
func (s *Store) InsertPrompt(ctx context.Context, p PromptRecord) (int64, error) {
	res, err := s.write(ctx, `
		INSERT INTO jira_prompts (jira_number, category, analysis_prompt, gen_code,
		                          gen_test_case, deployment_prompt, rewards)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.JiraNumber,
		nullable(p.Category),
		blob(p.AnalysisPrompt),
		blob(p.GenCode),
		blob(p.GenTestCase),
		blob(p.DeploymentPrompt),
		nullableFloat(p.Rewards),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertID, nil
}

// UpdateLatestPrompt sets the non-nil fields of p on the newest history
// row for p.JiraNumber. It returns that row's p_id and the number of
// fields written.
func (s *Store) UpdateLatestPrompt(ctx context.Context, p PromptRecord) (int64, int, error) {
	var sets []string
	var args []any
	if p.Category != nil {
		sets = append(sets, "category = ?")
		args = append(args, *p.Category)
	}
	for _, c := range []struct {
		col string
		val *string
	}{
		{"analysis_prompt", p.AnalysisPrompt},
		{"gen_code", p.GenCode},
		{"gen_test_case", p.GenTestCase},
		{"deployment_prompt", p.DeploymentPrompt},
	} {
		if c.val != nil {
			sets = append(sets, c.col+" = ?")
			args = append(args, blob(c.val))
		}
	}
	if p.Rewards != nil {
		sets = append(sets, "rewards = ?")
		args = append(args, *p.Rewards)
	}
	if len(sets) == 0 {
		return 0, 0, ErrNothingToUpdate
	}

	row, err := s.queryOne(ctx, "SELECT p_id FROM jira_prompts WHERE jira_number = ? ORDER BY p_id DESC LIMIT 1", p.JiraNumber)
	if err != nil {
		return 0, 0, err
	}
	if row == nil {
		return 0, 0, fmt.Errorf("%w: no existing prompt for %s, insert instead", ErrNotFound, p.JiraNumber)
	}
	pid := integer(row, "p_id")

	args = append(args, pid)
	if _, err := s.write(ctx, "UPDATE jira_prompts SET "+strings.Join(sets, ", ")+" WHERE p_id = ?", args...); err != nil {
		return 0, 0, err
	}
	return pid, len(sets), nil
}

// blob converts an artifact to BLOB bytes. A value naming a readable file
// is replaced by the file content; empty values are stored as NULL.
func blob(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	if strings.ContainsAny(*v, `/\`) && !strings.Contains(*v, "\n") {
		if info, err := os.Stat(*v); err == nil && !info.IsDir() {
			if data, err := os.ReadFile(*v); err == nil {
				return data
			}
		}
	}
	return []byte(*v)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
