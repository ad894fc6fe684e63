package dashboard

import (
	"context"
	"fmt"
)

// KnowledgeEntry is one solved requirement in jira_kb.
type KnowledgeEntry struct {
	JiraID                 string `json:"jira_id"`
	Project                string `json:"project_name,omitempty"`
	Module                 string `json:"module"`
	RequirementDescription string `json:"requirement_description"`
	SolutionSummary        string `json:"solution_summary"`
	KeyObjects             string `json:"key_objects"`
	CodeSnippet            string `json:"code_snippet,omitempty"`
}

// SearchKnowledge finds entries whose module, description, solution or
// key objects contain query, case-insensitively.
func (s *Store) SearchKnowledge(ctx context.Context, query string, limit int) ([]KnowledgeEntry, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.queryAll(ctx, `
		SELECT jira_id, project_name, module, requirement_description, solution_summary, key_objects
		FROM jira_kb
		WHERE lower(module) LIKE '%' || lower(?1) || '%'
		   OR lower(requirement_description) LIKE '%' || lower(?1) || '%'
		   OR lower(solution_summary) LIKE '%' || lower(?1) || '%'
		   OR lower(key_objects) LIKE '%' || lower(?1) || '%'
		ORDER BY id
		LIMIT ?2`, query, limit)
	if err != nil {
		return nil, err
	}

	out := make([]KnowledgeEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, KnowledgeEntry{
			JiraID:                 text(r, "jira_id"),
			Project:                text(r, "project_name"),
			Module:                 text(r, "module"),
			RequirementDescription: text(r, "requirement_description"),
			SolutionSummary:        text(r, "solution_summary"),
			KeyObjects:             text(r, "key_objects"),
		})
	}
	return out, nil
}

// AddKnowledge stores a completed issue. Returns ErrDuplicate if the
// Jira id is already present.
func (s *Store) AddKnowledge(ctx context.Context, e KnowledgeEntry) error {
	row, err := s.queryOne(ctx, "SELECT 1 FROM jira_kb WHERE jira_id = ? LIMIT 1", e.JiraID)
	if err != nil {
		return err
	}
	if row != nil {
		return fmt.Errorf("%w: %s in knowledge base", ErrDuplicate, e.JiraID)
	}
	_, err = s.write(ctx, `
		INSERT INTO jira_kb (jira_id, project_name, module, requirement_description,
		                     solution_summary, key_objects, code_snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.JiraID, e.Project, e.Module, e.RequirementDescription,
		e.SolutionSummary, e.KeyObjects, e.CodeSnippet)
	return err
}
