package dashboard

import (
	"context"
	"fmt"
	"strings"
)

// SVNMapping is one svn_path row: where a kind of change lives for a component.
type SVNMapping struct {
	Component       string `json:"component"`
	RequirementType string `json:"requirement_type"`
	Path            string `json:"svn_path"`
}

// Paths splits a multi-line mapping (e.g. package spec and body) into its paths.
func (m SVNMapping) Paths() []string {
	var out []string
	for _, p := range strings.Split(m.Path, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SVNPathMissError is returned when a component has no mapping for the
// requested type. Available lists the types it does have.
type SVNPathMissError struct {
	Component       string
	RequirementType string
	Available       []string
}

func (e *SVNPathMissError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("component %q not found in svn_path", e.Component)
	}
	return fmt.Sprintf("no svn path for component %q and requirement type %q (available: %s)",
		e.Component, e.RequirementType, strings.Join(e.Available, ", "))
}

func (e *SVNPathMissError) Unwrap() error { return ErrNotFound }

// SVNPath looks up the mapping for component and requirement type.
func (s *Store) SVNPath(ctx context.Context, component, requirementType string) (*SVNMapping, error) {
	row, err := s.queryOne(ctx, `
		SELECT component_name, key, value
		FROM svn_path
		WHERE component_name = ? AND key = ?`, component, requirementType)
	if err != nil {
		return nil, err
	}
	if row != nil {
		return &SVNMapping{
			Component:       text(row, "component_name"),
			RequirementType: text(row, "key"),
			Path:            text(row, "value"),
		}, nil
	}

	rows, err := s.queryAll(ctx, "SELECT key FROM svn_path WHERE component_name = ? ORDER BY key", component)
	if err != nil {
		return nil, err
	}
	miss := &SVNPathMissError{Component: component, RequirementType: requirementType}
	for _, r := range rows {
		miss.Available = append(miss.Available, text(r, "key"))
	}
	return nil, miss
}

// SVNMappings lists mappings, optionally filtered to one component.
func (s *Store) SVNMappings(ctx context.Context, component string) ([]SVNMapping, error) {
	sql := "SELECT component_name, key, value FROM svn_path"
	var args []any
	if component != "" {
		sql += " WHERE component_name = ?"
		args = append(args, component)
	}
	rows, err := s.queryAll(ctx, sql+" ORDER BY component_name, key", args...)
	if err != nil {
		return nil, err
	}

	out := make([]SVNMapping, 0, len(rows))
	for _, r := range rows {
		out = append(out, SVNMapping{
			Component:       text(r, "component_name"),
			RequirementType: text(r, "key"),
			Path:            text(r, "value"),
		})
	}
	return out, nil
}
