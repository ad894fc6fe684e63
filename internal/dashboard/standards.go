package dashboard

import "context"

// Procedure is one standard Oracle utility procedure.
type Procedure struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Parameters   string `json:"parameters"`
	UsageExample string `json:"usage_example"`
}

// ObjectTemplate is a DDL skeleton for one object type.
type ObjectTemplate struct {
	ObjectType  string `json:"object_type"`
	Name        string `json:"template_name"`
	SQL         string `json:"template_sql"`
	Description string `json:"description"`
}

// StandardsReport is the full set of conventions handed to code generation.
type StandardsReport struct {
	Title             string            `json:"title"`
	SVNPaths          map[string]string `json:"svn_paths"`
	SVNFolders        map[string]string `json:"svn_folders"`
	Procedures        []Procedure       `json:"standard_procedures"`
	Templates         []ObjectTemplate  `json:"templates"`
	NamingConventions map[string]string `json:"naming_conventions"`
}

// Standards reads the Oracle standards database.
type Standards struct {
	db *Store
}

// NewStandards returns a Standards reader over exec.
func NewStandards(exec Executor) *Standards {
	return &Standards{db: New(exec, nil)}
}

// Procedures lists the standard procedures by name.
func (s *Standards) Procedures(ctx context.Context) ([]Procedure, error) {
	rows, err := s.db.queryAll(ctx, `
		SELECT procedure_name, description, parameters, usage_example
		FROM oracle_standards
		ORDER BY procedure_name`)
	if err != nil {
		return nil, err
	}
	out := make([]Procedure, 0, len(rows))
	for _, r := range rows {
		out = append(out, Procedure{
			Name:         text(r, "procedure_name"),
			Description:  text(r, "description"),
			Parameters:   text(r, "parameters"),
			UsageExample: text(r, "usage_example"),
		})
	}
	return out, nil
}

// Templates lists the DDL templates by object type.
func (s *Standards) Templates(ctx context.Context) ([]ObjectTemplate, error) {
	rows, err := s.db.queryAll(ctx, `
		SELECT object_type, template_name, template_sql, description
		FROM sample_templates
		ORDER BY object_type, template_name`)
	if err != nil {
		return nil, err
	}
	out := make([]ObjectTemplate, 0, len(rows))
	for _, r := range rows {
		out = append(out, ObjectTemplate{
			ObjectType:  text(r, "object_type"),
			Name:        text(r, "template_name"),
			SQL:         text(r, "template_sql"),
			Description: text(r, "description"),
		})
	}
	return out, nil
}

// Analyze combines the stored procedures and templates with the fixed
// repository layout and naming rules.
func (s *Standards) Analyze(ctx context.Context) (*StandardsReport, error) {
	procs, err := s.Procedures(ctx)
	if err != nil {
		return nil, err
	}
	tmpls, err := s.Templates(ctx)
	if err != nil {
		return nil, err
	}
	return &StandardsReport{
		Title: "Oracle Development Standards Analysis",
		SVNPaths: map[string]string{
			"trunk":    "trunk/DB/OraBE/WEBLOGIC_DBA/",
			"branches": "branches/<branch_name>/DB/OraBE/WEBLOGIC_DBA/",
		},
		SVNFolders: map[string]string{
			"upgrade":      "DDL changes - tables, indexes, sequences",
			"view":         "View definitions",
			"package":      "Package specifications",
			"package_body": "Package bodies",
			"procedure":    "Standalone procedures",
			"postinstall":  "DML scripts - INSERT/UPDATE/DELETE",
			"grants":       "Permission grants",
			"rollback":     "Rollback scripts",
		},
		Procedures: procs,
		Templates:  tmpls,
		NamingConventions: map[string]string{
			"tables":    "{COMPONENT}_TR_{ENTITY}_DUMMY",
			"sequences": "{COMPONENT}_SQ_{ENTITY_SHORT}_ID",
			"indexes":   "{COMPONENT}_IDX_{ENTITY_SHORT}_{COLUMN_SHORT}",
		},
	}, nil
}
