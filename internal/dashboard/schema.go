package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/HendryAvila/devmind/internal/dbexec"
)

// DashboardSchema creates the tables of the dashboard database.
var DashboardSchema = []string{
	`CREATE TABLE IF NOT EXISTS jira_dashboard (
		id                  INTEGER PRIMARY KEY AUTOINCREMENT,
		jira_number         TEXT NOT NULL UNIQUE,
		jira_heading        TEXT,
		assignee            TEXT,
		created             TEXT,
		priority            TEXT,
		type                TEXT,
		requirement_clarity TEXT,
		automation          TEXT,
		analysis_code_gen_prompt TEXT,
		generated_code_file BLOB,
		test_case_file      BLOB,
		comment             TEXT,
		decision            TEXT DEFAULT 'PENDING',
		status              TEXT,
		deployment_prompt   TEXT,
		last_updated        TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS jira_prompts (
		p_id              INTEGER PRIMARY KEY AUTOINCREMENT,
		jira_number       TEXT NOT NULL,
		category          TEXT,
		analysis_prompt   BLOB,
		gen_code          BLOB,
		gen_test_case     BLOB,
		deployment_prompt BLOB,
		rewards           REAL,
		created_at        TEXT DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jira_prompts_jira ON jira_prompts (jira_number, p_id)`,
	`CREATE TABLE IF NOT EXISTS jira_tmp_prompts (
		jira_no           TEXT NOT NULL,
		analysis_prompt   TEXT,
		deployment_prompt TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS jira_prompts_template (
		p_key   TEXT PRIMARY KEY,
		p_value TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jira_kb (
		id                      INTEGER PRIMARY KEY AUTOINCREMENT,
		jira_id                 TEXT NOT NULL UNIQUE,
		project_name            TEXT,
		module                  TEXT,
		requirement_description TEXT,
		solution_summary        TEXT,
		key_objects             TEXT,
		code_snippet            TEXT,
		notes                   TEXT,
		created_at              DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at              DATETIME DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS svn_path (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		component_name TEXT NOT NULL,
		key            TEXT NOT NULL,
		value          TEXT NOT NULL,
		UNIQUE (component_name, key)
	)`,
}

// StandardsSchema creates the tables of the Oracle standards database.
var StandardsSchema = []string{
	`CREATE TABLE IF NOT EXISTS oracle_standards (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		procedure_name TEXT NOT NULL UNIQUE,
		description    TEXT,
		parameters     TEXT,
		usage_example  TEXT,
		created_on     TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS sample_templates (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		object_type   TEXT,
		template_name TEXT UNIQUE,
		template_sql  TEXT,
		description   TEXT,
		created_on    TEXT
	)`,
}

// DefaultAnalysisTemplate seeds jira_prompts_template. "?" is replaced by
// the Jira id.
const DefaultAnalysisTemplate = `Analyze Jira issue ? end to end.
1. Fetch the issue with get_jira_issue and read every comment.
2. Search the knowledge base for similar requirements.
3. Check the Oracle standards with analyze_oracle_standards.
4. Resolve the SVN path for each object to change.
5. Produce the analysis, the code and the test cases, then store them with insert_jira_prompt for ?.`

// Init creates the dashboard schema and seeds the default analysis template.
func Init(ctx context.Context, exec Executor) error {
	if err := applySchema(ctx, exec, DashboardSchema); err != nil {
		return err
	}
	_, err := exec.ExecuteWithRetry(ctx, dbexec.Statement{
		SQL:    "INSERT OR IGNORE INTO jira_prompts_template (p_key, p_value) VALUES (?, ?)",
		Args:   []any{TemplateAnalysis, DefaultAnalysisTemplate},
		Commit: true,
	})
	return err
}

// InitStandards creates the standards schema and seeds procedures and templates.
func InitStandards(ctx context.Context, exec Executor) error {
	if err := applySchema(ctx, exec, StandardsSchema); err != nil {
		return err
	}
	now := time.Now().Format(time.RFC3339)
	for _, p := range seedProcedures {
		if _, err := exec.ExecuteWithRetry(ctx, dbexec.Statement{
			SQL: `INSERT OR IGNORE INTO oracle_standards
				(procedure_name, description, parameters, usage_example, created_on)
				VALUES (?, ?, ?, ?, ?)`,
			Args:   []any{p.Name, p.Description, p.Parameters, p.UsageExample, now},
			Commit: true,
		}); err != nil {
			return fmt.Errorf("seeding procedure %s: %w", p.Name, err)
		}
	}
	for _, t := range seedTemplates {
		if _, err := exec.ExecuteWithRetry(ctx, dbexec.Statement{
			SQL: `INSERT OR IGNORE INTO sample_templates
				(object_type, template_name, template_sql, description, created_on)
				VALUES (?, ?, ?, ?, ?)`,
			Args:   []any{t.ObjectType, t.Name, t.SQL, t.Description, now},
			Commit: true,
		}); err != nil {
			return fmt.Errorf("seeding template %s: %w", t.Name, err)
		}
	}
	return nil
}

func applySchema(ctx context.Context, exec Executor, ddl []string) error {
	for _, stmt := range ddl {
		if _, err := exec.ExecuteWithRetry(ctx, dbexec.Statement{SQL: stmt, Commit: true}); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}
	return nil
}

var seedProcedures = []Procedure{
	{
		Name:        "COFS",
		Description: "Creates or forgets synonyms. If synonym exists, does nothing.",
		Parameters: "P_OWNER: Owner of synonym (PUBLIC, WEBLOGIC, etc.)\n" +
			"P_SYNONYM_NAME: Synonym name\n" +
			"P_TABLE_OWNER: Owner of the base table\n" +
			"P_TABLE_NAME: Table name for which synonym is created\n" +
			"P_DEBUG: Used for debug; prints without executing",
		UsageExample: "STD_PKG_ANTUTIL.COFS('PUBLIC', '{COMPONENT}_TR_CUSTOMER_DUMMY', 'WEBLOGIC_DBA', '{COMPONENT}_TR_CUSTOMER_DUMMY');",
	},
	{
		Name:        "DOFO",
		Description: "Drops or forgets objects. If object exists, it drops it; otherwise does nothing.",
		Parameters: "P_OWNER: Object owner (WEBLOGIC_DBA, etc.)\n" +
			"P_OBJECT_TYPE: FUNCTION, INDEX, PACKAGE, PROCEDURE, SEQUENCE, TRIGGER, VIEW, SYNONYM\n" +
			"P_OBJECT_NAME: Object name\n" +
			"P_DEBUG: Used for debug; prints without executing",
		UsageExample: "BEGIN STD_PKG_ANTUTIL.DOFO('WEBLOGIC_DBA', 'SEQUENCE', '{COMPONENT}_SQ_DUM_CD_ID'); END;/",
	},
	{
		Name:        "DOFT",
		Description: "Drops or forgets tables. If table exists, it drops it; otherwise does nothing.",
		Parameters: "P_OWNER: Table owner (WEBLOGIC_DBA, etc.)\n" +
			"P_TABLE_NAME: Table name\n" +
			"P_CASCADE: Y/N; cascades constraints\n" +
			"P_DEBUG: Used for debug; prints without executing",
		UsageExample: "BEGIN STD_PKG_ANTUTIL.DOFT('WEBLOGIC_DBA', '{COMPONENT}_TR_CUSTOMER_DUMMY', 'Y'); END;/",
	},
	{
		Name:        "DO_GRANT",
		Description: "Gives grants on objects to specified users or roles.",
		Parameters: "P_OWNER: Owner of object\n" +
			"P_OBJECT_NAME: Object name\n" +
			"P_GRANTEE: User/role to grant access\n" +
			"P_PRIVILEGE: SELECT,INSERT,UPDATE,DELETE,EXECUTE, etc.\n" +
			"P_GRANT_OPTION: Y/N; allows further grant\n" +
			"P_ENVIRONMENT: TEST, PREPROD, PROD (optional)\n" +
			"P_DEBUG: Debug only",
		UsageExample: "BEGIN\n    STD_PKG_ANTUTIL.DO_GRANT('WEBLOGIC_DBA', '{COMPONENT}_TR_ACCOUNT_DUMMY', 'UNIV_ORA', 'SELECT,INSERT,UPDATE,DELETE');\nEND;/",
	},
	{
		Name:        "DO_REVOKE",
		Description: "Revokes given grants from specified users or roles.",
		Parameters: "P_OWNER: Owner of object\n" +
			"P_OBJECT_NAME: Object name\n" +
			"P_GRANTEE: User/role from which grant revoked\n" +
			"P_PRIVILEGE: Privilege revoked\n" +
			"P_ENVIRONMENT: TEST, PREPROD, PROD\n" +
			"P_DEBUG: Debug only",
		UsageExample: "BEGIN\n    STD_PKG_ANTUTIL.DO_REVOKE('WEBLOGIC_DBA', '{COMPONENT}_TR_ACCOUNT_DUMMY', 'UNIV_ORA', 'SELECT,INSERT,UPDATE,DELETE');\nEND;/",
	},
}

var seedTemplates = []ObjectTemplate{
	{
		ObjectType: "TABLE",
		Name:       "Base Table Template",
		SQL: "CREATE TABLE {COMPONENT}_TR_{ENTITY}_DUMMY (\n" +
			"    {ENTITY_SHORT}_ID NUMBER,\n" +
			"    {ENTITY_SHORT}_NAME VARCHAR2(100),\n" +
			"    CREATED_DATE DATE DEFAULT SYSDATE,\n" +
			"    CONSTRAINT {COMPONENT}_DUM_{ENTITY_SHORT}_ID_PK PRIMARY KEY ({ENTITY_SHORT}_ID)\n" +
			")\nTABLESPACE @@TB_DATI_BIG@@\nPCTFREE 10 PCTUSED 80;",
		Description: "Standard structure for new tables following naming conventions and storage rules.",
	},
	{
		ObjectType:  "SEQUENCE",
		Name:        "Base Sequence Template",
		SQL:         "CREATE SEQUENCE WEBLOGIC_DBA.{COMPONENT}_SQ_{ENTITY_SHORT}_ID\nSTART WITH 1\nINCREMENT BY 1\nNOCACHE;",
		Description: "Standard sequence creation for table primary key columns.",
	},
	{
		ObjectType: "INDEX",
		Name:       "Base Index Template",
		SQL: "CREATE INDEX {COMPONENT}_IDX_{ENTITY_SHORT}_{COLUMN_SHORT}\n" +
			"ON {COMPONENT}_TR_{ENTITY}_DUMMY ({COLUMN_SHORT})\n" +
			"TABLESPACE @@TB_IDX_BIG@@\nPCTFREE 10;",
		Description: "Standard index creation on key columns following naming conventions.",
	},
}
