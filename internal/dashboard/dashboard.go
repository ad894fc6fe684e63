// Package dashboard is the data access layer over the Jira dashboard
// database: cards, prompts, the knowledge base and SVN path mappings.
//
// Every query goes through a dbexec executor. Helpers add no error
// handling of their own: they propagate the executor's error, or fold it
// into a bool where callers only need success or failure.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/HendryAvila/devmind/internal/dbexec"
	"github.com/HendryAvila/devmind/internal/logging"
)

// TemplateAnalysis is the template key used to build analysis prompts.
const TemplateAnalysis = "analysis_prompt"

var (
	ErrTemplateNotFound = errors.New("prompt template not found")
	ErrNotFound         = errors.New("record not found")
	ErrDuplicate        = errors.New("record already exists")
	ErrNothingToUpdate  = errors.New("no fields provided to update")
	ErrInvalidKind      = errors.New("invalid prompt kind")
)

// Executor is the subset of *dbexec.Executor the store needs.
type Executor interface {
	ExecuteWithRetry(ctx context.Context, st dbexec.Statement) (*dbexec.Result, error)
}

// Store reads and writes the dashboard database.
type Store struct {
	exec Executor
	log  *slog.Logger
	now  func() time.Time
}

// New returns a Store over exec.
func New(exec Executor, log *slog.Logger) *Store {
	return &Store{
		exec: exec,
		log:  logging.OrDefault(log).With("component", "dashboard"),
		now:  time.Now,
	}
}

func (s *Store) queryAll(ctx context.Context, sql string, args ...any) ([]dbexec.Row, error) {
	res, err := s.exec.ExecuteWithRetry(ctx, dbexec.Statement{SQL: sql, Args: args, Fetch: dbexec.FetchAll})
	if err != nil {
		return nil, err
	}
	return res.Rows, nil
}

func (s *Store) queryOne(ctx context.Context, sql string, args ...any) (dbexec.Row, error) {
	res, err := s.exec.ExecuteWithRetry(ctx, dbexec.Statement{SQL: sql, Args: args, Fetch: dbexec.FetchOne})
	if err != nil {
		return nil, err
	}
	return res.One(), nil
}

func (s *Store) write(ctx context.Context, sql string, args ...any) (*dbexec.Result, error) {
	return s.exec.ExecuteWithRetry(ctx, dbexec.Statement{SQL: sql, Args: args, Commit: true})
}

// ─── Row decoding ────────────────────────────────────────────────────────────

// text renders a column as a string. BLOBs are decoded as UTF-8 with
// invalid sequences replaced.
func text(r dbexec.Row, col string) string {
	switch v := r[col].(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return strings.ToValidUTF8(string(v), "\uFFFD")
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// optText is text, but nil for SQL NULL.
func optText(r dbexec.Row, col string) *string {
	if r[col] == nil {
		return nil
	}
	s := text(r, col)
	return &s
}

func integer(r dbexec.Row, col string) int64 {
	switch v := r[col].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	}
	return 0
}

func optInteger(r dbexec.Row, col string) *int64 {
	if r[col] == nil {
		return nil
	}
	n := integer(r, col)
	return &n
}

func optFloat(r dbexec.Row, col string) *float64 {
	var f float64
	switch v := r[col].(type) {
	case float64:
		f = v
	case int64:
		f = float64(v)
	case string:
		var err error
		if f, err = strconv.ParseFloat(v, 64); err != nil {
			return nil
		}
	default:
		return nil
	}
	return &f
}

func flag(r dbexec.Row, col string) bool {
	return integer(r, col) != 0
}
