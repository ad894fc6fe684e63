// Package dbexec runs single SQL statements against a SQLite file with
// retry-with-backoff on lock contention.
//
// No connection is pooled between calls: every attempt opens the file,
// applies the pragmas, runs the statement inside a transaction and closes.
// Failures are classified by SQLite result code into terminal conditions
// (missing file, corruption, missing schema) and retryable ones.
package dbexec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/HendryAvila/devmind/internal/logging"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Types ───────────────────────────────────────────────────────────────────

// FetchMode selects how many result rows are materialized.
type FetchMode int

const (
	FetchNone FetchMode = iota
	FetchOne
	FetchAll
)

// Statement is one parameterized SQL statement.
type Statement struct {
	SQL    string
	Args   []any
	Fetch  FetchMode
	Commit bool
}

// Row is one result row keyed by column name. TEXT columns arrive as
// string, BLOB columns as []byte, integers as int64.
type Row map[string]any

// Result is the outcome of a successful ExecuteWithRetry.
type Result struct {
	Rows         []Row
	RowsAffected int64
	LastInsertID int64
	Attempts     int
}

// One returns the first row, or nil when there is none.
func (r *Result) One() Row {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// ─── Options ─────────────────────────────────────────────────────────────────

// Options tunes the executor. Zero fields take the defaults.
type Options struct {
	MaxRetries  int
	BaseDelay   time.Duration
	BusyTimeout time.Duration
	CacheSize   int
	Logger      *slog.Logger
}

// DefaultOptions returns three attempts, 100ms base delay, 30s busy timeout.
func DefaultOptions() Options {
	return Options{
		MaxRetries:  3,
		BaseDelay:   100 * time.Millisecond,
		BusyTimeout: 30 * time.Second,
		CacheSize:   10000,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetries <= 0 {
		o.MaxRetries = d.MaxRetries
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = d.BaseDelay
	}
	if o.BusyTimeout <= 0 {
		o.BusyTimeout = d.BusyTimeout
	}
	if o.CacheSize == 0 {
		o.CacheSize = d.CacheSize
	}
	return o
}

// ─── Executor ────────────────────────────────────────────────────────────────

// Executor is the sole access path to one SQLite file. It holds no
// connection and is safe for concurrent use.
type Executor struct {
	path  string
	opts  Options
	log   *slog.Logger
	hooks execHooks
}

// execHooks lets tests inject failures into individual attempts.
type execHooks struct {
	beforeStatement func(attempt int) error
}

// New returns an Executor for the database file at path. The file is not
// touched until the first call.
func New(path string, opts Options) *Executor {
	opts = opts.withDefaults()
	return &Executor{
		path: path,
		opts: opts,
		log:  logging.OrDefault(opts.Logger).With("component", "dbexec", "db", path),
	}
}

// Path returns the database file path.
func (e *Executor) Path() string { return e.path }

// ExecuteWithRetry runs st, retrying lock contention and unclassified
// failures up to MaxRetries attempts with exponential backoff
// (BaseDelay, 2×BaseDelay, ...). Missing file, corruption and missing
// schema fail immediately. Cancelling ctx aborts the backoff wait.
func (e *Executor) ExecuteWithRetry(ctx context.Context, st Statement) (*Result, error) {
	attempts := 0

	op := func() (*Result, error) {
		if _, err := os.Stat(e.path); err != nil {
			return nil, backoff.Permanent(&Error{Kind: KindFileNotAccessible, Attempts: attempts, Err: err})
		}

		attempts++
		res, err := e.attempt(ctx, attempts, st)
		if err == nil {
			res.Attempts = attempts
			return res, nil
		}
		if ctx.Err() != nil {
			return nil, backoff.Permanent(ctx.Err())
		}

		kind := Classify(err)
		if !kind.Retryable() {
			e.log.Error("database statement failed", "kind", kind.String(), "attempt", attempts, "err", err)
			return nil, backoff.Permanent(&Error{Kind: kind, Attempts: attempts, Err: err})
		}
		return nil, err
	}

	notify := func(err error, wait time.Duration) {
		e.log.Warn("database statement failed, retrying",
			"attempt", attempts, "max", e.opts.MaxRetries, "wait", wait, "err", err)
	}

	res, err := backoff.RetryNotifyWithData(op, e.schedule(ctx), notify)
	if err == nil {
		return res, nil
	}

	var de *Error
	if errors.As(err, &de) || isContextErr(err) {
		return nil, err
	}
	e.log.Error("database statement exhausted retries", "attempts", attempts, "err", err)
	return nil, &Error{Kind: KindRetriesExhausted, Attempts: attempts, Err: err}
}

// schedule is BaseDelay doubling per retry, no jitter, MaxRetries attempts total.
func (e *Executor) schedule(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.opts.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.MaxInterval = e.opts.BaseDelay << uint(e.opts.MaxRetries)
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.opts.MaxRetries-1)), ctx)
}

// attempt performs one open / pragma / execute / close cycle.
func (e *Executor) attempt(ctx context.Context, n int, st Statement) (res *Result, err error) {
	db, err := openDB("sqlite", e.path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	defer conn.Close()

	for _, p := range e.pragmas() {
		if _, err := conn.ExecContext(ctx, p); err != nil {
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil || !st.Commit {
			_ = tx.Rollback()
		}
	}()

	if e.hooks.beforeStatement != nil {
		if err := e.hooks.beforeStatement(n); err != nil {
			return nil, err
		}
	}

	res = &Result{}
	if st.Fetch == FetchNone {
		r, err := tx.ExecContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, err
		}
		res.RowsAffected, _ = r.RowsAffected()
		res.LastInsertID, _ = r.LastInsertId()
	} else {
		rows, err := tx.QueryContext(ctx, st.SQL, st.Args...)
		if err != nil {
			return nil, err
		}
		res.Rows, err = scanRows(rows, st.Fetch == FetchOne)
		if err != nil {
			return nil, err
		}
	}

	if st.Commit {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit: %w", err)
		}
	}
	return res, nil
}

func (e *Executor) pragmas() []string {
	return []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", e.opts.BusyTimeout.Milliseconds()),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA cache_size = %d", e.opts.CacheSize),
	}
}

func scanRows(rows *sql.Rows, firstOnly bool) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				vals[i] = append([]byte(nil), b...)
			}
			row[c] = vals[i]
		}
		out = append(out, row)
		if firstOnly {
			break
		}
	}
	return out, rows.Err()
}

// Ping runs SELECT 1 through the full retry path.
func (e *Executor) Ping(ctx context.Context) error {
	_, err := e.ExecuteWithRetry(ctx, Statement{SQL: "SELECT 1", Fetch: FetchOne})
	return err
}

// EnsureFile creates an empty database file at path if none exists.
// An empty file is a valid SQLite database.
func EnsureFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("dbexec: creating %s: %w", path, err)
	}
	return f.Close()
}
