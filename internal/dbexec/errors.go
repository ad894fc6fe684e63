package dbexec

import (
	"context"
	"errors"
	"fmt"
	"strings"

	sqlite3 "modernc.org/sqlite/lib"
)

// Sentinel errors. Match with errors.Is; the concrete value is always *Error.
var (
	ErrFileNotAccessible = errors.New("database file not accessible")
	ErrCorrupted         = errors.New("database is corrupted")
	ErrSchemaMissing     = errors.New("required database tables not found")
	ErrRetriesExhausted  = errors.New("database operation failed after retries")
)

// Kind classifies a failed attempt.
type Kind int

const (
	// KindTransient is any unclassified failure. Retried.
	KindTransient Kind = iota
	// KindLocked is SQLITE_BUSY or SQLITE_LOCKED. Retried.
	KindLocked
	// KindCorrupted is SQLITE_CORRUPT or SQLITE_NOTADB. Terminal.
	KindCorrupted
	// KindSchemaMissing is a reference to a table that does not exist. Terminal.
	KindSchemaMissing
	// KindFileNotAccessible means the database file is missing. Terminal.
	KindFileNotAccessible
	// KindRetriesExhausted wraps the last retryable failure.
	KindRetriesExhausted
)

func (k Kind) String() string {
	switch k {
	case KindLocked:
		return "locked"
	case KindCorrupted:
		return "corrupted"
	case KindSchemaMissing:
		return "schema_missing"
	case KindFileNotAccessible:
		return "file_not_accessible"
	case KindRetriesExhausted:
		return "retries_exhausted"
	default:
		return "transient"
	}
}

// Retryable reports whether another attempt may succeed.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindLocked
}

// Error is the failure returned by ExecuteWithRetry.
type Error struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindFileNotAccessible:
		return fmt.Sprintf("%v: %v", ErrFileNotAccessible, e.Err)
	case KindCorrupted:
		return fmt.Sprintf("%v: %v", ErrCorrupted, e.Err)
	case KindSchemaMissing:
		return fmt.Sprintf("%v: %v", ErrSchemaMissing, e.Err)
	case KindRetriesExhausted:
		return fmt.Sprintf("database operation failed after %d attempts: %v", e.Attempts, e.Err)
	default:
		return fmt.Sprintf("database %s error: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps the error kind onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrFileNotAccessible:
		return e.Kind == KindFileNotAccessible
	case ErrCorrupted:
		return e.Kind == KindCorrupted
	case ErrSchemaMissing:
		return e.Kind == KindSchemaMissing
	case ErrRetriesExhausted:
		return e.Kind == KindRetriesExhausted
	}
	return false
}

// coder is implemented by *sqlite.Error.
type coder interface {
	Code() int
}

// Classify inspects a driver error and decides how the executor treats it.
// Extended result codes are reduced to their primary code.
func Classify(err error) Kind {
	if err == nil {
		return KindTransient
	}
	var c coder
	if errors.As(err, &c) {
		switch c.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return KindLocked
		case sqlite3.SQLITE_CORRUPT, sqlite3.SQLITE_NOTADB:
			return KindCorrupted
		case sqlite3.SQLITE_ERROR:
			// SQLite has no dedicated code for a missing table.
			if strings.Contains(err.Error(), "no such table") {
				return KindSchemaMissing
			}
		}
	}
	return KindTransient
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
