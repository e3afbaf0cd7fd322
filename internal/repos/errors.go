package repos

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict means a guarded write matched no row because the state changed underneath.
	ErrConflict = errors.New("concurrent modification")
)

func isNoRows(err error) bool { return errors.Is(err, sql.ErrNoRows) }

func notFound(err error) error {
	if isNoRows(err) {
		return ErrNotFound
	}
	return err
}

// IsRetryable reports whether err is a lock or serialization failure worth retrying
// with a fresh transaction.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		switch pe.Code {
		case "40001", "40P01", "55P03":
			return true
		}
	}
	return false
}
