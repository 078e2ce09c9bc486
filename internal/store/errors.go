package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Sentinel errors for the repository layer. Callers branch on these with errors.Is.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict indicates a uniqueness constraint rejected the write.
	ErrConflict = errors.New("store: uniqueness conflict")
	// ErrResultConflict indicates a result insert collided with an existing prize slot,
	// user entry or photo entry for the same competition.
	ErrResultConflict = errors.New("store: result slot already claimed")
	// ErrUnavailable indicates the database could not be reached or the request was cancelled.
	ErrUnavailable = errors.New("store: unavailable")
	// ErrSelfVote indicates a user attempted to rate their own submission.
	ErrSelfVote = errors.New("store: users cannot rate their own submission")

	errMissingDatabase = errors.New("store: database handle is required")
)

func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrResultConflict), errors.Is(err, ErrUnavailable), errors.Is(err, ErrSelfVote):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	case isUnavailable(err):
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	default:
		return err
	}
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isUnavailable(err error) bool {
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return strings.Contains(err.Error(), "database is closed")
}
