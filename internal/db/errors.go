package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors surfaced by the store. Callers match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrConflict          = errors.New("concurrency conflict")
	ErrCorrupt           = errors.New("storage corruption")
)

// corrupt marks a fatal storage failure, keeping the path visible for the
// operator.
func corrupt(path string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
}

// isBusy reports whether err is SQLite lock contention surfaced by the
// driver (SQLITE_BUSY or SQLITE_LOCKED).
func isBusy(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "SQLITE_BUSY") ||
		strings.Contains(s, "SQLITE_LOCKED") ||
		strings.Contains(s, "database is locked")
}

// isConstraint reports whether err is a UNIQUE or PRIMARY KEY violation.
func isConstraint(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

// withWriteRetry runs fn, retrying once when the database is busy. A
// second busy failure surfaces as ErrConflict; other errors pass through
// unchanged.
func (db *DB) withWriteRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !isBusy(err) {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(50 * time.Millisecond):
	}

	if err := fn(); err != nil {
		if isBusy(err) {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
		return err
	}
	return nil
}
