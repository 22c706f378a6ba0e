package store

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/mediascribe/errors"
)

// isRetryable reports whether a database error may clear up on retry.
// SQLite reports lock contention as "database is locked" or "busy".
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"database is locked", "busy", "unable to open database", "disk i/o error"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// fromDatabase converts a database error to an AppError.
func fromDatabase(err error, resource, id string) *apperrors.AppError {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound(resource, id)
	}
	appErr := apperrors.DatabaseError(err)
	appErr.Retryable = isRetryable(err)
	return appErr
}
