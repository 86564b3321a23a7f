package core

import (
	"errors"
	"regexp"
)

// ErrNotFound is a sentinel error for "not found" cases
var ErrNotFound = errors.New("not found")

// ErrInvalidInput is a sentinel error for caller mistakes (missing ids,
// non-member supporters) where no state was mutated
var ErrInvalidInput = errors.New("invalid input")

// ErrConflict is a sentinel error for operations rejected because of the
// conversation's current state (e.g. accepting a conversation already
// assigned to someone else)
var ErrConflict = errors.New("conflict")

// IsNotFoundError checks if an error is a "not found" error
// This function handles both the ErrNotFound sentinel error and legacy string-based errors
func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) {
		return true
	}
	// Check for legacy string-based errors for backward compatibility
	return containsNotFound(err.Error())
}

// containsNotFound checks if an error message contains "not found"
func containsNotFound(errMsg string) bool {
	return len(errMsg) > 0 && (regexp.MustCompile(`(?i)not found`).MatchString(errMsg))
}
