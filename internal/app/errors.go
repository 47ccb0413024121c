package app

import (
	"errors"
	"fmt"

	"seg-viewer/internal/caseio"
)

// Describe turns a session error into a message for the reviewer.
func Describe(err error, caseCount int) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrOutOfRangeCaseIndex):
		return "no more cases in that direction"
	case errors.Is(err, ErrInvalidCaseNumber):
		return fmt.Sprintf("enter a case number between 1 and %d", caseCount)
	case errors.Is(err, caseio.ErrFileNotFound):
		return fmt.Sprintf("case files missing: %v", err)
	case errors.Is(err, caseio.ErrShapeMismatch):
		return fmt.Sprintf("case data inconsistent: %v", err)
	case errors.Is(err, ErrClosed):
		return "viewer closed"
	default:
		return err.Error()
	}
}

// Modal reports whether err deserves an error dialog rather than only a
// status line. Running into the end of the case list is routine.
func Modal(err error) bool {
	return err != nil && !errors.Is(err, ErrOutOfRangeCaseIndex) && !errors.Is(err, ErrClosed)
}
