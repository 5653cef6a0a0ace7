package lesson

import (
	stderrors "errors"
	"fmt"

	apperrors "github.com/Taichi-iskw/lesson-media/internal/errors"
)

// ValidationBlocked is the cause of a VALIDATION_BLOCKED error; it carries the guard decision
type ValidationBlocked struct {
	Decision Decision
}

func (e *ValidationBlocked) Error() string {
	return fmt.Sprintf("save blocked: %s", e.Decision.Condition)
}

func newValidationBlocked(decision Decision, message string) error {
	return apperrors.Wrap(&ValidationBlocked{Decision: decision}, apperrors.CodeValidationBlocked, message)
}

// BlockedDecision extracts the guard decision from a VALIDATION_BLOCKED error
func BlockedDecision(err error) (Decision, bool) {
	var blocked *ValidationBlocked
	if stderrors.As(err, &blocked) {
		return blocked.Decision, true
	}
	return Decision{}, false
}
