package engine

import (
	"errors"
	"fmt"

	"planboard/internal/domain"
)

// ErrInvalidInput marks caller mistakes such as an unknown status value.
var ErrInvalidInput = errors.New("invalid input")

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// InvalidTransitionError is returned when a review action is not allowed
// from the entity's current review status. Nothing is changed or logged.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   domain.ReviewStatus
	Action ReviewAction
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s %s %s: review status is %s", e.Action, e.Entity, e.ID, e.From)
}
