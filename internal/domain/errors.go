package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict")
	ErrLockHeld        = errors.New("trip lock held by another writer")
	ErrNotNetZero      = errors.New("capacity deltas are not net-zero")
	ErrNotInProgress   = errors.New("trip is not in progress")
	ErrNoCandidate     = errors.New("no admissible candidate")
	ErrInvalid         = errors.New("invalid input")
	ErrTripNotFinished = errors.New("trip has not finished")
)

// invalidf formats a message wrapping ErrInvalid.
func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...)
}

// A candidate failed one or more Requirements or Prohibitions.
type ConstraintViolation struct {
	Failures []FailedConstraint
}

func (e *ConstraintViolation) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s %s: %s", f.Category, f.Field, f.Detail))
	}
	return "constraint violation: " + strings.Join(parts, "; ")
}

// Running load left [0, capacity] at a specific stop.
type CapacityViolation struct {
	StopIndex int
	StopID    string
	Kind      CapacityKind
	Load      int
	Limit     int
	Underflow bool
}

func (e *CapacityViolation) Error() string {
	if e.Underflow {
		return fmt.Sprintf(
			"capacity violation: stop #%d (%s) %s underflow: load=%d",
			e.StopIndex, e.StopID, e.Kind, e.Load,
		)
	}
	return fmt.Sprintf(
		"capacity violation: stop #%d (%s) %s overflow: load=%d limit=%d",
		e.StopIndex, e.StopID, e.Kind, e.Load, e.Limit,
	)
}

// A state machine guard refused a transition.
type InvalidTransition struct {
	Entity string
	From   string
	To     string
	Reason string
	Cause  error
}

func (e *InvalidTransition) Unwrap() error { return e.Cause }

func (e *InvalidTransition) Error() string {
	msg := fmt.Sprintf("invalid %s transition %s -> %s", e.Entity, e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// A stop already has an effective reconciliation. Retry is set when the
// submission matches the existing entry (same outcome and capacity delta),
// so a client resubmitting after a lost response can treat it as accepted.
type DuplicateReconciliation struct {
	StopID     string
	Existing   StopOutcome
	ExistingID string
	Retry      bool
}

func (e *DuplicateReconciliation) Error() string {
	return fmt.Sprintf("duplicate reconciliation: stop %s already reconciled as %s", e.StopID, e.Existing)
}
