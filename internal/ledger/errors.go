package ledger

import (
	"errors"
	"fmt"
)

// ValidationError reports malformed transaction input. It is the caller's
// fault and is never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PeriodClosedError reports an attempted mutation dated inside a closed
// period. The caller must reopen the period first.
type PeriodClosedError struct {
	Year  int
	Month int
}

func (e *PeriodClosedError) Error() string {
	return fmt.Sprintf("period %04d-%02d is closed: reopen the period first", e.Year, e.Month)
}

// NotFoundError reports a missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// AlreadyClosedError reports a close of an already-closed period. The frozen
// snapshot is written exactly once per close event; re-closing requires an
// explicit reopen first.
type AlreadyClosedError struct {
	Year  int
	Month int
}

func (e *AlreadyClosedError) Error() string {
	return fmt.Sprintf("period %04d-%02d is already closed", e.Year, e.Month)
}

// NotClosedError reports a reopen of a period that is not closed.
type NotClosedError struct {
	Year  int
	Month int
}

func (e *NotClosedError) Error() string {
	return fmt.Sprintf("period %04d-%02d is not closed", e.Year, e.Month)
}

// IsPeriodClosed reports whether err is a PeriodClosedError.
func IsPeriodClosed(err error) bool {
	var target *PeriodClosedError
	return errors.As(err, &target)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
