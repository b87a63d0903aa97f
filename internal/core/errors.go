package core

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveContract = errors.New("no active contract, upload a contract first")
	ErrNoIdentity       = errors.New("no client identity, complete onboarding first")
	ErrEmptyDraft       = errors.New("draft text is empty")
	// ErrClauseChanged is returned when a suggestion arrives after the user moved to
	// another clause or contract. The suggestion is discarded.
	ErrClauseChanged = errors.New("selected clause changed before the suggestion arrived")
)

// SelectionError reports an operation on a clause that is not the selected one.
type SelectionError struct {
	ClauseIndex int
	Selected    int // -1 when nothing is selected
}

func (e *SelectionError) Error() string {
	if e.Selected < 0 {
		return "Please select a clause first."
	}
	return fmt.Sprintf("clause %d is not selected (selected clause is %d)", e.ClauseIndex, e.Selected)
}

// UnknownClauseError reports a clause index that is not in the current clause list.
type UnknownClauseError struct {
	ClauseIndex int
}

func (e *UnknownClauseError) Error() string {
	return fmt.Sprintf("clause %d not found", e.ClauseIndex)
}

// ValidationError is a rejected form input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ActionError is a failed action whose message is shown to the user while the
// underlying cause is kept for logs.
type ActionError struct {
	Message string
	Err     error
}

func (e *ActionError) Error() string { return e.Message }

func (e *ActionError) Unwrap() error { return e.Err }
