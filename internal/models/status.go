package models

import "fmt"

// Status is the lifecycle state of a work order.
type Status string

const (
	StatusSubmitted  Status = "submitted"
	StatusInProgress Status = "inprogress"
	StatusRejected   Status = "rejected"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusSubmitted, StatusInProgress, StatusRejected, StatusCompleted}

var transitions = map[Status][]Status{
	StatusSubmitted:  {StatusInProgress, StatusRejected},
	StatusInProgress: {StatusCompleted, StatusRejected},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInProgress, StatusRejected, StatusCompleted:
		return true
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
// Staying in the same status is always allowed.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates moving from one status to another.
func Transition(from, to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: status %q is not one of submitted, inprogress, rejected, completed", ErrValidation, to)
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// SetStatus moves w to status to, leaving w untouched on failure.
func (w *WorkOrder) SetStatus(to Status) error {
	if err := Transition(w.Status, to); err != nil {
		return err
	}
	w.Status = to
	return nil
}
