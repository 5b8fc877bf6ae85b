package models

import "errors"

// Failure kinds returned by work-order operations. Callers classify with
// errors.Is; the wrapped message carries the detail.
var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("work order not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrImmutableField    = errors.New("immutable field")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrNoEffectiveChange = errors.New("no effective change")
	ErrConflict          = errors.New("concurrent modification")
)
