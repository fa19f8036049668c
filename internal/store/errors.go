package store

import (
	"errors"
	"fmt"

	"clipforge/internal/services"
)

var (
	// ErrNotFound marks a missing row. It also matches services.ErrNotFound.
	ErrNotFound = fmt.Errorf("record %w", services.ErrNotFound)
	// ErrInvariantViolation rejects a write that would break an entity invariant.
	ErrInvariantViolation = errors.New("entity invariant violation")
	// ErrInvalidTransition rejects a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)
