package entity

import (
	"errors"
	"fmt"
)

// Error kinds shared by both record store implementations. Transport maps
// them onto HTTP statuses; everything else stays a plain 500.
var (
	ErrNotFound       = errors.New("job not found")
	ErrForbidden      = errors.New("job belongs to another user")
	ErrAlreadyClaimed = errors.New("job already claimed")
	ErrTerminal       = errors.New("job already in a terminal state")
	ErrNoResult       = errors.New("job has no result to download")
	ErrInvalid        = errors.New("invalid request")
)

// QuotaError is returned when an owner is at their concurrent-job limit.
// Limit -1 never produces one.
type QuotaError struct {
	Role  string
	Limit int
	Count int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("quota exceeded for role %q: %d of %d jobs active", e.Role, e.Count, e.Limit)
}
