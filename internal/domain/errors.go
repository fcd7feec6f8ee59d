package domain

import (
	"errors"
	"fmt"
)

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Precondition errors
	ErrInvalidAmount = errors.New("cost amount must be a non-negative integer")

	// Invariant errors (fatal: the drain algorithm and the affordability check disagree)
	ErrInvariant      = errors.New("resource invariant violated")
	ErrDrainShortfall = errors.New("drained fewer bits than required")
	ErrDrainOverdraw  = errors.New("drained more bits than required")

	// Save errors
	ErrSaveCorrupted = errors.New("save data could not be decoded")
	ErrNoSave        = errors.New("no save data stored")

	// Command errors (soft, reported to callers but never fatal)
	ErrUnknownDisk     = errors.New("disk not found")
	ErrUnknownChip     = errors.New("chip not found")
	ErrUnknownPurchase = errors.New("purchase not found")
	ErrNoCloud         = errors.New("cloud is not unlocked")

	// Loop errors
	ErrLoopStopped = errors.New("game loop is not running")
)

// InvariantError reports a broken accounting invariant with the amounts involved.
type InvariantError struct {
	Op        string
	Required  float64
	Drained   float64
	Available float64
	Err       error // ErrDrainShortfall or ErrDrainOverdraw
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("%s: %v (required=%g drained=%g available=%g)",
		e.Op, e.Err, e.Required, e.Drained, e.Available)
}

// Unwrap exposes both the specific cause and ErrInvariant to errors.Is.
func (e *InvariantError) Unwrap() []error {
	return []error{e.Err, ErrInvariant}
}
