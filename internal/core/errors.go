package core

import (
	"errors"
	"fmt"
)

// =============================================================================
// Core Error Types
// =============================================================================

// RecursionLimitError is raised when creating a micro cycle would exceed the
// configured recursion depth, or when a delimiting heuristic stops recursion.
// It is fatal: the caller must not retry, and the parent's child list is left
// untouched.
type RecursionLimitError struct {
	Depth    int
	MaxDepth int
	Reason   string
}

func (e *RecursionLimitError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("recursion terminated at depth %d: %s", e.Depth, e.Reason)
	}
	return fmt.Sprintf("maximum recursion depth (%d) exceeded", e.MaxDepth)
}

// PhaseExecutionError wraps a failure during a phase's primary execution with
// enough context to diagnose without internal state.
type PhaseExecutionError struct {
	Phase   Phase
	CycleID string
	Attempt int
	Cause   error
}

func (e *PhaseExecutionError) Error() string {
	return fmt.Sprintf("phase %s failed for cycle %s (attempt %d): %v", e.Phase, e.CycleID, e.Attempt, e.Cause)
}

func (e *PhaseExecutionError) Unwrap() error {
	return e.Cause
}

// TransitionError reports a rejected phase transition.
type TransitionError struct {
	From Phase
	To   Phase
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid phase transition from %s to %s", e.From, e.To)
}

// =============================================================================
// Predefined Error Values
// =============================================================================

var (
	ErrNoActiveCycle = errors.New("no cycle has been started")
	ErrCycleActive   = errors.New("cycle already in progress")
	ErrCycleComplete = errors.New("cycle already terminated")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrNoAgents      = errors.New("no agents in team")
	ErrStepFailed    = errors.New("reasoning step failed")
)

// =============================================================================
// Error Classification
// =============================================================================

// IsFatal reports whether an error must never be retried. Recursion limit
// violations and configuration errors are terminal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var recErr *RecursionLimitError
	if errors.As(err, &recErr) {
		return true
	}
	return errors.Is(err, ErrInvalidConfig)
}

// IsTransient reports whether an error from the reasoning-step collaborator
// may be retried with backoff. Anything that is not fatal counts as transient.
func IsTransient(err error) bool {
	return err != nil && !IsFatal(err)
}
