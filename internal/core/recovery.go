package core

import (
	"context"
)

// RecoveryResult reports the outcome of a single-shot recovery attempt.
type RecoveryResult struct {
	Recovered bool
	Reason    string
	Outcome   *PhaseOutcome
}

// AttemptRecovery re-executes a failed phase exactly once. Fatal errors are
// never retried. A second failure is reported through the result and the
// phase is left without a record; the coordinator does not raise further.
func (c *Coordinator) AttemptRecovery(ctx context.Context, cause error, phase Phase) RecoveryResult {
	c.logger.Warn("attempting recovery after phase failure",
		"cycle", c.cycle.ID,
		"phase", phase.String(),
		"error", cause,
	)

	if IsFatal(cause) {
		result := RecoveryResult{Reason: cause.Error()}
		c.lastRecovery = &result
		return result
	}

	outcome, err := c.executor.ExecutePhase(ctx, phase, &c.cycle.Task)
	if err != nil {
		result := RecoveryResult{
			Reason: (&PhaseExecutionError{
				Phase:   phase,
				CycleID: c.cycle.ID,
				Attempt: 2,
				Cause:   err,
			}).Error(),
		}
		c.lastRecovery = &result
		return result
	}

	c.logger.Info("recovery succeeded", "cycle", c.cycle.ID, "phase", phase.String())
	result := RecoveryResult{Recovered: true, Outcome: outcome}
	c.lastRecovery = &result
	return result
}
