package team

import (
	"context"
	"fmt"

	"github.com/vampirenirmal/edrr/internal/core"
	"github.com/vampirenirmal/edrr/internal/memory"
)

// LoopExecutor is the phase-execution collaborator built from the reasoning
// loop: each phase runs dialectical steps to completion, then has the
// proposed solution reviewed and put through consensus when reviewers are
// configured. A consensus failure aborts the phase and surfaces to the
// coordinator's recovery boundary.
type LoopExecutor struct {
	driver    *Driver
	team      *Team
	critic    Agent
	store     memory.Store
	reviewers []Reviewer
}

func NewLoopExecutor(driver *Driver, agents *Team, critic Agent, store memory.Store, reviewers ...Reviewer) *LoopExecutor {
	return &LoopExecutor{
		driver:    driver,
		team:      agents,
		critic:    critic,
		store:     store,
		reviewers: reviewers,
	}
}

func (e *LoopExecutor) ExecutePhase(ctx context.Context, phase core.Phase, task *core.Task) (*core.PhaseOutcome, error) {
	if e.team.Size() == 0 {
		return nil, fmt.Errorf("%w: cannot execute %s", core.ErrNoAgents, phase)
	}
	req := StepRequest{
		Team:   e.team,
		Task:   task,
		Critic: e.critic,
		Memory: e.store,
	}
	results := e.driver.Run(ctx, req, nil, phase)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no reasoning results for phase %s", core.ErrStepFailed, phase)
	}

	if len(e.reviewers) > 0 {
		reviews := CollectReviews(ctx, task.Solution, e.reviewers)
		if _, err := e.team.BuildConsensus(*task, ReviewOpinions(reviews)); err != nil {
			return nil, err
		}
	}

	outcome := &core.PhaseOutcome{
		Solution: make(map[string]any, len(task.Solution)),
		Metrics:  map[string]float64{"iterations": float64(len(results))},
	}
	for k, v := range task.Solution {
		outcome.Solution[k] = v
	}

	last := results[len(results)-1]
	outcome.PhaseComplete = last.Status == StatusCompleted
	if score, ok := latestQuality(results); ok {
		outcome.QualityScore = score
		outcome.Scored = true
	}
	return outcome, nil
}

// latestQuality finds the most recent quality score any step reported.
func latestQuality(results []*StepResult) (float64, bool) {
	for i := len(results) - 1; i >= 0; i-- {
		switch v := results[i].Synthesis["quality_score"].(type) {
		case float64:
			return v, true
		case float32:
			return float64(v), true
		case int:
			return float64(v), true
		}
	}
	return 0, false
}
