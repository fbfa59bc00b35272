package core

import (
	"context"
)

// Human override values carried on a task. Terminate stops recursion before
// any heuristic runs; Continue forces recursion past the heuristics (the
// depth ceiling still applies).
const (
	OverrideTerminate = "terminate"
	OverrideContinue  = "continue"
)

// CreateMicroCycle spawns a nested cycle for a sub-task under the current
// phase. The child shares the registry, memory store and collaborators, runs
// one depth level deeper, and starts immediately in Expand. The parent keeps
// a stub entry under the spawning phase until the child completes and merges
// its result back.
//
// The depth ceiling and the delimiting heuristics are checked first; on a
// RecursionLimitError the parent's child list is left unchanged.
func (c *Coordinator) CreateMicroCycle(ctx context.Context, task Task) (*Coordinator, error) {
	if c.cycle == nil {
		return nil, ErrNoActiveCycle
	}
	if c.depth >= c.config.MaxRecursionDepth {
		return nil, &RecursionLimitError{Depth: c.depth, MaxDepth: c.config.MaxRecursionDepth}
	}
	if terminate, reason := c.ShouldTerminateRecursion(task); terminate {
		return nil, &RecursionLimitError{Depth: c.depth, MaxDepth: c.config.MaxRecursionDepth, Reason: reason}
	}

	parentPhase := c.cycle.CurrentPhase
	child := &Coordinator{
		registry:       c.registry,
		memory:         c.memory,
		roles:          c.roles,
		executor:       c.executor,
		logger:         c.logger,
		config:         c.config,
		traces:         make(map[string]TraceEntry),
		metrics:        make(map[string]PhaseMetrics),
		parentCycleID:  c.cycle.ID,
		parentPhase:    parentPhase,
		hasParentPhase: true,
		depth:          c.depth + 1,
	}

	childCycle, err := child.StartCycle(ctx, task)
	if err != nil {
		return nil, err
	}

	c.cycle.Children = append(c.cycle.Children, childCycle.ID)
	result := c.cycle.Result(parentPhase)
	if result.MicroCycleResults == nil {
		result.MicroCycleResults = make(map[string]MicroCycleResult)
	}
	result.MicroCycleResults[childCycle.ID] = MicroCycleResult{
		Task:   childCycle.Task,
		Status: MicroCycleCreated,
	}

	if _, err := c.memory.StoreWithPhase(ctx, childCycle.Task, MemoryTypeMicroCycle, parentPhase.String(), map[string]any{
		"cycle_id":        childCycle.ID,
		"parent_cycle_id": c.cycle.ID,
		"recursion_depth": child.depth,
	}); err != nil {
		c.logger.Warn("failed to persist micro cycle record", "cycle", childCycle.ID, "error", err)
	}

	c.logger.Info("created micro cycle",
		"cycle", childCycle.ID,
		"parent", c.cycle.ID,
		"phase", parentPhase.String(),
		"recursion_depth", child.depth,
	)
	return child, nil
}

// ShouldTerminateRecursion applies the delimiting heuristics to a candidate
// sub-task and reports whether recursion should stop, with the deciding
// heuristic's name. A human override on the task wins over every heuristic.
func (c *Coordinator) ShouldTerminateRecursion(task Task) (bool, string) {
	switch task.HumanOverride {
	case OverrideTerminate:
		return true, "human override"
	case OverrideContinue:
		return false, ""
	}

	if granularity, ok := task.Score("granularity_score"); ok && granularity < c.config.GranularityThreshold {
		return true, "granularity threshold"
	}

	if cost, ok := task.Score("cost_score"); ok {
		if benefit, ok := task.Score("benefit_score"); ok && benefit > 0 {
			if cost/benefit > c.config.CostBenefitRatio {
				return true, "cost-benefit analysis"
			}
		}
	}

	if quality, ok := task.Score("quality_score"); ok && quality > c.config.QualityThreshold {
		return true, "quality threshold"
	}

	if usage, ok := task.Score("resource_usage"); ok && usage > c.config.ResourceLimit {
		return true, "resource limit"
	}

	return false, ""
}
