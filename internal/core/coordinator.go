package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/edrr/internal/memory"
)

// Memory type tags used when persisting engine records.
const (
	MemoryTypeTask            = "TASK"
	MemoryTypeRoleAssignment  = "ROLE_ASSIGNMENT"
	MemoryTypePhaseTransition = "PHASE_TRANSITION"
	MemoryTypePhaseResults    = "PHASE_RESULTS"
	MemoryTypeMicroCycle      = "MICRO_CYCLE"
	MemoryTypeFinalReport     = "FINAL_REPORT"
)

// RoleAssigner reassigns team roles for a phase. The coordinator calls it on
// every phase transition; implementations recompute from scratch rather than
// rotating incrementally.
type RoleAssigner interface {
	AssignRolesForPhase(phase Phase, task Task) map[string]string
}

// PhaseOutcome is what a phase's primary execution produces.
type PhaseOutcome struct {
	QualityScore  float64
	Scored        bool
	PhaseComplete bool
	Solution      map[string]any
	Metrics       map[string]float64
}

// PhaseExecutor runs the primary step of one phase. The reasoning loop driver
// is the usual implementation; tests substitute stubs.
type PhaseExecutor interface {
	ExecutePhase(ctx context.Context, phase Phase, task *Task) (*PhaseOutcome, error)
}

// State describes where a coordinator is in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateMaxDepth
	StateFatal
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateMaxDepth:
		return "terminated-max-depth"
	case StateFatal:
		return "terminated-fatal-error"
	default:
		return "unknown"
	}
}

// Config consolidates the coordinator's tunables.
type Config struct {
	// QualityThreshold gates automatic phase advancement when no per-phase
	// override is present.
	QualityThreshold float64
	// PhaseThresholds overrides the quality gate for individual phases.
	PhaseThresholds map[Phase]float64
	// MaxRecursionDepth is the hard ceiling for nested micro cycles.
	MaxRecursionDepth int
	// Delimiting heuristics for recursion.
	GranularityThreshold float64
	CostBenefitRatio     float64
	ResourceLimit        float64
	// EnhancedTracing enables execution traces and history events.
	EnhancedTracing bool
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		QualityThreshold:     0.9,
		MaxRecursionDepth:    3,
		GranularityThreshold: 0.2,
		CostBenefitRatio:     0.5,
		ResourceLimit:        0.8,
		EnhancedTracing:      true,
	}
}

func (c Config) thresholdFor(phase Phase) float64 {
	if t, ok := c.PhaseThresholds[phase]; ok {
		return t
	}
	return c.QualityThreshold
}

// Coordinator owns cycle identity, the current phase, recursion depth, the
// child-cycle tree and per-phase result records. It drives the fixed
// Expand -> Differentiate -> Refine -> Retrospect order, advancing
// automatically only when a phase's quality score clears its gate.
type Coordinator struct {
	registry *Registry
	memory   memory.Store
	roles    RoleAssigner
	executor PhaseExecutor
	logger   *slog.Logger
	config   Config

	cycle        *Cycle
	state        State
	fatalReason  string
	lastRecovery *RecoveryResult

	traces  map[string]TraceEntry
	history []HistoryEvent
	metrics map[string]PhaseMetrics

	parentCycleID  string
	parentPhase    Phase
	hasParentPhase bool
	depth          int
}

// Option customizes a Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

func WithConfig(config Config) Option {
	return func(c *Coordinator) { c.config = config }
}

// WithRegistry shares an existing cycle arena, used when a tree of
// coordinators must resolve each other's cycles.
func WithRegistry(registry *Registry) Option {
	return func(c *Coordinator) { c.registry = registry }
}

// New constructs a root coordinator.
func New(store memory.Store, roles RoleAssigner, executor PhaseExecutor, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: NewRegistry(),
		memory:   store,
		roles:    roles,
		executor: executor,
		logger:   slog.Default(),
		config:   DefaultConfig(),
		traces:   make(map[string]TraceEntry),
		metrics:  make(map[string]PhaseMetrics),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State reports the coordinator's lifecycle state.
func (c *Coordinator) State() State { return c.state }

// FatalReason returns the diagnostic for a fatal termination, if any.
func (c *Coordinator) FatalReason() string { return c.fatalReason }

// Cycle returns the coordinator's cycle, nil before StartCycle.
func (c *Coordinator) Cycle() *Cycle { return c.cycle }

// Registry exposes the cycle arena shared across the coordinator tree.
func (c *Coordinator) Registry() *Registry { return c.registry }

// CurrentPhase returns the active phase. Valid only after StartCycle.
func (c *Coordinator) CurrentPhase() Phase {
	if c.cycle == nil {
		return PhaseExpand
	}
	return c.cycle.CurrentPhase
}

// RecursionDepth reports how deep this coordinator sits in the cycle tree.
func (c *Coordinator) RecursionDepth() int { return c.depth }

// LastRecovery returns the outcome of the most recent recovery attempt.
func (c *Coordinator) LastRecovery() *RecoveryResult { return c.lastRecovery }

// StartCycle begins a new cycle for the task: the task is persisted, roles
// are assigned, and the coordinator enters and executes the Expand phase.
func (c *Coordinator) StartCycle(ctx context.Context, task Task) (*Cycle, error) {
	if c.cycle != nil && c.state == StateRunning {
		return nil, ErrCycleActive
	}
	if task.ID == "" {
		task.ID = uuid.New().String()
	}

	c.cycle = &Cycle{
		ID:             uuid.New().String(),
		ParentID:       c.parentCycleID,
		ParentPhase:    c.parentPhase,
		HasParentPhase: c.hasParentPhase,
		RecursionDepth: c.depth,
		CurrentPhase:   PhaseExpand,
		Task:           task,
		Results:        make(map[Phase]*PhaseResult),
	}
	c.registry.Register(c.cycle)
	c.state = StateRunning

	if _, err := c.memory.StoreWithPhase(ctx, task, MemoryTypeTask, PhaseExpand.String(), map[string]any{
		"cycle_id": c.cycle.ID,
	}); err != nil {
		c.logger.Warn("failed to persist task", "cycle", c.cycle.ID, "error", err)
	}

	c.logger.Info("starting cycle",
		"cycle", c.cycle.ID,
		"task", task.Description,
		"recursion_depth", c.depth,
	)

	c.enterPhase(ctx, PhaseExpand, true)
	return c.cycle, nil
}

// ProgressToPhase advances to the given phase. Only the phase immediately
// following the current one is accepted; use OverrideToPhase for explicit
// human-requested jumps.
func (c *Coordinator) ProgressToPhase(ctx context.Context, phase Phase) error {
	if c.cycle == nil {
		return ErrNoActiveCycle
	}
	next, ok := c.cycle.CurrentPhase.Next()
	if !ok || next != phase {
		return &TransitionError{From: c.cycle.CurrentPhase, To: phase}
	}
	c.enterPhase(ctx, phase, false)
	return nil
}

// OverrideToPhase jumps to an arbitrary phase at a human operator's request,
// bypassing the forward-only rule.
func (c *Coordinator) OverrideToPhase(ctx context.Context, phase Phase) error {
	if c.cycle == nil {
		return ErrNoActiveCycle
	}
	c.logger.Info("human override: jumping to phase",
		"cycle", c.cycle.ID,
		"from", c.cycle.CurrentPhase.String(),
		"to", phase.String(),
	)
	c.enterPhase(ctx, phase, false)
	return nil
}

// MaybeAutoProgress advances one phase when the current phase's result clears
// its quality gate (score >= threshold, or the result explicitly marked
// complete). Below the gate it marks the result for additional processing and
// records a quality issue instead of advancing.
func (c *Coordinator) MaybeAutoProgress(ctx context.Context) (bool, error) {
	if c.cycle == nil {
		return false, ErrNoActiveCycle
	}
	if c.state != StateRunning {
		return false, nil
	}
	current := c.cycle.CurrentPhase
	next, ok := current.Next()
	if !ok {
		return false, nil
	}

	result := c.cycle.Results[current]
	if result == nil {
		return false, nil
	}

	if result.PhaseComplete {
		c.logger.Info("phase explicitly marked complete", "cycle", c.cycle.ID, "phase", current.String())
		c.enterPhase(ctx, next, false)
		return true, nil
	}

	if !result.Scored {
		return false, nil
	}

	threshold := c.config.thresholdFor(current)
	if result.QualityScore >= threshold {
		c.logger.Info("quality gate cleared, auto-progressing",
			"cycle", c.cycle.ID,
			"phase", current.String(),
			"score", result.QualityScore,
			"threshold", threshold,
		)
		c.enterPhase(ctx, next, false)
		return true, nil
	}

	result.AdditionalProcessing = true
	result.QualityIssues = append(result.QualityIssues, QualityIssue{
		Threshold: threshold,
		Observed:  result.QualityScore,
	})
	c.logger.Info("quality gate not met, phase needs additional processing",
		"cycle", c.cycle.ID,
		"phase", current.String(),
		"score", result.QualityScore,
		"threshold", threshold,
	)
	return false, nil
}

// RunToCompletion executes the remaining phases, auto-progressing through
// every quality gate that clears. It stops at the first gate that does not.
func (c *Coordinator) RunToCompletion(ctx context.Context) error {
	if c.cycle == nil {
		return ErrNoActiveCycle
	}
	for range Phases {
		advanced, err := c.MaybeAutoProgress(ctx)
		if err != nil {
			return err
		}
		if !advanced || c.state != StateRunning {
			break
		}
	}
	return nil
}

// enterPhase performs the transition bookkeeping shared by every entry path:
// role reassignment, memory writes, execution, and result recording. The
// initial flag marks cycle start, where the transition record has no origin.
func (c *Coordinator) enterPhase(ctx context.Context, phase Phase, initial bool) {
	previous := c.cycle.CurrentPhase

	roleMap := c.roles.AssignRolesForPhase(phase, c.cycle.Task)
	if _, err := c.memory.StoreWithPhase(ctx, roleMap, MemoryTypeRoleAssignment, phase.String(), map[string]any{
		"cycle_id": c.cycle.ID,
	}); err != nil {
		c.logger.Warn("failed to persist role assignment", "cycle", c.cycle.ID, "error", err)
	}

	transition := map[string]any{"to": phase.String()}
	if !initial {
		transition["from"] = previous.String()
	}
	if _, err := c.memory.StoreWithPhase(ctx, transition, MemoryTypePhaseTransition, phase.String(), map[string]any{
		"cycle_id": c.cycle.ID,
	}); err != nil {
		c.logger.Warn("failed to persist phase transition", "cycle", c.cycle.ID, "error", err)
	}

	c.cycle.CurrentPhase = phase
	c.recordHistory(phase, "start", nil)

	start := time.Now()
	outcome, err := c.executor.ExecutePhase(ctx, phase, &c.cycle.Task)
	if err != nil {
		recovery := c.AttemptRecovery(ctx, err, phase)
		if !recovery.Recovered {
			c.state = StateFatal
			c.fatalReason = recovery.Reason
			c.recordHistory(phase, "failed", map[string]any{"reason": recovery.Reason})
			c.logger.Error("phase execution failed and recovery did not succeed",
				"cycle", c.cycle.ID,
				"phase", phase.String(),
				"reason", recovery.Reason,
			)
			return
		}
		outcome = recovery.Outcome
	}

	c.applyOutcome(ctx, phase, outcome)
	c.recordMetrics(phase, time.Since(start), outcome)
	c.recordTrace(phase, outcome)
	c.recordHistory(phase, "end", map[string]any{"duration": time.Since(start).Seconds()})

	if phase == PhaseRetrospect {
		c.completeCycle(ctx)
	}
}

// applyOutcome merges an execution outcome into the phase's result record,
// preserving any micro-cycle stubs registered there earlier.
func (c *Coordinator) applyOutcome(ctx context.Context, phase Phase, outcome *PhaseOutcome) {
	result := c.cycle.Result(phase)
	if outcome != nil {
		if outcome.Scored {
			result.QualityScore = outcome.QualityScore
			result.Scored = true
		}
		if outcome.PhaseComplete {
			result.PhaseComplete = true
		}
		if outcome.Solution != nil {
			if result.Solution == nil {
				result.Solution = make(map[string]any, len(outcome.Solution))
			}
			for k, v := range outcome.Solution {
				result.Solution[k] = v
			}
		}
	}

	if _, err := c.memory.StoreWithPhase(ctx, result, MemoryTypePhaseResults, phase.String(), map[string]any{
		"cycle_id":        c.cycle.ID,
		"recursion_depth": c.depth,
	}); err != nil {
		c.logger.Warn("failed to persist phase results", "cycle", c.cycle.ID, "error", err)
	}
}

// RecordExpandResults merges intermediate reasoning results into the Expand
// phase record. The reasoning loop driver routes through these recorders as
// its tracked phase advances.
func (c *Coordinator) RecordExpandResults(results map[string]any) {
	c.recordIntermediate(PhaseExpand, results)
}

// RecordDifferentiateResults merges intermediate results into Differentiate.
func (c *Coordinator) RecordDifferentiateResults(results map[string]any) {
	c.recordIntermediate(PhaseDifferentiate, results)
}

// RecordRefineResults merges intermediate results into Refine.
func (c *Coordinator) RecordRefineResults(results map[string]any) {
	c.recordIntermediate(PhaseRefine, results)
}

func (c *Coordinator) recordIntermediate(phase Phase, results map[string]any) {
	if c.cycle == nil || results == nil {
		return
	}
	result := c.cycle.Result(phase)
	if result.Solution == nil {
		result.Solution = make(map[string]any, len(results))
	}
	for k, v := range results {
		switch k {
		case "quality_score":
			if score, ok := toFloat(v); ok {
				result.QualityScore = score
				result.Scored = true
			}
		case "phase_complete":
			if done, ok := v.(bool); ok && done {
				result.PhaseComplete = true
			}
		default:
			result.Solution[k] = v
		}
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// completeCycle finalizes a cycle after Retrospect: the final report is
// persisted and, for a micro cycle, the result is merged back into the
// parent's stub entry.
func (c *Coordinator) completeCycle(ctx context.Context) {
	c.state = StateCompleted

	report := c.GenerateReport()
	if _, err := c.memory.StoreWithPhase(ctx, report, MemoryTypeFinalReport, PhaseRetrospect.String(), map[string]any{
		"cycle_id":        c.cycle.ID,
		"recursion_depth": c.depth,
	}); err != nil {
		c.logger.Warn("failed to persist final report", "cycle", c.cycle.ID, "error", err)
	}

	if c.parentCycleID != "" && c.hasParentPhase {
		c.mergeIntoParent()
	}

	c.logger.Info("cycle completed",
		"cycle", c.cycle.ID,
		"recursion_depth", c.depth,
	)
}

func (c *Coordinator) mergeIntoParent() {
	parent, ok := c.registry.Get(c.parentCycleID)
	if !ok {
		c.logger.Warn("parent cycle not found for result merge",
			"cycle", c.cycle.ID,
			"parent", c.parentCycleID,
		)
		return
	}
	result := parent.Result(c.parentPhase)
	if result.MicroCycleResults == nil {
		result.MicroCycleResults = make(map[string]MicroCycleResult)
	}
	entry := result.MicroCycleResults[c.cycle.ID]
	entry.Task = c.cycle.Task
	entry.Status = MicroCycleCompleted
	entry.Result = c.finalSolution()
	result.MicroCycleResults[c.cycle.ID] = entry
}

// finalSolution picks the richest solution available, preferring Refine over
// the later reflective phases.
func (c *Coordinator) finalSolution() map[string]any {
	for _, phase := range []Phase{PhaseRefine, PhaseRetrospect, PhaseDifferentiate, PhaseExpand} {
		if r, ok := c.cycle.Results[phase]; ok && r.Solution != nil {
			return r.Solution
		}
	}
	return nil
}
