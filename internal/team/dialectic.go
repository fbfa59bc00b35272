package team

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/time/rate"

	"github.com/vampirenirmal/edrr/internal/core"
	"github.com/vampirenirmal/edrr/internal/memory"
)

// Reasoning step statuses.
const (
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
)

// Dialectical argument positions.
const (
	PositionThesis     = "Thesis"
	PositionAntithesis = "Antithesis"
)

// DialecticalArgument is one side of a reasoning step, immutable once
// recorded.
type DialecticalArgument struct {
	Position        string `json:"position"`
	Content         string `json:"content"`
	Counterargument string `json:"counterargument,omitempty"`
}

// StepResult is what one dialectical reasoning step produces. NextPhase is a
// case-sensitive phase name; an absent value falls back to the fixed phase
// order for recorder tracking, an unrecognized one keeps the current phase.
type StepResult struct {
	Status    string                `json:"status"`
	Phase     string                `json:"phase,omitempty"`
	NextPhase string                `json:"next_phase,omitempty"`
	Arguments []DialecticalArgument `json:"arguments,omitempty"`
	Synthesis map[string]any        `json:"synthesis,omitempty"`
}

// StepRequest carries everything a reasoning step may need. RNG is non-nil
// only when the driver was configured with a deterministic seed; steps that
// sample must use it instead of the global generator.
type StepRequest struct {
	Team   *Team
	Task   *core.Task
	Critic Agent
	Memory memory.Store
	RNG    *rand.Rand
}

// Stepper is the external reasoning collaborator. It must be retryable with
// respect to the task input, since the driver calls it again after a
// transient failure.
type Stepper interface {
	ApplyDialecticalStep(ctx context.Context, req StepRequest) (*StepResult, error)
}

// PhaseRecorder receives intermediate results routed by tracked phase.
// Retrospect has no recorder; results tracked there are kept but not routed.
type PhaseRecorder interface {
	RecordExpandResults(results map[string]any)
	RecordDifferentiateResults(results map[string]any)
	RecordRefineResults(results map[string]any)
}

// NoTimeBudget disables the wall-clock budget. A zero MaxTotal means the
// budget is already exhausted, so zero iterations run.
const NoTimeBudget = time.Duration(-1)

// LoopConfig tunes the reasoning loop.
type LoopConfig struct {
	// MaxIterations caps the number of successful step invocations; zero
	// means unbounded.
	MaxIterations int
	// MaxTotal is the wall-clock budget, checked before each iteration.
	MaxTotal time.Duration
	// RetryAttempts is how many retries one iteration gets after a transient
	// failure.
	RetryAttempts int
	// RetryBackoff is the initial backoff delay; it doubles per attempt.
	RetryBackoff time.Duration
}

// DefaultLoopConfig mirrors the engine defaults: unbounded iterations, no
// time budget, three retries starting at one second.
func DefaultLoopConfig() LoopConfig {
	return LoopConfig{
		MaxTotal:      NoTimeBudget,
		RetryAttempts: 3,
		RetryBackoff:  time.Second,
	}
}

// Driver runs dialectical reasoning steps until completion, an iteration
// cap, or an exhausted time budget, retrying transient step failures with
// exponential backoff. It never lets a step error escape past its own
// boundary: retries exhausted mid-loop abort the loop and return whatever
// results accumulated.
type Driver struct {
	stepper Stepper
	clock   Clock
	limiter *rate.Limiter
	logger  *slog.Logger
	config  LoopConfig
	seed    int64
	seeded  bool
}

// DriverOption customizes a Driver.
type DriverOption func(*Driver)

func WithClock(clock Clock) DriverOption {
	return func(d *Driver) { d.clock = clock }
}

func WithDriverLogger(logger *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = logger }
}

// WithRateLimit paces step invocations, protecting the external reasoning
// collaborator from bursts.
func WithRateLimit(limit rate.Limit, burst int) DriverOption {
	return func(d *Driver) { d.limiter = rate.NewLimiter(limit, burst) }
}

// WithSeed makes downstream sampling deterministic. The seed is applied to a
// single injected generator exactly once, before the first iteration.
func WithSeed(seed int64) DriverOption {
	return func(d *Driver) {
		d.seed = seed
		d.seeded = true
	}
}

func NewDriver(stepper Stepper, config LoopConfig, opts ...DriverOption) *Driver {
	d := &Driver{
		stepper: stepper,
		clock:   SystemClock(),
		logger:  slog.Default(),
		config:  config,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run drives reasoning steps for a task, starting recorder tracking at
// startPhase. Termination conditions are checked in a fixed order: the
// iteration cap, then the time budget (before a new iteration starts), then
// a completed status from the previous step. The returned slice holds every
// successful step result in order; it is never nil.
func (d *Driver) Run(ctx context.Context, req StepRequest, recorder PhaseRecorder, startPhase core.Phase) []*StepResult {
	results := []*StepResult{}

	if d.seeded {
		req.RNG = rand.New(rand.NewSource(d.seed))
	}

	start := d.clock.Now()
	tracked := startPhase

	for iteration := 0; ; iteration++ {
		if d.config.MaxIterations > 0 && iteration >= d.config.MaxIterations {
			d.logger.Info("reasoning loop hit iteration cap", "iterations", iteration)
			break
		}
		if remaining, bounded := d.remaining(start); bounded && remaining <= 0 {
			d.logger.Info("reasoning loop time budget exhausted", "iterations", iteration)
			break
		}

		result, ok := d.runStep(ctx, req, start)
		if !ok {
			break
		}

		results = append(results, result)
		mergeSynthesis(req.Task, result.Synthesis)
		if recorder != nil {
			routeToRecorder(recorder, tracked, result)
		}
		tracked = nextTrackedPhase(tracked, result.NextPhase)

		if result.Status == StatusCompleted {
			break
		}
	}

	return results
}

// runStep invokes the stepper, retrying transient failures with doubling
// backoff. Each delay is truncated to the remaining time budget. The second
// return value is false when the step terminally failed and the loop must
// abort.
func (d *Driver) runStep(ctx context.Context, req StepRequest, start time.Time) (*StepResult, bool) {
	delay := d.config.RetryBackoff
	for attempt := 0; ; attempt++ {
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return nil, false
			}
		}

		result, err := d.stepper.ApplyDialecticalStep(ctx, req)
		if err == nil {
			return result, true
		}

		var consensusErr *ConsensusError
		if errors.As(err, &consensusErr) {
			d.logger.Error("consensus failure in reasoning step",
				"reason", consensusErr.Reason,
				"partial_outcome", string(consensusErr.Payload),
			)
			return nil, false
		}
		if core.IsFatal(err) {
			d.logger.Error("fatal error in reasoning step", "error", err)
			return nil, false
		}
		if attempt >= d.config.RetryAttempts {
			d.logger.Warn("reasoning step retries exhausted",
				"attempts", attempt+1,
				"error", err,
			)
			return nil, false
		}

		sleep := delay
		if remaining, bounded := d.remaining(start); bounded && remaining < sleep {
			sleep = remaining
		}
		d.logger.Debug("retrying reasoning step",
			"attempt", attempt+1,
			"backoff", sleep,
			"error", err,
		)
		if sleep > 0 {
			if err := d.clock.Sleep(ctx, sleep); err != nil {
				return nil, false
			}
		}
		delay *= 2
	}
}

// remaining reports the unspent budget. The second return value is false for
// an unbounded budget.
func (d *Driver) remaining(start time.Time) (time.Duration, bool) {
	if d.config.MaxTotal == NoTimeBudget {
		return 0, false
	}
	return d.config.MaxTotal - d.clock.Now().Sub(start), true
}

// mergeSynthesis folds a step's synthesis into the task's evolving solution
// so the next step sees it.
func mergeSynthesis(task *core.Task, synthesis map[string]any) {
	if task == nil || synthesis == nil {
		return
	}
	if task.Solution == nil {
		task.Solution = make(map[string]any, len(synthesis))
	}
	for k, v := range synthesis {
		task.Solution[k] = v
	}
}

func routeToRecorder(recorder PhaseRecorder, tracked core.Phase, result *StepResult) {
	payload := make(map[string]any, len(result.Synthesis)+1)
	for k, v := range result.Synthesis {
		payload[k] = v
	}
	payload["status"] = result.Status

	switch tracked {
	case core.PhaseExpand:
		recorder.RecordExpandResults(payload)
	case core.PhaseDifferentiate:
		recorder.RecordDifferentiateResults(payload)
	case core.PhaseRefine:
		recorder.RecordRefineResults(payload)
	}
}

// nextTrackedPhase advances recorder tracking using the step's declared next
// phase. An absent name falls back to the fixed phase order; an unrecognized
// name keeps the current phase rather than erroring. Retrospect is terminal.
func nextTrackedPhase(tracked core.Phase, nextPhase string) core.Phase {
	if nextPhase != "" {
		if phase, ok := core.ParsePhase(nextPhase); ok {
			return phase
		}
		return tracked
	}
	if next, ok := tracked.Next(); ok {
		return next
	}
	return tracked
}
