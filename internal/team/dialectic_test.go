package team_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/vampirenirmal/edrr/internal/core"
	"github.com/vampirenirmal/edrr/internal/team"
)

type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type scriptedStepper struct {
	script []func() (*team.StepResult, error)
	calls  int
}

func (s *scriptedStepper) ApplyDialecticalStep(ctx context.Context, req team.StepRequest) (*team.StepResult, error) {
	i := s.calls
	s.calls++
	if i < len(s.script) {
		return s.script[i]()
	}
	return &team.StepResult{Status: team.StatusCompleted}, nil
}

func step(result *team.StepResult) func() (*team.StepResult, error) {
	return func() (*team.StepResult, error) { return result, nil }
}

func fail(err error) func() (*team.StepResult, error) {
	return func() (*team.StepResult, error) { return nil, err }
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestDriver(stepper team.Stepper, cfg team.LoopConfig, clock team.Clock) *team.Driver {
	return team.NewDriver(stepper, cfg,
		team.WithClock(clock),
		team.WithDriverLogger(testLogger()),
	)
}

func TestZeroBudgetRunsNothing(t *testing.T) {
	stepper := &scriptedStepper{}
	clock := &fakeClock{}
	driver := newTestDriver(stepper, team.LoopConfig{MaxTotal: 0, RetryAttempts: 2, RetryBackoff: time.Second}, clock)

	task := &core.Task{Description: "never runs"}
	results := driver.Run(context.Background(), team.StepRequest{Task: task}, nil, core.PhaseExpand)

	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
	if stepper.calls != 0 {
		t.Errorf("stepper calls = %d, want 0", stepper.calls)
	}
	if results == nil {
		t.Error("result list must be empty, not nil")
	}
}

func TestRetryBackoffSchedule(t *testing.T) {
	transient := errors.New("transient failure")
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		fail(transient),
		fail(transient),
		step(&team.StepResult{Status: team.StatusCompleted}),
	}}
	clock := &fakeClock{}
	driver := newTestDriver(stepper, team.LoopConfig{
		MaxTotal:      team.NoTimeBudget,
		RetryAttempts: 2,
		RetryBackoff:  100 * time.Millisecond,
	}, clock)

	results := driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, nil, core.PhaseExpand)

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if stepper.calls != 3 {
		t.Errorf("stepper calls = %d, want 3", stepper.calls)
	}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, clock.sleeps[i], want[i])
		}
	}
}

func TestBackoffTruncatedToRemainingBudget(t *testing.T) {
	transient := errors.New("transient failure")
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		fail(transient),
		fail(transient),
		step(&team.StepResult{Status: team.StatusCompleted}),
	}}
	clock := &fakeClock{}
	driver := newTestDriver(stepper, team.LoopConfig{
		MaxTotal:      150 * time.Millisecond,
		RetryAttempts: 2,
		RetryBackoff:  100 * time.Millisecond,
	}, clock)

	results := driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, nil, core.PhaseExpand)

	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	// The second delay would be 200ms but only 50ms of budget remains.
	want := []time.Duration{100 * time.Millisecond, 50 * time.Millisecond}
	if len(clock.sleeps) != len(want) {
		t.Fatalf("sleeps = %v, want %v", clock.sleeps, want)
	}
	for i := range want {
		if clock.sleeps[i] != want[i] {
			t.Errorf("sleep %d = %v, want %v", i, clock.sleeps[i], want[i])
		}
	}
}

func TestRetriesExhaustedReturnsAccumulated(t *testing.T) {
	transient := errors.New("transient failure")
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		step(&team.StepResult{Status: team.StatusInProgress, Synthesis: map[string]any{"round": 1}}),
		fail(transient),
		fail(transient),
		fail(transient),
	}}
	clock := &fakeClock{}
	driver := newTestDriver(stepper, team.LoopConfig{
		MaxTotal:      team.NoTimeBudget,
		RetryAttempts: 2,
		RetryBackoff:  10 * time.Millisecond,
	}, clock)

	results := driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, nil, core.PhaseExpand)

	// The loop never raises past its boundary: the first iteration's result
	// comes back even though the second iteration exhausted its retries.
	if len(results) != 1 {
		t.Fatalf("results = %d, want 1", len(results))
	}
	if stepper.calls != 4 {
		t.Errorf("stepper calls = %d, want 4", stepper.calls)
	}
}

func TestIterationCap(t *testing.T) {
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		step(&team.StepResult{Status: team.StatusInProgress}),
		step(&team.StepResult{Status: team.StatusInProgress}),
		step(&team.StepResult{Status: team.StatusInProgress}),
	}}
	driver := newTestDriver(stepper, team.LoopConfig{
		MaxIterations: 2,
		MaxTotal:      team.NoTimeBudget,
	}, &fakeClock{})

	results := driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, nil, core.PhaseExpand)

	if len(results) != 2 {
		t.Errorf("results = %d, want 2", len(results))
	}
	if stepper.calls != 2 {
		t.Errorf("stepper calls = %d, want 2", stepper.calls)
	}
}

func TestCompletedStatusStopsLoop(t *testing.T) {
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		step(&team.StepResult{Status: team.StatusCompleted}),
		step(&team.StepResult{Status: team.StatusInProgress}),
	}}
	driver := newTestDriver(stepper, team.LoopConfig{MaxTotal: team.NoTimeBudget}, &fakeClock{})

	results := driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, nil, core.PhaseExpand)

	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
	if stepper.calls != 1 {
		t.Errorf("stepper calls = %d, want 1", stepper.calls)
	}
}

func TestConsensusErrorIsTerminal(t *testing.T) {
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		fail(&team.ConsensusError{Reason: "tied vote", Payload: []byte("{}")}),
	}}
	clock := &fakeClock{}
	driver := newTestDriver(stepper, team.LoopConfig{
		MaxTotal:      team.NoTimeBudget,
		RetryAttempts: 3,
		RetryBackoff:  time.Second,
	}, clock)

	results := driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, nil, core.PhaseExpand)

	if len(results) != 0 {
		t.Errorf("results = %d, want 0", len(results))
	}
	if stepper.calls != 1 {
		t.Errorf("stepper calls = %d, want 1 (consensus failures are not retried)", stepper.calls)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", clock.sleeps)
	}
}

func TestSynthesisMergesIntoTaskSolution(t *testing.T) {
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		step(&team.StepResult{
			Status:    team.StatusInProgress,
			Synthesis: map[string]any{"draft": "v1"},
		}),
		step(&team.StepResult{
			Status:    team.StatusCompleted,
			Synthesis: map[string]any{"draft": "v2", "notes": "done"},
		}),
	}}
	driver := newTestDriver(stepper, team.LoopConfig{MaxTotal: team.NoTimeBudget}, &fakeClock{})

	task := &core.Task{Description: "merge"}
	driver.Run(context.Background(), team.StepRequest{Task: task}, nil, core.PhaseExpand)

	if task.Solution["draft"] != "v2" {
		t.Errorf("solution draft = %v, want v2", task.Solution["draft"])
	}
	if task.Solution["notes"] != "done" {
		t.Errorf("solution notes = %v, want done", task.Solution["notes"])
	}
}

type recordingRecorder struct {
	phases []core.Phase
}

func (r *recordingRecorder) RecordExpandResults(results map[string]any) {
	r.phases = append(r.phases, core.PhaseExpand)
}

func (r *recordingRecorder) RecordDifferentiateResults(results map[string]any) {
	r.phases = append(r.phases, core.PhaseDifferentiate)
}

func (r *recordingRecorder) RecordRefineResults(results map[string]any) {
	r.phases = append(r.phases, core.PhaseRefine)
}

func TestRecorderRoutingFollowsTrackedPhase(t *testing.T) {
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		// Absent next_phase advances along the fixed order.
		step(&team.StepResult{Status: team.StatusInProgress}),
		// Unrecognized next_phase keeps the current phase.
		step(&team.StepResult{Status: team.StatusInProgress, NextPhase: "Bogus"}),
		step(&team.StepResult{Status: team.StatusCompleted}),
	}}
	driver := newTestDriver(stepper, team.LoopConfig{MaxTotal: team.NoTimeBudget}, &fakeClock{})
	recorder := &recordingRecorder{}

	driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, recorder, core.PhaseExpand)

	want := []core.Phase{core.PhaseExpand, core.PhaseDifferentiate, core.PhaseDifferentiate}
	if len(recorder.phases) != len(want) {
		t.Fatalf("recorded phases = %v, want %v", recorder.phases, want)
	}
	for i := range want {
		if recorder.phases[i] != want[i] {
			t.Errorf("record %d = %s, want %s", i, recorder.phases[i], want[i])
		}
	}
}

func TestRecorderRoutingHonorsExplicitNextPhase(t *testing.T) {
	stepper := &scriptedStepper{script: []func() (*team.StepResult, error){
		step(&team.StepResult{Status: team.StatusInProgress, NextPhase: "Refine"}),
		step(&team.StepResult{Status: team.StatusCompleted}),
	}}
	driver := newTestDriver(stepper, team.LoopConfig{MaxTotal: team.NoTimeBudget}, &fakeClock{})
	recorder := &recordingRecorder{}

	driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, recorder, core.PhaseExpand)

	want := []core.Phase{core.PhaseExpand, core.PhaseRefine}
	if len(recorder.phases) != len(want) {
		t.Fatalf("recorded phases = %v, want %v", recorder.phases, want)
	}
	for i := range want {
		if recorder.phases[i] != want[i] {
			t.Errorf("record %d = %s, want %s", i, recorder.phases[i], want[i])
		}
	}
}

func TestDeterministicSeedInjectsGenerator(t *testing.T) {
	var first, second []int64
	capture := func(sink *[]int64) team.Stepper {
		return &captureStepper{sink: sink}
	}

	cfg := team.LoopConfig{MaxIterations: 3, MaxTotal: team.NoTimeBudget}
	for _, sink := range []*[]int64{&first, &second} {
		driver := team.NewDriver(capture(sink), cfg,
			team.WithClock(&fakeClock{}),
			team.WithDriverLogger(testLogger()),
			team.WithSeed(42),
		)
		driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, nil, core.PhaseExpand)
	}

	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("samples = %d/%d, want 3 each", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("sample %d differs: %d vs %d", i, first[i], second[i])
		}
	}
}

func TestUnseededRunHasNoGenerator(t *testing.T) {
	stepper := &rngChecker{}
	driver := newTestDriver(stepper, team.LoopConfig{MaxIterations: 1, MaxTotal: team.NoTimeBudget}, &fakeClock{})
	driver.Run(context.Background(), team.StepRequest{Task: &core.Task{}}, nil, core.PhaseExpand)

	if stepper.sawRNG {
		t.Error("RNG must be nil without a configured seed")
	}
}

type captureStepper struct {
	sink *[]int64
}

func (s *captureStepper) ApplyDialecticalStep(ctx context.Context, req team.StepRequest) (*team.StepResult, error) {
	if req.RNG == nil {
		return nil, errors.New("missing RNG")
	}
	*s.sink = append(*s.sink, req.RNG.Int63())
	return &team.StepResult{Status: team.StatusInProgress}, nil
}

type rngChecker struct {
	sawRNG bool
}

func (s *rngChecker) ApplyDialecticalStep(ctx context.Context, req team.StepRequest) (*team.StepResult, error) {
	if req.RNG != nil {
		s.sawRNG = true
	}
	return &team.StepResult{Status: team.StatusCompleted}, nil
}
