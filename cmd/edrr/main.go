package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/time/rate"

	"github.com/vampirenirmal/edrr/internal/config"
	"github.com/vampirenirmal/edrr/internal/core"
	"github.com/vampirenirmal/edrr/internal/memory"
	"github.com/vampirenirmal/edrr/internal/team"
)

func main() {
	taskDesc := flag.String("task", "", "task description to run a cycle for")
	seed := flag.Int64("seed", 0, "deterministic seed for reasoning steps (0 disables)")
	memoryDir := flag.String("memory", "", "override the memory store directory")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *taskDesc == "" {
		fmt.Fprintln(os.Stderr, "Usage: edrr -task <description> [-seed N] [-memory dir]")
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *memoryDir != "" {
		cfg.Paths.MemoryDir = *memoryDir
	}

	store := memory.NewFileStore(cfg.Paths.MemoryDir)

	agents := team.NewTeam(
		team.NewAgent("explorer", "brainstorming", "exploration", "creativity"),
		team.NewAgent("analyst", "analysis", "critical thinking", "comparison"),
		team.NewAgent("builder", "implementation", "coding", "optimization"),
		team.NewAgent("assessor", "evaluation", "quality assurance", "reflection"),
	)
	critic := team.NewAgent("critic", "critical thinking", "evaluation")

	rpm := cfg.Limits.RateLimit.RequestsPerMinute
	driverOpts := []team.DriverOption{
		team.WithDriverLogger(logger),
		team.WithRateLimit(rate.Limit(float64(rpm)/60.0), cfg.Limits.RateLimit.BurstSize),
	}
	if *seed != 0 {
		driverOpts = append(driverOpts, team.WithSeed(*seed))
	}
	driver := team.NewDriver(&heuristicStepper{}, cfg.LoopConfig(), driverOpts...)

	reviewers := []team.Reviewer{
		approvingReviewer{"reviewer-a"},
		approvingReviewer{"reviewer-b"},
		approvingReviewer{"reviewer-c"},
	}
	executor := team.NewLoopExecutor(driver, agents, critic, store, reviewers...)

	coordinator := core.New(store, agents, executor,
		core.WithLogger(logger),
		core.WithConfig(cfg.CoreConfig()),
	)

	ctx := context.Background()
	if _, err := coordinator.StartCycle(ctx, core.Task{Description: *taskDesc}); err != nil {
		fmt.Fprintf(os.Stderr, "Error starting cycle: %v\n", err)
		os.Exit(1)
	}
	if err := coordinator.RunToCompletion(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error running cycle: %v\n", err)
		os.Exit(1)
	}
	if err := store.Flush(ctx); err != nil {
		logger.Warn("flushing memory store", "error", err)
	}

	report := coordinator.GenerateReport()
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering report: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(out))

	if coordinator.State() == core.StateFatal {
		fmt.Fprintf(os.Stderr, "Cycle terminated: %s\n", coordinator.FatalReason())
		os.Exit(1)
	}
}

// heuristicStepper is a self-contained reasoning collaborator: each step
// produces a thesis/antithesis pair and a synthesis whose quality climbs with
// every call, so a phase converges after a few iterations.
type heuristicStepper struct {
	calls int
}

func (s *heuristicStepper) ApplyDialecticalStep(ctx context.Context, req team.StepRequest) (*team.StepResult, error) {
	s.calls++

	quality := 0.75 + 0.08*float64(s.calls%4)
	if req.RNG != nil {
		quality += req.RNG.Float64() * 0.02
	}
	if quality > 0.98 {
		quality = 0.98
	}

	status := team.StatusInProgress
	if quality >= 0.9 {
		status = team.StatusCompleted
	}

	primus := req.Team.RoleOf(team.RolePrimus)
	return &team.StepResult{
		Status: status,
		Arguments: []team.DialecticalArgument{
			{
				Position: team.PositionThesis,
				Content:  fmt.Sprintf("%s proposes an approach for: %s", primus, req.Task.Description),
			},
			{
				Position:        team.PositionAntithesis,
				Content:         fmt.Sprintf("%s challenges the proposal", req.Critic.Name()),
				Counterargument: "the proposal holds under the stated requirements",
			},
		},
		Synthesis: map[string]any{
			"quality_score": quality,
			"approach":      fmt.Sprintf("iteration %d synthesis", s.calls),
		},
	}, nil
}

type approvingReviewer struct {
	name string
}

func (r approvingReviewer) Name() string { return r.name }

func (r approvingReviewer) Process(ctx context.Context, work map[string]any) (team.Review, error) {
	approved := true
	return team.Review{
		Approved: &approved,
		Notes:    "work product meets requirements",
		Metrics:  map[string]float64{"checks": float64(len(work))},
	}, nil
}
