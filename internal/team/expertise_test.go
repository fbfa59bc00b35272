package team_test

import (
	"testing"

	"github.com/vampirenirmal/edrr/internal/core"
	"github.com/vampirenirmal/edrr/internal/team"
)

func TestExpertiseScoreFormula(t *testing.T) {
	task := core.Task{Description: "brainstorming tool"}

	// "brainstorming" matches one task word (+1) and one Expand keyword
	// (phase score 2, doubled on combination): 1 + 2*2 = 5.
	both := team.NewAgent("both", "brainstorming")
	if got := team.ExpertiseScore(both, core.PhaseExpand, task); got != 5 {
		t.Errorf("score = %v, want 5 (1 base + 2*2 phase)", got)
	}

	// "creativity" matches only the phase keywords: 0 + 2*2 = 4.
	phaseOnly := team.NewAgent("phase-only", "creativity")
	if got := team.ExpertiseScore(phaseOnly, core.PhaseExpand, task); got != 4 {
		t.Errorf("score = %v, want 4", got)
	}

	// "tool" matches only the task text: 1 + 0 = 1.
	taskOnly := team.NewAgent("task-only", "tool")
	if got := team.ExpertiseScore(taskOnly, core.PhaseExpand, task); got != 1 {
		t.Errorf("score = %v, want 1", got)
	}

	// Nothing matches.
	neither := team.NewAgent("neither", "gardening")
	if got := team.ExpertiseScore(neither, core.PhaseExpand, task); got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
}

func TestExpertiseScoreAccumulatesPerPair(t *testing.T) {
	// Two tags each matching one Expand keyword: 0 + (2+2)*2 = 8.
	ideator := team.NewAgent("ideator", "brainstorming", "creativity")
	if got := team.ExpertiseScore(ideator, core.PhaseExpand, core.Task{Description: "anything"}); got != 8 {
		t.Errorf("score = %v, want 8 (phase pairs accumulate)", got)
	}

	// A task word appearing twice counts once per pair: 2 + 2*2 = 6.
	analyst := team.NewAgent("analyst", "analysis")
	task := core.Task{Description: "analysis of analysis results"}
	if got := team.ExpertiseScore(analyst, core.PhaseDifferentiate, task); got != 6 {
		t.Errorf("score = %v, want 6 (task pairs accumulate)", got)
	}
}

func TestExpertiseScoreUsesRequirements(t *testing.T) {
	task := core.Task{
		Description:  "build service",
		Requirements: []string{"must support caching"},
	}
	agent := team.NewAgent("cacher", "caching")
	if got := team.ExpertiseScore(agent, core.PhaseExpand, task); got != 1 {
		t.Errorf("score = %v, want 1 (requirement match)", got)
	}
}

func TestExpertiseScoreCaseInsensitive(t *testing.T) {
	task := core.Task{Description: "Brainstorming Session"}
	agent := team.NewAgent("loud", "BRAINSTORMING")
	if got := team.ExpertiseScore(agent, core.PhaseExpand, task); got != 5 {
		t.Errorf("score = %v, want 5", got)
	}
}

func TestExpertiseScoreEmptyExpertise(t *testing.T) {
	agent := team.NewAgent("blank")
	if got := team.ExpertiseScore(agent, core.PhaseExpand, core.Task{Description: "brainstorming"}); got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
}
