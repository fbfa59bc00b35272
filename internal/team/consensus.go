package team

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/vampirenirmal/edrr/internal/core"
)

// Consensus methods.
const (
	MethodMajorityOpinion = "majority_opinion"
	MethodWeightedOpinion = "weighted_opinion"
)

// Opinion is one agent's stance on a proposed solution.
type Opinion struct {
	AgentID string `json:"agent_id"`
	Opinion string `json:"opinion"`
}

// ConsensusOutcome aggregates independent agent opinions. It serializes to a
// plain structured payload so a ConsensusError can carry it across the call
// boundary.
type ConsensusOutcome struct {
	ConsensusID     string             `json:"consensus_id"`
	TaskID          string             `json:"task_id"`
	Method          string             `json:"method"`
	AgentOpinions   []Opinion          `json:"agent_opinions"`
	MajorityOpinion string             `json:"majority_opinion,omitempty"`
	Weights         map[string]float64 `json:"weights,omitempty"`
}

// ConsensusError reports that no consensus could be reached. It carries the
// serialized partial outcome so callers can diagnose without engine state.
type ConsensusError struct {
	Reason  string
	Payload []byte
}

func (e *ConsensusError) Error() string {
	return fmt.Sprintf("consensus failed: %s", e.Reason)
}

// PartialOutcome deserializes the outcome computed before the failure.
func (e *ConsensusError) PartialOutcome() (*ConsensusOutcome, error) {
	var outcome ConsensusOutcome
	if err := json.Unmarshal(e.Payload, &outcome); err != nil {
		return nil, fmt.Errorf("decoding partial consensus outcome: %w", err)
	}
	return &outcome, nil
}

// BuildConsensus aggregates opinions into a ConsensusOutcome. Majority
// opinion wins outright; a tie falls back to expertise-weighted voting, where
// each agent's vote weighs 0.5 plus 0.5 times its expertise overlap with the
// task. If the weighted vote also ties, a ConsensusError carrying the
// serialized partial outcome is returned.
func (t *Team) BuildConsensus(task core.Task, opinions []Opinion) (*ConsensusOutcome, error) {
	outcome := &ConsensusOutcome{
		ConsensusID:   uuid.New().String(),
		TaskID:        task.ID,
		Method:        MethodMajorityOpinion,
		AgentOpinions: opinions,
	}

	if len(opinions) == 0 {
		return nil, consensusError("no opinions collected", outcome)
	}

	counts := make(map[string]int)
	canonical := make(map[string]string)
	for _, op := range opinions {
		key := strings.ToLower(strings.TrimSpace(op.Opinion))
		counts[key]++
		if _, ok := canonical[key]; !ok {
			canonical[key] = op.Opinion
		}
	}

	if winner, ok := uniqueMax(counts); ok {
		outcome.MajorityOpinion = canonical[winner]
		return outcome, nil
	}

	outcome.Method = MethodWeightedOpinion
	outcome.Weights = make(map[string]float64, len(opinions))
	weighted := make(map[string]float64)
	for _, op := range opinions {
		weight := t.opinionWeight(op.AgentID, task)
		outcome.Weights[op.AgentID] = weight
		key := strings.ToLower(strings.TrimSpace(op.Opinion))
		weighted[key] += weight
	}

	if winner, ok := uniqueMaxFloat(weighted); ok {
		outcome.MajorityOpinion = canonical[winner]
		return outcome, nil
	}

	return nil, consensusError("tied vote with no weighted winner", outcome)
}

// opinionWeight gives an agent's vote weight for a task: a 0.5 floor plus up
// to 0.5 for the fraction of expertise tags found in the task text.
func (t *Team) opinionWeight(agentID string, task core.Task) float64 {
	t.mu.Lock()
	var agent Agent
	for _, a := range t.agents {
		if a.Name() == agentID {
			agent = a
			break
		}
	}
	t.mu.Unlock()

	if agent == nil || len(agent.Expertise()) == 0 {
		return 0.5
	}

	taskText := strings.ToLower(task.Description)
	for _, req := range task.Requirements {
		taskText += " " + strings.ToLower(req)
	}
	matched := 0
	for _, tag := range agent.Expertise() {
		if tag != "" && strings.Contains(taskText, strings.ToLower(tag)) {
			matched++
		}
	}
	overlap := float64(matched) / float64(len(agent.Expertise()))
	return 0.5 + 0.5*overlap
}

func consensusError(reason string, outcome *ConsensusOutcome) *ConsensusError {
	payload, err := json.Marshal(outcome)
	if err != nil {
		payload = []byte("{}")
	}
	return &ConsensusError{Reason: reason, Payload: payload}
}

func uniqueMax(counts map[string]int) (string, bool) {
	best, bestCount, tied := "", 0, false
	for key, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount, tied = key, n, false
		case n == bestCount:
			tied = true
		}
	}
	return best, !tied && bestCount > 0
}

func uniqueMaxFloat(weights map[string]float64) (string, bool) {
	best, bestWeight, tied := "", 0.0, false
	for key, w := range weights {
		switch {
		case w > bestWeight:
			best, bestWeight, tied = key, w, false
		case w == bestWeight:
			tied = true
		}
	}
	return best, !tied && bestWeight > 0
}
