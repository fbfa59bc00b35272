package core

import (
	"fmt"
	"time"
)

// TraceEntry captures one phase execution for later inspection.
type TraceEntry struct {
	Timestamp      time.Time          `json:"timestamp"`
	CycleID        string             `json:"cycle_id"`
	Phase          string             `json:"phase"`
	RecursionDepth int                `json:"recursion_depth"`
	ParentCycleID  string             `json:"parent_cycle_id,omitempty"`
	QualityScore   float64            `json:"quality_score"`
	Scored         bool               `json:"scored"`
	Metrics        map[string]float64 `json:"metrics,omitempty"`
}

// HistoryEvent is one entry in the ordered execution history.
type HistoryEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	Phase     string         `json:"phase"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
}

// PhaseMetrics aggregates timing and component measurements for one phase.
type PhaseMetrics struct {
	Duration time.Duration      `json:"duration"`
	Metrics  map[string]float64 `json:"metrics,omitempty"`
}

// Report is the read-only snapshot produced when a cycle completes.
type Report struct {
	CycleID        string                  `json:"cycle_id"`
	TaskID         string                  `json:"task_id"`
	Task           string                  `json:"task"`
	State          string                  `json:"state"`
	RecursionDepth int                     `json:"recursion_depth"`
	Phases         map[string]PhaseResult  `json:"phases"`
	ChildCycles    []ChildSummary          `json:"child_cycles,omitempty"`
	Metrics        map[string]PhaseMetrics `json:"metrics,omitempty"`
	GeneratedAt    time.Time               `json:"generated_at"`
}

// ChildSummary is a report's view of one owned micro cycle.
type ChildSummary struct {
	CycleID string `json:"cycle_id"`
	Task    string `json:"task"`
	Phase   string `json:"phase"`
}

func (c *Coordinator) recordTrace(phase Phase, outcome *PhaseOutcome) {
	if !c.config.EnhancedTracing {
		return
	}
	entry := TraceEntry{
		Timestamp:      time.Now(),
		CycleID:        c.cycle.ID,
		Phase:          phase.String(),
		RecursionDepth: c.depth,
		ParentCycleID:  c.parentCycleID,
	}
	if outcome != nil {
		entry.QualityScore = outcome.QualityScore
		entry.Scored = outcome.Scored
		entry.Metrics = outcome.Metrics
	}
	c.traces[fmt.Sprintf("%s:%s", phase.String(), c.cycle.ID)] = entry
}

func (c *Coordinator) recordHistory(phase Phase, action string, details map[string]any) {
	if !c.config.EnhancedTracing {
		return
	}
	c.history = append(c.history, HistoryEvent{
		Timestamp: time.Now(),
		Phase:     phase.String(),
		Action:    action,
		Details:   details,
	})
}

func (c *Coordinator) recordMetrics(phase Phase, elapsed time.Duration, outcome *PhaseOutcome) {
	m := PhaseMetrics{Duration: elapsed}
	if outcome != nil && outcome.Metrics != nil {
		m.Metrics = make(map[string]float64, len(outcome.Metrics))
		for k, v := range outcome.Metrics {
			m.Metrics[k] = v
		}
	}
	c.metrics[phase.String()] = m
}

// ExecutionTraces returns a copy of the per-phase trace entries.
func (c *Coordinator) ExecutionTraces() map[string]TraceEntry {
	out := make(map[string]TraceEntry, len(c.traces))
	for k, v := range c.traces {
		out[k] = v
	}
	return out
}

// ExecutionHistory returns a copy of the ordered history events.
func (c *Coordinator) ExecutionHistory() []HistoryEvent {
	out := make([]HistoryEvent, len(c.history))
	copy(out, c.history)
	return out
}

// PerformanceMetrics returns a copy of the per-phase metrics.
func (c *Coordinator) PerformanceMetrics() map[string]PhaseMetrics {
	out := make(map[string]PhaseMetrics, len(c.metrics))
	for k, v := range c.metrics {
		out[k] = v
	}
	return out
}

// GenerateReport snapshots the cycle's phase results, child cycles and
// metrics. The report copies result records, so later mutation of the cycle
// does not alter an issued report.
func (c *Coordinator) GenerateReport() *Report {
	if c.cycle == nil {
		return nil
	}
	report := &Report{
		CycleID:        c.cycle.ID,
		TaskID:         c.cycle.Task.ID,
		Task:           c.cycle.Task.Description,
		State:          c.state.String(),
		RecursionDepth: c.depth,
		Phases:         make(map[string]PhaseResult, len(c.cycle.Results)),
		Metrics:        c.PerformanceMetrics(),
		GeneratedAt:    time.Now(),
	}
	for phase, result := range c.cycle.Results {
		report.Phases[phase.String()] = *result
	}
	for _, child := range c.registry.Children(c.cycle.ID) {
		report.ChildCycles = append(report.ChildCycles, ChildSummary{
			CycleID: child.ID,
			Task:    child.Task.Description,
			Phase:   child.CurrentPhase.String(),
		})
	}
	return report
}
