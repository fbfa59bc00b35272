package core

import (
	"sync"
)

// Task describes the unit of work a cycle operates on. Solution holds the
// evolving work product that dialectical steps refine between iterations.
type Task struct {
	ID            string             `json:"id"`
	Description   string             `json:"description"`
	Requirements  []string           `json:"requirements,omitempty"`
	Solution      map[string]any     `json:"solution,omitempty"`
	HumanOverride string             `json:"human_override,omitempty"`
	Scores        map[string]float64 `json:"scores,omitempty"`
}

// Score returns the named heuristic score and whether it was set.
func (t Task) Score(name string) (float64, bool) {
	v, ok := t.Scores[name]
	return v, ok
}

// QualityIssue records a quality gate that the phase result failed to clear.
type QualityIssue struct {
	Threshold float64 `json:"threshold"`
	Observed  float64 `json:"observed"`
}

// MicroCycleResult is the entry a parent phase keeps for one of its child
// cycles: the task it was spawned with, its lifecycle status, and the final
// result merged back when the child completes.
type MicroCycleResult struct {
	Task   Task           `json:"task"`
	Status string         `json:"status"`
	Result map[string]any `json:"result,omitempty"`
}

// Micro-cycle entry statuses.
const (
	MicroCycleCreated   = "created"
	MicroCycleCompleted = "completed"
)

// PhaseResult is the record a coordinator keeps per executed phase.
type PhaseResult struct {
	Phase                Phase                       `json:"phase"`
	QualityScore         float64                     `json:"quality_score"`
	Scored               bool                        `json:"scored"`
	PhaseComplete        bool                        `json:"phase_complete"`
	Solution             map[string]any              `json:"solution,omitempty"`
	MicroCycleResults    map[string]MicroCycleResult `json:"micro_cycle_results,omitempty"`
	AdditionalProcessing bool                        `json:"additional_processing"`
	QualityIssues        []QualityIssue              `json:"quality_issues,omitempty"`
}

// Cycle is one traversal of the four-phase process, possibly nested. Parent
// references are IDs only (lookup through the registry, never owned); children
// are owned in creation order.
type Cycle struct {
	ID             string
	ParentID       string
	ParentPhase    Phase
	HasParentPhase bool
	RecursionDepth int
	CurrentPhase   Phase
	Task           Task
	Results        map[Phase]*PhaseResult
	Children       []string
}

// Result returns the phase record for the given phase, creating it on first
// access so callers can accumulate into it.
func (c *Cycle) Result(phase Phase) *PhaseResult {
	if c.Results == nil {
		c.Results = make(map[Phase]*PhaseResult)
	}
	r, ok := c.Results[phase]
	if !ok {
		r = &PhaseResult{Phase: phase}
		c.Results[phase] = r
	}
	return r
}

// Registry is the arena that owns every cycle in a tree, indexed by ID.
// Parent back-pointers stay weak (IDs), so the ownership graph is acyclic.
type Registry struct {
	mu     sync.RWMutex
	cycles map[string]*Cycle
}

func NewRegistry() *Registry {
	return &Registry{cycles: make(map[string]*Cycle)}
}

// Register adds a cycle to the arena.
func (r *Registry) Register(c *Cycle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cycles[c.ID] = c
}

// Get looks up a cycle by ID.
func (r *Registry) Get(id string) (*Cycle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cycles[id]
	return c, ok
}

// Children resolves a cycle's owned children in creation order.
func (r *Registry) Children(id string) []*Cycle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parent, ok := r.cycles[id]
	if !ok {
		return nil
	}
	out := make([]*Cycle, 0, len(parent.Children))
	for _, childID := range parent.Children {
		if child, ok := r.cycles[childID]; ok {
			out = append(out, child)
		}
	}
	return out
}

// Remove deletes a cycle and cascades to every descendant it owns.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Registry) removeLocked(id string) {
	c, ok := r.cycles[id]
	if !ok {
		return
	}
	for _, childID := range c.Children {
		r.removeLocked(childID)
	}
	delete(r.cycles, id)
}

// Len reports how many cycles the arena currently owns.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cycles)
}
