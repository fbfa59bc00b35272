// Package team implements the agent-team side of the coordination engine:
// expertise-based role assignment, consensus building over agent opinions,
// independent review collection, and the dialectical reasoning loop driver.
package team

import (
	"sync"
)

// Agent is a capability-set collaborator. Implementations declare what they
// are good at; the engine never inspects anything beyond name and expertise.
type Agent interface {
	Name() string
	Expertise() []string
}

// BaseAgent is the minimal Agent implementation.
type BaseAgent struct {
	name      string
	expertise []string
}

func NewAgent(name string, expertise ...string) *BaseAgent {
	return &BaseAgent{name: name, expertise: expertise}
}

func (a *BaseAgent) Name() string { return a.name }

func (a *BaseAgent) Expertise() []string { return a.expertise }

// Team is an ordered collection of agents plus the current role assignment.
// Registration order is stable and breaks expertise-score ties.
type Team struct {
	mu     sync.Mutex
	agents []Agent
	roles  map[string]string // role -> agent name
}

func NewTeam(agents ...Agent) *Team {
	t := &Team{}
	for _, a := range agents {
		t.Register(a)
	}
	return t
}

// Register appends an agent. Duplicate names are rejected silently so a
// re-registered agent keeps its original position.
func (t *Team) Register(agent Agent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, existing := range t.agents {
		if existing.Name() == agent.Name() {
			return
		}
	}
	t.agents = append(t.agents, agent)
}

// Agents returns the agents in registration order.
func (t *Team) Agents() []Agent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Agent, len(t.agents))
	copy(out, t.agents)
	return out
}

// Size reports the number of registered agents.
func (t *Team) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.agents)
}

// Roles returns a copy of the current role assignment (role -> agent name).
func (t *Team) Roles() map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]string, len(t.roles))
	for k, v := range t.roles {
		out[k] = v
	}
	return out
}

// RoleOf returns the agent currently holding a role, or "" when unassigned.
func (t *Team) RoleOf(role string) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.roles[role]
}

// Reset clears the current role assignment. Nothing assigned before a Reset
// survives it.
func (t *Team) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.roles = nil
}
