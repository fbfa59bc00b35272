package team

import (
	"sort"

	"github.com/vampirenirmal/edrr/internal/core"
)

// Role names. Primus leads the current phase; the rest are filled in a
// phase-specific order.
const (
	RolePrimus     = "primus"
	RoleWorker     = "worker"
	RoleSupervisor = "supervisor"
	RoleDesigner   = "designer"
	RoleEvaluator  = "evaluator"
)

// phaseRoleOrder gives the fill order for the non-primus roles per phase.
// Phases that lean on critique fill evaluator first; build-heavy phases fill
// worker first.
var phaseRoleOrder = map[core.Phase][]string{
	core.PhaseExpand:        {RoleWorker, RoleDesigner, RoleSupervisor, RoleEvaluator},
	core.PhaseDifferentiate: {RoleEvaluator, RoleSupervisor, RoleWorker, RoleDesigner},
	core.PhaseRefine:        {RoleWorker, RoleDesigner, RoleEvaluator, RoleSupervisor},
	core.PhaseRetrospect:    {RoleEvaluator, RoleSupervisor, RoleDesigner, RoleWorker},
}

// AssignRolesForPhase recomputes the full role assignment for a phase. The
// agent with the highest expertise score becomes Primus; remaining roles are
// filled by descending score, ties broken by registration order. When the
// team is smaller than the role count, the fill index clamps to the last
// ranked agent, so every overflow role lands on the lowest-ranked member.
// The assignment replaces whatever the team held before.
func (t *Team) AssignRolesForPhase(phase core.Phase, task core.Task) map[string]string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.agents) == 0 {
		t.roles = nil
		return nil
	}

	type scored struct {
		agent Agent
		score float64
	}
	ranked := make([]scored, 0, len(t.agents))
	for _, a := range t.agents {
		ranked = append(ranked, scored{agent: a, score: ExpertiseScore(a, phase, task)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	roles := make(map[string]string, len(phaseRoleOrder[phase])+1)
	roles[RolePrimus] = ranked[0].agent.Name()

	for i, role := range phaseRoleOrder[phase] {
		idx := i + 1
		if idx > len(ranked)-1 {
			idx = len(ranked) - 1
		}
		roles[role] = ranked[idx].agent.Name()
	}

	t.roles = roles

	out := make(map[string]string, len(roles))
	for k, v := range roles {
		out[k] = v
	}
	return out
}
