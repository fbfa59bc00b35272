package core

// Phase is one stage of the Expand -> Differentiate -> Refine -> Retrospect
// cycle. The ordering is fixed; automatic progression only ever moves forward
// one step at a time.
type Phase int

const (
	PhaseExpand Phase = iota
	PhaseDifferentiate
	PhaseRefine
	PhaseRetrospect
)

// Phases lists every phase in cycle order.
var Phases = []Phase{PhaseExpand, PhaseDifferentiate, PhaseRefine, PhaseRetrospect}

func (p Phase) String() string {
	switch p {
	case PhaseExpand:
		return "Expand"
	case PhaseDifferentiate:
		return "Differentiate"
	case PhaseRefine:
		return "Refine"
	case PhaseRetrospect:
		return "Retrospect"
	default:
		return "Unknown"
	}
}

// Next returns the phase that immediately follows p. The second return value
// is false for Retrospect, which has no forward transition.
func (p Phase) Next() (Phase, bool) {
	switch p {
	case PhaseExpand:
		return PhaseDifferentiate, true
	case PhaseDifferentiate:
		return PhaseRefine, true
	case PhaseRefine:
		return PhaseRetrospect, true
	default:
		return p, false
	}
}

// ParsePhase maps a phase name back to its Phase value. Matching is
// case-sensitive; unrecognized names report ok == false so callers can fall
// back to the fixed phase order instead of failing.
func ParsePhase(name string) (Phase, bool) {
	switch name {
	case "Expand":
		return PhaseExpand, true
	case "Differentiate":
		return PhaseDifferentiate, true
	case "Refine":
		return PhaseRefine, true
	case "Retrospect":
		return PhaseRetrospect, true
	default:
		return PhaseExpand, false
	}
}
