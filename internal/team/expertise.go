package team

import (
	"strings"

	"github.com/vampirenirmal/edrr/internal/core"
)

// phaseKeywords captures what kind of expertise each phase favors. Matching
// is lowercase substring containment in either direction.
var phaseKeywords = map[core.Phase][]string{
	core.PhaseExpand: {
		"exploration",
		"brainstorming",
		"divergent thinking",
		"idea generation",
		"research",
		"information gathering",
		"discovery",
		"creativity",
		"innovation",
		"possibilities",
		"alternatives",
	},
	core.PhaseDifferentiate: {
		"analysis",
		"comparison",
		"categorization",
		"classification",
		"distinction",
		"differentiation",
		"evaluation",
		"assessment",
		"critical thinking",
		"discernment",
		"judgment",
		"discrimination",
	},
	core.PhaseRefine: {
		"refinement",
		"improvement",
		"enhancement",
		"optimization",
		"polishing",
		"editing",
		"revision",
		"iteration",
		"detail-oriented",
		"precision",
		"accuracy",
		"quality control",
		"fine-tuning",
	},
	core.PhaseRetrospect: {
		"reflection",
		"retrospective",
		"review",
		"evaluation",
		"assessment",
		"learning",
		"insight",
		"understanding",
		"metacognition",
		"self-awareness",
		"introspection",
		"contemplation",
	},
}

// ExpertiseScore rates an agent's affinity for a task in a given phase. The
// base score counts one point per (tag, task word) pair that matches; the
// phase score counts two per (tag, phase keyword) pair and is doubled again
// when combined, so phase fit dominates task fit.
func ExpertiseScore(agent Agent, phase core.Phase, task core.Task) float64 {
	tags := agent.Expertise()
	if len(tags) == 0 {
		return 0
	}
	words := taskWords(task)

	base := 0
	phaseScore := 0
	for _, tag := range tags {
		lowered := strings.ToLower(tag)
		if lowered == "" {
			continue
		}
		for _, word := range words {
			if strings.Contains(lowered, word) || strings.Contains(word, lowered) {
				base++
			}
		}
		for _, keyword := range phaseKeywords[phase] {
			if strings.Contains(lowered, keyword) || strings.Contains(keyword, lowered) {
				phaseScore += 2
			}
		}
	}
	return float64(base + phaseScore*2)
}

// taskWords splits the task description and requirements into lowercase
// keywords.
func taskWords(task core.Task) []string {
	words := strings.Fields(strings.ToLower(task.Description))
	for _, req := range task.Requirements {
		words = append(words, strings.Fields(strings.ToLower(req))...)
	}
	return words
}
