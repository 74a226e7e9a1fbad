package dialogue

import (
	"fmt"
	"strings"
)

// GuidanceRenderer turns a snapshot's alerts into coaching text. Pure and
// deterministic: one template per alert kind, with the context description
// and the violated threshold substituted in. An alert-free snapshot renders
// to the empty string, never an error.
type GuidanceRenderer struct {
	contexts map[Context]ContextConfig
}

func NewGuidanceRenderer(contexts map[Context]ContextConfig) *GuidanceRenderer {
	if contexts == nil {
		contexts = DefaultContextConfigs()
	}
	return &GuidanceRenderer{contexts: contexts}
}

func (g *GuidanceRenderer) Render(snap Snapshot) string {
	if len(snap.Alerts) == 0 {
		return ""
	}
	cc, ok := g.contexts[snap.Context]
	if !ok {
		cc = g.contexts[ContextGeneral]
	}

	lines := make([]string, 0, len(snap.Alerts))
	for _, alert := range snap.Alerts {
		switch alert.Kind {
		case AlertDrift:
			lines = append(lines, fmt.Sprintf(
				"The last response drifted from what was asked. This looks like %s, which tolerates drift up to %.2f; re-anchor on the original question before moving on.",
				cc.Description, cc.MaxDrift))
		case AlertFragmentation:
			lines = append(lines, fmt.Sprintf(
				"The exchange has turned into rapid, shallow back-and-forth. For %s, slow down and take one thread to completion.",
				cc.Description))
		case AlertCoherence:
			lines = append(lines, fmt.Sprintf(
				"Topics are scattering across recent turns. This looks like %s, which needs continuity of at least %.2f; pick the thread that matters and drop the rest.",
				cc.Description, cc.MinContinuity))
		case AlertQAImbalance:
			lines = append(lines, fmt.Sprintf(
				"Questions are going unanswered. In %s, direct answers are the point; answer what was asked before adding anything else.",
				cc.Description))
		default:
			lines = append(lines, alert.Message)
		}
	}
	return strings.Join(lines, "\n")
}
