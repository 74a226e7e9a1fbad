package dialogue

import "strings"

// Context is the inferred conversational mode. It selects which thresholds
// the evaluator applies; the enumeration itself is closed.
type Context string

const (
	ContextAccountability Context = "accountability"
	ContextExploration    Context = "exploration"
	ContextCrisis         Context = "crisis"
	ContextTeaching       Context = "teaching"
	ContextDecision       Context = "decision"
	ContextGeneral        Context = "general"
)

// ContextConfig holds the per-context thresholds. These are tuning defaults
// chosen from labeled historical dialogues, not physical constants; callers
// may override any of them at tracker construction.
type ContextConfig struct {
	MaxDrift      float64 `json:"max_drift"`
	MinContinuity float64 `json:"min_continuity"`
	Description   string  `json:"description"`
}

func DefaultContextConfigs() map[Context]ContextConfig {
	return map[Context]ContextConfig{
		ContextCrisis:         {MaxDrift: 0.25, MinContinuity: 0.55, Description: "an urgent incident that needs focused resolution"},
		ContextAccountability: {MaxDrift: 0.30, MinContinuity: 0.60, Description: "a direct accounting of a prior action or claim"},
		ContextDecision:       {MaxDrift: 0.40, MinContinuity: 0.50, Description: "a concrete choice between alternatives"},
		ContextTeaching:       {MaxDrift: 0.50, MinContinuity: 0.45, Description: "an explanation that builds understanding step by step"},
		ContextExploration:    {MaxDrift: 0.70, MinContinuity: 0.30, Description: "open-ended exploration of ideas"},
		ContextGeneral:        {MaxDrift: 0.60, MinContinuity: 0.40, Description: "a general conversation"},
	}
}

// Classifier maps the latest user turn to a conversational context. The
// default is lexical; stricter or model-based classifiers can be substituted
// without touching the metric engine or the evaluator.
type Classifier interface {
	Classify(userText string) Context
}

type signalRule struct {
	context Context
	phrases []string
}

// SignalClassifier matches case-insensitive signal phrases in a fixed
// precedence order. Crisis is checked first: safety-critical phrasing can
// co-occur with exploratory language and must win. Accountability outranks
// exploration for the same reason ("why did you..., maybe..." is still an
// accountability demand). First matching rule wins; no match means general.
type SignalClassifier struct {
	rules []signalRule
}

func NewSignalClassifier() *SignalClassifier {
	return &SignalClassifier{rules: []signalRule{
		{ContextCrisis, []string{"urgent", "critical", "production", "breaking", "not working", "emergency", "outage"}},
		{ContextAccountability, []string{"why did", "explain why", "you said", "justify", "you told me", "you claimed"}},
		{ContextDecision, []string{"should i", "should we", "which approach", "exactly", "specifically", "what's the best"}},
		{ContextExploration, []string{"what if", "maybe", "wondering", "thinking about", "could we", "brainstorm"}},
		{ContextTeaching, []string{"how does", "what is", "explain", "teach me", "i don't understand", "walk me through"}},
	}}
}

func (c *SignalClassifier) Classify(userText string) Context {
	text := strings.ToLower(userText)
	for _, rule := range c.rules {
		for _, phrase := range rule.phrases {
			if strings.Contains(text, phrase) {
				return rule.context
			}
		}
	}
	return ContextGeneral
}
