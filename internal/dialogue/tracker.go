package dialogue

import (
	"context"
	"time"
)

// TrackerConfig bundles every tunable of one tracker. Zero values fall back
// to the defaults; Contexts entries override the built-in threshold table
// per context.
type TrackerConfig struct {
	WindowSize     int
	FragmentTurns  int
	FragmentMaxGap time.Duration
	FragmentMaxLen int
	CoherenceTurns int
	QALowWater     float64
	Contexts       map[Context]ContextConfig
}

func (c TrackerConfig) contextConfigs() map[Context]ContextConfig {
	merged := DefaultContextConfigs()
	for k, v := range c.Contexts {
		merged[k] = v
	}
	return merged
}

// Tracker owns one window and the latest snapshot for the lifetime of one
// conversation session. Each AddTurn call fully computes and returns its
// snapshot before returning; there is no background work. The tracker does
// not synchronize internally: callers tracking a session concurrently must
// serialize their calls (the session manager does this with a per-session
// mutex).
type Tracker struct {
	window     *Window
	classifier Classifier
	engine     *MetricEngine
	evaluator  *Evaluator
	guidance   *GuidanceRenderer
	current    Context
	latest     *Snapshot
	now        func() time.Time
}

func NewTracker(embedder Embedder, topics TopicExtractor, cfg TrackerConfig) *Tracker {
	contexts := cfg.contextConfigs()
	return &Tracker{
		window:     NewWindow(cfg.WindowSize),
		classifier: NewSignalClassifier(),
		engine: NewMetricEngine(embedder, topics, MetricConfig{
			FragmentTurns:  cfg.FragmentTurns,
			FragmentMaxGap: cfg.FragmentMaxGap,
			FragmentMaxLen: cfg.FragmentMaxLen,
			CoherenceTurns: cfg.CoherenceTurns,
		}),
		evaluator: NewEvaluator(contexts, cfg.QALowWater),
		guidance:  NewGuidanceRenderer(contexts),
		current:   ContextGeneral,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetClassifier swaps the context classification strategy.
func (t *Tracker) SetClassifier(c Classifier) {
	if c != nil {
		t.classifier = c
	}
}

// SetClock injects a deterministic clock. Test hook.
func (t *Tracker) SetClock(now func() time.Time) {
	if now != nil {
		t.now = now
	}
}

// AddTurn ingests one turn stamped with the current time.
func (t *Tracker) AddTurn(ctx context.Context, speaker Speaker, text string) (Snapshot, error) {
	return t.AddTurnAt(ctx, speaker, text, t.now())
}

// AddTurnAt ingests one turn with an explicit timestamp and returns the
// freshly evaluated snapshot. The only error is ErrInvalidSpeaker; embedder
// or extractor trouble degrades the affected metric instead of failing the
// call.
func (t *Tracker) AddTurnAt(ctx context.Context, speaker Speaker, text string, at time.Time) (Snapshot, error) {
	if speaker != SpeakerUser && speaker != SpeakerAssistant {
		return Snapshot{}, ErrInvalidSpeaker
	}

	t.window.Append(newTurn(speaker, text, at))
	if speaker == SpeakerUser {
		t.current = t.classifier.Classify(text)
	}

	metrics := t.engine.Compute(ctx, t.window)
	snap := t.evaluator.Evaluate(t.window.Len(), t.current, metrics, at)
	t.latest = &snap
	return snap, nil
}

// Latest returns the most recent snapshot, if any turn has been ingested.
func (t *Tracker) Latest() (Snapshot, bool) {
	if t.latest == nil {
		return Snapshot{}, false
	}
	return *t.latest, true
}

// CurrentContext returns the classification of the latest user turn.
func (t *Tracker) CurrentContext() Context { return t.current }

// Guidance renders coaching text for a snapshot.
func (t *Tracker) Guidance(snap Snapshot) string { return t.guidance.Render(snap) }
