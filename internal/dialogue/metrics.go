package dialogue

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/mbertolli/convopulse/internal/embed"
)

// Embedder is the capability the metric engine needs from an embedding
// backend. Implementations live in internal/embed; tests supply fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TopicExtractor produces a coarse topic-proxy set for one turn's text.
// Deterministic, finite, may be empty. The default heuristic lives in
// internal/topics.
type TopicExtractor interface {
	Extract(text string) []string
}

// Metrics holds one evaluation cycle's raw signals. Pointer fields are nil
// when the metric is not yet computable (insufficient history, embedder
// unavailable, no questions asked); a nil metric is excluded from
// evaluation, never defaulted to a passing value.
type Metrics struct {
	Drift      *float64 `json:"drift,omitempty"`
	Fragmented bool     `json:"fragmented"`
	Coherence  *float64 `json:"coherence,omitempty"`
	QARatio    *float64 `json:"qa_ratio,omitempty"`
}

// MetricConfig carries the tunable thresholds for metric computation.
type MetricConfig struct {
	// FragmentTurns is how many trailing turns fragmentation inspects.
	FragmentTurns int
	// FragmentMaxGap is the average inter-turn gap below which exchanges
	// count as rapid.
	FragmentMaxGap time.Duration
	// FragmentMaxLen is the average turn length (in characters, roughly two
	// short lines) below which turns count as shallow.
	FragmentMaxLen int
	// CoherenceTurns is how many trailing turns topic scatter inspects.
	CoherenceTurns int
}

func (c MetricConfig) withDefaults() MetricConfig {
	if c.FragmentTurns <= 0 {
		c.FragmentTurns = 5
	}
	if c.FragmentMaxGap <= 0 {
		c.FragmentMaxGap = 5 * time.Second
	}
	if c.FragmentMaxLen <= 0 {
		c.FragmentMaxLen = 160
	}
	if c.CoherenceTurns <= 0 {
		c.CoherenceTurns = 3
	}
	return c
}

// MetricEngine computes the per-window health metrics. Each metric fails
// open independently: one being uncomputable never blocks the others.
type MetricEngine struct {
	embedder Embedder
	topics   TopicExtractor
	cfg      MetricConfig
}

func NewMetricEngine(embedder Embedder, topics TopicExtractor, cfg MetricConfig) *MetricEngine {
	return &MetricEngine{embedder: embedder, topics: topics, cfg: cfg.withDefaults()}
}

func (e *MetricEngine) Compute(ctx context.Context, w *Window) Metrics {
	return Metrics{
		Drift:      e.drift(ctx, w),
		Fragmented: e.fragmented(w),
		Coherence:  e.coherence(w),
		QARatio:    e.qaRatio(w),
	}
}

// drift measures how far the latest response strayed from the question it
// answered: 1 - cosine(embed(question), embed(response)), clamped to [0,1].
// Nil until a user turn directly followed by an assistant turn exists, or
// when the embedder is unavailable.
func (e *MetricEngine) drift(ctx context.Context, w *Window) *float64 {
	if e.embedder == nil {
		return nil
	}
	turns := w.Turns()
	for i := len(turns) - 1; i >= 1; i-- {
		if turns[i].Speaker != SpeakerAssistant || turns[i-1].Speaker != SpeakerUser {
			continue
		}
		question, response := turns[i-1], turns[i]
		if err := e.ensureEmbedding(ctx, question); err != nil {
			return nil
		}
		if err := e.ensureEmbedding(ctx, response); err != nil {
			return nil
		}
		d := clamp01(1 - embed.Cosine(question.embedding, response.embedding))
		return &d
	}
	return nil
}

func (e *MetricEngine) ensureEmbedding(ctx context.Context, t *Turn) error {
	if t.embedding != nil {
		return nil
	}
	vec, err := e.embedder.Embed(ctx, t.Text)
	if err != nil {
		return err
	}
	t.embedding = vec
	return nil
}

// fragmented reports rapid, shallow exchange over the trailing turns. Both
// conditions are required: speed alone is not fragmentation, brevity alone
// is not fragmentation.
func (e *MetricEngine) fragmented(w *Window) bool {
	turns := w.Last(e.cfg.FragmentTurns)
	if len(turns) < e.cfg.FragmentTurns {
		return false
	}

	var gapTotal time.Duration
	var lenTotal int
	for i, t := range turns {
		lenTotal += len(t.Text)
		if i == 0 {
			continue
		}
		gap := t.Timestamp.Sub(turns[i-1].Timestamp)
		gapTotal += gap
		t.IsRapid = gap < e.cfg.FragmentMaxGap
	}

	avgGap := gapTotal / time.Duration(len(turns)-1)
	avgLen := lenTotal / len(turns)
	return avgGap < e.cfg.FragmentMaxGap && avgLen < e.cfg.FragmentMaxLen
}

// coherence is the inverse of topic scatter over the trailing turns:
// 1 - unique topics / total topic mentions, clamped to [0,1]. Nil with fewer
// turns than configured or when no topics are extracted at all.
func (e *MetricEngine) coherence(w *Window) *float64 {
	if e.topics == nil {
		return nil
	}
	turns := w.Last(e.cfg.CoherenceTurns)
	if len(turns) < e.cfg.CoherenceTurns {
		return nil
	}

	unique := make(map[string]struct{})
	mentions := 0
	for _, t := range turns {
		lower := strings.ToLower(t.Text)
		for _, topic := range e.topics.Extract(t.Text) {
			key := strings.ToLower(topic)
			unique[key] = struct{}{}
			if n := strings.Count(lower, key); n > 1 {
				mentions += n
			} else {
				mentions++
			}
		}
	}
	if mentions == 0 {
		return nil
	}
	c := clamp01(1 - float64(len(unique))/float64(mentions))
	return &c
}

var answerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?im)^\s*(yes|no)\b`),
	regexp.MustCompile(`(?i)\bbecause\b`),
	regexp.MustCompile(`(?i)\b(the answer is|the reason is|it failed|it is|it was)\b`),
	regexp.MustCompile(`(?i)\b(you should|i recommend|you can fix)\b`),
}

// qaRatio is direct-answer patterns in assistant turns over question marks
// in user turns across the whole window. Nil when no questions were asked:
// the ratio is then not applicable rather than an alert trigger.
func (e *MetricEngine) qaRatio(w *Window) *float64 {
	questions := 0
	answers := 0
	for _, t := range w.Turns() {
		switch t.Speaker {
		case SpeakerUser:
			questions += t.QuestionCount
		case SpeakerAssistant:
			for _, re := range answerPatterns {
				answers += len(re.FindAllString(t.Text, -1))
			}
		}
	}
	if questions == 0 {
		return nil
	}
	r := float64(answers) / float64(questions)
	return &r
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
