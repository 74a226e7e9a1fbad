package dialogue

import (
	"context"
	"testing"
	"time"

	"github.com/mbertolli/convopulse/internal/embed"
	"github.com/mbertolli/convopulse/internal/topics"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	return NewTracker(embed.NewMockEmbedder(), topics.NewHeuristicExtractor(), TrackerConfig{})
}

func mustAdd(t *testing.T, tr *Tracker, speaker Speaker, text string, at time.Time) Snapshot {
	t.Helper()
	snap, err := tr.AddTurnAt(context.Background(), speaker, text, at)
	if err != nil {
		t.Fatalf("AddTurnAt(%q, %q): %v", speaker, text, err)
	}
	return snap
}

func TestTrackerWarmingUpThenEvaluating(t *testing.T) {
	tr := newTestTracker(t)

	snap := mustAdd(t, tr, SpeakerUser, "Hello there", at(0))
	if snap.Status != StatusWarmingUp {
		t.Fatalf("turn 1: Status = %q, want %q", snap.Status, StatusWarmingUp)
	}
	snap = mustAdd(t, tr, SpeakerAssistant, "Hi, what can I help with?", at(10))
	if snap.Status != StatusWarmingUp {
		t.Fatalf("turn 2: Status = %q, want %q", snap.Status, StatusWarmingUp)
	}
	snap = mustAdd(t, tr, SpeakerUser, "Let's get started", at(20))
	if snap.Status == StatusWarmingUp {
		t.Fatalf("turn 3: still %q, want evaluated status", StatusWarmingUp)
	}
	if snap.TurnCount != 3 {
		t.Fatalf("TurnCount = %d, want 3", snap.TurnCount)
	}
}

func TestTrackerDetectsDriftInAccountability(t *testing.T) {
	tr := newTestTracker(t)

	mustAdd(t, tr, SpeakerUser, "Hello there", at(0))
	mustAdd(t, tr, SpeakerAssistant, "Hi, ready when needed", at(20))
	mustAdd(t, tr, SpeakerUser, "Why did the build fail?", at(40))
	snap := mustAdd(t, tr, SpeakerAssistant,
		"Building systems involves many steps and tooling choices.", at(70))

	if tr.CurrentContext() != ContextAccountability {
		t.Fatalf("CurrentContext = %q, want %q", tr.CurrentContext(), ContextAccountability)
	}
	if snap.Metrics.Drift == nil {
		t.Fatalf("Drift = nil, want value")
	}
	if *snap.Metrics.Drift < 0.6 {
		t.Fatalf("Drift = %v, want >= 0.6 for near-disjoint texts", *snap.Metrics.Drift)
	}
	if !hasAlert(snap, AlertDrift) {
		t.Fatalf("missing drift alert: %+v", snap.Alerts)
	}
	if snap.Status != StatusDriftDetected {
		t.Fatalf("Status = %q, want %q", snap.Status, StatusDriftDetected)
	}
	if tr.Guidance(snap) == "" {
		t.Fatalf("Guidance empty for alerting snapshot")
	}
}

func TestTrackerHealthyFocusedExploration(t *testing.T) {
	tr := newTestTracker(t)

	mustAdd(t, tr, SpeakerUser, "Let's talk about the Worker Module refactor.", at(0))
	mustAdd(t, tr, SpeakerAssistant, "Sure, the Worker Module has grown messy.", at(30))
	mustAdd(t, tr, SpeakerUser,
		"I'm wondering if we should make the Worker Module async, or maybe restructure the Worker Module?", at(60))
	snap := mustAdd(t, tr, SpeakerAssistant,
		"We could keep the Worker Module async, or maybe restructure the Worker Module into smaller parts.", at(95))

	if tr.CurrentContext() != ContextExploration {
		t.Fatalf("CurrentContext = %q, want %q", tr.CurrentContext(), ContextExploration)
	}
	if snap.Metrics.Drift == nil || *snap.Metrics.Drift > 0.70 {
		t.Fatalf("Drift = %v, want within exploration tolerance 0.70", snap.Metrics.Drift)
	}
	if snap.Metrics.Coherence == nil || *snap.Metrics.Coherence < 0.30 {
		t.Fatalf("Coherence = %v, want at least 0.30", snap.Metrics.Coherence)
	}
	if len(snap.Alerts) != 0 {
		t.Fatalf("Alerts = %+v, want none", snap.Alerts)
	}
	if snap.Status != StatusHealthyFocused {
		t.Fatalf("Status = %q, want %q", snap.Status, StatusHealthyFocused)
	}
	if tr.Guidance(snap) != "" {
		t.Fatalf("Guidance = %q, want empty", tr.Guidance(snap))
	}
}

func TestTrackerDetectsFragmentation(t *testing.T) {
	tr := newTestTracker(t)

	speakers := []Speaker{SpeakerUser, SpeakerAssistant, SpeakerUser, SpeakerAssistant, SpeakerUser}
	var snap Snapshot
	for i, sp := range speakers {
		snap = mustAdd(t, tr, sp, "ok", at(i))
	}

	if !snap.Metrics.Fragmented {
		t.Fatalf("Fragmented = false after rapid shallow turns")
	}
	if snap.Status != StatusFragmented {
		t.Fatalf("Status = %q, want %q", snap.Status, StatusFragmented)
	}
	if !hasAlert(snap, AlertFragmentation) {
		t.Fatalf("missing fragmentation alert: %+v", snap.Alerts)
	}
}

func TestTrackerRejectsInvalidSpeaker(t *testing.T) {
	tr := newTestTracker(t)
	if _, err := tr.AddTurnAt(context.Background(), Speaker("narrator"), "hi", at(0)); err != ErrInvalidSpeaker {
		t.Fatalf("err = %v, want ErrInvalidSpeaker", err)
	}
	if _, ok := tr.Latest(); ok {
		t.Fatalf("Latest() reports a snapshot after a rejected turn")
	}
}

func TestTrackerContextStickyAcrossAssistantTurns(t *testing.T) {
	tr := newTestTracker(t)

	mustAdd(t, tr, SpeakerUser, "This is urgent, production is down", at(0))
	if tr.CurrentContext() != ContextCrisis {
		t.Fatalf("CurrentContext = %q, want %q", tr.CurrentContext(), ContextCrisis)
	}
	mustAdd(t, tr, SpeakerAssistant, "Rolling back the deploy now", at(5))
	if tr.CurrentContext() != ContextCrisis {
		t.Fatalf("assistant turn changed context to %q", tr.CurrentContext())
	}
	mustAdd(t, tr, SpeakerUser, "Thanks, looks fine now", at(300))
	if tr.CurrentContext() != ContextGeneral {
		t.Fatalf("CurrentContext = %q after neutral user turn, want %q", tr.CurrentContext(), ContextGeneral)
	}
}

func TestTrackerLatest(t *testing.T) {
	tr := newTestTracker(t)
	if _, ok := tr.Latest(); ok {
		t.Fatalf("Latest() = ok before any turn")
	}
	want := mustAdd(t, tr, SpeakerUser, "Hello", at(0))
	got, ok := tr.Latest()
	if !ok {
		t.Fatalf("Latest() not ok after a turn")
	}
	if got.GeneratedAt != want.GeneratedAt || got.Status != want.Status {
		t.Fatalf("Latest() = %+v, want %+v", got, want)
	}
}
