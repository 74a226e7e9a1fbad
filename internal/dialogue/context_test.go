package dialogue

import "testing"

func TestClassifySignals(t *testing.T) {
	c := NewSignalClassifier()

	cases := []struct {
		text string
		want Context
	}{
		{"The deploy is urgent, production is down", ContextCrisis},
		{"Why did the build fail?", ContextAccountability},
		{"You said this was fixed last week", ContextAccountability},
		{"Should I use a queue or a cron job here?", ContextDecision},
		{"What if we cached the whole index? Just wondering", ContextExploration},
		{"How does the scheduler pick a worker?", ContextTeaching},
		{"Nice weather today", ContextGeneral},
		{"", ContextGeneral},
	}
	for _, tc := range cases {
		if got := c.Classify(tc.text); got != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestClassifyCrisisDominatesExploration(t *testing.T) {
	c := NewSignalClassifier()
	text := "This is urgent, but maybe we could also explore what if we rolled back?"
	if got := c.Classify(text); got != ContextCrisis {
		t.Fatalf("Classify = %q, want %q", got, ContextCrisis)
	}
}

func TestClassifyAccountabilityDominatesExploration(t *testing.T) {
	c := NewSignalClassifier()
	text := "Why did you change the config? Maybe there was a reason"
	if got := c.Classify(text); got != ContextAccountability {
		t.Fatalf("Classify = %q, want %q", got, ContextAccountability)
	}
}

func TestClassifyIdempotent(t *testing.T) {
	c := NewSignalClassifier()
	text := "I'm wondering about the cache, maybe we should explore it"
	first := c.Classify(text)
	for i := 0; i < 5; i++ {
		if got := c.Classify(text); got != first {
			t.Fatalf("classification changed on call %d: %q != %q", i, got, first)
		}
	}
}
