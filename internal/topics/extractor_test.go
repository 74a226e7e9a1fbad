package topics

import (
	"reflect"
	"testing"
)

func TestExtractCapitalizedTopics(t *testing.T) {
	e := NewHeuristicExtractor()

	cases := []struct {
		text string
		want []string
	}{
		{"the build uses Docker and Redis", []string{"docker", "redis"}},
		{"We shipped the Worker Module yesterday", []string{"worker module"}},
		{"nothing capitalized here", nil},
		{"", nil},
		{"Docker Docker Docker", []string{"docker docker docker"}},
	}
	for _, tc := range cases {
		got := e.Extract(tc.text)
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("Extract(%q) = %v, want %v", tc.text, got, tc.want)
		}
	}
}

func TestExtractDeduplicates(t *testing.T) {
	e := NewHeuristicExtractor()
	got := e.Extract("Docker again, and Docker once more, then Postgres")
	want := []string{"docker", "postgres"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
}

func TestExtractCapitalizedStopwordsIgnored(t *testing.T) {
	e := NewHeuristicExtractor()
	// Sentence-leading furniture must not glue onto the real topic.
	got := e.Extract("The Docker cache is stale. I'm checking the Registry now.")
	want := []string{"docker", "registry"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Extract = %v, want %v", got, want)
	}
}

func TestExtractDeterministic(t *testing.T) {
	e := NewHeuristicExtractor()
	text := "Comparing Postgres Replication against Litestream for the Backup path"
	first := e.Extract(text)
	for i := 0; i < 3; i++ {
		if got := e.Extract(text); !reflect.DeepEqual(got, first) {
			t.Fatalf("extraction changed between calls: %v != %v", got, first)
		}
	}
}
