package embed

import (
	"context"
	"testing"
)

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder()
	a, err := e.Embed(context.Background(), "the cache is cold")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	b, err := e.Embed(context.Background(), "the cache is cold")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(a) != e.Dimensions() {
		t.Fatalf("len = %d, want %d", len(a), e.Dimensions())
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v != %v", i, a[i], b[i])
		}
	}
}

func TestMockEmbedderCosineExtremes(t *testing.T) {
	e := NewMockEmbedder()
	ctx := context.Background()

	same1, _ := e.Embed(ctx, "deploy the release")
	same2, _ := e.Embed(ctx, "deploy the release")
	if cos := Cosine(same1, same2); cos < 0.999 {
		t.Fatalf("Cosine(identical) = %v, want ~1", cos)
	}

	disjoint1, _ := e.Embed(ctx, "alpha bravo charlie")
	disjoint2, _ := e.Embed(ctx, "delta echo foxtrot")
	if cos := Cosine(disjoint1, disjoint2); cos > 0.2 {
		t.Fatalf("Cosine(disjoint) = %v, want near 0", cos)
	}

	overlap, _ := e.Embed(ctx, "deploy the hotfix")
	if cos := Cosine(same1, overlap); cos <= 0.2 || cos >= 0.999 {
		t.Fatalf("Cosine(overlapping) = %v, want strictly between extremes", cos)
	}
}

func TestCosineDegenerateInputs(t *testing.T) {
	if got := Cosine(nil, nil); got != 0 {
		t.Fatalf("Cosine(nil, nil) = %v, want 0", got)
	}
	if got := Cosine([]float32{1, 0}, []float32{1, 0, 0}); got != 0 {
		t.Fatalf("Cosine(mismatched dims) = %v, want 0", got)
	}
	if got := Cosine([]float32{0, 0}, []float32{1, 0}); got != 0 {
		t.Fatalf("Cosine(zero vector) = %v, want 0", got)
	}
}
