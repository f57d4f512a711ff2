package memory

import (
	"context"
	"testing"
)

func TestTokenize(t *testing.T) {
	tokens := tokenize("User was studying: Code.exe - main.go!")
	want := []string{"user", "was", "studying", "code", "exe", "main", "go"}
	if len(tokens) != len(want) {
		t.Fatalf("tokens = %v, want %v", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Errorf("tokens[%d] = %q, want %q", i, tokens[i], want[i])
		}
	}
}

func TestTFIDFEmbedderSimilarity(t *testing.T) {
	docs := []string{
		"User was studying: reading sqlite documentation",
		"User was studying: writing go tests",
		"User was caught playing: league of legends",
		"User was caught playing: steam game browsing",
	}
	emb := NewTFIDFEmbedder(docs, 64)

	ctx := context.Background()
	study, err := emb.Embed(ctx, "studying go documentation")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	play, err := emb.Embed(ctx, "playing league steam")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	studyDoc, _ := emb.Embed(ctx, docs[0])

	simStudy := CosineSimilarity(study, studyDoc)
	simPlay := CosineSimilarity(play, studyDoc)
	if simStudy <= simPlay {
		t.Errorf("study similarity %f should beat play similarity %f", simStudy, simPlay)
	}
}

func TestTFIDFEmbedderEmptyCorpus(t *testing.T) {
	emb := NewTFIDFEmbedder(nil, 64)
	if emb.Dimensions() != 1 {
		t.Errorf("dims = %d, want minimum 1", emb.Dimensions())
	}

	vec, err := emb.Embed(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 1 {
		t.Errorf("len(vec) = %d, want 1", len(vec))
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float64{1, 0, 0}
	b := []float64{1, 0, 0}
	c := []float64{0, 1, 0}

	if sim := CosineSimilarity(a, b); sim < 0.999 {
		t.Errorf("identical vectors sim = %f, want ~1", sim)
	}
	if sim := CosineSimilarity(a, c); sim != 0 {
		t.Errorf("orthogonal vectors sim = %f, want 0", sim)
	}
	if sim := CosineSimilarity(a, []float64{1, 2}); sim != 0 {
		t.Errorf("mismatched dims sim = %f, want 0", sim)
	}
}
