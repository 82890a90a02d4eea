package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/rekall-kb/rekall/internal/types"
)

// fakeProvider maps known substrings to fixed vectors so tests can assert
// on relative similarity without a real model.
type fakeProvider struct {
	dim     int
	vectors map[string][]float32
}

func (f *fakeProvider) Dim() int { return f.dim }

func (f *fakeProvider) Embed(_ context.Context, text string) ([]float32, error) {
	for substr, v := range f.vectors {
		if contains(text, substr) {
			out := make([]float32, len(v))
			copy(out, v)
			return out, nil
		}
	}
	return make([]float32, f.dim), nil
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestNormalizeUnitLength(t *testing.T) {
	v := Normalize([]float32{3, 4})
	got := math.Hypot(float64(v[0]), float64(v[1]))
	if math.Abs(got-1.0) > 1e-6 {
		t.Errorf("||v|| = %v, want 1.0", got)
	}
}

func TestDotOfOrthogonalIsZero(t *testing.T) {
	a := Normalize([]float32{1, 0})
	b := Normalize([]float32{0, 1})
	if d := Dot(a, b); math.Abs(d) > 1e-9 {
		t.Errorf("Dot = %v, want 0", d)
	}
}

func TestNullProviderDisablesSemanticChannel(t *testing.T) {
	if Enabled(NullProvider{}) {
		t.Fatal("NullProvider must report Enabled=false")
	}
	if _, err := (NullProvider{}).Embed(context.Background(), "x"); err == nil {
		t.Fatal("NullProvider.Embed should fail")
	}
}

func TestForEntrySoftFailsWithoutAbortingPersist(t *testing.T) {
	p := &fakeProvider{dim: 2, vectors: map[string][]float32{}}
	e := &types.Entry{ID: "e1", Title: "CORS fails on Safari", Body: "credentials: include"}

	v, err := ForEntry(context.Background(), p, e, nil)
	if err != nil {
		t.Fatalf("ForEntry: %v", err)
	}
	if len(v.Summary) != 2 {
		t.Fatalf("expected summary vector of dim 2, got %d", len(v.Summary))
	}
	if v.Context != nil {
		t.Fatalf("expected no context vector without a persistable context")
	}
}

func TestBestSimilarityPicksLarger(t *testing.T) {
	query := Normalize([]float32{1, 0})
	v := Vectors{
		Summary: Normalize([]float32{0, 1}),
		Context: Normalize([]float32{1, 1}),
	}
	got := BestSimilarity(query, v)
	want := Dot(query, v.Context)
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("BestSimilarity = %v, want %v", got, want)
	}
}
