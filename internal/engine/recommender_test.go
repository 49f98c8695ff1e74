package engine

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/abhisek/geoquiz/internal/catalog"
)

func ids(views []TheoremView) []int {
	out := make([]int, len(views))
	for i, v := range views {
		out[i] = v.ID
	}
	return out
}

func TestRecommend_SortedByWeightThenID(t *testing.T) {
	c := testCatalog(t)
	st := freshState(t, c)
	st.TheoremWeights[3] = 0.4
	st.TheoremWeights[4] = 0.4
	st.TheoremWeights[2] = 0.2

	got, err := NewRecommender(c).Recommend(context.Background(), st, 0.01)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if diff := cmp.Diff([]int{3, 4, 2, 1}, ids(got)); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Weight > got[i-1].Weight {
			t.Errorf("not descending at %d: %v > %v", i, got[i].Weight, got[i-1].Weight)
		}
	}
}

func TestRecommend_ThresholdFiltersAndFallsBack(t *testing.T) {
	c := testCatalog(t)
	st := freshState(t, c)
	st.TheoremWeights[2] = 0.3
	r := NewRecommender(c)

	got, _ := r.Recommend(context.Background(), st, 0.2)
	if diff := cmp.Diff([]int{2}, ids(got)); diff != "" {
		t.Errorf("threshold 0.2 (-want +got):\n%s", diff)
	}

	got, _ = r.Recommend(context.Background(), st, 0.9)
	if diff := cmp.Diff([]int{2}, ids(got)); diff != "" {
		t.Errorf("fallback (-want +got):\n%s", diff)
	}

	// All at the floor: the fallback is the lowest id.
	got, _ = r.Recommend(context.Background(), freshState(t, c), 0.5)
	if diff := cmp.Diff([]int{1}, ids(got)); diff != "" {
		t.Errorf("uniform fallback (-want +got):\n%s", diff)
	}
}

func TestRecommend_EmptyOnlyWithoutTheorems(t *testing.T) {
	data := testData()
	data.Theorems = nil
	data.CategoryLinks = nil
	data.QuestionLinks = nil
	c, err := catalog.New(data)
	if err != nil {
		t.Fatalf("build catalog: %v", err)
	}
	got, err := NewRecommender(c).Recommend(context.Background(), freshState(t, c), 0.01)
	if err != nil {
		t.Fatalf("recommend: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d theorems, want none", len(got))
	}
}

func TestRecommend_Idempotent(t *testing.T) {
	c := testCatalog(t)
	st := freshState(t, c)
	st.TheoremWeights[1] = 0.7
	r := NewRecommender(c)

	first, _ := r.Recommend(context.Background(), st, 0.01)
	second, _ := r.Recommend(context.Background(), st, 0.01)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("second call differs (-first +second):\n%s", diff)
	}
}

func TestImpliedCategory(t *testing.T) {
	c := testCatalog(t)
	r := NewRecommender(c)
	ctx := context.Background()

	tests := []struct {
		name     string
		question int
		answer   Answer
		want     int
	}{
		{"structured yes picks largest multiplier", 1, Answer{OptionID: 1}, 3},
		{"structured no", 1, Answer{OptionID: 2}, 3},
		{"free text matched theorem", 2, Answer{Text: "the base angles match"}, 2},
		{"free text without match falls back to leader", 2, Answer{Text: "no clue"}, 0},
		{"unsure falls back to leader", 1, Answer{OptionID: 3}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := r.ImpliedCategory(ctx, freshState(t, c), tt.question, tt.answer)
			if err != nil || !ok {
				t.Fatalf("ImpliedCategory() = %d, %v, %v", got, ok, err)
			}
			if got != tt.want {
				t.Errorf("ImpliedCategory() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecommendFor_ScopesToImpliedCategory(t *testing.T) {
	c := testCatalog(t)
	st := freshState(t, c)
	st.TheoremWeights[4] = 0.9

	// Isosceles (2) is implied; theorem 2 is the only one linked to it.
	got, err := NewRecommender(c).RecommendFor(context.Background(), st, 2, Answer{Text: "isosceles"}, 0.01)
	if err != nil {
		t.Fatalf("recommend for: %v", err)
	}
	if diff := cmp.Diff([]int{2}, ids(got)); diff != "" {
		t.Errorf("scoped ranking (-want +got):\n%s", diff)
	}
}
