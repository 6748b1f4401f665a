package capture

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"facegate/internal/core/models"
)

func matcherWith(refs []models.EmbeddingRef, files map[string]Embedding) (*Matcher, *fakeStore) {
	store := newFakeStore()
	for p, e := range files {
		store.files[p] = e
	}
	return NewMatcher(&fakeCatalog{refs: refs}, store), store
}

func TestMatcherIdentify(t *testing.T) {
	refs := []models.EmbeddingRef{
		{Label: "alice", Path: "a1"},
		{Label: "bob", Path: "b1"},
		{Label: "alice", Path: "a2"},
	}
	files := map[string]Embedding{
		"a1": {1, 0},
		"b1": {0, 0.3},
		"a2": {0.9, 0},
	}
	m, _ := matcherWith(refs, files)

	tests := []struct {
		name      string
		query     Embedding
		tolerance float64
		status    MatchStatus
		user      string
		distance  float64
	}{
		{name: "closest below tolerance", query: Embedding{0, 0.1}, tolerance: 0.45, status: MatchSuccess, user: "bob", distance: 0.2},
		{name: "closest above tolerance", query: Embedding{0, 2}, tolerance: 0.45, status: MatchUnknown, distance: 1.7},
		{name: "second sample of alice wins", query: Embedding{0.85, 0}, tolerance: 0.45, status: MatchSuccess, user: "alice", distance: 0.05},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := m.Identify(context.Background(), tt.query, tt.tolerance)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Status != tt.status || res.User != tt.user {
				t.Errorf("expected %s/%q, got %s/%q", tt.status, tt.user, res.Status, res.User)
			}
			if res.Distance == nil || abs(*res.Distance-tt.distance) > 1e-9 {
				t.Errorf("expected distance %v, got %v", tt.distance, res.Distance)
			}
		})
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

func TestMatcherDistanceEqualToToleranceIsUnknown(t *testing.T) {
	m, _ := matcherWith([]models.EmbeddingRef{{Label: "alice", Path: "a"}}, map[string]Embedding{"a": {0.5}})
	res, err := m.Identify(context.Background(), Embedding{0}, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != MatchUnknown {
		t.Errorf("expected unknown at distance == tolerance, got %s", res.Status)
	}
}

func TestMatcherTieKeepsFirst(t *testing.T) {
	refs := []models.EmbeddingRef{{Label: "first", Path: "x"}, {Label: "second", Path: "y"}}
	m, _ := matcherWith(refs, map[string]Embedding{"x": {1}, "y": {-1}})

	res, _ := m.Identify(context.Background(), Embedding{0}, 2)
	if res.User != "first" {
		t.Errorf("expected first candidate to win a tie, got %s", res.User)
	}
}

func TestMatcherSkipsUnloadableCandidates(t *testing.T) {
	refs := []models.EmbeddingRef{
		{Label: "ghost", Path: "missing"},
		{Label: "wrongdim", Path: "w"},
		{Label: "broken", Path: "b"},
		{Label: "dave", Path: "d"},
	}
	m, store := matcherWith(refs, map[string]Embedding{"w": {0, 0, 0}, "b": {0, 0}, "d": {0.1, 0}})
	store.loadErr["b"] = errors.New("corrupt npy")

	res, err := m.Identify(context.Background(), Embedding{0, 0}, 0.45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != MatchSuccess || res.User != "dave" {
		t.Errorf("expected dave, got %s/%s", res.Status, res.User)
	}
}

func TestMatcherNoCandidates(t *testing.T) {
	m, _ := matcherWith(nil, nil)
	res, err := m.Identify(context.Background(), Embedding{0}, 0.45)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Status != MatchUnknown || res.Distance != nil {
		t.Errorf("expected unknown with no distance, got %+v", res)
	}

	body, _ := json.Marshal(res)
	if string(body) != `{"distance":null,"status":"unknown"}` {
		t.Errorf("unexpected JSON %s", body)
	}
}

func TestMatcherCatalogFailure(t *testing.T) {
	m := NewMatcher(&fakeCatalog{listErr: errors.New("db down")}, newFakeStore())
	if _, err := m.Identify(context.Background(), Embedding{0}, 0.45); !errors.Is(err, ErrStorage) {
		t.Errorf("expected ErrStorage, got %v", err)
	}
}

func TestMatchResultJSON(t *testing.T) {
	d := 0.25
	tests := []struct {
		res  MatchResult
		want string
	}{
		{MatchResult{Status: MatchSuccess, User: "alice", Distance: &d}, `{"distance":0.25,"status":"success","user":"alice"}`},
		{MatchResult{Status: MatchUnknown, Distance: &d}, `{"distance":0.25,"status":"unknown"}`},
		{MatchResult{Status: MatchFail, Reason: FailReasonNoFace}, `{"reason":"no_face_or_multiple","status":"fail"}`},
	}
	for _, tt := range tests {
		body, err := json.Marshal(tt.res)
		if err != nil {
			t.Fatalf("marshal failed: %v", err)
		}
		if string(body) != tt.want {
			t.Errorf("expected %s, got %s", tt.want, body)
		}
	}
}
