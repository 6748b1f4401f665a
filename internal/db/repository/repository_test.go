package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"facegate/config"
	"facegate/internal/core/models"
	"facegate/internal/database"
)

func newTestRepository(t *testing.T) *GormRepository {
	t.Helper()
	db, err := database.Open(config.DBConfig{Driver: "sqlite", File: filepath.Join(t.TempDir(), "catalog.db")})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	repo := NewGormRepository(db)
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return repo
}

func strPtr(s string) *string { return &s }

func insert(t *testing.T, repo *GormRepository, id string, label *string, image string, embedding *string) {
	t.Helper()
	err := repo.InsertCapture(context.Background(), &models.Capture{
		ID:            id,
		IdentityLabel: label,
		ImagePath:     image,
		EmbeddingPath: embedding,
		FacesInFrame:  1,
	})
	if err != nil {
		t.Fatalf("insert capture %s: %v", id, err)
	}
}

func TestEnsureIdentityIsIdempotent(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.EnsureIdentity(ctx, "alice"); err != nil {
			t.Fatalf("EnsureIdentity failed: %v", err)
		}
	}

	identities, err := repo.ListIdentities(ctx)
	if err != nil {
		t.Fatalf("ListIdentities failed: %v", err)
	}
	if len(identities) != 1 || identities[0].Label != "alice" {
		t.Errorf("expected exactly alice, got %+v", identities)
	}

	identity, err := repo.GetIdentity(ctx, "alice")
	if err != nil || identity == nil {
		t.Fatalf("expected identity, got %v (%v)", identity, err)
	}
	if missing, err := repo.GetIdentity(ctx, "nobody"); err != nil || missing != nil {
		t.Errorf("expected nil for unknown label, got %v (%v)", missing, err)
	}
}

func TestListRegisteredEmbeddingsOrderAndFilter(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_ = repo.EnsureIdentity(ctx, "bob")
	_ = repo.EnsureIdentity(ctx, "alice")

	insert(t, repo, "c1", strPtr("bob"), "img/bob_1.jpg", strPtr("emb/1.npy"))
	insert(t, repo, "c2", nil, "img/anonymous_1.jpg", strPtr("emb/2.npy"))
	insert(t, repo, "c3", strPtr("alice"), "img/alice_1.jpg", strPtr("emb/3.npy"))
	insert(t, repo, "c4", strPtr("alice"), "img/alice_2.jpg", nil)
	insert(t, repo, "c5", strPtr("bob"), "img/bob_2.jpg", strPtr("emb/5.npy"))

	refs, err := repo.ListRegisteredEmbeddings(ctx)
	if err != nil {
		t.Fatalf("ListRegisteredEmbeddings failed: %v", err)
	}

	want := []models.EmbeddingRef{
		{Label: "bob", Path: "emb/1.npy"},
		{Label: "alice", Path: "emb/3.npy"},
		{Label: "bob", Path: "emb/5.npy"},
	}
	if len(refs) != len(want) {
		t.Fatalf("expected %d refs, got %d: %+v", len(want), len(refs), refs)
	}
	for i := range want {
		if refs[i] != want[i] {
			t.Errorf("ref %d: expected %+v, got %+v", i, want[i], refs[i])
		}
	}
}

func TestListIdentitiesWithCounts(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_ = repo.EnsureIdentity(ctx, "carol")
	_ = repo.EnsureIdentity(ctx, "dave")
	insert(t, repo, "c1", strPtr("carol"), "img/carol_1.jpg", strPtr("emb/1.npy"))
	insert(t, repo, "c2", strPtr("carol"), "img/carol_2.jpg", strPtr("emb/2.npy"))

	summaries, err := repo.ListIdentities(ctx)
	if err != nil {
		t.Fatalf("ListIdentities failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 identities, got %d", len(summaries))
	}
	if summaries[0].Label != "carol" || summaries[0].Captures != 2 {
		t.Errorf("unexpected first summary %+v", summaries[0])
	}
	if summaries[1].Label != "dave" || summaries[1].Captures != 0 {
		t.Errorf("unexpected second summary %+v", summaries[1])
	}
}

func TestDeleteIdentity(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_ = repo.EnsureIdentity(ctx, "erin")
	_ = repo.EnsureIdentity(ctx, "frank")
	insert(t, repo, "c1", strPtr("erin"), "img/erin_1.jpg", strPtr("emb/1.npy"))
	insert(t, repo, "c2", strPtr("erin"), "img/erin_2.jpg", nil)
	insert(t, repo, "c3", strPtr("frank"), "img/frank_1.jpg", strPtr("emb/3.npy"))

	removed, found, err := repo.DeleteIdentity(ctx, "erin")
	if err != nil || !found {
		t.Fatalf("expected erin deleted, got found=%v err=%v", found, err)
	}
	if len(removed) != 2 || removed[0].ID != "c1" || removed[1].ID != "c2" {
		t.Errorf("unexpected removed captures %+v", removed)
	}

	left, err := repo.ListCaptures(ctx, "erin")
	if err != nil || len(left) != 0 {
		t.Errorf("expected no captures left for erin, got %d (%v)", len(left), err)
	}
	frank, _ := repo.ListCaptures(ctx, "frank")
	if len(frank) != 1 {
		t.Errorf("expected frank untouched, got %d captures", len(frank))
	}

	if _, found, err := repo.DeleteIdentity(ctx, "erin"); err != nil || found {
		t.Errorf("expected unknown label on second delete, got found=%v err=%v", found, err)
	}
}

func TestReferencedPathsAndStatistics(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	_ = repo.EnsureIdentity(ctx, "gina")
	insert(t, repo, "c1", strPtr("gina"), "img/gina_1.jpg", strPtr("emb/1.npy"))
	insert(t, repo, "c2", nil, "img/anonymous_1.jpg", nil)

	paths, err := repo.ReferencedPaths(ctx)
	if err != nil {
		t.Fatalf("ReferencedPaths failed: %v", err)
	}
	for _, p := range []string{"img/gina_1.jpg", "emb/1.npy", "img/anonymous_1.jpg"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("expected %s to be referenced", p)
		}
	}
	if len(paths) != 3 {
		t.Errorf("expected 3 paths, got %d", len(paths))
	}

	stats, err := repo.GetStatistics(ctx)
	if err != nil {
		t.Fatalf("GetStatistics failed: %v", err)
	}
	if stats.Identities != 1 || stats.Captures != 2 || stats.AnonymousCaptures != 1 {
		t.Errorf("unexpected statistics %+v", stats)
	}
}
