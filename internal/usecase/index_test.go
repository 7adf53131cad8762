package usecase

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"passage/internal/adapter/store"
	"passage/internal/adapter/vectorizer"
	"passage/internal/domain"
)

func fruitDocs() []domain.Document {
	return []domain.Document{
		{ID: 0, Text: "apple banana"},
		{ID: 1, Text: "banana cherry"},
		{ID: 2, Text: "apple cherry"},
	}
}

func newIndexUC(t *testing.T) (*IndexUseCase, *store.CorpusStore, string) {
	t.Helper()

	dir := t.TempDir()
	snapshots, err := store.NewCorpusStore(filepath.Join(dir, "corpus.db"))
	if err != nil {
		t.Fatalf("failed to open corpus store: %v", err)
	}
	t.Cleanup(func() { snapshots.Close() })

	uc := NewIndexUseCase(
		vectorizer.New(1, 2, 0),
		snapshots,
		filepath.Join(dir, "tfidv.bin"),
		filepath.Join(dir, "sparse_embedding.bin"),
		zap.NewNop(),
	)
	return uc, snapshots, dir
}

func TestBuildOrLoadBuildsFreshIndex(t *testing.T) {
	uc, snapshots, dir := newIndexUC(t)

	model, matrix, result, err := uc.BuildOrLoad(fruitDocs())
	if err != nil {
		t.Fatalf("BuildOrLoad failed: %v", err)
	}
	if !result.Rebuilt {
		t.Error("expected a fresh build to report Rebuilt")
	}
	if result.Docs != 3 || result.VocabSize != 6 {
		t.Errorf("unexpected result: %+v", result)
	}
	if model.Dims() != 6 || matrix.Len() != 3 {
		t.Errorf("unexpected artifact shape: dims=%d rows=%d", model.Dims(), matrix.Len())
	}

	for _, name := range []string{"tfidv.bin", "sparse_embedding.bin"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected artifact %s on disk: %v", name, err)
		}
	}

	count, err := snapshots.Count()
	if err != nil || count != 3 {
		t.Errorf("expected 3 snapshot docs, got %d (%v)", count, err)
	}
	hash, err := snapshots.Hash()
	if err != nil || hash != result.CorpusHash {
		t.Errorf("expected snapshot hash %s, got %s (%v)", result.CorpusHash, hash, err)
	}
	stats, err := snapshots.GetStats()
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	if stats.TotalDocs != 3 || stats.VocabSize != 6 || stats.AvgDocLen != 2.0 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestBuildOrLoadReusesCurrentArtifacts(t *testing.T) {
	uc, _, _ := newIndexUC(t)

	if _, _, _, err := uc.BuildOrLoad(fruitDocs()); err != nil {
		t.Fatalf("first BuildOrLoad failed: %v", err)
	}
	model, matrix, result, err := uc.BuildOrLoad(fruitDocs())
	if err != nil {
		t.Fatalf("second BuildOrLoad failed: %v", err)
	}
	if result.Rebuilt {
		t.Error("expected artifacts to be reused, not rebuilt")
	}
	if model.Dims() != 6 || matrix.Len() != 3 {
		t.Errorf("unexpected artifact shape after reload: dims=%d rows=%d", model.Dims(), matrix.Len())
	}
}

func TestBuildOrLoadRebuildsOnCorpusChange(t *testing.T) {
	uc, snapshots, _ := newIndexUC(t)

	if _, _, _, err := uc.BuildOrLoad(fruitDocs()); err != nil {
		t.Fatalf("first BuildOrLoad failed: %v", err)
	}

	changed := []domain.Document{
		{ID: 0, Text: "apple banana"},
		{ID: 1, Text: "dragonfruit elderberry"},
	}
	_, _, result, err := uc.BuildOrLoad(changed)
	if err != nil {
		t.Fatalf("BuildOrLoad after change failed: %v", err)
	}
	if !result.Rebuilt {
		t.Error("expected rebuild after corpus change")
	}

	count, err := snapshots.Count()
	if err != nil || count != 2 {
		t.Errorf("expected snapshot to follow new corpus, got %d docs (%v)", count, err)
	}
	hash, err := snapshots.Hash()
	if err != nil || hash != result.CorpusHash {
		t.Errorf("expected snapshot hash %s, got %s (%v)", result.CorpusHash, hash, err)
	}
}

func TestBuildOrLoadEmptyCorpus(t *testing.T) {
	uc, _, _ := newIndexUC(t)

	if _, _, _, err := uc.BuildOrLoad(nil); err == nil {
		t.Fatal("expected error for empty corpus")
	}
}

func TestEnsureAnnoyBuildsAndReloads(t *testing.T) {
	uc, _, dir := newIndexUC(t)
	docs := fruitDocs()

	model, matrix, result, err := uc.BuildOrLoad(docs)
	if err != nil {
		t.Fatalf("BuildOrLoad failed: %v", err)
	}

	annPath := filepath.Join(dir, "vectors.ann")
	ann, err := uc.EnsureAnnoy(model, matrix, docs, annPath, 16, result.Rebuilt)
	if err != nil {
		t.Fatalf("EnsureAnnoy failed: %v", err)
	}
	if _, err := os.Stat(annPath); err != nil {
		t.Errorf("expected annoy sidecar on disk: %v", err)
	}

	got, err := ann.Rank(context.Background(), "apple cherry", 1)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}
	if len(got) != 1 || got[0].Document.ID != 2 {
		t.Fatalf("expected id 2, got %v", got)
	}

	// Second call with current artifacts loads the sidecar instead of
	// rebuilding it.
	reloaded, err := uc.EnsureAnnoy(model, matrix, docs, annPath, 16, false)
	if err != nil {
		t.Fatalf("EnsureAnnoy reload failed: %v", err)
	}
	got, err = reloaded.Rank(context.Background(), "apple cherry", 1)
	if err != nil {
		t.Fatalf("Rank on reloaded index failed: %v", err)
	}
	if len(got) != 1 || got[0].Document.ID != 2 {
		t.Fatalf("expected id 2 from reloaded index, got %v", got)
	}
}
