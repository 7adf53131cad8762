package usecase

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"

	"passage/internal/domain"
	"passage/internal/port"
)

// fakeDocStore implements the document store methods the ingest flow
// touches and records what happened to it.
type fakeDocStore struct {
	port.DocumentStore
	docs     map[int]port.HitSource
	failIDs  map[int]bool
	calls    []string
	settings []byte
}

func newFakeDocStore() *fakeDocStore {
	return &fakeDocStore{docs: make(map[int]port.HitSource), failIDs: make(map[int]bool)}
}

func (f *fakeDocStore) DeleteIndex(ctx context.Context, index string) error {
	f.calls = append(f.calls, "delete "+index)
	f.docs = make(map[int]port.HitSource)
	return nil
}

func (f *fakeDocStore) CreateIndex(ctx context.Context, index string, settings []byte) error {
	f.calls = append(f.calls, "create "+index)
	f.settings = settings
	return nil
}

func (f *fakeDocStore) IndexDocument(ctx context.Context, index string, id int, title, text string) error {
	if f.failIDs[id] {
		return fmt.Errorf("index rejected document %d", id)
	}
	f.docs[id] = port.HitSource{DocumentText: text, Title: title}
	return nil
}

func (f *fakeDocStore) Count(ctx context.Context, index string) (int, error) {
	return len(f.docs), nil
}

func TestRecreateDropsThenCreates(t *testing.T) {
	store := newFakeDocStore()
	uc := NewIngestUseCase(store, zap.NewNop())

	settings := []byte(`{"settings":{}}`)
	if err := uc.Recreate(context.Background(), "notes", settings); err != nil {
		t.Fatalf("Recreate failed: %v", err)
	}

	if len(store.calls) != 2 || store.calls[0] != "delete notes" || store.calls[1] != "create notes" {
		t.Errorf("expected delete then create, got %v", store.calls)
	}
	if string(store.settings) != `{"settings":{}}` {
		t.Errorf("settings not forwarded: %s", store.settings)
	}
}

func TestBulkLoadSkipsFailedDocuments(t *testing.T) {
	store := newFakeDocStore()
	store.failIDs[1] = true
	uc := NewIngestUseCase(store, zap.NewNop())

	var progress []int
	result, err := uc.BulkLoad(context.Background(), "notes", fruitDocs(), func(done, total int) {
		progress = append(progress, done)
	})
	if err != nil {
		t.Fatalf("BulkLoad failed: %v", err)
	}

	if result.Indexed != 2 || result.Skipped != 1 || result.Total != 2 {
		t.Errorf("unexpected result: %+v", result)
	}
	if _, ok := store.docs[0]; !ok {
		t.Error("expected doc 0 to be indexed")
	}
	if _, ok := store.docs[1]; ok {
		t.Error("expected doc 1 to be skipped")
	}
	if _, ok := store.docs[2]; !ok {
		t.Error("expected doc 2 to be indexed")
	}
	if len(progress) != 3 || progress[2] != 3 {
		t.Errorf("expected 3 progress calls ending at 3, got %v", progress)
	}
}

func TestBulkLoadKeepsCorpusIDs(t *testing.T) {
	store := newFakeDocStore()
	uc := NewIngestUseCase(store, zap.NewNop())

	docs := []domain.Document{
		{ID: 0, Title: "first", Text: "apple banana"},
		{ID: 1, Text: "cherry"},
	}
	if _, err := uc.BulkLoad(context.Background(), "notes", docs, nil); err != nil {
		t.Fatalf("BulkLoad failed: %v", err)
	}

	if got := store.docs[0]; got.DocumentText != "apple banana" || got.Title != "first" {
		t.Errorf("unexpected doc 0: %+v", got)
	}
	if got := store.docs[1]; got.DocumentText != "cherry" || got.Title != "" {
		t.Errorf("unexpected doc 1: %+v", got)
	}
}

func TestAppendContinuesFromCount(t *testing.T) {
	store := newFakeDocStore()
	for i := 0; i < 5; i++ {
		store.docs[i] = port.HitSource{DocumentText: "existing"}
	}
	uc := NewIngestUseCase(store, zap.NewNop())

	uploads := []Upload{
		{Title: "minutes", Text: "meeting   notes\nfrom monday"},
		{Text: "plain addition"},
	}
	result, err := uc.Append(context.Background(), "notes", uploads, nil)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if result.Indexed != 2 || result.Skipped != 0 || result.Total != 7 {
		t.Errorf("unexpected result: %+v", result)
	}
	got, ok := store.docs[5]
	if !ok {
		t.Fatal("expected upload at id 5")
	}
	// Title is prepended to the normalized text and kept in the source.
	if got.DocumentText != "minutes meeting notes from monday" || got.Title != "minutes" {
		t.Errorf("unexpected doc 5: %+v", got)
	}
	if got := store.docs[6]; got.DocumentText != "plain addition" || got.Title != "" {
		t.Errorf("unexpected doc 6: %+v", got)
	}
}

func TestAppendAdvancesIDsPastFailures(t *testing.T) {
	store := newFakeDocStore()
	store.docs[0] = port.HitSource{DocumentText: "existing"}
	store.failIDs[1] = true
	uc := NewIngestUseCase(store, zap.NewNop())

	uploads := []Upload{
		{Text: "rejected"},
		{Text: "accepted"},
	}
	result, err := uc.Append(context.Background(), "notes", uploads, nil)
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	if result.Indexed != 1 || result.Skipped != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if _, ok := store.docs[1]; ok {
		t.Error("expected id 1 to be skipped")
	}
	if got := store.docs[2]; got.DocumentText != "accepted" {
		t.Errorf("expected second upload at id 2, got %+v", got)
	}
}
