package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"passage/internal/adapter/cache"
	"passage/internal/domain"
	"passage/internal/port"
	"passage/internal/usecase"
)

type stubRetriever struct {
	rankFn func(query string, k int) ([]domain.ScoredDocument, error)
}

func (s *stubRetriever) Rank(_ context.Context, query string, k int) ([]domain.ScoredDocument, error) {
	return s.rankFn(query, k)
}

func (s *stubRetriever) BulkRank(_ context.Context, queries []string, k int) ([][]domain.ScoredDocument, error) {
	out := make([][]domain.ScoredDocument, len(queries))
	for i, q := range queries {
		ranked, err := s.rankFn(q, k)
		if err != nil {
			return nil, err
		}
		out[i] = ranked
	}
	return out, nil
}

type indexedDoc struct {
	id    int
	title string
	text  string
}

type fakeStore struct {
	port.DocumentStore
	docs    map[int]port.HitSource
	pingErr error
	indexed []indexedDoc
}

func newFakeStore(docs map[int]port.HitSource) *fakeStore {
	if docs == nil {
		docs = map[int]port.HitSource{}
	}
	return &fakeStore{docs: docs}
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }

func (f *fakeStore) Count(context.Context, string) (int, error) { return len(f.docs), nil }

func (f *fakeStore) GetDocument(_ context.Context, _ string, id int) (port.StoredDocument, error) {
	src, ok := f.docs[id]
	if !ok {
		return port.StoredDocument{}, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	return port.StoredDocument{ID: strconv.Itoa(id), Source: src}, nil
}

func (f *fakeStore) DeleteDocument(_ context.Context, _ string, id int) error {
	if _, ok := f.docs[id]; !ok {
		return fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeStore) IndexDocument(_ context.Context, _ string, id int, title, text string) error {
	f.docs[id] = port.HitSource{DocumentText: text, Title: title}
	f.indexed = append(f.indexed, indexedDoc{id: id, title: title, text: text})
	return nil
}

func newTestServer(t *testing.T, rank func(query string, k int) ([]domain.ScoredDocument, error), store *fakeStore) http.Handler {
	t.Helper()
	log := zap.NewNop()
	retrieve := usecase.NewRetrieveUseCase(&stubRetriever{rankFn: rank}, log)
	ingest := usecase.NewIngestUseCase(store, log)
	return NewServer(retrieve, ingest, store, "notes", "sparse", 5, nil, log).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSearchSingleQuery(t *testing.T) {
	h := newTestServer(t, func(query string, k int) ([]domain.ScoredDocument, error) {
		if query != "apple" {
			t.Errorf("query = %q, want %q", query, "apple")
		}
		if k != 2 {
			t.Errorf("k = %d, want 2", k)
		}
		return []domain.ScoredDocument{
			{Document: domain.Document{ID: 2, Title: "fruit", Text: "apple cherry"}, Score: 0.9},
			{Document: domain.Document{ID: 0, Text: "apple banana"}, Score: 0.5},
		}, nil
	}, newFakeStore(nil))

	rr := doJSON(t, h, "POST", "/search", map[string]any{"query": "apple", "top_k": 2})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp searchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Query != "apple" {
		t.Errorf("query = %q, want %q", resp.Query, "apple")
	}
	if len(resp.Hits) != 2 {
		t.Fatalf("got %d hits, want 2", len(resp.Hits))
	}
	first := resp.Hits[0]
	if first.ID != 2 || first.Title != "fruit" || first.Text != "apple cherry" || first.Score != 0.9 {
		t.Errorf("unexpected first hit: %+v", first)
	}
}

func TestSearchDefaultTopK(t *testing.T) {
	h := newTestServer(t, func(_ string, k int) ([]domain.ScoredDocument, error) {
		if k != 5 {
			t.Errorf("k = %d, want server default 5", k)
		}
		return nil, nil
	}, newFakeStore(nil))

	rr := doJSON(t, h, "POST", "/search", map[string]any{"query": "apple"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestSearchBulkQueries(t *testing.T) {
	h := newTestServer(t, func(query string, _ int) ([]domain.ScoredDocument, error) {
		return []domain.ScoredDocument{
			{Document: domain.Document{ID: len(query), Text: query}, Score: 1},
		}, nil
	}, newFakeStore(nil))

	rr := doJSON(t, h, "POST", "/search", map[string]any{"queries": []string{"ab", "abcd"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp bulkSearchResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 {
		t.Fatalf("got %d results, want 2", len(resp.Results))
	}
	if resp.Results[0].Query != "ab" || resp.Results[0].Hits[0].ID != 2 {
		t.Errorf("unexpected first result: %+v", resp.Results[0])
	}
	if resp.Results[1].Query != "abcd" || resp.Results[1].Hits[0].ID != 4 {
		t.Errorf("unexpected second result: %+v", resp.Results[1])
	}
}

func TestSearchValidation(t *testing.T) {
	h := newTestServer(t, func(string, int) ([]domain.ScoredDocument, error) {
		t.Error("retriever must not be consulted for invalid requests")
		return nil, nil
	}, newFakeStore(nil))

	tests := []struct {
		name string
		body map[string]any
	}{
		{"missing query", map[string]any{}},
		{"both forms", map[string]any{"query": "a", "queries": []string{"b"}}},
		{"too many queries", map[string]any{"queries": make([]string, maxBulkQueries+1)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, "POST", "/search", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
			var e errorResponse
			if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
				t.Fatalf("decode error response: %v", err)
			}
			if e.Code != codeBadRequest {
				t.Errorf("code = %q, want %q", e.Code, codeBadRequest)
			}
		})
	}
}

func TestSearchEmptyQueryVector(t *testing.T) {
	h := newTestServer(t, func(string, int) ([]domain.ScoredDocument, error) {
		return nil, fmt.Errorf("ranking: %w", domain.ErrEmptyQueryVector)
	}, newFakeStore(nil))

	rr := doJSON(t, h, "POST", "/search", map[string]any{"query": "zzz"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}

	var e errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if e.Code != codeEmptyQuery {
		t.Errorf("code = %q, want %q", e.Code, codeEmptyQuery)
	}
	if e.Message != domain.ErrEmptyQueryVector.Error() {
		t.Errorf("message = %q, want sentinel text", e.Message)
	}
}

func TestSearchHidesInternalErrors(t *testing.T) {
	h := newTestServer(t, func(string, int) ([]domain.ScoredDocument, error) {
		return nil, errors.New("matrix row 17 corrupted")
	}, newFakeStore(nil))

	rr := doJSON(t, h, "POST", "/search", map[string]any{"query": "apple"})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}

	var e errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if e.Code != codeInternal || e.Message != "internal error" {
		t.Errorf("unexpected error body: %+v", e)
	}
}

func TestGetDocument(t *testing.T) {
	store := newFakeStore(map[int]port.HitSource{
		3: {DocumentText: "apple cherry", Title: "fruit"},
	})
	h := newTestServer(t, nil, store)

	rr := doJSON(t, h, "GET", "/documents/3", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}

	var resp documentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ID != 3 || resp.Title != "fruit" || resp.Text != "apple cherry" {
		t.Errorf("unexpected document: %+v", resp)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	h := newTestServer(t, nil, newFakeStore(nil))

	rr := doJSON(t, h, "GET", "/documents/9", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}

	var e errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &e); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if e.Code != codeNotFound {
		t.Errorf("code = %q, want %q", e.Code, codeNotFound)
	}
}

func TestGetDocumentRejectsNonIntegerID(t *testing.T) {
	h := newTestServer(t, nil, newFakeStore(nil))

	rr := doJSON(t, h, "GET", "/documents/abc", nil)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	store := newFakeStore(map[int]port.HitSource{3: {DocumentText: "apple"}})
	h := newTestServer(t, nil, store)

	rr := doJSON(t, h, "DELETE", "/documents/3", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}

	rr = doJSON(t, h, "GET", "/documents/3", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status after delete = %d, want 404", rr.Code)
	}
}

func TestUploadAppendsDocuments(t *testing.T) {
	store := newFakeStore(map[int]port.HitSource{
		0: {DocumentText: "apple banana"},
		1: {DocumentText: "banana cherry"},
	})
	h := newTestServer(t, nil, store)

	body := map[string]any{"documents": []map[string]string{
		{"title": "minutes", "text": "meeting notes\nfrom monday"},
		{"text": "plain addition"},
	}}
	rr := doJSON(t, h, "POST", "/documents", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}

	var resp uploadResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Indexed != 2 || resp.Skipped != 0 || resp.Total != 4 {
		t.Errorf("unexpected counts: %+v", resp)
	}

	if len(store.indexed) != 2 {
		t.Fatalf("store received %d documents, want 2", len(store.indexed))
	}
	first := store.indexed[0]
	if first.id != 2 || first.title != "minutes" || first.text != "minutes meeting notes from monday" {
		t.Errorf("unexpected first indexed doc: %+v", first)
	}
	if store.indexed[1].id != 3 || store.indexed[1].text != "plain addition" {
		t.Errorf("unexpected second indexed doc: %+v", store.indexed[1])
	}
}

func TestUploadValidation(t *testing.T) {
	h := newTestServer(t, nil, newFakeStore(nil))

	tests := []struct {
		name string
		body map[string]any
	}{
		{"no documents", map[string]any{}},
		{"blank text", map[string]any{"documents": []map[string]string{{"title": "x", "text": "   "}}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := doJSON(t, h, "POST", "/documents", tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rr.Code)
			}
		})
	}
}

func TestUploadInvalidatesQueryCache(t *testing.T) {
	store := newFakeStore(nil)
	log := zap.NewNop()

	calls := 0
	stub := &stubRetriever{rankFn: func(query string, k int) ([]domain.ScoredDocument, error) {
		calls++
		return []domain.ScoredDocument{
			{Document: domain.Document{ID: 0, Text: "apple"}, Score: 1},
		}, nil
	}}
	qc := cache.NewQueryCache(8, time.Minute)
	retrieve := usecase.NewRetrieveUseCase(cache.NewCachedRetriever(stub, qc), log)
	ingest := usecase.NewIngestUseCase(store, log)
	h := NewServer(retrieve, ingest, store, "notes", "sparse", 5, qc, log).Routes()

	for i := 0; i < 2; i++ {
		rr := doJSON(t, h, "POST", "/search", map[string]any{"query": "apple"})
		if rr.Code != http.StatusOK {
			t.Fatalf("search %d: status = %d: %s", i, rr.Code, rr.Body.String())
		}
	}
	if calls != 1 {
		t.Fatalf("expected repeated search to hit the cache, strategy saw %d calls", calls)
	}

	body := map[string]any{"documents": []map[string]string{{"text": "new passage"}}}
	rr := doJSON(t, h, "POST", "/documents", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("upload: status = %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, h, "POST", "/search", map[string]any{"query": "apple"})
	if rr.Code != http.StatusOK {
		t.Fatalf("search after upload: status = %d", rr.Code)
	}
	if calls != 2 {
		t.Errorf("expected upload to drop cached rankings, strategy saw %d calls", calls)
	}
}

func TestHealthz(t *testing.T) {
	store := newFakeStore(map[int]port.HitSource{
		0: {DocumentText: "apple"},
		1: {DocumentText: "banana"},
	})
	h := newTestServer(t, nil, store)

	rr := doJSON(t, h, "GET", "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var resp healthResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Documents == nil || *resp.Documents != 2 {
		t.Errorf("unexpected health body: %+v", resp)
	}

	store.pingErr = errors.New("connection refused")
	rr = doJSON(t, h, "GET", "/healthz", nil)
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
}
