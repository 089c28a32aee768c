package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/content"
	"github.com/sitebrain/sitebrain/internal/embedding"
	"github.com/sitebrain/sitebrain/internal/indexer"
	"github.com/sitebrain/sitebrain/internal/keyword"
	"github.com/sitebrain/sitebrain/internal/queue"
	"github.com/sitebrain/sitebrain/internal/search"
	"github.com/sitebrain/sitebrain/internal/storage"
)

func newTestServer(t *testing.T) (*Server, *storage.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	kw, err := keyword.NewIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	t.Cleanup(func() { kw.Close() })

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	embedder := embedding.NewMockEmbedder(16)
	slots := config.ResolveFieldSlots(cfg.Indexing.ContextFields)
	templates := config.ResolveTemplates(cfg.Indexing.ContextTemplates)
	ix := indexer.New(store, embedder, kw, templates, slots)
	engine := search.NewEngine(store, embedder, kw, &cfg.Search, nil)
	worker := queue.NewWorker(store, ix, &cfg.Worker, nil)

	return NewServer(engine, ix, worker, store, cfg, zap.NewNop()), store
}

func doRequest(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router().ServeHTTP(rec, req)
	return rec
}

func pageBody() *content.StaticPage {
	return &content.StaticPage{
		PageID:       55,
		TemplateName: "basic-page",
		PageURL:      "https://example.com/contact/",
		Fields: map[string]content.FieldValues{
			"title": {"0": "Contact"},
			"body":  {"0": "Reach us by phone or email. The support line is open on weekdays."},
		},
	}
}

func TestHandleIndexPageAndSearch(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/pages", pageBody())
	if rec.Code != http.StatusOK {
		t.Fatalf("index page: status %d, body %s", rec.Code, rec.Body.String())
	}
	var indexResp struct {
		PageID int64 `json:"page_id"`
		Chunks int   `json:"chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &indexResp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if indexResp.Chunks == 0 {
		t.Fatal("no chunks indexed")
	}

	rec = doRequest(t, s, http.MethodPost, "/api/v1/search", searchRequest{Query: "support line", LangID: 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("search: status %d, body %s", rec.Code, rec.Body.String())
	}
	var result search.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(result.Chunks) == 0 {
		t.Error("search returned no chunks")
	}
	if result.Context == "" {
		t.Error("search returned empty context")
	}
}

func TestHandleIndexPageRejectsMissingID(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/pages", map[string]interface{}{"template": "basic-page"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestHandleEnqueuePage(t *testing.T) {
	s, store := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/queue/pages", pageBody())
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status %d, body %s", rec.Code, rec.Body.String())
	}
	var doc struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Status != "pending" {
		t.Errorf("status = %q, want pending", doc.Status)
	}

	// The queued document is visible through the queue endpoint.
	rec = doRequest(t, s, http.MethodGet, "/api/v1/queue/"+strconv.FormatInt(doc.ID, 10), nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get document: status %d", rec.Code)
	}

	counts, err := store.CountDocuments(context.Background())
	if err != nil || counts["pending"] != 1 {
		t.Errorf("counts = %v, %v", counts, err)
	}
}

func TestHandleEnqueueFileRejectsUnsupported(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodPost, "/api/v1/queue/files", map[string]string{"path": "/drop/blob.bin"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400 for unsupported extension", rec.Code)
	}
}

func TestHandleVectorLifecycle(t *testing.T) {
	s, _ := newTestServer(t)

	if rec := doRequest(t, s, http.MethodPost, "/api/v1/pages", pageBody()); rec.Code != http.StatusOK {
		t.Fatalf("index: %d", rec.Code)
	}

	rec := doRequest(t, s, http.MethodGet, "/api/v1/pages/55/vectors", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("has vectors: %d", rec.Code)
	}
	var hasResp struct {
		HasVectors bool `json:"has_vectors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &hasResp); err != nil || !hasResp.HasVectors {
		t.Fatalf("has_vectors = %v, %v", hasResp.HasVectors, err)
	}

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/pages/55/vectors", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete vectors: %d", rec.Code)
	}

	rec = doRequest(t, s, http.MethodGet, "/api/v1/pages/55/vectors", nil)
	_ = json.Unmarshal(rec.Body.Bytes(), &hasResp)
	if hasResp.HasVectors {
		t.Error("vectors remain after delete")
	}
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/api/v1/status", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := resp["config"]; !ok {
		t.Error("status response missing config section")
	}
}

func TestHandleHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("status %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("missing request id header")
	}
}

func TestStopWithoutStart(t *testing.T) {
	s, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Errorf("Stop: %v", err)
	}
}
