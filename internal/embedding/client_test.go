package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, baseURL string, maxRetries int) *Client {
	t.Helper()
	t.Setenv("TEST_EMBED_KEY", "secret")
	c, err := NewClient(baseURL, "test-model", "TEST_EMBED_KEY", 5*time.Second, maxRetries)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClientEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer auth, got %q", r.Header.Get("Authorization"))
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "test-model" || req.Input != "hello" {
			t.Errorf("request = %+v", req)
		}
		_ = json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: []float32{0.1, 0.2, 0.3}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 1)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 3 {
		t.Errorf("got %d components", len(vec))
	}
}

func TestClientEmbedMissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	_, err := c.Embed(context.Background(), "hello")
	var embErr *Error
	if !errors.As(err, &embErr) {
		t.Fatalf("expected *Error, got %v", err)
	}
}

func TestClientEmbedRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(embeddingResponse{
			Data: []embeddingData{{Embedding: []float32{1}}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	vec, err := c.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 1 {
		t.Errorf("got %v", vec)
	}
	if calls.Load() != 3 {
		t.Errorf("calls = %d, want 3", calls.Load())
	}
}

func TestClientEmbedNoRetryOnBadRequest(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	if _, err := c.Embed(context.Background(), "hello"); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestNewClientMissingKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY_MISSING", "")
	if _, err := NewClient("http://x", "m", "TEST_EMBED_KEY_MISSING", time.Second, 1); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestMockEmbedderDeterministic(t *testing.T) {
	e := NewMockEmbedder(32)
	a, _ := e.Embed(context.Background(), "same text")
	b, _ := e.Embed(context.Background(), "same text")
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("mock embedder not deterministic")
		}
	}
	c, _ := e.Embed(context.Background(), "other text")
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical embeddings")
	}
}
