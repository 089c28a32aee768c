package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/sitebrain/sitebrain/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestEnqueueAndClaimLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{Source: models.SourcePage, SrcPtr: "1042", PageID: 1042, LangID: 0}
	if err := store.Enqueue(ctx, doc); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if doc.ID == 0 {
		t.Fatal("Enqueue did not set ID")
	}
	if doc.Status != models.StatusPending {
		t.Errorf("status = %q, want pending", doc.Status)
	}

	claimed, err := store.ClaimNext(ctx, 60, 0)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if claimed == nil || claimed.ID != doc.ID {
		t.Fatalf("claimed = %+v, want doc %d", claimed, doc.ID)
	}
	if claimed.Status != models.StatusLeased {
		t.Errorf("status = %q, want leased", claimed.Status)
	}
	if !claimed.LeasedUntil.After(time.Now().UTC().Add(30 * time.Second)) {
		t.Errorf("lease expiry %v not in the future", claimed.LeasedUntil)
	}

	// A live lease hides the document from other claimers.
	if other, err := store.ClaimNext(ctx, 60, 0); err != nil || other != nil {
		t.Fatalf("second claim = (%+v, %v), want (nil, nil)", other, err)
	}

	if err := store.MarkDone(ctx, claimed.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	got, err := store.GetDocument(ctx, claimed.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Status != models.StatusDone {
		t.Errorf("status = %q, want done", got.Status)
	}
}

func TestClaimNextEmpty(t *testing.T) {
	store := newTestStore(t)
	doc, err := store.ClaimNext(context.Background(), 60, 0)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if doc != nil {
		t.Errorf("claimed %+v from empty queue", doc)
	}
}

func TestFailedDocReclaimableAfterLeaseExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{Source: models.SourceFile, SrcPtr: "/tmp/a.pdf", Backend: "pdf"}
	if err := store.Enqueue(ctx, doc); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	claimed, err := store.ClaimNext(ctx, 60, 0)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: (%+v, %v)", claimed, err)
	}
	if err := store.MarkFailed(ctx, claimed.ID, "extract failed"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	// Still leased: not eligible yet.
	if got, err := store.ClaimNext(ctx, 60, 0); err != nil || got != nil {
		t.Fatalf("claim before expiry = (%+v, %v), want (nil, nil)", got, err)
	}

	// Force the lease into the past.
	if _, err := store.db.Exec(`UPDATE documents SET leased_until = ? WHERE id = ?`,
		time.Now().UTC().Add(-time.Minute), claimed.ID); err != nil {
		t.Fatalf("expire lease: %v", err)
	}

	got, err := store.ClaimNext(ctx, 60, 0)
	if err != nil {
		t.Fatalf("ClaimNext after expiry: %v", err)
	}
	if got == nil || got.ID != claimed.ID {
		t.Fatalf("expired failed doc not re-claimed: %+v", got)
	}
	if got.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", got.Attempts)
	}
	if got.ErrorText != "extract failed" {
		t.Errorf("error_text = %q", got.ErrorText)
	}
}

func TestClaimNextRespectsMaxAttempts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{Source: models.SourcePage, SrcPtr: "7", PageID: 7}
	if err := store.Enqueue(ctx, doc); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := store.db.Exec(`UPDATE documents SET attempts = 3 WHERE id = ?`, doc.ID); err != nil {
		t.Fatalf("set attempts: %v", err)
	}

	if got, err := store.ClaimNext(ctx, 60, 3); err != nil || got != nil {
		t.Fatalf("claim at attempt cap = (%+v, %v), want (nil, nil)", got, err)
	}
	// Zero means unlimited.
	if got, err := store.ClaimNext(ctx, 60, 0); err != nil || got == nil {
		t.Fatalf("unlimited claim = (%+v, %v)", got, err)
	}
}

func TestConcurrentClaimExactlyOneWinner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{Source: models.SourcePage, SrcPtr: "9", PageID: 9}
	if err := store.Enqueue(ctx, doc); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	const claimers = 8
	var wg sync.WaitGroup
	results := make(chan *models.Document, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := store.ClaimNext(ctx, 60, 0)
			if err != nil {
				t.Errorf("ClaimNext: %v", err)
				return
			}
			results <- got
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for got := range results {
		if got != nil {
			won++
		}
	}
	if won != 1 {
		t.Errorf("%d claimers won, want exactly 1", won)
	}
}

func TestReplaceChunksLeavesOnlyNewRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mk := func(n int) []*models.Chunk {
		chunks := make([]*models.Chunk, n)
		for i := range chunks {
			chunks[i] = &models.Chunk{
				PageID: 1042, LangID: 0, ChunkIndex: i,
				Title: "About us", SourceURL: "/about/",
				Text:      "chunk text",
				Embedding: []float32{float32(i), 0.5, -0.25},
			}
		}
		return chunks
	}

	if _, err := store.ReplaceChunks(ctx, 1042, 0, mk(5)); err != nil {
		t.Fatalf("first replace: %v", err)
	}
	removed, err := store.ReplaceChunks(ctx, 1042, 0, mk(3))
	if err != nil {
		t.Fatalf("second replace: %v", err)
	}
	if len(removed) != 5 {
		t.Errorf("removed %d IDs, want 5", len(removed))
	}

	count, err := store.CountChunks(ctx)
	if err != nil {
		t.Fatalf("CountChunks: %v", err)
	}
	if count != 3 {
		t.Errorf("chunk count = %d, want exactly 3 after replace", count)
	}

	// Other partitions are untouched.
	if _, err := store.ReplaceChunks(ctx, 1042, 1017, mk(2)); err != nil {
		t.Fatalf("other-lang replace: %v", err)
	}
	removed, err = store.ReplaceChunks(ctx, 1042, 0, mk(1))
	if err != nil {
		t.Fatalf("third replace: %v", err)
	}
	if len(removed) != 3 {
		t.Errorf("removed %d IDs, want 3", len(removed))
	}
	count, _ = store.CountChunks(ctx)
	if count != 3 {
		t.Errorf("total = %d, want 3 (1 lang 0 + 2 lang 1017)", count)
	}
}

func TestReplaceChunksRoundTripsEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	in := []*models.Chunk{{
		PageID: 5, LangID: 0, ChunkIndex: 0,
		Text: "hello", Embedding: []float32{0.123456, -1.5, 0},
	}}
	if _, err := store.ReplaceChunks(ctx, 5, 0, in); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}
	got, err := store.GetChunksByIDs(ctx, []int64{in[0].ID})
	if err != nil {
		t.Fatalf("GetChunksByIDs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d chunks", len(got))
	}
	emb := got[0].Embedding
	if len(emb) != 3 {
		t.Fatalf("embedding length = %d", len(emb))
	}
	for i, want := range []float32{0.123456, -1.5, 0} {
		diff := emb[i] - want
		if diff < 0 {
			diff = -diff
		}
		if diff > 1e-6 {
			t.Errorf("embedding[%d] = %v, want %v", i, emb[i], want)
		}
	}
}

func TestDeleteVectors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, lang := range []int64{0, 1017} {
		chunks := []*models.Chunk{{PageID: 9, LangID: lang, ChunkIndex: 0, Text: "t", Embedding: []float32{1}}}
		if _, err := store.ReplaceChunks(ctx, 9, lang, chunks); err != nil {
			t.Fatalf("ReplaceChunks lang %d: %v", lang, err)
		}
	}

	lang := int64(1017)
	removed, err := store.DeleteVectors(ctx, 9, &lang)
	if err != nil {
		t.Fatalf("DeleteVectors: %v", err)
	}
	if len(removed) != 1 {
		t.Errorf("removed %d, want 1", len(removed))
	}
	if has, _ := store.HasVectors(ctx, 9, &lang); has {
		t.Error("lang 1017 vectors still present")
	}
	if has, _ := store.HasVectors(ctx, 9, nil); !has {
		t.Error("lang 0 vectors should survive scoped delete")
	}

	if _, err := store.DeleteVectors(ctx, 9, nil); err != nil {
		t.Fatalf("DeleteVectors all: %v", err)
	}
	if has, _ := store.HasVectors(ctx, 9, nil); has {
		t.Error("vectors remain after full delete")
	}
}

func TestGetChunksByIDsPreservesOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunks := make([]*models.Chunk, 3)
	for i := range chunks {
		chunks[i] = &models.Chunk{PageID: 2, LangID: 0, ChunkIndex: i, Text: "t", Embedding: []float32{1}}
	}
	if _, err := store.ReplaceChunks(ctx, 2, 0, chunks); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	want := []int64{chunks[2].ID, chunks[0].ID, chunks[1].ID}
	got, err := store.GetChunksByIDs(ctx, append(want, 999999))
	if err != nil {
		t.Fatalf("GetChunksByIDs: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d chunks, want 3", len(got))
	}
	for i, c := range got {
		if c.ID != want[i] {
			t.Errorf("position %d: ID %d, want %d", i, c.ID, want[i])
		}
	}
}

func TestScanChunksLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunks := make([]*models.Chunk, 10)
	for i := range chunks {
		chunks[i] = &models.Chunk{PageID: 3, LangID: 0, ChunkIndex: i, Text: "t", Embedding: []float32{1}}
	}
	if _, err := store.ReplaceChunks(ctx, 3, 0, chunks); err != nil {
		t.Fatalf("ReplaceChunks: %v", err)
	}

	got, err := store.ScanChunks(ctx, 0, 4)
	if err != nil {
		t.Fatalf("ScanChunks: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("got %d chunks, want 4", len(got))
	}
	if other, err := store.ScanChunks(ctx, 1017, 4); err != nil || len(other) != 0 {
		t.Errorf("foreign lang scan = (%d, %v), want empty", len(other), err)
	}
}

func TestReplaceBlocks(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	doc := &models.Document{Source: models.SourceFile, SrcPtr: "/tmp/r.pdf", Backend: "pdf"}
	if err := store.Enqueue(ctx, doc); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	blocks := []*models.Block{
		{BlockIndex: 0, Kind: "pdf_page", Text: "page one", Meta: map[string]interface{}{"page": 1}},
		{BlockIndex: 1, Kind: "pdf_page", Text: "page two"},
	}
	if err := store.ReplaceBlocks(ctx, doc.ID, 0, blocks); err != nil {
		t.Fatalf("ReplaceBlocks: %v", err)
	}

	if err := store.ReplaceBlocks(ctx, doc.ID, 0, blocks[:1]); err != nil {
		t.Fatalf("second ReplaceBlocks: %v", err)
	}
	got, err := store.GetBlocks(ctx, doc.ID, 0)
	if err != nil {
		t.Fatalf("GetBlocks: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d blocks, want 1 after replace", len(got))
	}
	if got[0].Kind != "pdf_page" || got[0].Text != "page one" {
		t.Errorf("block = %+v", got[0])
	}
	if got[0].Meta["page"] != float64(1) {
		t.Errorf("meta = %v", got[0].Meta)
	}
}

func TestCountDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Enqueue(ctx, &models.Document{Source: models.SourcePage, SrcPtr: "x"}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}
	claimed, err := store.ClaimNext(ctx, 60, 0)
	if err != nil || claimed == nil {
		t.Fatalf("ClaimNext: (%+v, %v)", claimed, err)
	}
	if err := store.MarkDone(ctx, claimed.ID); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	counts, err := store.CountDocuments(ctx)
	if err != nil {
		t.Fatalf("CountDocuments: %v", err)
	}
	if counts[models.StatusPending] != 2 || counts[models.StatusDone] != 1 {
		t.Errorf("counts = %v", counts)
	}
}
