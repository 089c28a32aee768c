// Package queue runs the ingestion worker: it claims queued documents under a
// lease, extracts and indexes them, and records the outcome so crashed runs
// are retried after the lease expires.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/content"
	"github.com/sitebrain/sitebrain/internal/extract"
	"github.com/sitebrain/sitebrain/internal/indexer"
	"github.com/sitebrain/sitebrain/internal/models"
	"github.com/sitebrain/sitebrain/internal/storage"
)

// maxFetchBytes bounds how much of a fetched URL body is read.
const maxFetchBytes = 8 << 20

// Worker processes queued documents one at a time.
type Worker struct {
	store     *storage.Store
	indexer   *indexer.Indexer
	extractor *extract.Extractor
	client    *http.Client
	cfg       *config.WorkerConfig
	logger    *zap.Logger
}

// NewWorker creates a worker.
func NewWorker(store *storage.Store, ix *indexer.Indexer, cfg *config.WorkerConfig, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		store:     store,
		indexer:   ix,
		extractor: extract.NewExtractor(),
		client:    &http.Client{Timeout: 30 * time.Second},
		cfg:       cfg,
		logger:    logger,
	}
}

// EnqueuePage queues a page payload for indexing. The payload travels in the
// document metadata so the worker can index it without calling back into the
// host.
func (w *Worker) EnqueuePage(ctx context.Context, page *content.StaticPage) (*models.Document, error) {
	raw, err := json.Marshal(page)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal page payload: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("failed to build page meta: %w", err)
	}
	doc := &models.Document{
		Source: models.SourcePage,
		SrcPtr: fmt.Sprintf("%d", page.ID()),
		PageID: page.ID(),
		Meta:   map[string]interface{}{"page": meta},
	}
	if err := w.store.Enqueue(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// EnqueueFile queues a file path for extraction and indexing. The extraction
// backend must be resolvable from the extension.
func (w *Worker) EnqueueFile(ctx context.Context, path string) (*models.Document, error) {
	backend := extract.BackendForPath(path)
	if backend == "" {
		return nil, fmt.Errorf("unsupported file type: %s", filepath.Ext(path))
	}
	doc := &models.Document{
		Source:  models.SourceFile,
		SrcPtr:  path,
		Backend: backend,
	}
	if err := w.store.Enqueue(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// EnqueueURL queues a URL for fetching and indexing. The extraction backend
// follows the URL path's extension so a linked PDF or spreadsheet is parsed
// as such; anything unrecognized is treated as an HTML page.
func (w *Worker) EnqueueURL(ctx context.Context, rawURL string) (*models.Document, error) {
	backend := extract.BackendHTML
	if u, err := url.Parse(rawURL); err == nil {
		if b := extract.BackendForPath(u.Path); b != "" {
			backend = b
		}
	}
	doc := &models.Document{
		Source:  models.SourceURL,
		SrcPtr:  rawURL,
		Backend: backend,
	}
	if err := w.store.Enqueue(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RunOnce claims and processes one document. Returns false when nothing is
// eligible. Processing errors are recorded on the document, not returned;
// only claim/storage failures surface as errors.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	doc, err := w.store.ClaimNext(ctx, w.cfg.LeaseSeconds, w.cfg.MaxAttempts)
	if err != nil {
		return false, fmt.Errorf("failed to claim document: %w", err)
	}
	if doc == nil {
		return false, nil
	}

	if err := w.Process(ctx, doc); err != nil {
		w.logger.Warn("document processing failed",
			zap.Int64("doc_id", doc.ID),
			zap.String("source", doc.Source),
			zap.String("src_ptr", doc.SrcPtr),
			zap.Error(err))
		if markErr := w.store.MarkFailed(ctx, doc.ID, err.Error()); markErr != nil {
			return true, fmt.Errorf("failed to record failure: %w", markErr)
		}
		return true, nil
	}
	if err := w.store.MarkDone(ctx, doc.ID); err != nil {
		return true, fmt.Errorf("failed to record success: %w", err)
	}
	return true, nil
}

// Drain processes eligible documents until the queue is empty or the
// iteration cap is hit. Returns the number of documents processed.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	processed := 0
	limit := w.cfg.MaxIterations
	for limit <= 0 || processed < limit {
		ok, err := w.RunOnce(ctx)
		if err != nil {
			return processed, err
		}
		if !ok {
			break
		}
		processed++
	}
	return processed, nil
}

// Run drains the queue and then polls for new work until the context is
// canceled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.Drain(ctx); err != nil {
			w.logger.Error("drain failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Process indexes one claimed document according to its source kind.
func (w *Worker) Process(ctx context.Context, doc *models.Document) error {
	switch doc.Source {
	case models.SourcePage:
		return w.processPage(ctx, doc)
	case models.SourceFile:
		elements, err := w.extractor.ExtractFile(doc.SrcPtr, doc.Backend)
		if err != nil {
			return err
		}
		_, err = w.indexer.IndexBlocks(ctx, doc, elementsToBlocks(elements), filepath.Base(doc.SrcPtr), doc.SrcPtr)
		return err
	case models.SourceURL:
		body, err := w.fetch(ctx, doc.SrcPtr)
		if err != nil {
			return err
		}
		elements, err := w.extractor.Extract(body, doc.Backend)
		if err != nil {
			return err
		}
		_, err = w.indexer.IndexBlocks(ctx, doc, elementsToBlocks(elements), doc.SrcPtr, doc.SrcPtr)
		return err
	default:
		return fmt.Errorf("unknown document source %q", doc.Source)
	}
}

func (w *Worker) processPage(ctx context.Context, doc *models.Document) error {
	payload, ok := doc.Meta["page"]
	if !ok {
		return fmt.Errorf("page document %d has no page payload", doc.ID)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal page payload: %w", err)
	}
	var page content.StaticPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return fmt.Errorf("failed to parse page payload: %w", err)
	}
	_, err = w.indexer.IndexPage(ctx, &page, doc.ID)
	return err
}

func (w *Worker) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", rawURL, err)
	}
	return body, nil
}

func elementsToBlocks(elements []extract.Element) []*models.Block {
	blocks := make([]*models.Block, len(elements))
	for i, el := range elements {
		blocks[i] = &models.Block{
			BlockIndex: i,
			Kind:       el.Kind,
			Text:       el.Text,
			Meta:       el.Meta,
		}
	}
	return blocks
}
