package indexer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitebrain/sitebrain/internal/content"
	"github.com/sitebrain/sitebrain/internal/embedding"
	"github.com/sitebrain/sitebrain/internal/keyword"
	"github.com/sitebrain/sitebrain/internal/models"
	"github.com/sitebrain/sitebrain/internal/storage"
)

// Indexer turns content into embedded chunks: it resolves page field slots,
// chunks the text, embeds each chunk, and replaces the (page, language)
// partition in storage and the keyword index.
type Indexer struct {
	store     *storage.Store
	embedder  embedding.Embedder
	keyword   *keyword.Index
	templates []string
	slots     [][]string
	chunkSize int
	overlap   int
	logger    *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(ix *Indexer) { ix.logger = logger }
}

// WithChunking overrides the chunk size and overlap.
func WithChunking(size, overlap int) Option {
	return func(ix *Indexer) {
		ix.chunkSize = size
		ix.overlap = overlap
	}
}

// New creates an Indexer. templates is the template allow-list (empty means no
// restriction) and slots the resolved field slots, both in canonical form.
func New(store *storage.Store, embedder embedding.Embedder, kw *keyword.Index, templates []string, slots [][]string, opts ...Option) *Indexer {
	ix := &Indexer{
		store:     store,
		embedder:  embedder,
		keyword:   kw,
		templates: templates,
		slots:     slots,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// IndexPage indexes a page in every language it carries. An ineligible page
// has its existing vectors removed instead, so pages that leave the allow-list
// drop out of retrieval on their next reindex. When docID is non-zero the
// resolved slot texts are persisted as blocks for that queue document.
// Returns the number of chunks written.
func (ix *Indexer) IndexPage(ctx context.Context, page content.Page, docID int64) (int, error) {
	if !content.Eligible(page, ix.templates, ix.slots) {
		n, err := ix.DeleteVectors(ctx, page.ID(), nil)
		if err != nil {
			return 0, err
		}
		ix.logger.Info("page not eligible, vectors removed",
			zap.Int64("page_id", page.ID()),
			zap.String("template", page.Template()),
			zap.Int("removed", n))
		return 0, nil
	}

	langs := page.Languages()
	if len(langs) == 0 {
		langs = []int64{0}
	}

	total := 0
	for _, langID := range langs {
		n, err := ix.indexPageLang(ctx, page, docID, langID)
		if err != nil {
			return total, err
		}
		total += n
	}
	ix.logger.Info("page indexed",
		zap.Int64("page_id", page.ID()),
		zap.Int("languages", len(langs)),
		zap.Int("chunks", total))
	return total, nil
}

func (ix *Indexer) indexPageLang(ctx context.Context, page content.Page, docID, langID int64) (int, error) {
	var blocks []*models.Block
	for i, slot := range ix.slots {
		text := content.ResolveSlot(page, slot, langID)
		if text == "" {
			continue
		}
		blocks = append(blocks, &models.Block{
			BlockIndex: i,
			Kind:       "field_slot",
			Text:       text,
		})
	}
	if docID != 0 {
		if err := ix.store.ReplaceBlocks(ctx, docID, langID, blocks); err != nil {
			return 0, fmt.Errorf("failed to store blocks: %w", err)
		}
	}

	title := page.Title(langID)
	chunks, err := ix.buildChunks(ctx, blocks, func(c *models.Chunk) {
		c.DocID = docID
		c.PageID = page.ID()
		c.LangID = langID
		c.SourceURL = page.URL()
		c.Title = title
	})
	if err != nil {
		return 0, err
	}

	removed, err := ix.store.ReplaceChunks(ctx, page.ID(), langID, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to replace chunks: %w", err)
	}
	ix.syncKeyword(ctx, removed, chunks)
	return len(chunks), nil
}

// IndexBlocks embeds and stores pre-extracted blocks for a file or URL
// document. Chunks are keyed by the document rather than a page, so distinct
// files never collide. Returns the number of chunks written.
func (ix *Indexer) IndexBlocks(ctx context.Context, doc *models.Document, blocks []*models.Block, title, sourceURL string) (int, error) {
	if err := ix.store.ReplaceBlocks(ctx, doc.ID, doc.LangID, blocks); err != nil {
		return 0, fmt.Errorf("failed to store blocks: %w", err)
	}

	chunks, err := ix.buildChunks(ctx, blocks, func(c *models.Chunk) {
		c.DocID = doc.ID
		c.LangID = doc.LangID
		c.SourceURL = sourceURL
		c.Title = title
	})
	if err != nil {
		return 0, err
	}

	removed, err := ix.store.ReplaceChunksForDoc(ctx, doc.ID, doc.LangID, chunks)
	if err != nil {
		return 0, fmt.Errorf("failed to replace chunks: %w", err)
	}
	ix.syncKeyword(ctx, removed, chunks)
	ix.logger.Info("document indexed",
		zap.Int64("doc_id", doc.ID),
		zap.String("source", doc.Source),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// buildChunks chunks each block's text and embeds every chunk sequentially.
// Chunk indexes run contiguously across blocks within the partition. An
// embedding failure aborts the whole partition so a partial reindex is never
// committed.
func (ix *Indexer) buildChunks(ctx context.Context, blocks []*models.Block, fill func(*models.Chunk)) ([]*models.Chunk, error) {
	var chunks []*models.Chunk
	index := 0
	for _, block := range blocks {
		for _, text := range ChunkText(block.Text, ix.chunkSize, ix.overlap) {
			vec, err := ix.embedder.Embed(ctx, text)
			if err != nil {
				return nil, fmt.Errorf("failed to embed chunk %d: %w", index, err)
			}
			c := &models.Chunk{
				BlockID:    block.ID,
				ChunkIndex: index,
				Text:       text,
				Embedding:  vec,
			}
			fill(c)
			chunks = append(chunks, c)
			index++
		}
	}
	return chunks, nil
}

// DeleteVectors removes a page's chunks from storage and the keyword index.
// A nil langID removes all languages. Returns the number of chunks removed.
func (ix *Indexer) DeleteVectors(ctx context.Context, pageID int64, langID *int64) (int, error) {
	removed, err := ix.store.DeleteVectors(ctx, pageID, langID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete vectors: %w", err)
	}
	ix.syncKeyword(ctx, removed, nil)
	return len(removed), nil
}

// syncKeyword mirrors a chunk replacement into the keyword index. Keyword
// failures are logged, not returned: retrieval degrades to the bounded scan
// when the prefilter is out of sync or unavailable.
func (ix *Indexer) syncKeyword(ctx context.Context, removed []int64, added []*models.Chunk) {
	if ix.keyword == nil {
		return
	}
	for _, id := range removed {
		if err := ix.keyword.Delete(ctx, id); err != nil {
			ix.logger.Warn("keyword delete failed", zap.Int64("chunk_id", id), zap.Error(err))
		}
	}
	for _, c := range added {
		if err := ix.keyword.IndexChunk(ctx, c); err != nil {
			ix.logger.Warn("keyword index failed", zap.Int64("chunk_id", c.ID), zap.Error(err))
		}
	}
}
