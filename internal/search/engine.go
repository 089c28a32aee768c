// Package search provides retrieval: keyword prefilter, exact cosine
// reranking, and context assembly.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitebrain/sitebrain/internal/config"
	"github.com/sitebrain/sitebrain/internal/embedding"
	"github.com/sitebrain/sitebrain/internal/keyword"
	"github.com/sitebrain/sitebrain/internal/models"
	"github.com/sitebrain/sitebrain/internal/storage"
	"github.com/sitebrain/sitebrain/internal/vector"
)

// Engine retrieves the chunks most relevant to a query within one language.
type Engine struct {
	store    *storage.Store
	embedder embedding.Embedder
	keyword  *keyword.Index
	config   *config.SearchConfig
	logger   *zap.Logger
}

// NewEngine creates a search engine. The keyword index may be nil, in which
// case every search uses the bounded scan fallback.
func NewEngine(store *storage.Store, embedder embedding.Embedder, kw *keyword.Index, cfg *config.SearchConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		store:    store,
		embedder: embedder,
		keyword:  kw,
		config:   cfg,
		logger:   logger,
	}
}

// Result is the response of one search call.
type Result struct {
	Query     string                `json:"query"`
	LangID    int64                 `json:"lang_id"`
	Chunks    []*models.ScoredChunk `json:"chunks"`
	Context   string                `json:"context"`
	TimeTaken time.Duration         `json:"time_taken"`
}

// Search embeds the query once, gathers candidates via the keyword prefilter
// (falling back to a bounded scan when the prefilter fails or finds nothing),
// reranks them by exact cosine similarity, and returns the top chunks with an
// assembled context string. Embedding failures are fatal; candidate-gathering
// failures degrade.
func (e *Engine) Search(ctx context.Context, query string, langID int64) (*Result, error) {
	start := time.Now()
	query = NormalizeQuery(query)
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	candidates := e.gatherCandidates(ctx, query, langID)

	scored := make([]*models.ScoredChunk, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, &models.ScoredChunk{
			Chunk: c,
			Score: vector.Cosine(queryVec, c.Embedding),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > e.config.TopK {
		scored = scored[:e.config.TopK]
	}

	return &Result{
		Query:     query,
		LangID:    langID,
		Chunks:    scored,
		Context:   BuildContext(scored, e.config.ContextMaxChars),
		TimeTaken: time.Since(start),
	}, nil
}

// gatherCandidates returns the candidate chunks for reranking. The keyword
// prefilter caps the cosine workload; when it errors or returns nothing, a
// bounded scan of the newest chunks keeps retrieval alive.
func (e *Engine) gatherCandidates(ctx context.Context, query string, langID int64) []*models.Chunk {
	if e.keyword != nil {
		ids, err := e.keyword.Search(ctx, query, langID, e.config.PrefilterLimit)
		if err != nil {
			e.logger.Warn("keyword prefilter failed, falling back to scan",
				zap.Int64("lang_id", langID), zap.Error(err))
		} else if len(ids) > 0 {
			chunks, err := e.store.GetChunksByIDs(ctx, ids)
			if err != nil {
				e.logger.Warn("candidate fetch failed, falling back to scan", zap.Error(err))
			} else if len(chunks) > 0 {
				return chunks
			}
		}
	}

	chunks, err := e.store.ScanChunks(ctx, langID, e.config.ScanLimit)
	if err != nil {
		e.logger.Error("fallback scan failed", zap.Int64("lang_id", langID), zap.Error(err))
		return nil
	}
	return chunks
}

// NormalizeQuery collapses whitespace runs and trims the query.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(query), " ")
}
