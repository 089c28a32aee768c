// Package keyword provides the Bleve-backed keyword prefilter used as the
// first retrieval stage before exact cosine reranking.
package keyword

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/sitebrain/sitebrain/internal/models"
)

// chunkDoc is the shape indexed per chunk. lang_id is a keyword field so
// language scoping is an exact term match, never analyzed.
type chunkDoc struct {
	Text   string `json:"text"`
	Title  string `json:"title"`
	LangID string `json:"lang_id"`
}

// Index stores chunk text for keyword prefiltering, keyed by chunk ID.
type Index struct {
	index bleve.Index
}

// NewIndex creates or opens a Bleve index at path. An existing index is
// reused so chunks survive restarts; remove the directory to force a rebuild
// after a mapping change.
func NewIndex(path string) (*Index, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &Index{index: index}, nil
	}

	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so query terms
	// match indexed words exactly.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	docMapping.AddFieldMappingsAt("lang_id", bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &Index{index: index}, nil
}

// IndexChunk adds or updates one chunk in the keyword index.
func (x *Index) IndexChunk(ctx context.Context, chunk *models.Chunk) error {
	return x.index.Index(chunkKey(chunk.ID), chunkDoc{
		Text:   chunk.Text,
		Title:  chunk.Title,
		LangID: strconv.FormatInt(chunk.LangID, 10),
	})
}

// Delete removes a chunk from the index by its storage ID.
func (x *Index) Delete(ctx context.Context, chunkID int64) error {
	return x.index.Delete(chunkKey(chunkID))
}

// Search runs a match query scoped to one language and returns up to limit
// chunk IDs in descending score order.
func (x *Index) Search(ctx context.Context, query string, langID int64, limit int) ([]int64, error) {
	match := bleve.NewMatchQuery(query)
	lang := bleve.NewTermQuery(strconv.FormatInt(langID, 10))
	lang.SetField("lang_id")
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(match, lang))
	req.Size = limit

	results, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	out := make([]int64, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// DocCount returns the number of chunks in the index.
func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

// Close closes the underlying Bleve index.
func (x *Index) Close() error {
	return x.index.Close()
}

func chunkKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
