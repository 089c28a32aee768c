package models

import "time"

// Chunk is a bounded slice of a block's text, independently embedded and stored.
// Chunk indexes are contiguous from 0 within a (page, language) partition.
type Chunk struct {
	ID         int64     `json:"id" db:"id"`
	DocID      int64     `json:"doc_id" db:"doc_id"`
	BlockID    int64     `json:"block_id" db:"block_id"`
	PageID     int64     `json:"page_id" db:"page_id"`
	LangID     int64     `json:"lang_id" db:"lang_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	SourceURL  string    `json:"source_url" db:"source_url"`
	Title      string    `json:"title" db:"title"`
	Text       string    `json:"text" db:"text"`
	Embedding  []float32 `json:"-" db:"-"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// ScoredChunk is a chunk with its cosine similarity against a query embedding.
type ScoredChunk struct {
	Chunk *Chunk  `json:"chunk"`
	Score float64 `json:"score"`
}
