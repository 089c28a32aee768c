// Package models defines core data structures for queue documents, blocks, and chunks.
package models

import "time"

// Source kinds for queued documents.
const (
	SourcePage = "page"
	SourceFile = "file"
	SourceURL  = "url"
)

// Document statuses. A document moves pending -> leased -> done/failed.
// A failed document whose lease has expired is eligible for re-claim.
const (
	StatusPending = "pending"
	StatusLeased  = "leased"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Document is one queued indexable unit: a CMS page or an external file/URL.
type Document struct {
	ID          int64                  `json:"id" db:"id"`
	Source      string                 `json:"source" db:"source"`
	SrcPtr      string                 `json:"src_ptr" db:"src_ptr"`
	PageID      int64                  `json:"page_id,omitempty" db:"page_id"`
	LangID      int64                  `json:"lang_id,omitempty" db:"lang_id"`
	Backend     string                 `json:"backend,omitempty" db:"backend"`
	Status      string                 `json:"status" db:"status"`
	Attempts    int                    `json:"attempts" db:"attempts"`
	LeasedUntil time.Time              `json:"leased_until,omitempty" db:"leased_until"`
	ErrorText   string                 `json:"error_text,omitempty" db:"error_text"`
	Meta        map[string]interface{} `json:"meta,omitempty" db:"meta"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at" db:"updated_at"`
}

// Block is one extracted content unit within a document: one per field slot
// for pages, or one per structural element (page, sheet, slide) for files.
type Block struct {
	ID         int64                  `json:"id" db:"id"`
	DocID      int64                  `json:"doc_id" db:"doc_id"`
	BlockIndex int                    `json:"block_index" db:"block_index"`
	LangID     int64                  `json:"lang_id" db:"lang_id"`
	Kind       string                 `json:"kind" db:"kind"`
	Text       string                 `json:"text" db:"text"`
	Meta       map[string]interface{} `json:"meta,omitempty" db:"meta"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
}
