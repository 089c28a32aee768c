package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sitebrain/sitebrain/internal/embedding"
	"github.com/sitebrain/sitebrain/internal/models"
)

// ReplaceChunks atomically replaces all chunk rows for a (page, language)
// partition. Old rows are deleted and the new chunks inserted in one
// transaction, so a reader never sees a mix of old and new vectors. Returns
// the IDs of the removed rows so the caller can purge the keyword index, and
// assigns IDs to the inserted chunks.
func (s *Store) ReplaceChunks(ctx context.Context, pageID, langID int64, chunks []*models.Chunk) ([]int64, error) {
	return s.replaceChunks(ctx, "page_id", pageID, langID, chunks)
}

// ReplaceChunksForDoc replaces the chunk rows of a (document, language)
// partition. Used for file and URL sources, which have no page identity and
// would otherwise collide on page_id 0.
func (s *Store) ReplaceChunksForDoc(ctx context.Context, docID, langID int64, chunks []*models.Chunk) ([]int64, error) {
	return s.replaceChunks(ctx, "doc_id", docID, langID, chunks)
}

func (s *Store) replaceChunks(ctx context.Context, keyCol string, keyID, langID int64, chunks []*models.Chunk) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	removed, err := collectIDs(tx.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM chunks WHERE %s = ? AND lang_id = ?`, keyCol), keyID, langID))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM chunks WHERE %s = ? AND lang_id = ?`, keyCol), keyID, langID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (doc_id, block_id, page_id, lang_id, chunk_index, source_url, title, text, embedding, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	for _, c := range chunks {
		res, err := stmt.ExecContext(ctx,
			c.DocID, c.BlockID, c.PageID, c.LangID, c.ChunkIndex, c.SourceURL, c.Title, c.Text,
			embedding.Serialize(c.Embedding), now, now)
		if err != nil {
			return nil, err
		}
		if c.ID, err = res.LastInsertId(); err != nil {
			return nil, err
		}
		c.CreatedAt = now
		c.UpdatedAt = now
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

// DeleteVectors removes chunk rows for a page. A nil langID removes all
// languages; otherwise only the given language partition. Returns the removed
// chunk IDs.
func (s *Store) DeleteVectors(ctx context.Context, pageID int64, langID *int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	where := `page_id = ?`
	args := []interface{}{pageID}
	if langID != nil {
		where += ` AND lang_id = ?`
		args = append(args, *langID)
	}
	removed, err := collectIDs(tx.QueryContext(ctx, `SELECT id FROM chunks WHERE `+where, args...))
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE `+where, args...); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

// HasVectors reports whether any chunk rows exist for a page, optionally
// scoped to one language.
func (s *Store) HasVectors(ctx context.Context, pageID int64, langID *int64) (bool, error) {
	var n int64
	var err error
	if langID != nil {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chunks WHERE page_id = ? AND lang_id = ?`, pageID, *langID).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chunks WHERE page_id = ?`, pageID).Scan(&n)
	}
	return n > 0, err
}

// ScanChunks returns up to limit chunks for a language, newest first. This is
// the bounded fallback path used when the keyword prefilter is unavailable.
func (s *Store) ScanChunks(ctx context.Context, langID int64, limit int) ([]*models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, block_id, page_id, lang_id, chunk_index, source_url, title, text, embedding, created_at, updated_at
		 FROM chunks WHERE lang_id = ? ORDER BY updated_at DESC, id DESC LIMIT ?`, langID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkRows(rows)
}

// GetChunksByIDs fetches chunks by ID, returned in the order of the input
// slice. IDs with no matching row are silently skipped.
func (s *Store) GetChunksByIDs(ctx context.Context, ids []int64) ([]*models.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, block_id, page_id, lang_id, chunk_index, source_url, title, text, embedding, created_at, updated_at
		 FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fetched, err := scanChunkRows(rows)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Chunk, len(fetched))
	for _, c := range fetched {
		byID[c.ID] = c
	}
	out := make([]*models.Chunk, 0, len(fetched))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func scanChunkRows(rows *sql.Rows) ([]*models.Chunk, error) {
	var out []*models.Chunk
	for rows.Next() {
		var c models.Chunk
		var emb string
		if err := rows.Scan(&c.ID, &c.DocID, &c.BlockID, &c.PageID, &c.LangID, &c.ChunkIndex,
			&c.SourceURL, &c.Title, &c.Text, &emb, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.Embedding = embedding.Deserialize(emb)
		out = append(out, &c)
	}
	return out, rows.Err()
}

func collectIDs(rows *sql.Rows, err error) ([]int64, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
