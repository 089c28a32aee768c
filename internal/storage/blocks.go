package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sitebrain/sitebrain/internal/models"
)

// ReplaceBlocks replaces the extracted blocks of a (document, language)
// partition in one transaction and assigns IDs to the inserted blocks.
func (s *Store) ReplaceBlocks(ctx context.Context, docID, langID int64, blocks []*models.Block) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM blocks WHERE doc_id = ? AND lang_id = ?`, docID, langID); err != nil {
		return err
	}

	now := time.Now().UTC()
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO blocks (doc_id, block_index, lang_id, kind, text, meta, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range blocks {
		metaJSON, err := json.Marshal(b.Meta)
		if err != nil {
			return err
		}
		res, err := stmt.ExecContext(ctx, docID, b.BlockIndex, langID, b.Kind, b.Text, string(metaJSON), now)
		if err != nil {
			return err
		}
		if b.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		b.DocID = docID
		b.LangID = langID
		b.CreatedAt = now
	}
	return tx.Commit()
}

// GetBlocks returns the blocks of a (document, language) partition in block
// index order.
func (s *Store) GetBlocks(ctx context.Context, docID, langID int64) ([]*models.Block, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, doc_id, block_index, lang_id, kind, text, meta, created_at
		 FROM blocks WHERE doc_id = ? AND lang_id = ? ORDER BY block_index`, docID, langID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Block
	for rows.Next() {
		var b models.Block
		var metaJSON string
		if err := rows.Scan(&b.ID, &b.DocID, &b.BlockIndex, &b.LangID, &b.Kind, &b.Text, &metaJSON, &b.CreatedAt); err != nil {
			return nil, err
		}
		if metaJSON != "" && metaJSON != "null" {
			if err := json.Unmarshal([]byte(metaJSON), &b.Meta); err != nil {
				return nil, err
			}
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}
