package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sitebrain/sitebrain/internal/models"
	"github.com/sitebrain/sitebrain/pkg/utils"
)

// maxErrorTextLen bounds the error text recorded on a failed document.
const maxErrorTextLen = 500

// Enqueue inserts a pending queue document and sets its ID and timestamps.
func (s *Store) Enqueue(ctx context.Context, doc *models.Document) error {
	metaJSON, err := json.Marshal(doc.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}
	now := time.Now().UTC()
	doc.Status = models.StatusPending
	doc.CreatedAt = now
	doc.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (source, src_ptr, page_id, lang_id, backend, status, meta, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Source, doc.SrcPtr, doc.PageID, doc.LangID, doc.Backend, doc.Status, string(metaJSON), doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	doc.ID, err = res.LastInsertId()
	return err
}

// ClaimNext atomically claims the oldest eligible document: pending, or
// leased/failed with an expired lease. The selection and the status update run
// in one immediate transaction, so two workers can never claim the same
// document. When maxAttempts > 0, documents at or past the cap are skipped.
// Returns (nil, nil) when nothing is eligible.
func (s *Store) ClaimNext(ctx context.Context, leaseSeconds int, maxAttempts int) (*models.Document, error) {
	if leaseSeconds <= 0 {
		leaseSeconds = 60
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	query := `SELECT id, source, src_ptr, page_id, lang_id, backend, status, attempts, leased_until, error_text, meta, created_at, updated_at
		FROM documents
		WHERE (status = ? OR (status IN (?, ?) AND leased_until IS NOT NULL AND leased_until <= ?))`
	args := []interface{}{models.StatusPending, models.StatusLeased, models.StatusFailed, now}
	if maxAttempts > 0 {
		query += ` AND attempts < ?`
		args = append(args, maxAttempts)
	}
	query += ` ORDER BY created_at, id LIMIT 1`

	doc, err := scanDocument(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	leasedUntil := now.Add(time.Duration(leaseSeconds) * time.Second)
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET status = ?, leased_until = ?, updated_at = ? WHERE id = ?`,
		models.StatusLeased, leasedUntil, now, doc.ID,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	doc.Status = models.StatusLeased
	doc.LeasedUntil = leasedUntil
	doc.UpdatedAt = now
	return doc, nil
}

// MarkDone marks a document as successfully processed.
func (s *Store) MarkDone(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, error_text = '', updated_at = ? WHERE id = ?`,
		models.StatusDone, time.Now().UTC(), id,
	)
	return err
}

// MarkFailed records a truncated error message, bumps the attempt counter,
// and marks the document failed. The document stays eligible for re-claim
// once its lease expires.
func (s *Store) MarkFailed(ctx context.Context, id int64, errText string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, attempts = attempts + 1, error_text = ?, updated_at = ? WHERE id = ?`,
		models.StatusFailed, utils.Truncate(errText, maxErrorTextLen), time.Now().UTC(), id,
	)
	return err
}

// GetDocument returns a queue document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT id, source, src_ptr, page_id, lang_id, backend, status, attempts, leased_until, error_text, meta, created_at, updated_at
		 FROM documents WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document not found: %d", id)
	}
	return doc, err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var doc models.Document
	var leasedUntil sql.NullTime
	var metaJSON sql.NullString
	err := row.Scan(&doc.ID, &doc.Source, &doc.SrcPtr, &doc.PageID, &doc.LangID, &doc.Backend,
		&doc.Status, &doc.Attempts, &leasedUntil, &doc.ErrorText, &metaJSON, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if leasedUntil.Valid {
		doc.LeasedUntil = leasedUntil.Time
	}
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		if err := json.Unmarshal([]byte(metaJSON.String), &doc.Meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
		}
	}
	return &doc, nil
}
