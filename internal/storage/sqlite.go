// Package storage provides SQLite persistence for queue documents, blocks,
// and chunk vectors.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the SQLite database holding the documents, blocks, and chunks
// relations.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates a SQLite database at dbPath and initializes the
// schema. Parent directories are created if they do not exist. Transactions
// are opened immediate so that claim operations take the write lock up front,
// which is what makes ClaimNext safe across worker processes.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", url.PathEscape(dbPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL,
		src_ptr TEXT NOT NULL,
		page_id INTEGER NOT NULL DEFAULT 0,
		lang_id INTEGER NOT NULL DEFAULT 0,
		backend TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		leased_until TIMESTAMP,
		error_text TEXT NOT NULL DEFAULT '',
		meta TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status, created_at);
	CREATE INDEX IF NOT EXISTS idx_documents_src ON documents(source, src_ptr);

	CREATE TABLE IF NOT EXISTS blocks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_id INTEGER NOT NULL,
		block_index INTEGER NOT NULL,
		lang_id INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		meta TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_blocks_doc ON blocks(doc_id, lang_id, block_index);

	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		doc_id INTEGER NOT NULL DEFAULT 0,
		block_id INTEGER NOT NULL DEFAULT 0,
		page_id INTEGER NOT NULL DEFAULT 0,
		lang_id INTEGER NOT NULL DEFAULT 0,
		chunk_index INTEGER NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL,
		embedding TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_page ON chunks(page_id, lang_id, chunk_index);
	CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_id, lang_id);
	CREATE INDEX IF NOT EXISTS idx_chunks_lang ON chunks(lang_id);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CountDocuments returns the number of queue documents per status.
func (s *Store) CountDocuments(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// CountChunks returns the total number of chunk rows.
func (s *Store) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}
