package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/kotaehq/kotae/internal/apperr"
	"github.com/kotaehq/kotae/internal/models"
)

// SQLiteRegistry implements Registry using SQLite.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLiteRegistry opens or creates a SQLite database at dbPath and
// initializes the schema. Parent directories are created if missing.
func NewSQLiteRegistry(dbPath string) (*SQLiteRegistry, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLiteRegistry{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		chunk_count INTEGER NOT NULL,
		character_count INTEGER NOT NULL,
		uploaded_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents(uploaded_at);
	`
	_, err := db.Exec(schema)
	return err
}

// CreateDocument inserts or replaces a registry entry. Re-ingesting the same
// document id overwrites the previous entry.
func (s *SQLiteRegistry) CreateDocument(ctx context.Context, doc *models.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO documents (id, filename, chunk_count, character_count, uploaded_at)
		 VALUES (?, ?, ?, ?, ?)`,
		doc.ID, doc.Filename, doc.ChunkCount, doc.CharacterCount, doc.UploadedAt,
	)
	return err
}

// GetDocument returns a registry entry by id.
func (s *SQLiteRegistry) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, chunk_count, character_count, uploaded_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&doc.ID, &doc.Filename, &doc.ChunkCount, &doc.CharacterCount, &doc.UploadedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("document " + id)
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a registry entry.
func (s *SQLiteRegistry) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.NotFound("document " + id)
	}
	return nil
}

// ListDocuments returns all registry entries, newest first.
func (s *SQLiteRegistry) ListDocuments(ctx context.Context) ([]*models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, chunk_count, character_count, uploaded_at
		 FROM documents ORDER BY uploaded_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := []*models.Document{}
	for rows.Next() {
		var doc models.Document
		if err := rows.Scan(&doc.ID, &doc.Filename, &doc.ChunkCount, &doc.CharacterCount, &doc.UploadedAt); err != nil {
			return nil, err
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

// CountDocuments returns the number of registry entries.
func (s *SQLiteRegistry) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n)
	return n, err
}

// Close closes the database.
func (s *SQLiteRegistry) Close() error {
	return s.db.Close()
}
