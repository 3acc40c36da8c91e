package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"selfid/internal/idx"
	"selfid/pkg/domain"
	"selfid/pkg/platform/sentinel"
)

// Schema creates the documents table. Content is stored as JSONB.
const Schema = `
CREATE TABLE IF NOT EXISTS idx_documents (
	did        TEXT        NOT NULL,
	doc_key    TEXT        NOT NULL,
	content    JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (did, doc_key)
)`

// PostgresStore persists documents in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate documents: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id domain.DID, key domain.DocumentKey) (*idx.Document, error) {
	doc := idx.Document{DID: id, Key: key}
	var content []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT content, updated_at FROM idx_documents WHERE did = $1 AND doc_key = $2`,
		id.String(), key.String(),
	).Scan(&content, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s/%s: %w", id, key, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get document: %w", classify(err))
	}
	doc.Content = content
	return &doc, nil
}

func (s *PostgresStore) Put(ctx context.Context, doc idx.Document) error {
	query := `
		INSERT INTO idx_documents (did, doc_key, content, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (did, doc_key) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, doc.DID.String(), doc.Key.String(), []byte(doc.Content), doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put document: %w", classify(err))
	}
	return nil
}

// classify marks connection level failures as unavailable so the breaker
// can count them. SQL errors reported by the server pass through.
func classify(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() != "08" {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
}
