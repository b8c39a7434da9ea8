package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

var _ domain.DocumentStore = (*PostgresDocumentStore)(nil)

// PostgresDocumentStore keeps each user document as one JSONB object.
// Merge-writes use the jsonb || operator, so only the top-level keys named in
// a patch are replaced.
type PostgresDocumentStore struct {
	db  *DB
	now func() time.Time
}

func NewPostgresDocumentStore(db *DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (s *PostgresDocumentStore) Get(ctx context.Context, userID string) (*domain.StoredDocument, error) {
	const q = `
SELECT data, created_at, updated_at
FROM user_documents
WHERE user_id = $1`

	var (
		data []byte
		doc  = domain.StoredDocument{UserID: userID}
	)
	err := s.db.Pool.QueryRow(ctx, q, userID).Scan(&data, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, fmt.Errorf("repository: get document failed: %w", err)
	}

	if err := json.Unmarshal(data, &doc.Fields); err != nil {
		return nil, fmt.Errorf("repository: corrupted document %s: %w", userID, err)
	}
	return &doc, nil
}

// Merge creates the document with isPremium=false on first write. The default
// is applied before the patch, so an explicit value in the patch wins.
func (s *PostgresDocumentStore) Merge(ctx context.Context, userID string, patch domain.DocumentPatch) error {
	const q = `
INSERT INTO user_documents (user_id, data, created_at, updated_at)
VALUES ($1, '{"isPremium": false}'::jsonb || $2::jsonb, $3, $3)
ON CONFLICT (user_id) DO UPDATE
SET data = user_documents.data || $2::jsonb,
    updated_at = $3`

	if len(patch) == 0 {
		return domain.ErrEmptyPatch
	}
	fields, err := patch.Fields()
	if err != nil {
		return err
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("repository: encode patch: %w", err)
	}

	if _, err := s.db.Pool.Exec(ctx, q, userID, string(data), s.now()); err != nil {
		return fmt.Errorf("repository: merge document failed: %w", err)
	}
	return nil
}

// FindByEmail returns the oldest document carrying email.
func (s *PostgresDocumentStore) FindByEmail(ctx context.Context, email string) (string, error) {
	const q = `
SELECT user_id
FROM user_documents
WHERE lower(data->>'email') = $1
ORDER BY created_at
LIMIT 1`

	var userID string
	err := s.db.Pool.QueryRow(ctx, q, domain.NormalizeEmail(email)).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrDocumentNotFound
		}
		return "", fmt.Errorf("repository: find document by email failed: %w", err)
	}
	return userID, nil
}
