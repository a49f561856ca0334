package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// DocumentRecord is the stored SOW projection with its timestamps.
type DocumentRecord struct {
	approval.Document
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DocumentRepository handles the sows projection table.
type DocumentRepository struct {
	db *database.DB
}

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(db *database.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Upsert registers a document or updates its amount. An existing document
// only accepts a new amount while it is still a draft; otherwise Conflict.
// An empty ID lets the database assign one.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *DocumentRecord) error {
	if doc.ID == "" {
		query := `
			INSERT INTO sows (amount, status)
			VALUES ($1, $2)
			RETURNING id, status, created_at, updated_at
		`
		err := r.db.QueryRow(ctx, query, doc.Amount, approval.DocumentDraft).
			Scan(&doc.ID, &doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to create sow")
		}
		return nil
	}

	query := `
		INSERT INTO sows (id, amount, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE
		SET amount     = EXCLUDED.amount,
		    updated_at = NOW()
		WHERE sows.status = 'draft'
		RETURNING status, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, doc.ID, doc.Amount, approval.DocumentDraft).
		Scan(&doc.Status, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Conflict("sow " + doc.ID + " is no longer a draft")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to upsert sow")
	}
	return nil
}

// GetByID retrieves a document by id.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*DocumentRecord, error) {
	query := `
		SELECT id, amount, status, created_at, updated_at
		FROM sows
		WHERE id = $1
	`

	doc := &DocumentRecord{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&doc.ID,
		&doc.Amount,
		&doc.Status,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("sow", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get sow")
	}
	return doc, nil
}

func updateDocumentStatus(ctx context.Context, q database.Querier, id, status string) error {
	tag, err := q.Exec(ctx,
		`UPDATE sows SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status,
	)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update sow status")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("sow", id)
	}
	return nil
}
