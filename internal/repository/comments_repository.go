package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// CommentsRepository stores the append-only comment log of documents.
type CommentsRepository struct {
	db *database.DB
}

// NewCommentsRepository creates a new CommentsRepository.
func NewCommentsRepository(db *database.DB) *CommentsRepository {
	return &CommentsRepository{db: db}
}

// Create inserts a comment. A parent, when set, must exist and belong to the
// same document; the check and the insert share one statement so a parent
// from another document never slips in.
func (r *CommentsRepository) Create(ctx context.Context, c *approval.Comment) error {
	query := `
		INSERT INTO sow_comments (document_id, user_id, text, is_internal, parent_id, version)
		SELECT $1::uuid, $2::text, $3::text, $4::boolean, $5::uuid, 1
		WHERE $5::uuid IS NULL
		   OR EXISTS (SELECT 1 FROM sow_comments p WHERE p.id = $5::uuid AND p.document_id = $1::uuid)
		RETURNING id, version, created_at
	`

	err := r.db.QueryRow(ctx, query,
		c.DocumentID,
		c.UserID,
		c.Text,
		c.IsInternal,
		c.ParentID,
	).Scan(&c.ID, &c.Version, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.NotFound("comment", *c.ParentID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create comment")
	}
	return nil
}

// ListByDocument returns every comment of one document, oldest first.
func (r *CommentsRepository) ListByDocument(ctx context.Context, documentID string) ([]*approval.Comment, error) {
	query := `
		SELECT id, document_id, user_id, text, is_internal, parent_id, version, created_at
		FROM sow_comments
		WHERE document_id = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list comments")
	}
	defer rows.Close()

	var comments []*approval.Comment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan comment")
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list comments")
	}
	return comments, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanComment(row rowScanner) (*approval.Comment, error) {
	c := &approval.Comment{}
	err := row.Scan(
		&c.ID,
		&c.DocumentID,
		&c.UserID,
		&c.Text,
		&c.IsInternal,
		&c.ParentID,
		&c.Version,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
