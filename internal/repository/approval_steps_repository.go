package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// ApprovalStepsRepository reads individual approval rows and applies the
// pending → terminal compare-and-swap. Row creation is handled by
// ApprovalWorkflowRepository.Create (transactionally).
type ApprovalStepsRepository struct {
	db *database.DB
}

// NewApprovalStepsRepository creates a new ApprovalStepsRepository.
func NewApprovalStepsRepository(db *database.DB) *ApprovalStepsRepository {
	return &ApprovalStepsRepository{db: db}
}

// GetByDocumentID returns every approval of a document.
func (r *ApprovalStepsRepository) GetByDocumentID(ctx context.Context, documentID string) ([]*approval.Approval, error) {
	return listApprovals(ctx, r.db, documentID)
}

func listApprovals(ctx context.Context, q database.Querier, documentID string) ([]*approval.Approval, error) {
	query := `
		SELECT a.id, a.document_id, a.stage_id, a.status, a.approver_id, a.version,
		       a.created_at, a.updated_at
		FROM sow_approvals a
		JOIN approval_stages s ON s.id = a.stage_id
		WHERE a.document_id = $1
		ORDER BY s.sort_order ASC, a.stage_id ASC
	`

	rows, err := q.Query(ctx, query, documentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approvals")
	}
	defer rows.Close()

	var approvals []*approval.Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval")
		}
		approvals = append(approvals, a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approvals")
	}
	return approvals, nil
}

// resolve moves a pending approval to status. The WHERE clause is the
// concurrency guard: when another actor resolved the row first no row
// matches and Conflict is returned.
func resolve(ctx context.Context, q database.Querier, a *approval.Approval, status approval.Status, actorID string) error {
	query := `
		UPDATE sow_approvals
		SET status      = $2,
		    approver_id = $3,
		    version     = version + 1,
		    updated_at  = NOW()
		WHERE id = $1
		  AND status = 'pending'
		RETURNING version, updated_at
	`

	err := q.QueryRow(ctx, query, a.ID, string(status), actorID).Scan(&a.Version, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.Conflict("approval " + a.ID + " is no longer pending")
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval")
	}
	a.Status = status
	a.ApproverID = &actorID
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanApproval(row rowScanner) (*approval.Approval, error) {
	a := &approval.Approval{}
	var status string
	err := row.Scan(
		&a.ID,
		&a.DocumentID,
		&a.StageID,
		&status,
		&a.ApproverID,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = approval.Status(status)
	return a, nil
}
