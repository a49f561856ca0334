package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// ApprovalWorkflowRepository applies workflow mutations. Every mutation runs
// in a single transaction together with the document status change and the
// audit entry it implies.
type ApprovalWorkflowRepository struct {
	db *database.DB
}

// NewApprovalWorkflowRepository creates a new ApprovalWorkflowRepository.
func NewApprovalWorkflowRepository(db *database.DB) *ApprovalWorkflowRepository {
	return &ApprovalWorkflowRepository{db: db}
}

// Create starts a workflow: it locks the document, refuses when any approval
// already exists, inserts one pending approval per stage, records amount and
// moves the document to in_review, then appends entry. The (document_id, stage_id) unique
// constraint backs the existence check.
func (r *ApprovalWorkflowRepository) Create(
	ctx context.Context,
	documentID string,
	amount int64,
	approvals []*approval.Approval,
	entry *approval.AuditEntry,
) error {
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var statusBefore string
		err := tx.QueryRow(ctx,
			`SELECT status FROM sows WHERE id = $1 FOR UPDATE`,
			documentID,
		).Scan(&statusBefore)
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.NotFound("sow", documentID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock sow")
		}

		var exists bool
		err = tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM sow_approvals WHERE document_id = $1)`,
			documentID,
		).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to check existing approvals")
		}
		if exists {
			return errors.Conflict("approval workflow already started for sow " + documentID)
		}

		stepQuery := `
			INSERT INTO sow_approvals (document_id, stage_id, status, version)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at, updated_at
		`
		for _, a := range approvals {
			a.DocumentID = documentID
			err := tx.QueryRow(ctx, stepQuery,
				a.DocumentID,
				a.StageID,
				string(a.Status),
				a.Version,
			).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval")
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE sows SET amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
			documentID, amount, approval.DocumentInReview,
		)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update sow")
		}

		if entry != nil {
			after := approval.DocumentInReview
			entry.DocumentID = documentID
			entry.StatusBefore = &statusBefore
			entry.StatusAfter = &after
			if entry.Metadata == nil {
				entry.Metadata = map[string]any{}
			}
			entry.Metadata["amount"] = amount
			entry.Metadata["stage_count"] = len(approvals)
			if err := appendAudit(ctx, tx, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if database.IsUniqueViolation(err) {
		return errors.Conflict("approval workflow already started for sow " + documentID)
	}
	return err
}

// ApplyAction locks the document, reloads its approvals and hands them to
// decide, so authorization and the resulting document status are computed
// from the state the write commits against. The chosen approval is then
// moved off pending, conditioned on it still being pending. Returns NotFound
// for an unknown document, whatever decide returns, or Conflict when the
// approval was resolved concurrently; nothing is written in those cases.
func (r *ApprovalWorkflowRepository) ApplyAction(
	ctx context.Context,
	documentID string,
	actorID string,
	decide ActionDecider,
) (*ActionPlan, error) {
	var plan *ActionPlan
	err := r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		var locked string
		err := tx.QueryRow(ctx,
			`SELECT id FROM sows WHERE id = $1 FOR UPDATE`,
			documentID,
		).Scan(&locked)
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.NotFound("sow", documentID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock sow")
		}

		approvals, err := listApprovals(ctx, tx, documentID)
		if err != nil {
			return err
		}
		p, err := decide(approvals)
		if err != nil {
			return err
		}

		updated := *p.Approval
		if err := resolve(ctx, tx, &updated, p.Status, actorID); err != nil {
			return err
		}

		if p.DocumentStatus != nil {
			if err := updateDocumentStatus(ctx, tx, documentID, *p.DocumentStatus); err != nil {
				return err
			}
		}

		if p.Entry != nil {
			before, after := string(approval.StatusPending), string(p.Status)
			p.Entry.DocumentID = documentID
			p.Entry.ApprovalID = &updated.ID
			p.Entry.StageID = &updated.StageID
			p.Entry.StatusBefore = &before
			p.Entry.StatusAfter = &after
			if err := appendAudit(ctx, tx, p.Entry); err != nil {
				return err
			}
		}

		p.Approval = &updated
		plan = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}
