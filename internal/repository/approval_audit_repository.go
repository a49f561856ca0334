package repository

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// ApprovalAuditRepository appends and reads immutable workflow audit entries.
type ApprovalAuditRepository struct {
	db *database.DB
}

// NewApprovalAuditRepository creates a new ApprovalAuditRepository.
func NewApprovalAuditRepository(db *database.DB) *ApprovalAuditRepository {
	return &ApprovalAuditRepository{db: db}
}

// Append inserts one audit entry outside any workflow transaction. The table
// has an update/delete-prevention trigger so this is the only mutation
// exposed.
func (r *ApprovalAuditRepository) Append(ctx context.Context, entry *approval.AuditEntry) error {
	return appendAudit(ctx, r.db, entry)
}

// GetByDocumentID returns the audit trail of a document, oldest first.
func (r *ApprovalAuditRepository) GetByDocumentID(ctx context.Context, documentID string) ([]*approval.AuditEntry, error) {
	query := `
		SELECT id, document_id, approval_id, stage_id,
		       action, performed_by,
		       status_before, status_after,
		       metadata, performed_at
		FROM sow_workflow_audit_log
		WHERE document_id = $1
		ORDER BY performed_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, documentID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	defer rows.Close()

	return scanAuditRows(rows)
}

func appendAudit(ctx context.Context, q database.Querier, entry *approval.AuditEntry) error {
	var metadataJSON []byte
	if entry.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to marshal audit metadata")
		}
	}

	query := `
		INSERT INTO sow_workflow_audit_log
		    (document_id, approval_id, stage_id,
		     action, performed_by,
		     status_before, status_after,
		     metadata)
		VALUES ($1, $2, $3,
		        $4, $5,
		        $6, $7,
		        $8)
		RETURNING id, performed_at
	`

	err := q.QueryRow(ctx, query,
		entry.DocumentID,
		entry.ApprovalID,
		entry.StageID,
		string(entry.Action),
		entry.PerformedBy,
		entry.StatusBefore,
		entry.StatusAfter,
		metadataJSON,
	).Scan(&entry.ID, &entry.PerformedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append audit entry")
	}
	return nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func scanAuditRows(rows pgx.Rows) ([]*approval.AuditEntry, error) {
	var entries []*approval.AuditEntry
	for rows.Next() {
		entry := &approval.AuditEntry{}
		var action string
		var metadataJSON []byte

		err := rows.Scan(
			&entry.ID,
			&entry.DocumentID,
			&entry.ApprovalID,
			&entry.StageID,
			&action,
			&entry.PerformedBy,
			&entry.StatusBefore,
			&entry.StatusAfter,
			&metadataJSON,
			&entry.PerformedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan audit entry")
		}
		entry.Action = approval.AuditAction(action)

		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
				return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to unmarshal audit metadata")
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get audit log")
	}
	return entries, nil
}
