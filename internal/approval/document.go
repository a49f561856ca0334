package approval

import "time"

// Document statuses owned by the workflow.
const (
	DocumentDraft    = "draft"
	DocumentInReview = "in_review"
	DocumentApproved = "approved"
	DocumentRejected = "rejected"
)

// Document is the slice of a SOW the workflow needs.
type Document struct {
	ID     string `json:"id"`
	Amount int64  `json:"amount"`
	Status string `json:"status"`
}

// AuditAction is the single vocabulary of the workflow audit log.
type AuditAction string

const (
	AuditWorkflowStarted AuditAction = "workflow_started"
	AuditStageApproved   AuditAction = "stage_approved"
	AuditStageRejected   AuditAction = "stage_rejected"
	AuditStageSkipped    AuditAction = "stage_skipped"
	AuditCommentAdded    AuditAction = "comment_added"
)

// AuditActionFor maps a stage action onto its audit action.
func AuditActionFor(action Action) AuditAction {
	switch action {
	case ActionReject:
		return AuditStageRejected
	case ActionSkip:
		return AuditStageSkipped
	default:
		return AuditStageApproved
	}
}

// AuditEntry is one immutable workflow history record.
type AuditEntry struct {
	ID           string         `json:"id"`
	DocumentID   string         `json:"document_id"`
	ApprovalID   *string        `json:"approval_id,omitempty"`
	StageID      *string        `json:"stage_id,omitempty"`
	Action       AuditAction    `json:"action"`
	PerformedBy  string         `json:"performed_by"`
	StatusBefore *string        `json:"status_before,omitempty"`
	StatusAfter  *string        `json:"status_after,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	PerformedAt  time.Time      `json:"performed_at"`
}
