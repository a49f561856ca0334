package repository

import "github.com/pesio-ai/be-sow-approvals/internal/approval"

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ActionPlan is the outcome of evaluating an action against the approvals of
// a document. Approval is the pending row to resolve to Status;
// DocumentStatus, when non-nil, is written to the document.
type ActionPlan struct {
	Approval       *approval.Approval
	Status         approval.Status
	DocumentStatus *string
	Entry          *approval.AuditEntry
}

// ActionDecider evaluates an action against the approvals of a document as
// read under the document lock. Returning an error aborts the transaction.
type ActionDecider func(approvals []*approval.Approval) (*ActionPlan, error)
