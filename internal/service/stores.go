package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/repository"
)

// StageStore persists approval stages.
type StageStore interface {
	Create(ctx context.Context, stage *approval.Stage) error
	GetByID(ctx context.Context, id string) (*approval.Stage, error)
	List(ctx context.Context, activeOnly bool) ([]*approval.Stage, error)
	Update(ctx context.Context, stage *approval.Stage) error
}

// RuleStore persists approval rules.
type RuleStore interface {
	Create(ctx context.Context, rule *approval.Rule) error
	GetByID(ctx context.Context, id string) (*approval.Rule, error)
	List(ctx context.Context, activeOnly bool) ([]*approval.Rule, error)
	Update(ctx context.Context, rule *approval.Rule) error
	Delete(ctx context.Context, id string) error
}

// ApprovalStore reads approval rows.
type ApprovalStore interface {
	GetByDocumentID(ctx context.Context, documentID string) ([]*approval.Approval, error)
}

// WorkflowStore applies workflow mutations atomically.
type WorkflowStore interface {
	Create(ctx context.Context, documentID string, amount int64, approvals []*approval.Approval, entry *approval.AuditEntry) error
	ApplyAction(ctx context.Context, documentID, actorID string, decide repository.ActionDecider) (*repository.ActionPlan, error)
}

// DocumentStore persists the SOW projection.
type DocumentStore interface {
	Upsert(ctx context.Context, doc *repository.DocumentRecord) error
	GetByID(ctx context.Context, id string) (*repository.DocumentRecord, error)
}

// CommentStore persists document comments.
type CommentStore interface {
	Create(ctx context.Context, c *approval.Comment) error
	ListByDocument(ctx context.Context, documentID string) ([]*approval.Comment, error)
}

// AuditStore appends and reads the workflow audit log.
type AuditStore interface {
	Append(ctx context.Context, entry *approval.AuditEntry) error
	GetByDocumentID(ctx context.Context, documentID string) ([]*approval.AuditEntry, error)
}

// CatalogCache caches catalog snapshots. Get returns (nil, nil) on a miss.
type CatalogCache interface {
	Get(ctx context.Context) (*approval.Catalog, error)
	Set(ctx context.Context, catalog *approval.Catalog) error
	Invalidate(ctx context.Context) error
}

// Notifier publishes workflow events. Implementations never fail the caller.
type Notifier interface {
	PublishSOWEvent(ctx context.Context, eventType, documentID, actorID string, recipients []string, payload map[string]any)
}

type nopNotifier struct{}

func (nopNotifier) PublishSOWEvent(context.Context, string, string, string, []string, map[string]any) {}

func validateID(field, id string) error {
	if id == "" {
		return errors.InvalidInput(field, "is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return errors.InvalidInput(field, "must be a valid UUID")
	}
	return nil
}

func requireAdmin(actor auth.Actor, what string) error {
	if !actor.IsAdmin() {
		return errors.Forbidden("only admins may " + what)
	}
	return nil
}
