package service

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/client"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
	"github.com/pesio-ai/be-sow-approvals/internal/repository"
)

// ApprovalView is an approval together with the stage it resolves.
type ApprovalView struct {
	*approval.Approval
	Stage *approval.Stage `json:"stage,omitempty"`
}

// WorkflowStatus is the observable state of one document's workflow as seen
// by one actor.
type WorkflowStatus struct {
	DocumentID     string             `json:"document_id"`
	DocumentStatus string             `json:"document_status"`
	Amount         int64              `json:"amount"`
	Started        bool               `json:"started"`
	CurrentStage   *approval.Stage    `json:"current_stage"`
	NextStage      *approval.Stage    `json:"next_stage"`
	Approvals      []*ApprovalView    `json:"approvals"`
	Comments       []*approval.Thread `json:"comments"`
	CanApprove     bool               `json:"can_approve"`
	CanReject      bool               `json:"can_reject"`
	CanSkip        bool               `json:"can_skip"`
	IsComplete     bool               `json:"is_complete"`
	IsRejected     bool               `json:"is_rejected"`
	Bypassed       bool               `json:"bypassed"`
}

// StartWorkflowRequest starts the workflow of a document.
type StartWorkflowRequest struct {
	DocumentID string
	Amount     *int64
}

// ActOnStageRequest applies an action to one stage of a document.
type ActOnStageRequest struct {
	DocumentID string
	StageID    string
	Action     string
}

// ApprovalRoutingService orchestrates the SOW approval workflow.
type ApprovalRoutingService struct {
	catalog   *CatalogService
	documents DocumentStore
	approvals ApprovalStore
	workflow  WorkflowStore
	comments  CommentStore
	audit     AuditStore
	notifier  Notifier
	log       *logger.Logger
}

// NewApprovalRoutingService creates a new ApprovalRoutingService. notifier
// may be nil.
func NewApprovalRoutingService(
	catalog *CatalogService,
	documents DocumentStore,
	approvals ApprovalStore,
	workflow WorkflowStore,
	comments CommentStore,
	audit AuditStore,
	notifier Notifier,
	log *logger.Logger,
) *ApprovalRoutingService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &ApprovalRoutingService{
		catalog:   catalog,
		documents: documents,
		approvals: approvals,
		workflow:  workflow,
		comments:  comments,
		audit:     audit,
		notifier:  notifier,
		log:       log,
	}
}

// ── Status ────────────────────────────────────────────────────────────────────

// GetWorkflowStatus projects the workflow of a document for actor.
func (s *ApprovalRoutingService) GetWorkflowStatus(ctx context.Context, actor auth.Actor, documentID string) (*WorkflowStatus, error) {
	if err := validateID("document_id", documentID); err != nil {
		return nil, err
	}
	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	inst, err := s.loadInstance(ctx, documentID)
	if err != nil {
		return nil, err
	}
	comments, err := s.comments.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	proj := approval.Project(inst)
	perms := approval.CurrentPermissions(actor, inst, proj)

	status := &WorkflowStatus{
		DocumentID:     doc.ID,
		DocumentStatus: doc.Status,
		Amount:         doc.Amount,
		Started:        inst.Started(),
		CurrentStage:   proj.CurrentStage,
		NextStage:      proj.NextStage,
		Approvals:      make([]*ApprovalView, 0),
		Comments:       approval.BuildThreads(comments),
		CanApprove:     perms.CanApprove,
		CanReject:      perms.CanReject,
		CanSkip:        perms.CanSkip,
		IsComplete:     proj.IsComplete,
		IsRejected:     proj.IsRejected,
		Bypassed:       proj.Bypassed,
	}
	for _, a := range inst.Approvals() {
		status.Approvals = append(status.Approvals, &ApprovalView{Approval: a, Stage: inst.Stage(a.StageID)})
	}
	return status, nil
}

// ── Start ─────────────────────────────────────────────────────────────────────

// StartWorkflow selects the required stages for the document amount and
// creates one pending approval per stage. Admin only.
func (s *ApprovalRoutingService) StartWorkflow(ctx context.Context, actor auth.Actor, req *StartWorkflowRequest) (*WorkflowStatus, error) {
	if err := requireAdmin(actor, "start approval workflows"); err != nil {
		return nil, err
	}
	if err := validateID("document_id", req.DocumentID); err != nil {
		return nil, err
	}
	if req.Amount == nil {
		return nil, errors.InvalidInput("amount", "is required")
	}
	if *req.Amount < 0 {
		return nil, errors.InvalidInput("amount", "must not be negative")
	}

	if _, err := s.documents.GetByID(ctx, req.DocumentID); err != nil {
		return nil, err
	}
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	stageIDs := approval.RequiredStages(catalog, approval.Attributes{Amount: *req.Amount})
	if len(stageIDs) == 0 {
		return nil, errors.Conflict("no active approval stages are configured")
	}

	approvals := approval.NewPendingApprovals(req.DocumentID, stageIDs)
	entry := &approval.AuditEntry{
		Action:      approval.AuditWorkflowStarted,
		PerformedBy: actor.ID,
		Metadata:    map[string]any{"stage_ids": stageIDs},
	}
	if err := s.workflow.Create(ctx, req.DocumentID, *req.Amount, approvals, entry); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", req.DocumentID).
		Int64("amount", *req.Amount).
		Int("stages", len(stageIDs)).
		Str("actor_id", actor.ID).
		Msg("Approval workflow started")

	proj := approval.Project(approval.NewInstance(req.DocumentID, approvals, catalog))
	s.notifier.PublishSOWEvent(ctx, client.EventWorkflowStarted, req.DocumentID, actor.ID,
		[]string{auth.RoleAdmin.String()}, map[string]any{"amount": *req.Amount})
	s.notifyRequired(ctx, req.DocumentID, actor.ID, proj.CurrentStage)

	return s.GetWorkflowStatus(ctx, actor, req.DocumentID)
}

// ── Act ───────────────────────────────────────────────────────────────────────

// ActOnStage approves, rejects or skips one pending approval. The decision
// runs under the document lock against freshly read approvals: the approval
// must exist (NotFound) and still be pending (Conflict) before permissions are
// evaluated, and the write is conditioned on the row still being pending so
// exactly one of two racing actors wins.
func (s *ApprovalRoutingService) ActOnStage(ctx context.Context, actor auth.Actor, req *ActOnStageRequest) (*WorkflowStatus, error) {
	if err := validateID("document_id", req.DocumentID); err != nil {
		return nil, err
	}
	if err := validateID("stage_id", req.StageID); err != nil {
		return nil, err
	}
	action, err := approval.ParseAction(req.Action)
	if err != nil {
		return nil, errors.InvalidInput("action", err.Error())
	}
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var (
		stage *approval.Stage
		after approval.Projection
	)
	decide := func(approvals []*approval.Approval) (*repository.ActionPlan, error) {
		inst := approval.NewInstance(req.DocumentID, approvals, catalog)
		a := inst.ApprovalFor(req.StageID)
		if a == nil {
			return nil, errors.NotFound("approval", req.DocumentID+"/"+req.StageID)
		}
		if a.Status != approval.StatusPending {
			return nil, errors.Conflict(fmt.Sprintf("stage %s is already %s", req.StageID, a.Status))
		}
		if err := approval.Authorize(actor, inst, req.StageID, action); err != nil {
			s.log.Warn().
				Str("document_id", req.DocumentID).
				Str("stage_id", req.StageID).
				Str("action", string(action)).
				Str("role", actor.Role.String()).
				Msg("Stage action denied")
			return nil, err
		}

		target := action.TargetStatus()
		after = approval.Project(inst.WithStatus(req.StageID, target))
		stage = inst.Stage(req.StageID)

		plan := &repository.ActionPlan{
			Approval: a,
			Status:   target,
			Entry: &approval.AuditEntry{
				Action:      approval.AuditActionFor(action),
				PerformedBy: actor.ID,
				Metadata: map[string]any{
					"stage_name": stage.Name,
					"role":       actor.Role.String(),
				},
			},
		}
		switch {
		case action == approval.ActionReject:
			rejected := approval.DocumentRejected
			plan.DocumentStatus = &rejected
		case after.IsComplete:
			approved := approval.DocumentApproved
			plan.DocumentStatus = &approved
		}
		return plan, nil
	}
	if _, err := s.workflow.ApplyAction(ctx, req.DocumentID, actor.ID, decide); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("document_id", req.DocumentID).
		Str("stage_id", req.StageID).
		Str("stage", stage.Name).
		Str("action", string(action)).
		Str("actor_id", actor.ID).
		Bool("complete", after.IsComplete).
		Msg("Stage action applied")

	switch {
	case action == approval.ActionReject:
		s.notifier.PublishSOWEvent(ctx, client.EventRejected, req.DocumentID, actor.ID,
			[]string{auth.RoleAdmin.String()}, map[string]any{"stage": stage.Name})
	case after.IsComplete:
		s.notifier.PublishSOWEvent(ctx, client.EventApproved, req.DocumentID, actor.ID,
			[]string{auth.RoleAdmin.String()}, map[string]any{"bypassed": after.Bypassed})
	default:
		s.notifyRequired(ctx, req.DocumentID, actor.ID, after.CurrentStage)
	}

	return s.GetWorkflowStatus(ctx, actor, req.DocumentID)
}

// ── History ───────────────────────────────────────────────────────────────────

// GetWorkflowHistory returns the audit trail of a document, oldest first.
func (s *ApprovalRoutingService) GetWorkflowHistory(ctx context.Context, actor auth.Actor, documentID string) ([]*approval.AuditEntry, error) {
	if err := validateID("document_id", documentID); err != nil {
		return nil, err
	}
	if _, err := s.documents.GetByID(ctx, documentID); err != nil {
		return nil, err
	}
	entries, err := s.audit.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []*approval.AuditEntry{}
	}
	return entries, nil
}

func (s *ApprovalRoutingService) loadInstance(ctx context.Context, documentID string) (*approval.Instance, error) {
	catalog, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	approvals, err := s.approvals.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return approval.NewInstance(documentID, approvals, catalog), nil
}

func (s *ApprovalRoutingService) notifyRequired(ctx context.Context, documentID, actorID string, stage *approval.Stage) {
	if stage == nil {
		return
	}
	s.notifier.PublishSOWEvent(ctx, client.EventApprovalRequired, documentID, actorID,
		[]string{stage.AssignedRole}, map[string]any{"stage_id": stage.ID, "stage": stage.Name})
}
