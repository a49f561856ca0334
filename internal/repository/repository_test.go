package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/testutil"
)

type RepositoryTestSuite struct {
	suite.Suite
	container testcontainers.Container
	db        *database.DB
	ctx       context.Context

	stages    *ApprovalStagesRepository
	rules     *ApprovalRulesRepository
	steps     *ApprovalStepsRepository
	workflow  *ApprovalWorkflowRepository
	audit     *ApprovalAuditRepository
	comments  *CommentsRepository
	documents *DocumentRepository
}

func (s *RepositoryTestSuite) SetupSuite() {
	s.ctx = context.Background()
	s.container, s.db = testutil.SetupTestDatabase(s.T(), s.ctx)

	s.stages = NewApprovalStagesRepository(s.db)
	s.rules = NewApprovalRulesRepository(s.db)
	s.steps = NewApprovalStepsRepository(s.db)
	s.workflow = NewApprovalWorkflowRepository(s.db)
	s.audit = NewApprovalAuditRepository(s.db)
	s.comments = NewCommentsRepository(s.db)
	s.documents = NewDocumentRepository(s.db)
}

func (s *RepositoryTestSuite) TearDownSuite() {
	testutil.CleanupTestDatabase(s.T(), s.ctx, s.container, s.db)
}

func (s *RepositoryTestSuite) SetupTest() {
	testutil.TruncateTables(s.T(), s.ctx, s.db)
}

var (
	adminActor   = auth.Actor{ID: "user-admin", Role: auth.RoleAdmin}
	managerActor = auth.Actor{ID: "user-manager", Role: auth.RoleManager}
)

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (s *RepositoryTestSuite) createStage(name, role string, order int) *approval.Stage {
	stage := &approval.Stage{Name: name, AssignedRole: role, SortOrder: order, IsActive: true}
	s.Require().NoError(s.stages.Create(s.ctx, stage))
	return stage
}

func (s *RepositoryTestSuite) createDocument(amount int64) *DocumentRecord {
	doc := &DocumentRecord{}
	doc.Amount = amount
	s.Require().NoError(s.documents.Upsert(s.ctx, doc))
	return doc
}

func (s *RepositoryTestSuite) startWorkflow(doc *DocumentRecord, stages ...*approval.Stage) []*approval.Approval {
	ids := make([]string, len(stages))
	for i, st := range stages {
		ids[i] = st.ID
	}
	approvals := approval.NewPendingApprovals(doc.ID, ids)
	entry := &approval.AuditEntry{Action: approval.AuditWorkflowStarted, PerformedBy: "admin-1"}
	s.Require().NoError(s.workflow.Create(s.ctx, doc.ID, doc.Amount, approvals, entry))
	return approvals
}

func (s *RepositoryTestSuite) catalog() *approval.Catalog {
	stages, err := s.stages.List(s.ctx, false)
	s.Require().NoError(err)
	return approval.NewCatalog(stages, nil)
}

// decider evaluates action the way the routing service does: against the
// locked approvals, the stored stages and actor's permissions.
func (s *RepositoryTestSuite) decider(documentID string, actor auth.Actor, stageID string, action approval.Action) ActionDecider {
	catalog := s.catalog()
	return func(approvals []*approval.Approval) (*ActionPlan, error) {
		inst := approval.NewInstance(documentID, approvals, catalog)
		a := inst.ApprovalFor(stageID)
		if a == nil {
			return nil, errors.NotFound("approval", documentID+"/"+stageID)
		}
		if a.Status != approval.StatusPending {
			return nil, errors.Conflict("stage is already " + string(a.Status))
		}
		if err := approval.Authorize(actor, inst, stageID, action); err != nil {
			return nil, err
		}

		target := action.TargetStatus()
		plan := &ActionPlan{
			Approval: a,
			Status:   target,
			Entry:    &approval.AuditEntry{Action: approval.AuditActionFor(action), PerformedBy: actor.ID},
		}
		switch {
		case action == approval.ActionReject:
			rejected := approval.DocumentRejected
			plan.DocumentStatus = &rejected
		case approval.Project(inst.WithStatus(stageID, target)).IsComplete:
			approved := approval.DocumentApproved
			plan.DocumentStatus = &approved
		}
		return plan, nil
	}
}

// ── catalog ───────────────────────────────────────────────────────────────────

func (s *RepositoryTestSuite) TestStages_ListOrdered() {
	vp := s.createStage(approval.StageNameVP, "vp", 30)
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	legal := s.createStage("Legal Review", "legal", 20)
	legal.IsActive = false
	s.Require().NoError(s.stages.Update(s.ctx, legal))

	all, err := s.stages.List(s.ctx, false)
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]string{mgr.ID, legal.ID, vp.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	active, err := s.stages.List(s.ctx, true)
	s.Require().NoError(err)
	s.Len(active, 2)

	_, err = s.stages.GetByID(s.ctx, "00000000-0000-0000-0000-000000000000")
	s.True(errors.IsCode(err, errors.ErrCodeNotFound))
}

func (s *RepositoryTestSuite) TestStages_ReferencedDefinitionIsFrozen() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	dir := s.createStage(approval.StageNameDirector, "director", 20)
	doc := s.createDocument(50000)
	s.startWorkflow(doc, mgr, dir)

	renamed := *dir
	renamed.Name = "Legal Review"
	err := s.stages.Update(s.ctx, &renamed)
	s.True(errors.IsCode(err, errors.ErrCodeConflict), "got %v", err)

	rerole := *mgr
	rerole.AssignedRole = "admin"
	err = s.stages.Update(s.ctx, &rerole)
	s.True(errors.IsCode(err, errors.ErrCodeConflict), "got %v", err)

	got, err := s.stages.GetByID(s.ctx, dir.ID)
	s.Require().NoError(err)
	s.Equal(approval.StageNameDirector, got.Name)

	retired := *dir
	retired.IsActive = false
	s.Require().NoError(s.stages.Update(s.ctx, &retired))
	got, err = s.stages.GetByID(s.ctx, dir.ID)
	s.Require().NoError(err)
	s.False(got.IsActive)

	vp := s.createStage(approval.StageNameVP, "vp", 30)
	vp.AutoApprove = true
	s.Require().NoError(s.stages.Update(s.ctx, vp), "unreferenced stages stay editable")

	missing := *vp
	missing.ID = "00000000-0000-0000-0000-000000000000"
	err = s.stages.Update(s.ctx, &missing)
	s.True(errors.IsCode(err, errors.ErrCodeNotFound))
}

func (s *RepositoryTestSuite) TestRules_CRUD() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	rule := &approval.Rule{Condition: approval.AmountAtLeast{MinAmount: 10000}, StageID: mgr.ID, SortOrder: 1, IsActive: true}
	s.Require().NoError(s.rules.Create(s.ctx, rule))
	s.NotEmpty(rule.ID)

	got, err := s.rules.GetByID(s.ctx, rule.ID)
	s.Require().NoError(err)
	s.Equal(approval.AmountAtLeast{MinAmount: 10000}, got.Condition)

	got.Condition = approval.AmountAtLeast{MinAmount: 20000}
	s.Require().NoError(s.rules.Update(s.ctx, got))

	list, err := s.rules.List(s.ctx, true)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(approval.AmountAtLeast{MinAmount: 20000}, list[0].Condition)

	s.Require().NoError(s.rules.Delete(s.ctx, rule.ID))
	err = s.rules.Delete(s.ctx, rule.ID)
	s.True(errors.IsCode(err, errors.ErrCodeNotFound))
}

// ── documents ─────────────────────────────────────────────────────────────────

func (s *RepositoryTestSuite) TestDocuments_Upsert() {
	doc := s.createDocument(1000)
	s.NotEmpty(doc.ID)
	s.Equal(approval.DocumentDraft, doc.Status)

	doc.Amount = 2000
	s.Require().NoError(s.documents.Upsert(s.ctx, doc))

	got, err := s.documents.GetByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(int64(2000), got.Amount)

	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	s.startWorkflow(got, mgr)

	got.Amount = 3000
	err = s.documents.Upsert(s.ctx, got)
	s.True(errors.IsCode(err, errors.ErrCodeConflict))
}

// ── workflow ──────────────────────────────────────────────────────────────────

func (s *RepositoryTestSuite) TestWorkflow_Start() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	dir := s.createStage(approval.StageNameDirector, "director", 20)
	doc := s.createDocument(0)

	ids := []string{mgr.ID, dir.ID}
	approvals := approval.NewPendingApprovals(doc.ID, ids)
	entry := &approval.AuditEntry{Action: approval.AuditWorkflowStarted, PerformedBy: "admin-1"}
	s.Require().NoError(s.workflow.Create(s.ctx, doc.ID, 50000, approvals, entry))

	rows, err := s.steps.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	for _, r := range rows {
		s.Equal(approval.StatusPending, r.Status)
		s.Equal(1, r.Version)
		s.Nil(r.ApproverID)
	}
	s.Equal(mgr.ID, rows[0].StageID)

	got, err := s.documents.GetByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(approval.DocumentInReview, got.Status)
	s.Equal(int64(50000), got.Amount)

	history, err := s.audit.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal(approval.AuditWorkflowStarted, history[0].Action)
	s.Equal(approval.DocumentDraft, *history[0].StatusBefore)
	s.Equal(approval.DocumentInReview, *history[0].StatusAfter)
}

func (s *RepositoryTestSuite) TestWorkflow_DoubleStartConflicts() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	dir := s.createStage(approval.StageNameDirector, "director", 20)
	doc := s.createDocument(50000)
	first := s.startWorkflow(doc, mgr, dir)

	again := approval.NewPendingApprovals(doc.ID, []string{mgr.ID})
	err := s.workflow.Create(s.ctx, doc.ID, doc.Amount, again, &approval.AuditEntry{
		Action: approval.AuditWorkflowStarted, PerformedBy: "admin-2",
	})
	s.True(errors.IsCode(err, errors.ErrCodeConflict))

	rows, err := s.steps.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(first[0].ID, rows[0].ID)
	s.Equal(first[1].ID, rows[1].ID)

	history, err := s.audit.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Len(history, 1)
}

func (s *RepositoryTestSuite) TestWorkflow_ConcurrentStartHasOneWinner() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	doc := s.createDocument(1000)

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			approvals := approval.NewPendingApprovals(doc.ID, []string{mgr.ID})
			errs[i] = s.workflow.Create(s.ctx, doc.ID, doc.Amount, approvals, &approval.AuditEntry{
				Action: approval.AuditWorkflowStarted, PerformedBy: "admin",
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		s.True(errors.IsCode(err, errors.ErrCodeConflict), "unexpected error: %v", err)
	}
	s.Equal(1, wins)
}

func (s *RepositoryTestSuite) TestWorkflow_StartUnknownDocument() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	missing := "7e57d0c5-0000-4000-8000-000000000000"
	approvals := approval.NewPendingApprovals(missing, []string{mgr.ID})

	err := s.workflow.Create(s.ctx, missing, 1, approvals, nil)
	s.True(errors.IsCode(err, errors.ErrCodeNotFound))
}

func (s *RepositoryTestSuite) TestWorkflow_ApplyAction() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	doc := s.createDocument(1000)
	s.startWorkflow(doc, mgr)

	plan, err := s.workflow.ApplyAction(s.ctx, doc.ID, managerActor.ID,
		s.decider(doc.ID, managerActor, mgr.ID, approval.ActionApprove))
	s.Require().NoError(err)

	s.Equal(approval.StatusApproved, plan.Approval.Status)
	s.Equal(2, plan.Approval.Version)
	s.Require().NotNil(plan.Approval.ApproverID)
	s.Equal(managerActor.ID, *plan.Approval.ApproverID)

	rows, err := s.steps.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(approval.StatusApproved, rows[0].Status)

	d, err := s.documents.GetByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(approval.DocumentApproved, d.Status)

	_, err = s.workflow.ApplyAction(s.ctx, doc.ID, "user-other",
		s.decider(doc.ID, adminActor, mgr.ID, approval.ActionReject))
	s.True(errors.IsCode(err, errors.ErrCodeConflict))

	history, err := s.audit.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Len(history, 2, "failed transition must not leave an audit entry")
}

func (s *RepositoryTestSuite) TestWorkflow_ApplyActionUnknownDocument() {
	called := false
	_, err := s.workflow.ApplyAction(s.ctx, "7e57d0c5-0000-4000-8000-000000000001", "actor",
		func([]*approval.Approval) (*ActionPlan, error) {
			called = true
			return nil, nil
		})
	s.True(errors.IsCode(err, errors.ErrCodeNotFound))
	s.False(called)
}

func (s *RepositoryTestSuite) TestWorkflow_ActionDecidedOnCommittedState() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	dir := s.createStage(approval.StageNameDirector, "director", 20)
	doc := s.createDocument(50000)
	s.startWorkflow(doc, mgr, dir)

	// A manager reading now is allowed to reject.
	earlier, err := s.steps.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().NoError(approval.Authorize(managerActor,
		approval.NewInstance(doc.ID, earlier, s.catalog()), mgr.ID, approval.ActionReject))

	// An admin approves Director first, which completes the workflow.
	_, err = s.workflow.ApplyAction(s.ctx, doc.ID, adminActor.ID,
		s.decider(doc.ID, adminActor, dir.ID, approval.ActionApprove))
	s.Require().NoError(err)

	_, err = s.workflow.ApplyAction(s.ctx, doc.ID, managerActor.ID,
		s.decider(doc.ID, managerActor, mgr.ID, approval.ActionReject))
	s.True(errors.IsCode(err, errors.ErrCodeForbidden), "got %v", err)

	d, err := s.documents.GetByID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Equal(approval.DocumentApproved, d.Status)

	rows, err := s.steps.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 2)
	s.Equal(approval.StatusPending, rows[0].Status)

	history, err := s.audit.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Len(history, 2)
	for _, h := range history {
		s.NotEqual(approval.AuditStageRejected, h.Action)
	}
}

func (s *RepositoryTestSuite) TestWorkflow_ConcurrentActsHaveOneWinner() {
	mgr := s.createStage(approval.StageNameManager, "manager", 10)
	doc := s.createDocument(1000)
	s.startWorkflow(doc, mgr)

	actions := []approval.Action{approval.ActionApprove, approval.ActionReject}
	deciders := []ActionDecider{
		s.decider(doc.ID, managerActor, mgr.ID, actions[0]),
		s.decider(doc.ID, managerActor, mgr.ID, actions[1]),
	}
	const callers = 10
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.workflow.ApplyAction(s.ctx, doc.ID, managerActor.ID, deciders[i%2])
		}(i)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			s.Equal(-1, winner, "more than one winner")
			winner = i
			continue
		}
		s.True(errors.IsCode(err, errors.ErrCodeConflict), "unexpected error: %v", err)
	}
	s.Require().NotEqual(-1, winner)

	rows, err := s.steps.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal(actions[winner%2].TargetStatus(), rows[0].Status)
	s.Equal(2, rows[0].Version)
}

// ── audit ─────────────────────────────────────────────────────────────────────

func (s *RepositoryTestSuite) TestAudit_AppendOnly() {
	doc := s.createDocument(0)
	entry := &approval.AuditEntry{
		DocumentID:  doc.ID,
		Action:      approval.AuditCommentAdded,
		PerformedBy: "user-1",
		Metadata:    map[string]any{"comment_id": "c-1"},
	}
	s.Require().NoError(s.audit.Append(s.ctx, entry))
	s.NotEmpty(entry.ID)

	_, err := s.db.Exec(s.ctx, `UPDATE sow_workflow_audit_log SET action = 'tampered' WHERE id = $1`, entry.ID)
	s.Error(err)
	_, err = s.db.Exec(s.ctx, `DELETE FROM sow_workflow_audit_log WHERE id = $1`, entry.ID)
	s.Error(err)

	history, err := s.audit.GetByDocumentID(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(history, 1)
	s.Equal("c-1", history[0].Metadata["comment_id"])
}

// ── comments ──────────────────────────────────────────────────────────────────

func (s *RepositoryTestSuite) TestComments_Threading() {
	doc := s.createDocument(0)

	root := &approval.Comment{DocumentID: doc.ID, UserID: "u1", Text: "root"}
	s.Require().NoError(s.comments.Create(s.ctx, root))
	reply := &approval.Comment{DocumentID: doc.ID, UserID: "u2", Text: "reply", ParentID: &root.ID}
	s.Require().NoError(s.comments.Create(s.ctx, reply))
	s.Equal(1, reply.Version)

	list, err := s.comments.ListByDocument(s.ctx, doc.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(root.ID, list[0].ID)

	threads := approval.BuildThreads(list)
	s.Require().Len(threads, 1)
	s.Require().Len(threads[0].Replies, 1)
	s.Equal(reply.ID, threads[0].Replies[0].ID)

	s.Require().NotNil(list[1].ParentID)
	s.Equal(root.ID, *list[1].ParentID)
}

func (s *RepositoryTestSuite) TestComments_ParentFromOtherDocument() {
	docA := s.createDocument(0)
	docB := s.createDocument(0)

	parent := &approval.Comment{DocumentID: docA.ID, UserID: "u1", Text: "on A"}
	s.Require().NoError(s.comments.Create(s.ctx, parent))

	reply := &approval.Comment{DocumentID: docB.ID, UserID: "u2", Text: "on B", ParentID: &parent.ID}
	err := s.comments.Create(s.ctx, reply)
	s.True(errors.IsCode(err, errors.ErrCodeNotFound))

	list, err := s.comments.ListByDocument(s.ctx, docB.ID)
	s.Require().NoError(err)
	s.Empty(list)
}
