package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/repository"
)

type mockStageStore struct{ mock.Mock }

func (m *mockStageStore) Create(ctx context.Context, stage *approval.Stage) error {
	return m.Called(ctx, stage).Error(0)
}

func (m *mockStageStore) GetByID(ctx context.Context, id string) (*approval.Stage, error) {
	args := m.Called(ctx, id)
	if s := args.Get(0); s != nil {
		return s.(*approval.Stage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockStageStore) List(ctx context.Context, activeOnly bool) ([]*approval.Stage, error) {
	args := m.Called(ctx, activeOnly)
	stages, _ := args.Get(0).([]*approval.Stage)
	return stages, args.Error(1)
}

func (m *mockStageStore) Update(ctx context.Context, stage *approval.Stage) error {
	return m.Called(ctx, stage).Error(0)
}

type mockRuleStore struct{ mock.Mock }

func (m *mockRuleStore) Create(ctx context.Context, rule *approval.Rule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *mockRuleStore) GetByID(ctx context.Context, id string) (*approval.Rule, error) {
	args := m.Called(ctx, id)
	if r := args.Get(0); r != nil {
		return r.(*approval.Rule), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRuleStore) List(ctx context.Context, activeOnly bool) ([]*approval.Rule, error) {
	args := m.Called(ctx, activeOnly)
	rules, _ := args.Get(0).([]*approval.Rule)
	return rules, args.Error(1)
}

func (m *mockRuleStore) Update(ctx context.Context, rule *approval.Rule) error {
	return m.Called(ctx, rule).Error(0)
}

func (m *mockRuleStore) Delete(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockApprovalStore struct{ mock.Mock }

func (m *mockApprovalStore) GetByDocumentID(ctx context.Context, documentID string) ([]*approval.Approval, error) {
	args := m.Called(ctx, documentID)
	approvals, _ := args.Get(0).([]*approval.Approval)
	return approvals, args.Error(1)
}

type mockWorkflowStore struct {
	mock.Mock
	plan *repository.ActionPlan
}

func (m *mockWorkflowStore) Create(ctx context.Context, documentID string, amount int64, approvals []*approval.Approval, entry *approval.AuditEntry) error {
	return m.Called(ctx, documentID, amount, approvals, entry).Error(0)
}

// ApplyAction returns the approvals the expectation was set up with to
// decide, standing in for the rows read under the document lock.
func (m *mockWorkflowStore) ApplyAction(ctx context.Context, documentID, actorID string, decide repository.ActionDecider) (*repository.ActionPlan, error) {
	args := m.Called(ctx, documentID, actorID)
	if err := args.Error(1); err != nil {
		return nil, err
	}
	approvals, _ := args.Get(0).([]*approval.Approval)
	plan, err := decide(approvals)
	if err != nil {
		return nil, err
	}
	m.plan = plan
	return plan, nil
}

type mockDocumentStore struct{ mock.Mock }

func (m *mockDocumentStore) Upsert(ctx context.Context, doc *repository.DocumentRecord) error {
	return m.Called(ctx, doc).Error(0)
}

func (m *mockDocumentStore) GetByID(ctx context.Context, id string) (*repository.DocumentRecord, error) {
	args := m.Called(ctx, id)
	if d := args.Get(0); d != nil {
		return d.(*repository.DocumentRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockCommentStore struct{ mock.Mock }

func (m *mockCommentStore) Create(ctx context.Context, c *approval.Comment) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockCommentStore) ListByDocument(ctx context.Context, documentID string) ([]*approval.Comment, error) {
	args := m.Called(ctx, documentID)
	comments, _ := args.Get(0).([]*approval.Comment)
	return comments, args.Error(1)
}

type mockAuditStore struct{ mock.Mock }

func (m *mockAuditStore) Append(ctx context.Context, entry *approval.AuditEntry) error {
	return m.Called(ctx, entry).Error(0)
}

func (m *mockAuditStore) GetByDocumentID(ctx context.Context, documentID string) ([]*approval.AuditEntry, error) {
	args := m.Called(ctx, documentID)
	entries, _ := args.Get(0).([]*approval.AuditEntry)
	return entries, args.Error(1)
}

type mockCatalogCache struct{ mock.Mock }

func (m *mockCatalogCache) Get(ctx context.Context) (*approval.Catalog, error) {
	args := m.Called(ctx)
	if c := args.Get(0); c != nil {
		return c.(*approval.Catalog), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockCatalogCache) Set(ctx context.Context, catalog *approval.Catalog) error {
	return m.Called(ctx, catalog).Error(0)
}

func (m *mockCatalogCache) Invalidate(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) PublishSOWEvent(ctx context.Context, eventType, documentID, actorID string, recipients []string, payload map[string]any) {
	m.Called(ctx, eventType, documentID, actorID, recipients, payload)
}
