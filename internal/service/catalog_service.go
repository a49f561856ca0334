package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/auth"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
	"github.com/pesio-ai/be-sow-approvals/internal/logger"
)

// CatalogService owns stage and rule configuration and hands out catalog
// snapshots to the workflow.
type CatalogService struct {
	stages StageStore
	rules  RuleStore
	cache  CatalogCache
	log    *logger.Logger
}

// NewCatalogService creates a new CatalogService. cache may be nil.
func NewCatalogService(stages StageStore, rules RuleStore, cache CatalogCache, log *logger.Logger) *CatalogService {
	return &CatalogService{
		stages: stages,
		rules:  rules,
		cache:  cache,
		log:    log,
	}
}

// StageRequest creates or replaces a stage.
type StageRequest struct {
	Name         string `json:"name"`
	AssignedRole string `json:"assigned_role"`
	SortOrder    int    `json:"sort_order"`
	AutoApprove  bool   `json:"auto_approve"`
	IsActive     *bool  `json:"is_active,omitempty"`
}

// RuleRequest creates or replaces a rule.
type RuleRequest struct {
	ConditionType  string          `json:"condition_type"`
	ConditionValue json.RawMessage `json:"condition_value"`
	StageID        string          `json:"stage_id"`
	SortOrder      int             `json:"sort_order"`
	IsActive       *bool           `json:"is_active,omitempty"`
}

// Snapshot returns the full catalog, inactive stages included, since existing
// approvals may still reference them. Cache failures fall back to the
// database.
func (s *CatalogService) Snapshot(ctx context.Context) (*approval.Catalog, error) {
	if s.cache != nil {
		catalog, err := s.cache.Get(ctx)
		if err != nil {
			s.log.Warn().Err(err).Msg("Catalog cache read failed; loading from database")
		} else if catalog != nil {
			return catalog, nil
		}
	}

	stages, err := s.stages.List(ctx, false)
	if err != nil {
		return nil, err
	}
	rules, err := s.rules.List(ctx, false)
	if err != nil {
		return nil, err
	}
	catalog := approval.NewCatalog(stages, rules)

	if s.cache != nil {
		if err := s.cache.Set(ctx, catalog); err != nil {
			s.log.Warn().Err(err).Msg("Catalog cache write failed")
		}
	}
	return catalog, nil
}

// ── Stages ────────────────────────────────────────────────────────────────────

// ListStages returns every stage in order.
func (s *CatalogService) ListStages(ctx context.Context, actor auth.Actor) ([]*approval.Stage, error) {
	if err := requireAdmin(actor, "list approval stages"); err != nil {
		return nil, err
	}
	stages, err := s.stages.List(ctx, false)
	if err != nil {
		return nil, err
	}
	if stages == nil {
		stages = []*approval.Stage{}
	}
	return stages, nil
}

// CreateStage adds a stage to the catalog.
func (s *CatalogService) CreateStage(ctx context.Context, actor auth.Actor, req *StageRequest) (*approval.Stage, error) {
	if err := requireAdmin(actor, "create approval stages"); err != nil {
		return nil, err
	}
	stage, err := stageFromRequest(req)
	if err != nil {
		return nil, err
	}
	if err := s.stages.Create(ctx, stage); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info().
		Str("stage_id", stage.ID).
		Str("name", stage.Name).
		Str("actor_id", actor.ID).
		Msg("Approval stage created")
	return stage, nil
}

// UpdateStage replaces a stage definition. A stage referenced by any
// workflow is frozen apart from is_active, which only affects future starts.
func (s *CatalogService) UpdateStage(ctx context.Context, actor auth.Actor, id string, req *StageRequest) (*approval.Stage, error) {
	if err := requireAdmin(actor, "update approval stages"); err != nil {
		return nil, err
	}
	if err := validateID("stage_id", id); err != nil {
		return nil, err
	}
	stage, err := stageFromRequest(req)
	if err != nil {
		return nil, err
	}
	stage.ID = id
	if err := s.stages.Update(ctx, stage); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info().
		Str("stage_id", stage.ID).
		Str("actor_id", actor.ID).
		Msg("Approval stage updated")
	return stage, nil
}

func stageFromRequest(req *StageRequest) (*approval.Stage, error) {
	if req == nil {
		return nil, errors.InvalidInput("body", "is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.InvalidInput("name", "is required")
	}
	role := strings.ToLower(strings.TrimSpace(req.AssignedRole))
	if role == "" {
		return nil, errors.InvalidInput("assigned_role", "is required")
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &approval.Stage{
		Name:         name,
		AssignedRole: role,
		SortOrder:    req.SortOrder,
		AutoApprove:  req.AutoApprove,
		IsActive:     active,
	}, nil
}

// ── Rules ─────────────────────────────────────────────────────────────────────

// ListRules returns every rule in evaluation order.
func (s *CatalogService) ListRules(ctx context.Context, actor auth.Actor) ([]*approval.Rule, error) {
	if err := requireAdmin(actor, "list approval rules"); err != nil {
		return nil, err
	}
	rules, err := s.rules.List(ctx, false)
	if err != nil {
		return nil, err
	}
	if rules == nil {
		rules = []*approval.Rule{}
	}
	return rules, nil
}

// CreateRule adds a rule. The referenced stage must exist.
func (s *CatalogService) CreateRule(ctx context.Context, actor auth.Actor, req *RuleRequest) (*approval.Rule, error) {
	if err := requireAdmin(actor, "create approval rules"); err != nil {
		return nil, err
	}
	rule, err := s.ruleFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info().
		Str("rule_id", rule.ID).
		Str("stage_id", rule.StageID).
		Str("actor_id", actor.ID).
		Msg("Approval rule created")
	return rule, nil
}

// UpdateRule replaces a rule.
func (s *CatalogService) UpdateRule(ctx context.Context, actor auth.Actor, id string, req *RuleRequest) (*approval.Rule, error) {
	if err := requireAdmin(actor, "update approval rules"); err != nil {
		return nil, err
	}
	if err := validateID("rule_id", id); err != nil {
		return nil, err
	}
	rule, err := s.ruleFromRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	rule.ID = id
	if err := s.rules.Update(ctx, rule); err != nil {
		return nil, err
	}
	s.invalidate(ctx)

	s.log.Info().
		Str("rule_id", rule.ID).
		Str("actor_id", actor.ID).
		Msg("Approval rule updated")
	return rule, nil
}

// DeleteRule removes a rule.
func (s *CatalogService) DeleteRule(ctx context.Context, actor auth.Actor, id string) error {
	if err := requireAdmin(actor, "delete approval rules"); err != nil {
		return err
	}
	if err := validateID("rule_id", id); err != nil {
		return err
	}
	if err := s.rules.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)

	s.log.Info().
		Str("rule_id", id).
		Str("actor_id", actor.ID).
		Msg("Approval rule deleted")
	return nil
}

func (s *CatalogService) ruleFromRequest(ctx context.Context, req *RuleRequest) (*approval.Rule, error) {
	if req == nil {
		return nil, errors.InvalidInput("body", "is required")
	}
	if err := validateID("stage_id", req.StageID); err != nil {
		return nil, err
	}
	cond, err := approval.DecodeCondition(req.ConditionType, req.ConditionValue)
	if err != nil {
		return nil, errors.InvalidInput("condition", err.Error())
	}
	if c, ok := cond.(approval.AmountAtLeast); ok && c.MinAmount < 0 {
		return nil, errors.InvalidInput("condition_value.min_amount", "must not be negative")
	}
	if _, err := s.stages.GetByID(ctx, req.StageID); err != nil {
		return nil, err
	}
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}
	return &approval.Rule{
		Condition: cond,
		StageID:   req.StageID,
		SortOrder: req.SortOrder,
		IsActive:  active,
	}, nil
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Catalog cache invalidation failed")
	}
}
