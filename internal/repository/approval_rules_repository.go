package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// ApprovalRulesRepository handles CRUD for approval_rules. Conditions are
// stored as condition_type plus a JSONB condition_value.
type ApprovalRulesRepository struct {
	db *database.DB
}

// NewApprovalRulesRepository creates a new ApprovalRulesRepository.
func NewApprovalRulesRepository(db *database.DB) *ApprovalRulesRepository {
	return &ApprovalRulesRepository{db: db}
}

// Create inserts a new approval rule.
func (r *ApprovalRulesRepository) Create(ctx context.Context, rule *approval.Rule) error {
	condType, condValue, err := approval.EncodeCondition(rule.Condition)
	if err != nil {
		return errors.InvalidInput("condition", err.Error())
	}

	query := `
		INSERT INTO approval_rules
		    (condition_type, condition_value, stage_id, sort_order, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		string(condType),
		condValue,
		rule.StageID,
		rule.SortOrder,
		rule.IsActive,
	).Scan(&rule.ID, &rule.CreatedAt, &rule.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval rule")
	}
	return nil
}

// GetByID retrieves a rule by primary key.
func (r *ApprovalRulesRepository) GetByID(ctx context.Context, id string) (*approval.Rule, error) {
	query := `
		SELECT id, condition_type, condition_value, stage_id, sort_order, is_active,
		       created_at, updated_at
		FROM approval_rules
		WHERE id = $1
	`

	rule, err := scanRule(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("approval_rule", id)
	}
	return rule, err
}

// List returns rules in evaluation order, optionally active only.
func (r *ApprovalRulesRepository) List(ctx context.Context, activeOnly bool) ([]*approval.Rule, error) {
	query := `
		SELECT id, condition_type, condition_value, stage_id, sort_order, is_active,
		       created_at, updated_at
		FROM approval_rules
	`
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY sort_order ASC, id ASC"

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval rules")
	}
	defer rows.Close()

	var rules []*approval.Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval rules")
	}
	return rules, nil
}

// Update persists changes to an existing rule.
func (r *ApprovalRulesRepository) Update(ctx context.Context, rule *approval.Rule) error {
	condType, condValue, err := approval.EncodeCondition(rule.Condition)
	if err != nil {
		return errors.InvalidInput("condition", err.Error())
	}

	query := `
		UPDATE approval_rules
		SET condition_type  = $2,
		    condition_value = $3,
		    stage_id        = $4,
		    sort_order      = $5,
		    is_active       = $6,
		    updated_at      = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		rule.ID,
		string(condType),
		condValue,
		rule.StageID,
		rule.SortOrder,
		rule.IsActive,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errors.NotFound("approval_rule", rule.ID)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval rule")
	}
	return nil
}

// Delete removes an approval rule.
func (r *ApprovalRulesRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM approval_rules WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to delete approval rule")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("approval_rule", id)
	}
	return nil
}

// ── scan helpers ─────────────────────────────────────────────────────────────

func scanRule(row rowScanner) (*approval.Rule, error) {
	rule := &approval.Rule{}
	var condType string
	var condValue []byte

	err := row.Scan(
		&rule.ID,
		&condType,
		&condValue,
		&rule.StageID,
		&rule.SortOrder,
		&rule.IsActive,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval rule")
	}

	rule.Condition, err = approval.DecodeCondition(condType, condValue)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode rule condition")
	}
	return rule, nil
}
