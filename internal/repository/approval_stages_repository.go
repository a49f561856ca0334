package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-sow-approvals/internal/approval"
	"github.com/pesio-ai/be-sow-approvals/internal/database"
	"github.com/pesio-ai/be-sow-approvals/internal/errors"
)

// ApprovalStagesRepository handles CRUD for approval_stages.
type ApprovalStagesRepository struct {
	db *database.DB
}

// NewApprovalStagesRepository creates a new ApprovalStagesRepository.
func NewApprovalStagesRepository(db *database.DB) *ApprovalStagesRepository {
	return &ApprovalStagesRepository{db: db}
}

// Create inserts a new stage.
func (r *ApprovalStagesRepository) Create(ctx context.Context, stage *approval.Stage) error {
	query := `
		INSERT INTO approval_stages
		    (name, assigned_role, sort_order, auto_approve, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		stage.Name,
		stage.AssignedRole,
		stage.SortOrder,
		stage.AutoApprove,
		stage.IsActive,
	).Scan(&stage.ID, &stage.CreatedAt, &stage.UpdatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create approval stage")
	}
	return nil
}

// GetByID retrieves a stage by primary key.
func (r *ApprovalStagesRepository) GetByID(ctx context.Context, id string) (*approval.Stage, error) {
	query := `
		SELECT id, name, assigned_role, sort_order, auto_approve, is_active,
		       created_at, updated_at
		FROM approval_stages
		WHERE id = $1
	`

	stage, err := scanStage(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFound("approval_stage", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval stage")
	}
	return stage, nil
}

// List returns stages ordered by sort_order, optionally active only.
func (r *ApprovalStagesRepository) List(ctx context.Context, activeOnly bool) ([]*approval.Stage, error) {
	query := `
		SELECT id, name, assigned_role, sort_order, auto_approve, is_active,
		       created_at, updated_at
		FROM approval_stages
	`
	if activeOnly {
		query += " WHERE is_active = TRUE"
	}
	query += " ORDER BY sort_order ASC, id ASC"

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval stages")
	}
	defer rows.Close()

	var stages []*approval.Stage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval stage")
		}
		stages = append(stages, stage)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list approval stages")
	}
	return stages, nil
}

// Update persists changes to an existing stage. Once any approval references
// the stage only is_active may change; everything else running workflows are
// projected from is frozen and Conflict is returned. The row lock conflicts
// with the key-share lock a concurrent start takes when inserting approvals.
func (r *ApprovalStagesRepository) Update(ctx context.Context, stage *approval.Stage) error {
	return r.db.InTransaction(ctx, func(tx pgx.Tx) error {
		current, err := scanStage(tx.QueryRow(ctx, `
			SELECT id, name, assigned_role, sort_order, auto_approve, is_active,
			       created_at, updated_at
			FROM approval_stages
			WHERE id = $1
			FOR UPDATE
		`, stage.ID))
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.NotFound("approval_stage", stage.ID)
		}
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to lock approval stage")
		}

		if !current.SameDefinition(stage) {
			var referenced bool
			err := tx.QueryRow(ctx,
				`SELECT EXISTS (SELECT 1 FROM sow_approvals WHERE stage_id = $1)`,
				stage.ID,
			).Scan(&referenced)
			if err != nil {
				return errors.Wrap(err, errors.ErrCodeInternal, "failed to check stage references")
			}
			if referenced {
				return errors.Conflict("approval stage " + stage.ID + " is referenced by existing workflows; only is_active may change")
			}
		}

		query := `
			UPDATE approval_stages
			SET name          = $2,
			    assigned_role = $3,
			    sort_order    = $4,
			    auto_approve  = $5,
			    is_active     = $6,
			    updated_at    = NOW()
			WHERE id = $1
			RETURNING created_at, updated_at
		`
		err = tx.QueryRow(ctx, query,
			stage.ID,
			stage.Name,
			stage.AssignedRole,
			stage.SortOrder,
			stage.AutoApprove,
			stage.IsActive,
		).Scan(&stage.CreatedAt, &stage.UpdatedAt)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to update approval stage")
		}
		return nil
	})
}

// ── scan helpers ─────────────────────────────────────────────────────────────

func scanStage(row rowScanner) (*approval.Stage, error) {
	s := &approval.Stage{}
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.AssignedRole,
		&s.SortOrder,
		&s.AutoApprove,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
