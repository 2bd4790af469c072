package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"vanban_gateway/internal/models"
)

// PlanRepository is the plan registry: the read surface the metering core
// uses plus the idempotent seeding performed at first startup. Plans are
// deactivated, never deleted, because historical usage events reference them
// by id.
type PlanRepository struct {
	db *DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *DB) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `id, name, description, max_requests_per_month, max_tokens_per_month,
	max_tokens_per_request, max_file_size_mb, allow_streaming, allow_vision,
	allow_document_generation, price_per_month_vnd, price_per_year_vnd, is_active, sort_order`

// GetByID retrieves a plan by id. Returns ErrPlanNotFound when absent.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	var plan models.Plan
	err := r.db.conn.GetContext(ctx, &plan, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

// ListActive retrieves active plans ordered by sort order, ties broken by id.
func (r *PlanRepository) ListActive(ctx context.Context) ([]models.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE is_active = TRUE ORDER BY sort_order, id`

	var plans []models.Plan
	if err := r.db.conn.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}

	return plans, nil
}

// Upsert inserts or replaces a plan. Used by the admin surface, not by the
// metering core.
func (r *PlanRepository) Upsert(ctx context.Context, plan *models.Plan) error {
	query := `
		INSERT INTO plans (` + planColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			max_requests_per_month = EXCLUDED.max_requests_per_month,
			max_tokens_per_month = EXCLUDED.max_tokens_per_month,
			max_tokens_per_request = EXCLUDED.max_tokens_per_request,
			max_file_size_mb = EXCLUDED.max_file_size_mb,
			allow_streaming = EXCLUDED.allow_streaming,
			allow_vision = EXCLUDED.allow_vision,
			allow_document_generation = EXCLUDED.allow_document_generation,
			price_per_month_vnd = EXCLUDED.price_per_month_vnd,
			price_per_year_vnd = EXCLUDED.price_per_year_vnd,
			is_active = EXCLUDED.is_active,
			sort_order = EXCLUDED.sort_order
	`

	_, err := r.db.conn.ExecContext(ctx, query,
		plan.ID, plan.Name, plan.Description,
		plan.MaxRequestsPerMonth, plan.MaxTokensPerMonth, plan.MaxTokensPerRequest,
		plan.MaxFileSizeMB, plan.AllowStreaming, plan.AllowVision,
		plan.AllowDocumentGeneration, plan.PricePerMonthVND, plan.PricePerYearVND,
		plan.IsActive, plan.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}

// SeedDefaults inserts the built-in catalog when the registry is empty.
// Idempotent: a non-empty registry is left untouched, so plans edited through
// the admin surface are never reverted by a restart.
func (r *PlanRepository) SeedDefaults(ctx context.Context) error {
	var count int
	if err := r.db.conn.GetContext(ctx, &count, `SELECT COUNT(*) FROM plans`); err != nil {
		return fmt.Errorf("failed to count plans: %w", err)
	}
	if count > 0 {
		return nil
	}

	for _, plan := range models.DefaultPlans() {
		p := plan
		if err := r.Upsert(ctx, &p); err != nil {
			return fmt.Errorf("failed to seed plan %s: %w", plan.ID, err)
		}
	}
	return nil
}
