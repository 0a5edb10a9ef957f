package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PlanRepository defines methods for accessing bundle plans and their
// capability membership.
type PlanRepository interface {
	// FindPlanNamesIncluding returns the names of every bundle plan that
	// explicitly includes the given capability.
	FindPlanNamesIncluding(ctx context.Context, capabilityID string) ([]string, error)
	GetByName(ctx context.Context, name string) (*model.BundlePlan, error)
	List(ctx context.Context) ([]model.BundlePlan, error)
	// ExistingNames returns which of the given plan names are already taken.
	ExistingNames(ctx context.Context, names []string) ([]string, error)
	// ResolveCapabilityIDs maps capability keys to ids; keys with no match
	// are absent from the result.
	ResolveCapabilityIDs(ctx context.Context, keys []string) (map[string]string, error)
	// Create inserts the plan and its membership rows in one transaction.
	Create(ctx context.Context, p *model.BundlePlan, capabilityIDs []string) error
	Update(ctx context.Context, p *model.BundlePlan, capabilityIDs []string) error
	Delete(ctx context.Context, name string) error
}

type planRepo struct {
	pool *pgxpool.Pool
}

// NewPlanRepo creates a new PlanRepository.
func NewPlanRepo(pool *pgxpool.Pool) PlanRepository {
	return &planRepo{pool: pool}
}

func (r *planRepo) FindPlanNamesIncluding(ctx context.Context, capabilityID string) ([]string, error) {
	const q = `
        SELECT p.name
        FROM bundle_plans p
        JOIN plan_capabilities pc ON pc.plan_id = p.id
        WHERE pc.capability_id = $1
        ORDER BY p.name
    `
	rows, err := r.pool.Query(ctx, q, capabilityID)
	if err != nil {
		return nil, fmt.Errorf("finding plans including capability %s: %w", capabilityID, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning plan name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("finding plans including capability %s: %w", capabilityID, err)
	}
	return names, nil
}

func (r *planRepo) GetByName(ctx context.Context, name string) (*model.BundlePlan, error) {
	const q = `
        SELECT p.id, p.name, p.monthly_price_cents, p.monthly_usage_limit,
               p.yearly_price_cents, p.yearly_usage_limit, p.created_at, p.updated_at,
               COALESCE(array_agg(c.capability_key ORDER BY c.capability_key)
                        FILTER (WHERE c.capability_key IS NOT NULL), '{}')
        FROM bundle_plans p
        LEFT JOIN plan_capabilities pc ON pc.plan_id = p.id
        LEFT JOIN capabilities c ON c.id = pc.capability_id
        WHERE p.name = $1
        GROUP BY p.id
    `
	var p model.BundlePlan
	err := r.pool.QueryRow(ctx, q, name).Scan(
		&p.ID, &p.Name, &p.MonthlyPriceCents, &p.MonthlyUsageLimit,
		&p.YearlyPriceCents, &p.YearlyUsageLimit, &p.CreatedAt, &p.UpdatedAt,
		&p.CapabilityKeys,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch plan %s: %w", name, err)
	}
	return &p, nil
}

func (r *planRepo) List(ctx context.Context) ([]model.BundlePlan, error) {
	const q = `
        SELECT p.id, p.name, p.monthly_price_cents, p.monthly_usage_limit,
               p.yearly_price_cents, p.yearly_usage_limit, p.created_at, p.updated_at,
               COALESCE(array_agg(c.capability_key ORDER BY c.capability_key)
                        FILTER (WHERE c.capability_key IS NOT NULL), '{}')
        FROM bundle_plans p
        LEFT JOIN plan_capabilities pc ON pc.plan_id = p.id
        LEFT JOIN capabilities c ON c.id = pc.capability_id
        GROUP BY p.id
        ORDER BY p.name
    `
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var out []model.BundlePlan
	for rows.Next() {
		var p model.BundlePlan
		if err := rows.Scan(
			&p.ID, &p.Name, &p.MonthlyPriceCents, &p.MonthlyUsageLimit,
			&p.YearlyPriceCents, &p.YearlyUsageLimit, &p.CreatedAt, &p.UpdatedAt,
			&p.CapabilityKeys,
		); err != nil {
			return nil, fmt.Errorf("scanning plan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	return out, nil
}

func (r *planRepo) ExistingNames(ctx context.Context, names []string) ([]string, error) {
	const q = `SELECT name FROM bundle_plans WHERE name = ANY($1)`
	rows, err := r.pool.Query(ctx, q, names)
	if err != nil {
		return nil, fmt.Errorf("checking existing plan names: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning plan name: %w", err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func (r *planRepo) ResolveCapabilityIDs(ctx context.Context, keys []string) (map[string]string, error) {
	const q = `SELECT capability_key, id FROM capabilities WHERE capability_key = ANY($1)`
	rows, err := r.pool.Query(ctx, q, keys)
	if err != nil {
		return nil, fmt.Errorf("resolving capability keys: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(keys))
	for rows.Next() {
		var key, id string
		if err := rows.Scan(&key, &id); err != nil {
			return nil, fmt.Errorf("scanning capability id: %w", err)
		}
		out[key] = id
	}
	return out, rows.Err()
}

func (r *planRepo) Create(ctx context.Context, p *model.BundlePlan, capabilityIDs []string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction for plan create: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const q = `
        INSERT INTO bundle_plans
            (id, name, monthly_price_cents, monthly_usage_limit,
             yearly_price_cents, yearly_usage_limit)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at
    `
	err = tx.QueryRow(ctx, q,
		p.ID, p.Name, p.MonthlyPriceCents, p.MonthlyUsageLimit,
		p.YearlyPriceCents, p.YearlyUsageLimit,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating plan %s: %w", p.Name, err)
	}
	if err := insertMembership(ctx, tx, p.ID, capabilityIDs); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing plan %s: %w", p.Name, err)
	}
	return nil
}

func (r *planRepo) Update(ctx context.Context, p *model.BundlePlan, capabilityIDs []string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction for plan update: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const q = `
        UPDATE bundle_plans
        SET monthly_price_cents = $2, monthly_usage_limit = $3,
            yearly_price_cents = $4, yearly_usage_limit = $5, updated_at = NOW()
        WHERE name = $1
        RETURNING id
    `
	if err := tx.QueryRow(ctx, q,
		p.Name, p.MonthlyPriceCents, p.MonthlyUsageLimit,
		p.YearlyPriceCents, p.YearlyUsageLimit,
	).Scan(&p.ID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return pgx.ErrNoRows
		}
		return fmt.Errorf("updating plan %s: %w", p.Name, err)
	}
	if capabilityIDs != nil {
		if _, err := tx.Exec(ctx, `DELETE FROM plan_capabilities WHERE plan_id = $1`, p.ID); err != nil {
			return fmt.Errorf("clearing membership for plan %s: %w", p.Name, err)
		}
		if err := insertMembership(ctx, tx, p.ID, capabilityIDs); err != nil {
			return err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing plan %s: %w", p.Name, err)
	}
	return nil
}

func (r *planRepo) Delete(ctx context.Context, name string) error {
	const q = `DELETE FROM bundle_plans WHERE name = $1`
	tag, err := r.pool.Exec(ctx, q, name)
	if err != nil {
		return fmt.Errorf("deleting plan %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func insertMembership(ctx context.Context, tx pgx.Tx, planID string, capabilityIDs []string) error {
	const q = `INSERT INTO plan_capabilities (plan_id, capability_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`
	for _, capID := range capabilityIDs {
		if _, err := tx.Exec(ctx, q, planID, capID); err != nil {
			return fmt.Errorf("linking capability %s to plan %s: %w", capID, planID, err)
		}
	}
	return nil
}
