package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// CapabilityRepository defines methods for accessing the capability catalog.
type CapabilityRepository interface {
	// FindActiveByKey returns the capability with the given key if it exists
	// and is active; nil otherwise.
	FindActiveByKey(ctx context.Context, capabilityKey string) (*model.Capability, error)
	FindByKey(ctx context.Context, capabilityKey string) (*model.Capability, error)
	List(ctx context.Context, activeOnly bool) ([]model.Capability, error)
	Create(ctx context.Context, c *model.Capability) error
	Update(ctx context.Context, c *model.Capability) error
	Delete(ctx context.Context, capabilityKey string) error
}

type capabilityRepo struct {
	pool *pgxpool.Pool
}

// NewCapabilityRepo creates a new CapabilityRepository.
func NewCapabilityRepo(pool *pgxpool.Pool) CapabilityRepository {
	return &capabilityRepo{pool: pool}
}

const capabilityColumns = `
    id, capability_key, name, category, COALESCE(subcategory, ''), description,
    endpoint, api_type, price_cents, combo_price_cents, is_active,
    global_invocation_count, created_at, updated_at`

func scanCapability(row pgx.Row, c *model.Capability) error {
	return row.Scan(
		&c.ID,
		&c.CapabilityKey,
		&c.Name,
		&c.Category,
		&c.Subcategory,
		&c.Description,
		&c.Endpoint,
		&c.APIType,
		&c.PriceCents,
		&c.ComboPriceCents,
		&c.IsActive,
		&c.GlobalInvocationCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
}

func (r *capabilityRepo) FindActiveByKey(ctx context.Context, capabilityKey string) (*model.Capability, error) {
	q := `SELECT` + capabilityColumns + ` FROM capabilities WHERE capability_key = $1 AND is_active`
	var c model.Capability
	if err := scanCapability(r.pool.QueryRow(ctx, q, capabilityKey), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch active capability %s: %w", capabilityKey, err)
	}
	return &c, nil
}

func (r *capabilityRepo) FindByKey(ctx context.Context, capabilityKey string) (*model.Capability, error) {
	q := `SELECT` + capabilityColumns + ` FROM capabilities WHERE capability_key = $1`
	var c model.Capability
	if err := scanCapability(r.pool.QueryRow(ctx, q, capabilityKey), &c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch capability %s: %w", capabilityKey, err)
	}
	return &c, nil
}

func (r *capabilityRepo) List(ctx context.Context, activeOnly bool) ([]model.Capability, error) {
	q := `SELECT` + capabilityColumns + ` FROM capabilities`
	if activeOnly {
		q += ` WHERE is_active`
	}
	q += ` ORDER BY category, capability_key`

	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("listing capabilities: %w", err)
	}
	defer rows.Close()

	var out []model.Capability
	for rows.Next() {
		var c model.Capability
		if err := scanCapability(rows, &c); err != nil {
			return nil, fmt.Errorf("scanning capability: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing capabilities: %w", err)
	}
	return out, nil
}

func (r *capabilityRepo) Create(ctx context.Context, c *model.Capability) error {
	const q = `
        INSERT INTO capabilities
            (id, capability_key, name, category, subcategory, description,
             endpoint, api_type, price_cents, combo_price_cents, is_active)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11)
        RETURNING created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q,
		c.ID, c.CapabilityKey, c.Name, c.Category, c.Subcategory, c.Description,
		c.Endpoint, c.APIType, c.PriceCents, c.ComboPriceCents, c.IsActive,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating capability %s: %w", c.CapabilityKey, err)
	}
	return nil
}

func (r *capabilityRepo) Update(ctx context.Context, c *model.Capability) error {
	const q = `
        UPDATE capabilities
        SET name = $2, category = $3, subcategory = NULLIF($4, ''),
            description = $5, endpoint = $6, api_type = $7, price_cents = $8,
            combo_price_cents = $9, is_active = $10, updated_at = NOW()
        WHERE capability_key = $1
    `
	tag, err := r.pool.Exec(ctx, q,
		c.CapabilityKey, c.Name, c.Category, c.Subcategory, c.Description,
		c.Endpoint, c.APIType, c.PriceCents, c.ComboPriceCents, c.IsActive,
	)
	if err != nil {
		return fmt.Errorf("updating capability %s: %w", c.CapabilityKey, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *capabilityRepo) Delete(ctx context.Context, capabilityKey string) error {
	const q = `DELETE FROM capabilities WHERE capability_key = $1`
	tag, err := r.pool.Exec(ctx, q, capabilityKey)
	if err != nil {
		return fmt.Errorf("deleting capability %s: %w", capabilityKey, err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}
