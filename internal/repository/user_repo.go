package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository defines methods for accessing users and the entitlement
// lists they own.
type UserRepository interface {
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	// Promote adds a category to the user's promoted set; adding an already
	// promoted category is a no-op.
	Promote(ctx context.Context, userID, category string) error
	Demote(ctx context.Context, userID, category string) error
	// ListEntitlements returns the user's entitlements in list order.
	ListEntitlements(ctx context.Context, userID string) ([]model.Entitlement, error)
	// InsertEntitlement appends a new entitlement at the tail of the list.
	InsertEntitlement(ctx context.Context, e *model.Entitlement) error
	// RenewEntitlement sets a new expiry and adds capacity to the existing
	// usage limit. The usage count is untouched.
	RenewEntitlement(ctx context.Context, entitlementID string, newExpiry time.Time, addLimit int) error
	SetEntitlementExpiry(ctx context.Context, entitlementID string, newExpiry time.Time) error
	// DeleteEntitlements removes the given entitlements in one statement.
	DeleteEntitlements(ctx context.Context, userID string, ids []string) error
	// RevokeCoverage removes every entitlement with the given coverage key
	// and the key from the promoted set, in one transaction.
	RevokeCoverage(ctx context.Context, userID, coverageKey string) error
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepo creates a new UserRepository.
func NewUserRepo(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) CreateUser(ctx context.Context, u *model.User) error {
	const q = `
        INSERT INTO user_profiles (user_id, name, email, promoted_categories)
        VALUES ($1, $2, $3, '{}')
        RETURNING promoted_categories, created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q, u.UserID, u.Name, u.Email).
		Scan(&u.PromotedCategories, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating user %s: %w", u.UserID, err)
	}
	return nil
}

func (r *userRepo) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	const q = `
        SELECT user_id, name, email, promoted_categories, created_at, updated_at
        FROM user_profiles
        WHERE user_id = $1
    `
	var u model.User
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&u.UserID,
		&u.Name,
		&u.Email,
		&u.PromotedCategories,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch user %s: %w", id, err)
	}
	return &u, nil
}

func (r *userRepo) Promote(ctx context.Context, userID, category string) error {
	const q = `
        UPDATE user_profiles
        SET promoted_categories = array_append(promoted_categories, $2),
            updated_at = NOW()
        WHERE user_id = $1
          AND NOT ($2 = ANY(promoted_categories))
    `
	if _, err := r.pool.Exec(ctx, q, userID, category); err != nil {
		return fmt.Errorf("promoting user %s for %s: %w", userID, category, err)
	}
	return nil
}

func (r *userRepo) Demote(ctx context.Context, userID, category string) error {
	const q = `
        UPDATE user_profiles
        SET promoted_categories = array_remove(promoted_categories, $2),
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := r.pool.Exec(ctx, q, userID, category); err != nil {
		return fmt.Errorf("demoting user %s for %s: %w", userID, category, err)
	}
	return nil
}

func (r *userRepo) ListEntitlements(ctx context.Context, userID string) ([]model.Entitlement, error) {
	const q = `
        SELECT id, user_id, coverage_kind, coverage_key, cycle,
               usage_limit, usage_count, granted_at, expires_at, is_promotional
        FROM entitlements
        WHERE user_id = $1
        ORDER BY position
    `
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("listing entitlements for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.Entitlement
	for rows.Next() {
		var e model.Entitlement
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.Coverage.Kind,
			&e.Coverage.Name,
			&e.Cycle,
			&e.UsageLimit,
			&e.UsageCount,
			&e.GrantedAt,
			&e.ExpiresAt,
			&e.IsPromotional,
		); err != nil {
			return nil, fmt.Errorf("scanning entitlement for user %s: %w", userID, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing entitlements for user %s: %w", userID, err)
	}
	return out, nil
}

func (r *userRepo) InsertEntitlement(ctx context.Context, e *model.Entitlement) error {
	const q = `
        INSERT INTO entitlements
            (id, user_id, coverage_kind, coverage_key, cycle,
             usage_limit, usage_count, granted_at, expires_at, is_promotional)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    `
	_, err := r.pool.Exec(ctx, q,
		e.ID, e.UserID, e.Coverage.Kind, e.Coverage.Name, e.Cycle,
		e.UsageLimit, e.UsageCount, e.GrantedAt, e.ExpiresAt, e.IsPromotional,
	)
	if err != nil {
		return fmt.Errorf("inserting entitlement for user %s: %w", e.UserID, err)
	}
	return nil
}

func (r *userRepo) RenewEntitlement(ctx context.Context, entitlementID string, newExpiry time.Time, addLimit int) error {
	const q = `
        UPDATE entitlements
        SET expires_at = $2,
            usage_limit = usage_limit + $3
        WHERE id = $1
    `
	if _, err := r.pool.Exec(ctx, q, entitlementID, newExpiry, addLimit); err != nil {
		return fmt.Errorf("renewing entitlement %s: %w", entitlementID, err)
	}
	return nil
}

func (r *userRepo) SetEntitlementExpiry(ctx context.Context, entitlementID string, newExpiry time.Time) error {
	const q = `UPDATE entitlements SET expires_at = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, q, entitlementID, newExpiry); err != nil {
		return fmt.Errorf("extending entitlement %s: %w", entitlementID, err)
	}
	return nil
}

func (r *userRepo) DeleteEntitlements(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `DELETE FROM entitlements WHERE user_id = $1 AND id = ANY($2)`
	if _, err := r.pool.Exec(ctx, q, userID, ids); err != nil {
		return fmt.Errorf("pruning %d entitlements for user %s: %w", len(ids), userID, err)
	}
	return nil
}

func (r *userRepo) RevokeCoverage(ctx context.Context, userID, coverageKey string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction for revoke: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const delQ = `DELETE FROM entitlements WHERE user_id = $1 AND coverage_key = $2`
	if _, err := tx.Exec(ctx, delQ, userID, coverageKey); err != nil {
		return fmt.Errorf("revoking entitlements %s for user %s: %w", coverageKey, userID, err)
	}
	const demoteQ = `
        UPDATE user_profiles
        SET promoted_categories = array_remove(promoted_categories, $2),
            updated_at = NOW()
        WHERE user_id = $1
    `
	if _, err := tx.Exec(ctx, demoteQ, userID, coverageKey); err != nil {
		return fmt.Errorf("removing promotion %s for user %s: %w", coverageKey, userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing revoke for user %s: %w", userID, err)
	}
	return nil
}
