package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrEntitlementExhausted is returned when the conditional usage increment
// finds the entitlement already at its limit. This closes the window where
// two concurrent invocations both pass the resolver's check.
var ErrEntitlementExhausted = errors.New("entitlement_exhausted")

// UsageRepository records capability invocations against entitlements and the
// user's historical usage ledger.
type UsageRepository interface {
	// RecordInvocation atomically charges the entitlement, bumps the
	// capability's global invocation count, and appends to the usage ledger.
	// The entitlement charge is conditional on usage_count < usage_limit.
	RecordInvocation(ctx context.Context, userID, entitlementID, capabilityID string) error
	// RecordPromotedInvocation bumps the global count and the ledger without
	// charging any entitlement. Promoted access is uncounted.
	RecordPromotedInvocation(ctx context.Context, userID, capabilityID string) error
	GetLedger(ctx context.Context, userID string) ([]model.UsageRecord, error)
}

type usageRepo struct {
	pool *pgxpool.Pool
}

// NewUsageRepo creates a new UsageRepository.
func NewUsageRepo(pool *pgxpool.Pool) UsageRepository {
	return &usageRepo{pool: pool}
}

const ledgerUpsertQ = `
    INSERT INTO usage_ledger (user_id, capability_id, count, invoked_at)
    VALUES ($1, $2, 1, ARRAY[NOW()])
    ON CONFLICT (user_id, capability_id) DO UPDATE
    SET invoked_at = array_append(usage_ledger.invoked_at, NOW()),
        count = cardinality(usage_ledger.invoked_at) + 1
`

func (r *usageRepo) RecordInvocation(ctx context.Context, userID, entitlementID, capabilityID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction for usage recording: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const chargeQ = `
        UPDATE entitlements
        SET usage_count = usage_count + 1
        WHERE id = $1 AND usage_count < usage_limit
    `
	tag, err := tx.Exec(ctx, chargeQ, entitlementID)
	if err != nil {
		return fmt.Errorf("charging entitlement %s: %w", entitlementID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntitlementExhausted
	}

	const globalQ = `
        UPDATE capabilities
        SET global_invocation_count = global_invocation_count + 1
        WHERE id = $1
    `
	if _, err := tx.Exec(ctx, globalQ, capabilityID); err != nil {
		return fmt.Errorf("incrementing global count for capability %s: %w", capabilityID, err)
	}

	if _, err := tx.Exec(ctx, ledgerUpsertQ, userID, capabilityID); err != nil {
		return fmt.Errorf("recording ledger entry for user %s: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing usage recording for user %s: %w", userID, err)
	}
	return nil
}

func (r *usageRepo) RecordPromotedInvocation(ctx context.Context, userID, capabilityID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("starting transaction for promoted usage recording: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	const globalQ = `
        UPDATE capabilities
        SET global_invocation_count = global_invocation_count + 1
        WHERE id = $1
    `
	if _, err := tx.Exec(ctx, globalQ, capabilityID); err != nil {
		return fmt.Errorf("incrementing global count for capability %s: %w", capabilityID, err)
	}
	if _, err := tx.Exec(ctx, ledgerUpsertQ, userID, capabilityID); err != nil {
		return fmt.Errorf("recording ledger entry for user %s: %w", userID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing promoted usage recording for user %s: %w", userID, err)
	}
	return nil
}

func (r *usageRepo) GetLedger(ctx context.Context, userID string) ([]model.UsageRecord, error) {
	const q = `
        SELECT l.user_id, l.capability_id, c.capability_key, l.count, l.invoked_at
        FROM usage_ledger l
        JOIN capabilities c ON c.id = l.capability_id
        WHERE l.user_id = $1
        ORDER BY c.capability_key
    `
	rows, err := r.pool.Query(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("fetching usage ledger for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.UsageRecord
	for rows.Next() {
		var rec model.UsageRecord
		if err := rows.Scan(&rec.UserID, &rec.CapabilityID, &rec.CapabilityKey, &rec.Count, &rec.InvokedAt); err != nil {
			return nil, fmt.Errorf("scanning ledger entry for user %s: %w", userID, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetching usage ledger for user %s: %w", userID, err)
	}
	return out, nil
}
