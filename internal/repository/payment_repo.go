package repository

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrOrderNotPending is returned when a status transition is attempted on an
// order that already reached a terminal state. It is the storage-level guard
// behind the at-most-one-grant-per-payment contract.
var ErrOrderNotPending = errors.New("order_not_pending")

// PaymentRepository defines methods for payment orders and coupons.
type PaymentRepository interface {
	CreateOrder(ctx context.Context, o *model.PaymentOrder) error
	GetOrder(ctx context.Context, id string) (*model.PaymentOrder, error)
	ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]model.PaymentOrder, error)
	// MarkCompleted transitions a pending order to completed. Returns
	// ErrOrderNotPending if the order is already terminal.
	MarkCompleted(ctx context.Context, id, gatewayPaymentID string) error
	// MarkFailed transitions a pending order to failed with a reason.
	MarkFailed(ctx context.Context, id, reason string) error
	GetCoupon(ctx context.Context, code string) (*model.Coupon, error)
	IncrementCouponUse(ctx context.Context, code string) error
}

type paymentRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentRepo creates a new PaymentRepository.
func NewPaymentRepo(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

const orderColumns = `
    id, user_id, coverage_kind, coverage_key, cycle, usage_limit_granted,
    amount_cents, original_amount_cents, discount_cents,
    COALESCE(coupon_code, ''), status, COALESCE(gateway_order_id, ''),
    COALESCE(gateway_payment_id, ''), COALESCE(failure_reason, ''),
    created_at, updated_at`

func scanOrder(row pgx.Row, o *model.PaymentOrder) error {
	return row.Scan(
		&o.ID, &o.UserID, &o.Coverage.Kind, &o.Coverage.Name, &o.Cycle,
		&o.UsageLimitGranted, &o.AmountCents, &o.OriginalAmountCents,
		&o.DiscountCents, &o.CouponCode, &o.Status, &o.GatewayOrderID,
		&o.GatewayPaymentID, &o.FailureReason, &o.CreatedAt, &o.UpdatedAt,
	)
}

func (r *paymentRepo) CreateOrder(ctx context.Context, o *model.PaymentOrder) error {
	const q = `
        INSERT INTO payment_orders
            (id, user_id, coverage_kind, coverage_key, cycle, usage_limit_granted,
             amount_cents, original_amount_cents, discount_cents, coupon_code,
             status, gateway_order_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11, NULLIF($12, ''))
        RETURNING created_at, updated_at
    `
	err := r.pool.QueryRow(ctx, q,
		o.ID, o.UserID, o.Coverage.Kind, o.Coverage.Name, o.Cycle,
		o.UsageLimitGranted, o.AmountCents, o.OriginalAmountCents,
		o.DiscountCents, o.CouponCode, o.Status, o.GatewayOrderID,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating payment order for user %s: %w", o.UserID, err)
	}
	return nil
}

func (r *paymentRepo) GetOrder(ctx context.Context, id string) (*model.PaymentOrder, error) {
	q := `SELECT` + orderColumns + ` FROM payment_orders WHERE id = $1`
	var o model.PaymentOrder
	if err := scanOrder(r.pool.QueryRow(ctx, q, id), &o); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch payment order %s: %w", id, err)
	}
	return &o, nil
}

func (r *paymentRepo) ListOrdersByUser(ctx context.Context, userID string, limit, offset int) ([]model.PaymentOrder, error) {
	q := `SELECT` + orderColumns + `
        FROM payment_orders
        WHERE user_id = $1
        ORDER BY created_at DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, q, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %s: %w", userID, err)
	}
	defer rows.Close()

	var out []model.PaymentOrder
	for rows.Next() {
		var o model.PaymentOrder
		if err := scanOrder(rows, &o); err != nil {
			return nil, fmt.Errorf("scanning order for user %s: %w", userID, err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing orders for user %s: %w", userID, err)
	}
	return out, nil
}

func (r *paymentRepo) MarkCompleted(ctx context.Context, id, gatewayPaymentID string) error {
	const q = `
        UPDATE payment_orders
        SET status = 'completed', gateway_payment_id = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `
	tag, err := r.pool.Exec(ctx, q, id, gatewayPaymentID)
	if err != nil {
		return fmt.Errorf("completing payment order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotPending
	}
	return nil
}

func (r *paymentRepo) MarkFailed(ctx context.Context, id, reason string) error {
	const q = `
        UPDATE payment_orders
        SET status = 'failed', failure_reason = $2, updated_at = NOW()
        WHERE id = $1 AND status = 'pending'
    `
	tag, err := r.pool.Exec(ctx, q, id, reason)
	if err != nil {
		return fmt.Errorf("failing payment order %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotPending
	}
	return nil
}

func (r *paymentRepo) GetCoupon(ctx context.Context, code string) (*model.Coupon, error) {
	const q = `
        SELECT id, code, discount_kind, discount_value, expires_at, max_uses,
               times_used, min_amount_cents, applicable_coverages, is_active
        FROM coupons
        WHERE code = $1
    `
	var c model.Coupon
	err := r.pool.QueryRow(ctx, q, code).Scan(
		&c.ID, &c.Code, &c.DiscountKind, &c.DiscountValue, &c.ExpiresAt,
		&c.MaxUses, &c.TimesUsed, &c.MinAmountCents, &c.ApplicableCoverages,
		&c.IsActive,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch coupon %s: %w", code, err)
	}
	return &c, nil
}

func (r *paymentRepo) IncrementCouponUse(ctx context.Context, code string) error {
	const q = `UPDATE coupons SET times_used = times_used + 1 WHERE code = $1`
	if _, err := r.pool.Exec(ctx, q, code); err != nil {
		return fmt.Errorf("incrementing coupon use %s: %w", code, err)
	}
	return nil
}
