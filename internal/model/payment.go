package model

import "time"

// OrderStatus is the lifecycle state of a payment order. Completed and failed
// are terminal: a terminal order can never trigger another entitlement grant.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderFailed    OrderStatus = "failed"
)

// PaymentOrder records one purchase attempt. The coverage, cycle and granted
// usage limit are captured at order creation so the grant after payment
// confirmation doesn't depend on catalog state that may have changed.
type PaymentOrder struct {
	ID                  string       `db:"id" json:"id"`
	UserID              string       `db:"user_id" json:"user_id"`
	Coverage            Coverage     `json:"coverage"`
	Cycle               BillingCycle `db:"cycle" json:"cycle"`
	UsageLimitGranted   int          `db:"usage_limit_granted" json:"usage_limit_granted"`
	AmountCents         int64        `db:"amount_cents" json:"amount_cents"`
	OriginalAmountCents int64        `db:"original_amount_cents" json:"original_amount_cents"`
	DiscountCents       int64        `db:"discount_cents" json:"discount_cents"`
	CouponCode          string       `db:"coupon_code" json:"coupon_code,omitempty"`
	Status              OrderStatus  `db:"status" json:"status"`
	GatewayOrderID      string       `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentID    string       `db:"gateway_payment_id" json:"gateway_payment_id,omitempty"`
	FailureReason       string       `db:"failure_reason" json:"failure_reason,omitempty"`
	CreatedAt           time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time    `db:"updated_at" json:"updated_at"`
}

// DiscountKind is how a coupon's value is interpreted.
type DiscountKind string

const (
	DiscountPercentage DiscountKind = "percentage"
	DiscountFixed      DiscountKind = "fixed"
)

// Coupon is an admin-issued discount code applied at order creation.
type Coupon struct {
	ID                  string       `db:"id" json:"id"`
	Code                string       `db:"code" json:"code"`
	DiscountKind        DiscountKind `db:"discount_kind" json:"discount_kind"`
	DiscountValue       int64        `db:"discount_value" json:"discount_value"`
	ExpiresAt           *time.Time   `db:"expires_at" json:"expires_at,omitempty"`
	MaxUses             int          `db:"max_uses" json:"max_uses"`
	TimesUsed           int          `db:"times_used" json:"times_used"`
	MinAmountCents      int64        `db:"min_amount_cents" json:"min_amount_cents"`
	ApplicableCoverages []string     `db:"applicable_coverages" json:"applicable_coverages"`
	IsActive            bool         `db:"is_active" json:"is_active"`
}

// Applicable reports whether the coupon can discount an order of the given
// amount for the given coverage name at the given instant.
func (c *Coupon) Applicable(coverageName string, amountCents int64, now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return false
	}
	if c.MaxUses > 0 && c.TimesUsed >= c.MaxUses {
		return false
	}
	if amountCents < c.MinAmountCents {
		return false
	}
	if len(c.ApplicableCoverages) == 0 {
		return true
	}
	for _, name := range c.ApplicableCoverages {
		if name == coverageName {
			return true
		}
	}
	return false
}

// DiscountOn returns the discount in cents the coupon takes off the given
// amount, capped at the amount itself.
func (c *Coupon) DiscountOn(amountCents int64) int64 {
	var d int64
	if c.DiscountKind == DiscountFixed {
		d = c.DiscountValue
	} else {
		d = amountCents * c.DiscountValue / 100
	}
	if d > amountCents {
		d = amountCents
	}
	return d
}

// VerificationStatus is the outcome recorded for an external invocation.
type VerificationStatus string

const (
	VerificationSucceeded VerificationStatus = "succeeded"
	VerificationFailed    VerificationStatus = "failed"
)

// VerificationResult is the audit record of one external verification call.
// Failure entries are written even though no usage is charged for them.
type VerificationResult struct {
	ID           string             `db:"id" json:"id"`
	UserID       string             `db:"user_id" json:"user_id"`
	CapabilityID string             `db:"capability_id" json:"capability_id"`
	Status       VerificationStatus `db:"status" json:"status"`
	Detail       string             `db:"detail" json:"detail,omitempty"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}
