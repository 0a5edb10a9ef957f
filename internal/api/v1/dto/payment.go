package dto

import "time"

type OrderCreateDTO struct {
	PlanName   string `json:"plan_name" validate:"required"`
	Cycle      string `json:"cycle" validate:"required,oneof=monthly yearly"`
	CouponCode string `json:"coupon_code,omitempty"`
}

type OrderResponseDTO struct {
	ID                  string    `json:"id"`
	PlanName            string    `json:"plan_name"`
	Cycle               string    `json:"cycle"`
	UsageLimitGranted   int       `json:"usage_limit_granted"`
	AmountCents         int64     `json:"amount_cents"`
	OriginalAmountCents int64     `json:"original_amount_cents"`
	DiscountCents       int64     `json:"discount_cents"`
	CouponCode          string    `json:"coupon_code,omitempty"`
	Status              string    `json:"status"`
	GatewayOrderID      string    `json:"gateway_order_id,omitempty"`
	PaymentSkipped      bool      `json:"payment_skipped,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

type PaymentVerifyDTO struct {
	OrderID          string `json:"order_id" validate:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" validate:"required"`
	Signature        string `json:"signature" validate:"required"`
}
