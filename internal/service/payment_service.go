package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/payment"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrPlanNotFound means the order names a bundle plan that doesn't exist.
	ErrPlanNotFound = errors.New("pricing plan not found")
	// ErrActiveEntitlementExists means the user already holds an unexpired
	// entitlement for the requested coverage.
	ErrActiveEntitlementExists = errors.New("active entitlement already exists for this coverage")
	// ErrOrderNotFound means the referenced payment order doesn't exist.
	ErrOrderNotFound = errors.New("payment order not found")
	// ErrOrderAlreadyProcessed means the order already reached a terminal
	// state; a confirmation can grant at most one entitlement mutation.
	ErrOrderAlreadyProcessed = errors.New("payment order already processed")
	// ErrSignatureMismatch means the gateway signature did not verify.
	ErrSignatureMismatch = errors.New("payment signature mismatch")
)

// OrderIntent is the result of creating an order. When PaymentSkipped is
// true the discount covered the full price and the entitlement was granted
// immediately with no gateway round trip.
type OrderIntent struct {
	Order          *model.PaymentOrder `json:"order"`
	PaymentSkipped bool                `json:"payment_skipped"`
}

// PaymentService runs the order/verify flow that feeds the lifecycle
// manager. Exactly one grant happens per completed payment.
type PaymentService interface {
	CreateOrder(ctx context.Context, userID, planName string, cycle model.BillingCycle, couponCode string) (*OrderIntent, error)
	VerifyPayment(ctx context.Context, orderID, gatewayPaymentID, signature string) error
	ListOrders(ctx context.Context, userID string, limit, offset int) ([]model.PaymentOrder, error)
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	planRepo    repository.PlanRepository
	userRepo    repository.UserRepository
	lifecycle   LifecycleService
	gateway     payment.Gateway
	now         func() time.Time
	logger      zerolog.Logger
}

// NewPaymentService creates a new PaymentService with a scoped logger.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	planRepo repository.PlanRepository,
	userRepo repository.UserRepository,
	lifecycle LifecycleService,
	gateway payment.Gateway,
	logger zerolog.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		planRepo:    planRepo,
		userRepo:    userRepo,
		lifecycle:   lifecycle,
		gateway:     gateway,
		now:         time.Now,
		logger:      logger.With().Str("service", "PaymentService").Logger(),
	}
}

func (s *paymentService) CreateOrder(ctx context.Context, userID, planName string, cycle model.BillingCycle, couponCode string) (*OrderIntent, error) {
	plan, err := s.planRepo.GetByName(ctx, planName)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	coverage := model.Coverage{Kind: model.CoverageBundle, Name: plan.Name}
	priceCents, usageLimit := plan.PriceFor(cycle)

	now := s.now()
	entitlements, err := s.userRepo.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range entitlements {
		if entitlements[i].Coverage == coverage && entitlements[i].ExpiresAt.After(now) {
			return nil, ErrActiveEntitlementExists
		}
	}

	// An invalid or inapplicable coupon is silently ignored; the order
	// proceeds at full price.
	var appliedCoupon *model.Coupon
	var discountCents int64
	if couponCode != "" {
		coupon, err := s.paymentRepo.GetCoupon(ctx, couponCode)
		if err != nil {
			return nil, err
		}
		if coupon != nil && coupon.Applicable(coverage.Name, priceCents, now) {
			appliedCoupon = coupon
			discountCents = coupon.DiscountOn(priceCents)
		}
	}
	finalCents := priceCents - discountCents

	order := &model.PaymentOrder{
		ID:                  uuid.NewString(),
		UserID:              userID,
		Coverage:            coverage,
		Cycle:               cycle,
		UsageLimitGranted:   usageLimit,
		AmountCents:         finalCents,
		OriginalAmountCents: priceCents,
		DiscountCents:       discountCents,
		Status:              model.OrderPending,
	}
	if appliedCoupon != nil {
		order.CouponCode = appliedCoupon.Code
	}

	// A full discount skips the gateway entirely: the order is recorded as
	// completed with amount zero and the grant happens now.
	if finalCents <= 0 {
		order.Status = model.OrderCompleted
		if err := s.paymentRepo.CreateOrder(ctx, order); err != nil {
			return nil, err
		}
		if _, err := s.lifecycle.GrantOrRenew(ctx, userID, coverage, cycle, usageLimit); err != nil {
			return nil, err
		}
		if appliedCoupon != nil {
			if err := s.paymentRepo.IncrementCouponUse(ctx, appliedCoupon.Code); err != nil {
				s.logger.Error().Err(err).Str("coupon", appliedCoupon.Code).Msg("Failed to increment coupon use")
			}
		}
		return &OrderIntent{Order: order, PaymentSkipped: true}, nil
	}

	gatewayOrderID, err := s.gateway.CreateOrder(finalCents, "INR", "receipt_"+order.ID, map[string]interface{}{
		"user_id":  userID,
		"order_id": order.ID,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("plan", planName).Msg("Failed to create gateway order")
		return nil, fmt.Errorf("create gateway order: %w", err)
	}
	order.GatewayOrderID = gatewayOrderID
	if err := s.paymentRepo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	return &OrderIntent{Order: order}, nil
}

func (s *paymentService) VerifyPayment(ctx context.Context, orderID, gatewayPaymentID, signature string) error {
	order, err := s.paymentRepo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order == nil {
		return ErrOrderNotFound
	}
	if order.Status != model.OrderPending {
		return ErrOrderAlreadyProcessed
	}

	if !s.gateway.VerifySignature(order.GatewayOrderID, gatewayPaymentID, signature) {
		if err := s.paymentRepo.MarkFailed(ctx, order.ID, "payment verification failed: signature mismatch"); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID).Msg("Failed to mark order failed")
		}
		return ErrSignatureMismatch
	}

	// The pending->completed transition is the at-most-one gate: a
	// concurrent confirmation of the same order loses here.
	if err := s.paymentRepo.MarkCompleted(ctx, order.ID, gatewayPaymentID); err != nil {
		if errors.Is(err, repository.ErrOrderNotPending) {
			return ErrOrderAlreadyProcessed
		}
		return err
	}

	if _, err := s.lifecycle.GrantOrRenew(ctx, order.UserID, order.Coverage, order.Cycle, order.UsageLimitGranted); err != nil {
		// The payment is captured but the grant is missing. Flag for manual
		// review rather than retrying into a possible double grant.
		s.logger.Error().Err(err).
			Str("order_id", order.ID).
			Str("user_id", order.UserID).
			Msg("Entitlement grant failed after payment completion; flagged for manual review")
		return err
	}

	if order.CouponCode != "" {
		if err := s.paymentRepo.IncrementCouponUse(ctx, order.CouponCode); err != nil {
			s.logger.Error().Err(err).Str("coupon", order.CouponCode).Msg("Failed to increment coupon use")
		}
	}
	return nil
}

func (s *paymentService) ListOrders(ctx context.Context, userID string, limit, offset int) ([]model.PaymentOrder, error) {
	return s.paymentRepo.ListOrdersByUser(ctx, userID, limit, offset)
}
