package service

import (
	"context"
	"testing"
	"time"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func personalPlan() *model.BundlePlan {
	return &model.BundlePlan{
		ID:                "plan-1",
		Name:              "Personal",
		MonthlyPriceCents: 49900,
		MonthlyUsageLimit: 25,
		YearlyPriceCents:  499000,
		YearlyUsageLimit:  300,
		CapabilityKeys:    []string{"pan_lookup"},
	}
}

func newTestPayment(users *fakeUserRepo, plans *fakePlanRepo, payments *fakePaymentRepo, gw *fakeGateway) *paymentService {
	return &paymentService{
		paymentRepo: payments,
		planRepo:    plans,
		userRepo:    users,
		lifecycle:   newTestLifecycle(users),
		gateway:     gw,
		now:         func() time.Time { return testNow },
		logger:      zerolog.Nop(),
	}
}

func paymentFixture() (*fakeUserRepo, *fakePlanRepo, *fakePaymentRepo, *fakeGateway, *paymentService) {
	users := newFakeUserRepo()
	users.users["u1"] = &model.User{UserID: "u1"}
	plans := newFakePlanRepo()
	plans.plans["Personal"] = personalPlan()
	payments := newFakePaymentRepo()
	gw := &fakeGateway{validSig: "good-signature"}
	svc := newTestPayment(users, plans, payments, gw)
	return users, plans, payments, gw, svc
}

func TestCreateOrderPending(t *testing.T) {
	_, _, payments, gw, svc := paymentFixture()

	intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "")
	require.NoError(t, err)
	o := intent.Order
	assert.False(t, intent.PaymentSkipped)
	assert.Equal(t, model.OrderPending, o.Status)
	assert.Equal(t, int64(49900), o.AmountCents)
	assert.Equal(t, int64(49900), o.OriginalAmountCents)
	assert.Zero(t, o.DiscountCents)
	assert.Equal(t, 25, o.UsageLimitGranted)
	assert.Equal(t, model.Coverage{Kind: model.CoverageBundle, Name: "Personal"}, o.Coverage)
	assert.Equal(t, "gw_order_1", o.GatewayOrderID)
	require.Len(t, gw.orderIDs, 1)
	assert.NotNil(t, payments.orders[o.ID])
}

func TestCreateOrderYearlyPricing(t *testing.T) {
	_, _, _, _, svc := paymentFixture()

	intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleYearly, "")
	require.NoError(t, err)
	assert.Equal(t, int64(499000), intent.Order.AmountCents)
	assert.Equal(t, 300, intent.Order.UsageLimitGranted)
}

func TestCreateOrderUnknownPlan(t *testing.T) {
	_, _, _, _, svc := paymentFixture()
	_, err := svc.CreateOrder(context.Background(), "u1", "NoSuchPlan", model.CycleMonthly, "")
	assert.ErrorIs(t, err, ErrPlanNotFound)
}

func TestCreateOrderRejectedWhileEntitlementActive(t *testing.T) {
	users, _, _, _, svc := paymentFixture()
	users.entitlements["u1"] = []model.Entitlement{{
		ID:       "e1",
		UserID:   "u1",
		Coverage: model.Coverage{Kind: model.CoverageBundle, Name: "Personal"},
		// Exhausted but unexpired still blocks a repurchase.
		UsageLimit: 25, UsageCount: 25,
		ExpiresAt: testNow.AddDate(0, 0, 5),
	}}

	_, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "")
	assert.ErrorIs(t, err, ErrActiveEntitlementExists)
}

func TestCreateOrderExpiredEntitlementDoesNotBlock(t *testing.T) {
	users, _, _, _, svc := paymentFixture()
	users.entitlements["u1"] = []model.Entitlement{{
		ID: "e1", UserID: "u1",
		Coverage:   model.Coverage{Kind: model.CoverageBundle, Name: "Personal"},
		UsageLimit: 25, ExpiresAt: testNow.AddDate(0, 0, -1),
	}}

	_, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "")
	assert.NoError(t, err)
}

func TestCreateOrderCouponDiscounts(t *testing.T) {
	tests := []struct {
		name         string
		coupon       model.Coupon
		wantDiscount int64
	}{
		{"percentage", model.Coupon{Code: "OFF20", DiscountKind: model.DiscountPercentage, DiscountValue: 20, IsActive: true}, 9980},
		{"fixed", model.Coupon{Code: "FLAT100", DiscountKind: model.DiscountFixed, DiscountValue: 10000, IsActive: true}, 10000},
		{"fixed capped at price", model.Coupon{Code: "HUGE", DiscountKind: model.DiscountFixed, DiscountValue: 99999900, IsActive: true}, 49900},
		{"inactive ignored", model.Coupon{Code: "DEAD", DiscountKind: model.DiscountPercentage, DiscountValue: 50, IsActive: false}, 0},
		{"below min amount ignored", model.Coupon{Code: "BIGONLY", DiscountKind: model.DiscountPercentage, DiscountValue: 50, MinAmountCents: 100000, IsActive: true}, 0},
		{"wrong coverage ignored", model.Coupon{Code: "ENT", DiscountKind: model.DiscountPercentage, DiscountValue: 50, ApplicableCoverages: []string{"Enterprise"}, IsActive: true}, 0},
		{"exhausted ignored", model.Coupon{Code: "USED", DiscountKind: model.DiscountPercentage, DiscountValue: 50, MaxUses: 3, TimesUsed: 3, IsActive: true}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, payments, _, svc := paymentFixture()
			c := tt.coupon
			payments.coupons[c.Code] = &c

			intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, c.Code)
			require.NoError(t, err, "an inapplicable coupon is ignored, never an error")
			assert.Equal(t, tt.wantDiscount, intent.Order.DiscountCents)
			assert.Equal(t, int64(49900)-tt.wantDiscount, intent.Order.AmountCents)
			if tt.wantDiscount > 0 {
				assert.Equal(t, c.Code, intent.Order.CouponCode)
			} else {
				assert.Empty(t, intent.Order.CouponCode)
			}
		})
	}
}

func TestCreateOrderUnknownCouponIgnored(t *testing.T) {
	_, _, _, _, svc := paymentFixture()
	intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "NOPE")
	require.NoError(t, err)
	assert.Zero(t, intent.Order.DiscountCents)
}

func TestCreateOrderFullDiscountGrantsImmediately(t *testing.T) {
	users, _, payments, gw, svc := paymentFixture()
	payments.coupons["FREE"] = &model.Coupon{
		Code: "FREE", DiscountKind: model.DiscountPercentage, DiscountValue: 100, IsActive: true,
	}

	intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "FREE")
	require.NoError(t, err)
	assert.True(t, intent.PaymentSkipped)
	assert.Equal(t, model.OrderCompleted, intent.Order.Status)
	assert.Zero(t, intent.Order.AmountCents)
	assert.Empty(t, gw.orderIDs, "no gateway round trip for a fully discounted order")

	require.Len(t, users.entitlements["u1"], 1)
	assert.Equal(t, 25, users.entitlements["u1"][0].UsageLimit)
	assert.Equal(t, 1, payments.couponUse["FREE"])
}

func TestVerifyPaymentGrantsOnce(t *testing.T) {
	users, _, payments, _, svc := paymentFixture()
	intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "")
	require.NoError(t, err)

	err = svc.VerifyPayment(context.Background(), intent.Order.ID, "pay_123", "good-signature")
	require.NoError(t, err)
	assert.Equal(t, model.OrderCompleted, payments.orders[intent.Order.ID].Status)
	assert.Equal(t, "pay_123", payments.orders[intent.Order.ID].GatewayPaymentID)
	require.Len(t, users.entitlements["u1"], 1)
	assert.Equal(t, 25, users.entitlements["u1"][0].UsageLimit)

	// A replayed confirmation cannot grant again.
	err = svc.VerifyPayment(context.Background(), intent.Order.ID, "pay_123", "good-signature")
	assert.ErrorIs(t, err, ErrOrderAlreadyProcessed)
	assert.Len(t, users.entitlements["u1"], 1)
}

func TestVerifyPaymentSignatureMismatch(t *testing.T) {
	users, _, payments, _, svc := paymentFixture()
	intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "")
	require.NoError(t, err)

	err = svc.VerifyPayment(context.Background(), intent.Order.ID, "pay_123", "forged")
	assert.ErrorIs(t, err, ErrSignatureMismatch)
	assert.Equal(t, model.OrderFailed, payments.orders[intent.Order.ID].Status)
	assert.Empty(t, users.entitlements["u1"])

	// A failed order is terminal even with the right signature afterwards.
	err = svc.VerifyPayment(context.Background(), intent.Order.ID, "pay_123", "good-signature")
	assert.ErrorIs(t, err, ErrOrderAlreadyProcessed)
}

func TestVerifyPaymentUnknownOrder(t *testing.T) {
	_, _, _, _, svc := paymentFixture()
	err := svc.VerifyPayment(context.Background(), "no-such-order", "pay_123", "good-signature")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestVerifyPaymentRenewsActivePlanCoverage(t *testing.T) {
	// Completing a payment while an unexpired entitlement for the same plan
	// exists (granted meanwhile) renews it instead of duplicating it.
	users, _, payments, _, svc := paymentFixture()
	intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "")
	require.NoError(t, err)

	oldExpiry := testNow.AddDate(0, 0, 3)
	users.entitlements["u1"] = []model.Entitlement{{
		ID: "e1", UserID: "u1",
		Coverage:   model.Coverage{Kind: model.CoverageBundle, Name: "Personal"},
		Cycle:      model.CycleMonthly,
		UsageLimit: 25, UsageCount: 20,
		ExpiresAt: oldExpiry,
	}}

	require.NoError(t, svc.VerifyPayment(context.Background(), intent.Order.ID, "pay_9", "good-signature"))
	require.Len(t, users.entitlements["u1"], 1)
	e := users.entitlements["u1"][0]
	assert.Equal(t, 50, e.UsageLimit)
	assert.Equal(t, 20, e.UsageCount)
	assert.Equal(t, oldExpiry.AddDate(0, 1, 0), e.ExpiresAt)
	assert.Equal(t, model.OrderCompleted, payments.orders[intent.Order.ID].Status)
}

func TestVerifyPaymentIncrementsCouponUse(t *testing.T) {
	_, _, payments, _, svc := paymentFixture()
	payments.coupons["OFF20"] = &model.Coupon{
		Code: "OFF20", DiscountKind: model.DiscountPercentage, DiscountValue: 20, IsActive: true,
	}
	intent, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "OFF20")
	require.NoError(t, err)
	assert.Zero(t, payments.couponUse["OFF20"], "use counts on completion, not on order creation")

	require.NoError(t, svc.VerifyPayment(context.Background(), intent.Order.ID, "pay_1", "good-signature"))
	assert.Equal(t, 1, payments.couponUse["OFF20"])
}

func TestListOrders(t *testing.T) {
	_, _, _, _, svc := paymentFixture()
	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(context.Background(), "u1", "Personal", model.CycleMonthly, "")
		require.NoError(t, err)
	}
	orders, err := svc.ListOrders(context.Background(), "u1", 10, 0)
	require.NoError(t, err)
	assert.Len(t, orders, 3)
}
