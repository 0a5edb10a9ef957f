package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"app/internal/model"
	"app/internal/provider"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okResult() *provider.Result {
	return &provider.Result{Code: 200, Message: "ok", Data: json.RawMessage(`{"name":"JOHN DOE"}`)}
}

func newTestVerification(users *fakeUserRepo, caps *fakeCapabilityRepo, plans *fakePlanRepo, usage *fakeUsageRepo, audit *fakeAuditRepo, invoker *fakeInvoker) *verificationService {
	return &verificationService{
		resolver:  newTestResolver(users, caps, plans),
		usageRepo: usage,
		auditRepo: audit,
		invoker:   invoker,
		logger:    zerolog.Nop(),
	}
}

func TestInvokeSuccessChargesAndAudits(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = &model.User{UserID: "u1"}
	users.entitlements["u1"] = []model.Entitlement{
		validEntitlement("e1", model.Coverage{Kind: model.CoverageCategory, Name: "identity"}),
	}
	usage := newFakeUsageRepo(users)
	audit := &fakeAuditRepo{}
	invoker := &fakeInvoker{result: okResult()}
	svc := newTestVerification(users, newFakeCapabilityRepo(panCapability()), newFakePlanRepo(), usage, audit, invoker)

	res, err := svc.Invoke(context.Background(), "u1", "pan_lookup", map[string]interface{}{"pan_number": "ABCDE1234F"})
	require.NoError(t, err)
	assert.Equal(t, 200, res.Result.Code)
	assert.False(t, res.Promoted)

	// Charged one unit against e1.
	assert.Equal(t, 1, users.entitlements["u1"][0].UsageCount)
	assert.Equal(t, int64(1), usage.globalCount["cap-1"])
	assert.Len(t, usage.ledger["u1|cap-1"], 1)

	// JSON capability went through the JSON codepath.
	require.Len(t, invoker.jsonCalls, 1)
	assert.Equal(t, "ABCDE1234F", invoker.jsonCalls[0]["pan_number"])
	assert.Equal(t, "/pan/lookup", invoker.endpoints[0])

	require.Len(t, audit.results, 1)
	assert.Equal(t, model.VerificationSucceeded, audit.results[0].Status)
}

func TestInvokeFormCapabilityCoercesFields(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = &model.User{UserID: "u1"}
	users.entitlements["u1"] = []model.Entitlement{
		validEntitlement("e1", model.Coverage{Kind: model.CoverageCategory, Name: "identity"}),
	}
	capability := panCapability()
	capability.APIType = model.APITypeForm
	usage := newFakeUsageRepo(users)
	invoker := &fakeInvoker{result: okResult()}
	svc := newTestVerification(users, newFakeCapabilityRepo(capability), newFakePlanRepo(), usage, &fakeAuditRepo{}, invoker)

	_, err := svc.Invoke(context.Background(), "u1", "pan_lookup", map[string]interface{}{
		"pan_number": "ABCDE1234F",
		"year":       2024,
	})
	require.NoError(t, err)
	require.Len(t, invoker.formCalls, 1)
	assert.Equal(t, "ABCDE1234F", invoker.formCalls[0]["pan_number"])
	assert.Equal(t, "2024", invoker.formCalls[0]["year"])
	assert.Empty(t, invoker.jsonCalls)
}

func TestInvokeProviderFailureAuditsWithoutCharge(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = &model.User{UserID: "u1"}
	users.entitlements["u1"] = []model.Entitlement{
		validEntitlement("e1", model.Coverage{Kind: model.CoverageCategory, Name: "identity"}),
	}
	usage := newFakeUsageRepo(users)
	audit := &fakeAuditRepo{}
	invoker := &fakeInvoker{err: errors.New("upstream timeout")}
	svc := newTestVerification(users, newFakeCapabilityRepo(panCapability()), newFakePlanRepo(), usage, audit, invoker)

	_, err := svc.Invoke(context.Background(), "u1", "pan_lookup", map[string]interface{}{"pan_number": "X"})
	assert.ErrorIs(t, err, ErrProviderInvocation)

	// No usage charged for a failed provider call, but the failure is audited.
	assert.Zero(t, users.entitlements["u1"][0].UsageCount)
	assert.Empty(t, usage.ledger)
	require.Len(t, audit.results, 1)
	assert.Equal(t, model.VerificationFailed, audit.results[0].Status)
	assert.Contains(t, audit.results[0].Detail, "upstream timeout")
}

func TestInvokeUsageRecordFailure(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = &model.User{UserID: "u1"}
	users.entitlements["u1"] = []model.Entitlement{
		validEntitlement("e1", model.Coverage{Kind: model.CoverageCategory, Name: "identity"}),
	}
	usage := newFakeUsageRepo(users)
	usage.recordErr = errors.New("db down")
	svc := newTestVerification(users, newFakeCapabilityRepo(panCapability()), newFakePlanRepo(), usage, &fakeAuditRepo{}, &fakeInvoker{result: okResult()})

	_, err := svc.Invoke(context.Background(), "u1", "pan_lookup", map[string]interface{}{"pan_number": "X"})
	assert.ErrorIs(t, err, ErrUsageNotRecorded)
}

func TestInvokePromotedIsUncounted(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = &model.User{UserID: "u1", PromotedCategories: []string{"identity"}}
	exhausted := validEntitlement("e1", model.Coverage{Kind: model.CoverageCategory, Name: "identity"})
	exhausted.UsageCount = exhausted.UsageLimit
	users.entitlements["u1"] = []model.Entitlement{exhausted}
	usage := newFakeUsageRepo(users)
	svc := newTestVerification(users, newFakeCapabilityRepo(panCapability()), newFakePlanRepo(), usage, &fakeAuditRepo{}, &fakeInvoker{result: okResult()})

	res, err := svc.Invoke(context.Background(), "u1", "pan_lookup", map[string]interface{}{"pan_number": "X"})
	require.NoError(t, err)
	assert.True(t, res.Promoted)

	// The ledger and global count still record the call; no entitlement pays.
	assert.Equal(t, exhausted.UsageLimit, users.entitlements["u1"][0].UsageCount)
	assert.Len(t, usage.ledger["u1|cap-1"], 1)
	assert.Equal(t, int64(1), usage.globalCount["cap-1"])
}

func TestInvokeNoEntitlementFails(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = &model.User{UserID: "u1"}
	usage := newFakeUsageRepo(users)
	invoker := &fakeInvoker{result: okResult()}
	svc := newTestVerification(users, newFakeCapabilityRepo(panCapability()), newFakePlanRepo(), usage, &fakeAuditRepo{}, invoker)

	_, err := svc.Invoke(context.Background(), "u1", "pan_lookup", map[string]interface{}{"pan_number": "X"})
	assert.ErrorIs(t, err, ErrNoValidEntitlement)
	assert.Empty(t, invoker.jsonCalls, "provider is never called without authorization")
}

// Full journey: denied without a plan, granted a 25-call bundle, 25 calls
// succeed, the 26th is denied and the exhausted entitlement is pruned.
func TestQuotaLifecycle(t *testing.T) {
	users := newFakeUserRepo()
	users.users["u1"] = &model.User{UserID: "u1"}
	caps := newFakeCapabilityRepo(panCapability())
	plans := newFakePlanRepo()
	plans.memberships["cap-1"] = []string{"Personal"}
	usage := newFakeUsageRepo(users)
	svc := newTestVerification(users, caps, plans, usage, &fakeAuditRepo{}, &fakeInvoker{result: okResult()})
	lifecycle := newTestLifecycle(users)

	ctx := context.Background()
	payload := map[string]interface{}{"pan_number": "ABCDE1234F"}

	_, err := svc.Invoke(ctx, "u1", "pan_lookup", payload)
	assert.ErrorIs(t, err, ErrNoValidEntitlement)

	_, err = lifecycle.GrantOrRenew(ctx, "u1",
		model.Coverage{Kind: model.CoverageBundle, Name: "Personal"}, model.CycleMonthly, 25)
	require.NoError(t, err)

	for i := 0; i < 25; i++ {
		_, err := svc.Invoke(ctx, "u1", "pan_lookup", payload)
		require.NoError(t, err, fmt.Sprintf("call %d within quota", i+1))
	}
	assert.Equal(t, 25, users.entitlements["u1"][0].UsageCount)

	_, err = svc.Invoke(ctx, "u1", "pan_lookup", payload)
	assert.ErrorIs(t, err, ErrNoValidEntitlement)
	assert.Empty(t, users.entitlements["u1"], "the exhausted entitlement is pruned on the failed lookup")

	// Ledger count equals the number of recorded timestamps.
	ledger, err := usage.GetLedger(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, 25, ledger[0].Count)
	assert.Len(t, ledger[0].InvokedAt, 25)
	assert.Equal(t, int64(25), usage.globalCount["cap-1"])
}

