package service

import (
	"context"
	"testing"

	"app/internal/model"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCatalog(caps *fakeCapabilityRepo, plans *fakePlanRepo) *catalogService {
	return &catalogService{capRepo: caps, planRepo: plans, logger: zerolog.Nop()}
}

func TestCreateCapabilityDefaults(t *testing.T) {
	caps := newFakeCapabilityRepo()
	svc := newTestCatalog(caps, newFakePlanRepo())

	c := &model.Capability{CapabilityKey: "pan_lookup", Name: "PAN Lookup", Category: "identity", Endpoint: "/pan/lookup"}
	require.NoError(t, svc.CreateCapability(context.Background(), c))
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, model.APITypeJSON, c.APIType)
	assert.False(t, c.CreatedAt.IsZero())

	dup := &model.Capability{CapabilityKey: "pan_lookup"}
	assert.ErrorIs(t, svc.CreateCapability(context.Background(), dup), ErrCapabilityExists)
}

func TestGetCapabilityNotFound(t *testing.T) {
	svc := newTestCatalog(newFakeCapabilityRepo(), newFakePlanRepo())
	_, err := svc.GetCapability(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrCapabilityNotFound)
}

func TestCreatePlansRejectsDuplicateNames(t *testing.T) {
	plans := newFakePlanRepo()
	plans.plans["Personal"] = personalPlan()
	svc := newTestCatalog(newFakeCapabilityRepo(), plans)

	err := svc.CreatePlans(context.Background(), []model.BundlePlan{{Name: "Personal"}})
	assert.ErrorIs(t, err, ErrPlanExists)
	assert.Contains(t, err.Error(), "Personal")
}

func TestCreatePlansRejectsUnknownCapabilities(t *testing.T) {
	plans := newFakePlanRepo()
	plans.idByKey["pan_lookup"] = "cap-1"
	svc := newTestCatalog(newFakeCapabilityRepo(), plans)

	err := svc.CreatePlans(context.Background(), []model.BundlePlan{
		{Name: "Pro", CapabilityKeys: []string{"pan_lookup", "no_such_key"}},
	})
	assert.ErrorIs(t, err, ErrUnknownCapabilityKeys)
	assert.Contains(t, err.Error(), "no_such_key")
	assert.Empty(t, plans.plans, "a bad batch inserts nothing")
}

func TestCreatePlansAssignsIDsAndMemberships(t *testing.T) {
	plans := newFakePlanRepo()
	plans.idByKey["pan_lookup"] = "cap-1"
	plans.idByKey["bank_verify"] = "cap-2"
	svc := newTestCatalog(newFakeCapabilityRepo(), plans)

	batch := []model.BundlePlan{
		{Name: "Personal", MonthlyPriceCents: 49900, CapabilityKeys: []string{"pan_lookup"}},
		{Name: "Professional", MonthlyPriceCents: 99900, CapabilityKeys: []string{"pan_lookup", "bank_verify"}},
	}
	require.NoError(t, svc.CreatePlans(context.Background(), batch))
	assert.NotEmpty(t, batch[0].ID)
	assert.NotEmpty(t, batch[1].ID)
	assert.ElementsMatch(t, []string{"Personal", "Professional"}, plans.memberships["cap-1"])
	assert.Equal(t, []string{"Professional"}, plans.memberships["cap-2"])
}

func TestUpdatePlanUnknownCapability(t *testing.T) {
	plans := newFakePlanRepo()
	plans.plans["Personal"] = personalPlan()
	svc := newTestCatalog(newFakeCapabilityRepo(), plans)

	err := svc.UpdatePlan(context.Background(), &model.BundlePlan{Name: "Personal", CapabilityKeys: []string{"missing"}})
	assert.ErrorIs(t, err, ErrUnknownCapabilityKeys)
}
