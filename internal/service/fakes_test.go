package service

import (
	"context"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/provider"
	"app/internal/repository"
)

// In-memory repository doubles. They mirror the SQL semantics the real
// repositories implement, including the conditional usage charge.

type fakeUserRepo struct {
	users        map[string]*model.User
	entitlements map[string][]model.Entitlement
	deletedIDs   [][]string
	listErr      error
	renewErr     error
	insertErr    error
	deleteErr    error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		users:        map[string]*model.User{},
		entitlements: map[string][]model.Entitlement{},
	}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, u *model.User) error {
	f.users[u.UserID] = u
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id string) (*model.User, error) {
	return f.users[id], nil
}

func (f *fakeUserRepo) Promote(_ context.Context, userID, category string) error {
	u, ok := f.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	if !u.IsPromotedFor(category) {
		u.PromotedCategories = append(u.PromotedCategories, category)
	}
	return nil
}

func (f *fakeUserRepo) Demote(_ context.Context, userID, category string) error {
	u, ok := f.users[userID]
	if !ok {
		return errors.New("user not found")
	}
	kept := u.PromotedCategories[:0]
	for _, c := range u.PromotedCategories {
		if c != category {
			kept = append(kept, c)
		}
	}
	u.PromotedCategories = kept
	return nil
}

func (f *fakeUserRepo) ListEntitlements(_ context.Context, userID string) ([]model.Entitlement, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Entitlement, len(f.entitlements[userID]))
	copy(out, f.entitlements[userID])
	return out, nil
}

func (f *fakeUserRepo) InsertEntitlement(_ context.Context, e *model.Entitlement) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.entitlements[e.UserID] = append(f.entitlements[e.UserID], *e)
	return nil
}

func (f *fakeUserRepo) RenewEntitlement(_ context.Context, entitlementID string, newExpiry time.Time, addLimit int) error {
	if f.renewErr != nil {
		return f.renewErr
	}
	for userID := range f.entitlements {
		for i := range f.entitlements[userID] {
			e := &f.entitlements[userID][i]
			if e.ID == entitlementID {
				e.ExpiresAt = newExpiry
				e.UsageLimit += addLimit
				return nil
			}
		}
	}
	return errors.New("entitlement not found")
}

func (f *fakeUserRepo) SetEntitlementExpiry(_ context.Context, entitlementID string, newExpiry time.Time) error {
	for userID := range f.entitlements {
		for i := range f.entitlements[userID] {
			if f.entitlements[userID][i].ID == entitlementID {
				f.entitlements[userID][i].ExpiresAt = newExpiry
				return nil
			}
		}
	}
	return errors.New("entitlement not found")
}

func (f *fakeUserRepo) DeleteEntitlements(_ context.Context, userID string, ids []string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, ids)
	doomed := map[string]bool{}
	for _, id := range ids {
		doomed[id] = true
	}
	kept := f.entitlements[userID][:0]
	for _, e := range f.entitlements[userID] {
		if !doomed[e.ID] {
			kept = append(kept, e)
		}
	}
	f.entitlements[userID] = kept
	return nil
}

func (f *fakeUserRepo) RevokeCoverage(_ context.Context, userID, coverageKey string) error {
	kept := f.entitlements[userID][:0]
	for _, e := range f.entitlements[userID] {
		if e.Coverage.Name != coverageKey {
			kept = append(kept, e)
		}
	}
	f.entitlements[userID] = kept
	if u, ok := f.users[userID]; ok {
		promoted := u.PromotedCategories[:0]
		for _, c := range u.PromotedCategories {
			if c != coverageKey {
				promoted = append(promoted, c)
			}
		}
		u.PromotedCategories = promoted
	}
	return nil
}

type fakeCapabilityRepo struct {
	byKey map[string]*model.Capability
}

func newFakeCapabilityRepo(caps ...*model.Capability) *fakeCapabilityRepo {
	f := &fakeCapabilityRepo{byKey: map[string]*model.Capability{}}
	for _, c := range caps {
		f.byKey[c.CapabilityKey] = c
	}
	return f
}

func (f *fakeCapabilityRepo) FindActiveByKey(_ context.Context, key string) (*model.Capability, error) {
	c := f.byKey[key]
	if c == nil || !c.IsActive {
		return nil, nil
	}
	return c, nil
}

func (f *fakeCapabilityRepo) FindByKey(_ context.Context, key string) (*model.Capability, error) {
	return f.byKey[key], nil
}

func (f *fakeCapabilityRepo) List(_ context.Context, activeOnly bool) ([]model.Capability, error) {
	var out []model.Capability
	for _, c := range f.byKey {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (f *fakeCapabilityRepo) Create(_ context.Context, c *model.Capability) error {
	f.byKey[c.CapabilityKey] = c
	return nil
}

func (f *fakeCapabilityRepo) Update(_ context.Context, c *model.Capability) error {
	f.byKey[c.CapabilityKey] = c
	return nil
}

func (f *fakeCapabilityRepo) Delete(_ context.Context, key string) error {
	delete(f.byKey, key)
	return nil
}

type fakePlanRepo struct {
	plans       map[string]*model.BundlePlan
	memberships map[string][]string // capability ID -> plan names
	idByKey     map[string]string
}

func newFakePlanRepo() *fakePlanRepo {
	return &fakePlanRepo{
		plans:       map[string]*model.BundlePlan{},
		memberships: map[string][]string{},
		idByKey:     map[string]string{},
	}
}

func (f *fakePlanRepo) FindPlanNamesIncluding(_ context.Context, capabilityID string) ([]string, error) {
	return f.memberships[capabilityID], nil
}

func (f *fakePlanRepo) GetByName(_ context.Context, name string) (*model.BundlePlan, error) {
	p := f.plans[name]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakePlanRepo) List(_ context.Context) ([]model.BundlePlan, error) {
	var out []model.BundlePlan
	for _, p := range f.plans {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakePlanRepo) ExistingNames(_ context.Context, names []string) ([]string, error) {
	var taken []string
	for _, n := range names {
		if _, ok := f.plans[n]; ok {
			taken = append(taken, n)
		}
	}
	return taken, nil
}

func (f *fakePlanRepo) ResolveCapabilityIDs(_ context.Context, keys []string) (map[string]string, error) {
	out := map[string]string{}
	for _, k := range keys {
		if id, ok := f.idByKey[k]; ok {
			out[k] = id
		}
	}
	return out, nil
}

func (f *fakePlanRepo) Create(_ context.Context, p *model.BundlePlan, capabilityIDs []string) error {
	f.plans[p.Name] = p
	for _, id := range capabilityIDs {
		f.memberships[id] = append(f.memberships[id], p.Name)
	}
	return nil
}

func (f *fakePlanRepo) Update(_ context.Context, p *model.BundlePlan, _ []string) error {
	if _, ok := f.plans[p.Name]; !ok {
		return errors.New("plan not found")
	}
	f.plans[p.Name] = p
	return nil
}

func (f *fakePlanRepo) Delete(_ context.Context, name string) error {
	delete(f.plans, name)
	return nil
}

// fakeUsageRepo charges entitlements held by a fakeUserRepo so quota
// exhaustion behaves like the conditional UPDATE in the real repository.
type fakeUsageRepo struct {
	users       *fakeUserRepo
	ledger      map[string][]time.Time // userID|capabilityID -> timestamps
	globalCount map[string]int64
	recordErr   error
}

func newFakeUsageRepo(users *fakeUserRepo) *fakeUsageRepo {
	return &fakeUsageRepo{
		users:       users,
		ledger:      map[string][]time.Time{},
		globalCount: map[string]int64{},
	}
}

func (f *fakeUsageRepo) RecordInvocation(_ context.Context, userID, entitlementID, capabilityID string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	charged := false
	for i := range f.users.entitlements[userID] {
		e := &f.users.entitlements[userID][i]
		if e.ID == entitlementID && e.UsageCount < e.UsageLimit {
			e.UsageCount++
			charged = true
			break
		}
	}
	if !charged {
		return repository.ErrEntitlementExhausted
	}
	f.globalCount[capabilityID]++
	key := userID + "|" + capabilityID
	f.ledger[key] = append(f.ledger[key], time.Now())
	return nil
}

func (f *fakeUsageRepo) RecordPromotedInvocation(_ context.Context, userID, capabilityID string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	f.globalCount[capabilityID]++
	key := userID + "|" + capabilityID
	f.ledger[key] = append(f.ledger[key], time.Now())
	return nil
}

func (f *fakeUsageRepo) GetLedger(_ context.Context, userID string) ([]model.UsageRecord, error) {
	var out []model.UsageRecord
	for key, stamps := range f.ledger {
		if len(key) > len(userID) && key[:len(userID)] == userID && key[len(userID)] == '|' {
			out = append(out, model.UsageRecord{
				UserID:       userID,
				CapabilityID: key[len(userID)+1:],
				Count:        len(stamps),
				InvokedAt:    append([]time.Time(nil), stamps...),
			})
		}
	}
	return out, nil
}

type fakePaymentRepo struct {
	orders    map[string]*model.PaymentOrder
	coupons   map[string]*model.Coupon
	couponUse map[string]int
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{
		orders:    map[string]*model.PaymentOrder{},
		coupons:   map[string]*model.Coupon{},
		couponUse: map[string]int{},
	}
}

func (f *fakePaymentRepo) CreateOrder(_ context.Context, o *model.PaymentOrder) error {
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakePaymentRepo) GetOrder(_ context.Context, id string) (*model.PaymentOrder, error) {
	o := f.orders[id]
	if o == nil {
		return nil, nil
	}
	cp := *o
	return &cp, nil
}

func (f *fakePaymentRepo) ListOrdersByUser(_ context.Context, userID string, _, _ int) ([]model.PaymentOrder, error) {
	var out []model.PaymentOrder
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakePaymentRepo) MarkCompleted(_ context.Context, id, gatewayPaymentID string) error {
	o := f.orders[id]
	if o == nil || o.Status != model.OrderPending {
		return repository.ErrOrderNotPending
	}
	o.Status = model.OrderCompleted
	o.GatewayPaymentID = gatewayPaymentID
	return nil
}

func (f *fakePaymentRepo) MarkFailed(_ context.Context, id, reason string) error {
	o := f.orders[id]
	if o == nil || o.Status != model.OrderPending {
		return repository.ErrOrderNotPending
	}
	o.Status = model.OrderFailed
	o.FailureReason = reason
	return nil
}

func (f *fakePaymentRepo) GetCoupon(_ context.Context, code string) (*model.Coupon, error) {
	return f.coupons[code], nil
}

func (f *fakePaymentRepo) IncrementCouponUse(_ context.Context, code string) error {
	f.couponUse[code]++
	if c, ok := f.coupons[code]; ok {
		c.TimesUsed++
	}
	return nil
}

type fakeGateway struct {
	orderIDs  []string
	createErr error
	validSig  string
}

func (f *fakeGateway) CreateOrder(_ int64, _, _ string, _ map[string]interface{}) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	id := "gw_order_1"
	f.orderIDs = append(f.orderIDs, id)
	return id, nil
}

func (f *fakeGateway) VerifySignature(_, _, signature string) bool {
	return signature == f.validSig
}

type fakeAuditRepo struct {
	results []model.VerificationResult
}

func (f *fakeAuditRepo) InsertResult(_ context.Context, res *model.VerificationResult) error {
	res.CreatedAt = time.Now()
	f.results = append(f.results, *res)
	return nil
}

func (f *fakeAuditRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]model.VerificationResult, error) {
	var out []model.VerificationResult
	for _, r := range f.results {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeInvoker struct {
	jsonCalls []map[string]interface{}
	formCalls []map[string]string
	endpoints []string
	result    *provider.Result
	err       error
}

func (f *fakeInvoker) InvokeJSON(_ context.Context, endpoint string, payload map[string]interface{}) (*provider.Result, error) {
	f.endpoints = append(f.endpoints, endpoint)
	f.jsonCalls = append(f.jsonCalls, payload)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeInvoker) InvokeForm(_ context.Context, endpoint string, fields map[string]string) (*provider.Result, error) {
	f.endpoints = append(f.endpoints, endpoint)
	f.formCalls = append(f.formCalls, fields)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

