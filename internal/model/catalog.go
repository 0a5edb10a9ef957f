package model

import "time"

// APIType is the calling convention for a capability's upstream endpoint.
type APIType string

const (
	APITypeJSON APIType = "json"
	APITypeForm APIType = "form"
)

// Capability is a single externally-invokable verification operation, e.g.
// a PAN lookup or a bank account check.
type Capability struct {
	ID                    string    `db:"id" json:"id"`
	CapabilityKey         string    `db:"capability_key" json:"capability_key"`
	Name                  string    `db:"name" json:"name"`
	Category              string    `db:"category" json:"category"`
	Subcategory           string    `db:"subcategory" json:"subcategory,omitempty"`
	Description           string    `db:"description" json:"description"`
	Endpoint              string    `db:"endpoint" json:"endpoint"`
	APIType               APIType   `db:"api_type" json:"api_type"`
	PriceCents            int64     `db:"price_cents" json:"price_cents"`
	ComboPriceCents       int64     `db:"combo_price_cents" json:"combo_price_cents"`
	IsActive              bool      `db:"is_active" json:"is_active"`
	GlobalInvocationCount int64     `db:"global_invocation_count" json:"global_invocation_count"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// BundlePlan is a named set of explicitly-listed capabilities sold as one
// package, independent of the category taxonomy.
type BundlePlan struct {
	ID                string    `db:"id" json:"id"`
	Name              string    `db:"name" json:"name"`
	MonthlyPriceCents int64     `db:"monthly_price_cents" json:"monthly_price_cents"`
	MonthlyUsageLimit int       `db:"monthly_usage_limit" json:"monthly_usage_limit"`
	YearlyPriceCents  int64     `db:"yearly_price_cents" json:"yearly_price_cents"`
	YearlyUsageLimit  int       `db:"yearly_usage_limit" json:"yearly_usage_limit"`
	CapabilityKeys    []string  `json:"capability_keys"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time `db:"updated_at" json:"updated_at"`
}

// PriceFor returns the price and usage limit granted for one purchase of the
// plan under the given cycle.
func (p *BundlePlan) PriceFor(cycle BillingCycle) (priceCents int64, usageLimit int) {
	if cycle == CycleYearly {
		return p.YearlyPriceCents, p.YearlyUsageLimit
	}
	return p.MonthlyPriceCents, p.MonthlyUsageLimit
}
