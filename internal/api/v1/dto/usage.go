package dto

import "time"

type EntitlementDTO struct {
	ID            string    `json:"id"`
	CoverageKind  string    `json:"coverage_kind"`
	CoverageName  string    `json:"coverage_name"`
	Cycle         string    `json:"cycle"`
	UsageLimit    int       `json:"usage_limit"`
	UsageCount    int       `json:"usage_count"`
	GrantedAt     time.Time `json:"granted_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	IsPromotional bool      `json:"is_promotional"`
	Valid         bool      `json:"valid"`
}

type UsageRecordDTO struct {
	CapabilityKey string      `json:"capability_key"`
	Count         int         `json:"count"`
	InvokedAt     []time.Time `json:"invoked_at"`
}

type UsageOverviewDTO struct {
	Entitlements []EntitlementDTO `json:"entitlements"`
	Ledger       []UsageRecordDTO `json:"ledger"`
}
