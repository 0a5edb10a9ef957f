package model

import "time"

// User represents a user in the system. PromotedCategories is the set of
// capability categories an admin has granted free, uncounted access to.
type User struct {
	UserID             string    `db:"user_id" json:"user_id"`
	Name               string    `db:"name" json:"name"`
	Email              string    `db:"email" json:"email"`
	PromotedCategories []string  `db:"promoted_categories" json:"promoted_categories"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// IsPromotedFor reports whether the user holds an admin promotion for the
// given category.
func (u *User) IsPromotedFor(category string) bool {
	for _, c := range u.PromotedCategories {
		if c == category {
			return true
		}
	}
	return false
}

// BillingCycle is the renewal period of an entitlement.
type BillingCycle string

const (
	CycleMonthly     BillingCycle = "monthly"
	CycleYearly      BillingCycle = "yearly"
	CyclePromotional BillingCycle = "promotional"
)

// ParseBillingCycle validates a cycle coming in over the API.
func ParseBillingCycle(s string) (BillingCycle, error) {
	switch BillingCycle(s) {
	case CycleMonthly, CycleYearly, CyclePromotional:
		return BillingCycle(s), nil
	}
	return "", &InvalidValueError{Field: "cycle", Value: s}
}

// Next returns the expiry extended by one cycle, using Go's calendar
// arithmetic: AddDate normalizes overflowing dates, so Jan 31 plus one month
// lands on Mar 2 or Mar 3 rather than the end of February. Promotional grants
// renew monthly.
func (c BillingCycle) Next(from time.Time) time.Time {
	if c == CycleYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// InvalidValueError reports a field that failed enum validation.
type InvalidValueError struct {
	Field string
	Value string
}

func (e *InvalidValueError) Error() string {
	return "invalid " + e.Field + ": " + e.Value
}

// Entitlement is one purchased or promotional grant owned by a user. The
// usage limit is cumulative across renewals and is never reset per period.
type Entitlement struct {
	ID            string       `db:"id" json:"id"`
	UserID        string       `db:"user_id" json:"user_id"`
	Coverage      Coverage     `json:"coverage"`
	Cycle         BillingCycle `db:"cycle" json:"cycle"`
	UsageLimit    int          `db:"usage_limit" json:"usage_limit"`
	UsageCount    int          `db:"usage_count" json:"usage_count"`
	GrantedAt     time.Time    `db:"granted_at" json:"granted_at"`
	ExpiresAt     time.Time    `db:"expires_at" json:"expires_at"`
	IsPromotional bool         `db:"is_promotional" json:"is_promotional"`
}

// Valid reports whether the entitlement can authorize a call at the given
// instant. Both bounds are strict: an entitlement whose ExpiresAt equals now
// is already expired, and one whose count has reached its limit is exhausted.
func (e *Entitlement) Valid(now time.Time) bool {
	return e.ExpiresAt.After(now) && e.UsageCount < e.UsageLimit
}

// UsageRecord is one entry in a user's historical usage ledger. The ledger is
// an audit log and is never consulted for authorization. Count is derived
// from the timestamp list so the two cannot drift apart.
type UsageRecord struct {
	UserID        string      `db:"user_id" json:"user_id"`
	CapabilityID  string      `db:"capability_id" json:"capability_id"`
	CapabilityKey string      `db:"capability_key" json:"capability_key"`
	Count         int         `db:"count" json:"count"`
	InvokedAt     []time.Time `db:"invoked_at" json:"invoked_at"`
}
