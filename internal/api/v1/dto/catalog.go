package dto

import "time"

type CapabilityCreateDTO struct {
	CapabilityKey   string `json:"capability_key" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Category        string `json:"category" validate:"required"`
	Subcategory     string `json:"subcategory,omitempty"`
	Description     string `json:"description,omitempty"`
	Endpoint        string `json:"endpoint" validate:"required"`
	APIType         string `json:"api_type" validate:"omitempty,oneof=json form"`
	PriceCents      int64  `json:"price_cents" validate:"gte=0"`
	ComboPriceCents int64  `json:"combo_price_cents" validate:"gte=0"`
	IsActive        *bool  `json:"is_active,omitempty"`
}

type CapabilityUpdateDTO struct {
	Name            *string `json:"name,omitempty"`
	Category        *string `json:"category,omitempty"`
	Subcategory     *string `json:"subcategory,omitempty"`
	Description     *string `json:"description,omitempty"`
	Endpoint        *string `json:"endpoint,omitempty"`
	APIType         *string `json:"api_type,omitempty" validate:"omitempty,oneof=json form"`
	PriceCents      *int64  `json:"price_cents,omitempty" validate:"omitempty,gte=0"`
	ComboPriceCents *int64  `json:"combo_price_cents,omitempty" validate:"omitempty,gte=0"`
	IsActive        *bool   `json:"is_active,omitempty"`
}

type CapabilityResponseDTO struct {
	ID                    string    `json:"id"`
	CapabilityKey         string    `json:"capability_key"`
	Name                  string    `json:"name"`
	Category              string    `json:"category"`
	Subcategory           string    `json:"subcategory,omitempty"`
	Description           string    `json:"description"`
	APIType               string    `json:"api_type"`
	PriceCents            int64     `json:"price_cents"`
	ComboPriceCents       int64     `json:"combo_price_cents"`
	IsActive              bool      `json:"is_active"`
	GlobalInvocationCount int64     `json:"global_invocation_count"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type PlanCreateDTO struct {
	Name              string   `json:"name" validate:"required"`
	MonthlyPriceCents int64    `json:"monthly_price_cents" validate:"gte=0"`
	MonthlyUsageLimit int      `json:"monthly_usage_limit" validate:"gt=0"`
	YearlyPriceCents  int64    `json:"yearly_price_cents" validate:"gte=0"`
	YearlyUsageLimit  int      `json:"yearly_usage_limit" validate:"gt=0"`
	CapabilityKeys    []string `json:"capability_keys" validate:"required,min=1"`
}

type PlanBulkCreateDTO struct {
	Plans []PlanCreateDTO `json:"plans" validate:"required,min=1,dive"`
}

type PlanResponseDTO struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	MonthlyPriceCents int64     `json:"monthly_price_cents"`
	MonthlyUsageLimit int       `json:"monthly_usage_limit"`
	YearlyPriceCents  int64     `json:"yearly_price_cents"`
	YearlyUsageLimit  int       `json:"yearly_usage_limit"`
	CapabilityKeys    []string  `json:"capability_keys"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
