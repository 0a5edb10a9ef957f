package dto

type PromotionDTO struct {
	Category string `json:"category" validate:"required"`
}

type GrantDTO struct {
	CoverageKind string `json:"coverage_kind" validate:"required,oneof=category subcategory bundle"`
	CoverageName string `json:"coverage_name" validate:"required"`
	Cycle        string `json:"cycle" validate:"required,oneof=monthly yearly promotional"`
	UsageLimit   int    `json:"usage_limit" validate:"gt=0"`
}

type ExtensionDTO struct {
	CoverageName string `json:"coverage_name" validate:"required"`
	Days         int    `json:"days" validate:"gt=0"`
}

type PruneResponseDTO struct {
	Removed int `json:"removed"`
}
