package handler

import (
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// CatalogHandler serves the public capability and plan catalog
type CatalogHandler struct {
	catalogService service.CatalogService
	logger         zerolog.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(catalogService service.CatalogService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
		logger:         logger,
	}
}

// RegisterRoutes mounts public catalog routes
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/capabilities", h.listCapabilities)
	r.Get("/capabilities/{capabilityKey}", h.getCapability)
	r.Get("/plans", h.listPlans)
}

// listCapabilities godoc
// @Summary List active capabilities
// @Description Returns the catalog of active capabilities. Endpoints are not exposed publicly.
// @Tags catalog
// @Produce json
// @Success 200 {array} dto.CapabilityResponseDTO
// @Router /capabilities [get]
func (h *CatalogHandler) listCapabilities(w http.ResponseWriter, r *http.Request) {
	capabilities, err := h.catalogService.ListCapabilities(r.Context(), true)
	if err != nil {
		http.Error(w, "Failed to list capabilities: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]dto.CapabilityResponseDTO, 0, len(capabilities))
	for i := range capabilities {
		resp = append(resp, capabilityResponse(&capabilities[i]))
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// getCapability godoc
// @Summary Get a capability
// @Description Retrieves a single capability by its key.
// @Tags catalog
// @Produce json
// @Param capabilityKey path string true "Capability key"
// @Success 200 {object} dto.CapabilityResponseDTO
// @Failure 404 {string} string "Capability not found"
// @Router /capabilities/{capabilityKey} [get]
func (h *CatalogHandler) getCapability(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "capabilityKey")
	capability, err := h.catalogService.GetCapability(r.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrCapabilityNotFound) {
			http.Error(w, "Capability not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve capability: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, capabilityResponse(capability), h.logger)
}

// listPlans godoc
// @Summary List pricing plans
// @Description Returns all bundle plans with their capability keys.
// @Tags catalog
// @Produce json
// @Success 200 {array} dto.PlanResponseDTO
// @Router /plans [get]
func (h *CatalogHandler) listPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.catalogService.ListPlans(r.Context())
	if err != nil {
		http.Error(w, "Failed to list plans: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]dto.PlanResponseDTO, 0, len(plans))
	for i := range plans {
		resp = append(resp, planResponse(&plans[i]))
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

func capabilityResponse(c *model.Capability) dto.CapabilityResponseDTO {
	return dto.CapabilityResponseDTO{
		ID:                    c.ID,
		CapabilityKey:         c.CapabilityKey,
		Name:                  c.Name,
		Category:              c.Category,
		Subcategory:           c.Subcategory,
		Description:           c.Description,
		APIType:               string(c.APIType),
		PriceCents:            c.PriceCents,
		ComboPriceCents:       c.ComboPriceCents,
		IsActive:              c.IsActive,
		GlobalInvocationCount: c.GlobalInvocationCount,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

func planResponse(p *model.BundlePlan) dto.PlanResponseDTO {
	return dto.PlanResponseDTO{
		ID:                p.ID,
		Name:              p.Name,
		MonthlyPriceCents: p.MonthlyPriceCents,
		MonthlyUsageLimit: p.MonthlyUsageLimit,
		YearlyPriceCents:  p.YearlyPriceCents,
		YearlyUsageLimit:  p.YearlyUsageLimit,
		CapabilityKeys:    p.CapabilityKeys,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}
