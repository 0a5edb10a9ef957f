package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// AdminHandler handles catalog management and entitlement lifecycle
// operations. All routes require the admin role.
type AdminHandler struct {
	catalogService   service.CatalogService
	lifecycleService service.LifecycleService
	resolverService  service.EntitlementService
	validate         *validator.Validate
	logger           zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(
	catalogService service.CatalogService,
	lifecycleService service.LifecycleService,
	resolverService service.EntitlementService,
	validate *validator.Validate,
	logger zerolog.Logger,
) *AdminHandler {
	return &AdminHandler{
		catalogService:   catalogService,
		lifecycleService: lifecycleService,
		resolverService:  resolverService,
		validate:         validate,
		logger:           logger,
	}
}

// RegisterRoutes mounts admin routes
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Post("/capabilities", h.createCapability)
		r.Put("/capabilities/{capabilityKey}", h.updateCapability)
		r.Delete("/capabilities/{capabilityKey}", h.deleteCapability)

		r.Post("/plans", h.createPlan)
		r.Post("/plans/bulk", h.createPlansBulk)
		r.Put("/plans/{planName}", h.updatePlan)
		r.Delete("/plans/{planName}", h.deletePlan)

		r.Route("/users/{userId}", func(r chi.Router) {
			r.Post("/promotions", h.promote)
			r.Delete("/promotions", h.demote)
			r.Post("/entitlements", h.grant)
			r.Post("/entitlements/extend", h.extend)
			r.Post("/entitlements/prune", h.prune)
			r.Delete("/entitlements/{coverageKey}", h.revoke)
		})
	})
}

// createCapability godoc
// @Summary Create a capability
// @Tags admin
// @Accept json
// @Produce json
// @Param capability body dto.CapabilityCreateDTO true "Capability"
// @Success 201 {object} dto.CapabilityResponseDTO
// @Failure 409 {string} string "Capability already exists"
// @Router /admin/capabilities [post]
func (h *AdminHandler) createCapability(w http.ResponseWriter, r *http.Request) {
	var req dto.CapabilityCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	capability := &model.Capability{
		CapabilityKey:   req.CapabilityKey,
		Name:            req.Name,
		Category:        req.Category,
		Subcategory:     req.Subcategory,
		Description:     req.Description,
		Endpoint:        req.Endpoint,
		APIType:         model.APIType(req.APIType),
		PriceCents:      req.PriceCents,
		ComboPriceCents: req.ComboPriceCents,
		IsActive:        isActive,
	}
	if err := h.catalogService.CreateCapability(r.Context(), capability); err != nil {
		if errors.Is(err, service.ErrCapabilityExists) {
			http.Error(w, "Capability already exists", http.StatusConflict)
			return
		}
		http.Error(w, "Failed to create capability: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, capabilityResponse(capability), h.logger)
}

// updateCapability godoc
// @Summary Update a capability
// @Tags admin
// @Accept json
// @Produce json
// @Param capabilityKey path string true "Capability key"
// @Param capability body dto.CapabilityUpdateDTO true "Fields to update"
// @Success 200 {object} dto.CapabilityResponseDTO
// @Failure 404 {string} string "Capability not found"
// @Router /admin/capabilities/{capabilityKey} [put]
func (h *AdminHandler) updateCapability(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "capabilityKey")
	var req dto.CapabilityUpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	capability, err := h.catalogService.GetCapability(r.Context(), key)
	if err != nil {
		if errors.Is(err, service.ErrCapabilityNotFound) {
			http.Error(w, "Capability not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve capability: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if req.Name != nil {
		capability.Name = *req.Name
	}
	if req.Category != nil {
		capability.Category = *req.Category
	}
	if req.Subcategory != nil {
		capability.Subcategory = *req.Subcategory
	}
	if req.Description != nil {
		capability.Description = *req.Description
	}
	if req.Endpoint != nil {
		capability.Endpoint = *req.Endpoint
	}
	if req.APIType != nil {
		capability.APIType = model.APIType(*req.APIType)
	}
	if req.PriceCents != nil {
		capability.PriceCents = *req.PriceCents
	}
	if req.ComboPriceCents != nil {
		capability.ComboPriceCents = *req.ComboPriceCents
	}
	if req.IsActive != nil {
		capability.IsActive = *req.IsActive
	}

	if err := h.catalogService.UpdateCapability(r.Context(), capability); err != nil {
		if errors.Is(err, service.ErrCapabilityNotFound) {
			http.Error(w, "Capability not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update capability: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, capabilityResponse(capability), h.logger)
}

// deleteCapability godoc
// @Summary Delete a capability
// @Tags admin
// @Param capabilityKey path string true "Capability key"
// @Success 204 {string} string "No Content"
// @Failure 404 {string} string "Capability not found"
// @Router /admin/capabilities/{capabilityKey} [delete]
func (h *AdminHandler) deleteCapability(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "capabilityKey")
	if err := h.catalogService.DeleteCapability(r.Context(), key); err != nil {
		if errors.Is(err, service.ErrCapabilityNotFound) {
			http.Error(w, "Capability not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete capability: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// createPlan godoc
// @Summary Create a pricing plan
// @Tags admin
// @Accept json
// @Produce json
// @Param plan body dto.PlanCreateDTO true "Plan"
// @Success 201 {object} dto.PlanResponseDTO
// @Failure 400 {string} string "Unknown capability keys"
// @Failure 409 {string} string "Plan already exists"
// @Router /admin/plans [post]
func (h *AdminHandler) createPlan(w http.ResponseWriter, r *http.Request) {
	var req dto.PlanCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.insertPlans(w, r, []dto.PlanCreateDTO{req})
}

// createPlansBulk godoc
// @Summary Create pricing plans in bulk
// @Description Validates and inserts a batch of plans. The whole batch is rejected if any name is taken or any capability key is unknown.
// @Tags admin
// @Accept json
// @Produce json
// @Param plans body dto.PlanBulkCreateDTO true "Plans"
// @Success 201 {array} dto.PlanResponseDTO
// @Failure 400 {string} string "Unknown capability keys"
// @Failure 409 {string} string "Plan already exists"
// @Router /admin/plans/bulk [post]
func (h *AdminHandler) createPlansBulk(w http.ResponseWriter, r *http.Request) {
	var req dto.PlanBulkCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	h.insertPlans(w, r, req.Plans)
}

func (h *AdminHandler) insertPlans(w http.ResponseWriter, r *http.Request, reqs []dto.PlanCreateDTO) {
	plans := make([]model.BundlePlan, 0, len(reqs))
	for _, p := range reqs {
		plans = append(plans, model.BundlePlan{
			Name:              p.Name,
			MonthlyPriceCents: p.MonthlyPriceCents,
			MonthlyUsageLimit: p.MonthlyUsageLimit,
			YearlyPriceCents:  p.YearlyPriceCents,
			YearlyUsageLimit:  p.YearlyUsageLimit,
			CapabilityKeys:    p.CapabilityKeys,
		})
	}
	if err := h.catalogService.CreatePlans(r.Context(), plans); err != nil {
		switch {
		case errors.Is(err, service.ErrPlanExists):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, service.ErrUnknownCapabilityKeys):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "Failed to create plans: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	resp := make([]dto.PlanResponseDTO, 0, len(plans))
	for i := range plans {
		resp = append(resp, planResponse(&plans[i]))
	}
	writeJSON(w, http.StatusCreated, resp, h.logger)
}

// updatePlan godoc
// @Summary Update a pricing plan
// @Tags admin
// @Accept json
// @Produce json
// @Param planName path string true "Plan name"
// @Param plan body dto.PlanCreateDTO true "Plan"
// @Success 200 {object} dto.PlanResponseDTO
// @Failure 404 {string} string "Plan not found"
// @Router /admin/plans/{planName} [put]
func (h *AdminHandler) updatePlan(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "planName")
	var req dto.PlanCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	existing, err := h.catalogService.GetPlan(r.Context(), name)
	if err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			http.Error(w, "Plan not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to retrieve plan: "+err.Error(), http.StatusInternalServerError)
		return
	}

	existing.Name = req.Name
	existing.MonthlyPriceCents = req.MonthlyPriceCents
	existing.MonthlyUsageLimit = req.MonthlyUsageLimit
	existing.YearlyPriceCents = req.YearlyPriceCents
	existing.YearlyUsageLimit = req.YearlyUsageLimit
	existing.CapabilityKeys = req.CapabilityKeys

	if err := h.catalogService.UpdatePlan(r.Context(), existing); err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			http.Error(w, "Plan not found", http.StatusNotFound)
		case errors.Is(err, service.ErrUnknownCapabilityKeys):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, "Failed to update plan: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, planResponse(existing), h.logger)
}

// deletePlan godoc
// @Summary Delete a pricing plan
// @Tags admin
// @Param planName path string true "Plan name"
// @Success 204 {string} string "No Content"
// @Failure 404 {string} string "Plan not found"
// @Router /admin/plans/{planName} [delete]
func (h *AdminHandler) deletePlan(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "planName")
	if err := h.catalogService.DeletePlan(r.Context(), name); err != nil {
		if errors.Is(err, service.ErrPlanNotFound) {
			http.Error(w, "Plan not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete plan: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// promote godoc
// @Summary Promote a user for a category
// @Description Grants unmetered access to every capability in the category. Promoted calls bypass entitlement resolution.
// @Tags admin
// @Accept json
// @Param userId path string true "User ID"
// @Param promotion body dto.PromotionDTO true "Category"
// @Success 204 {string} string "No Content"
// @Router /admin/users/{userId}/promotions [post]
func (h *AdminHandler) promote(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var req dto.PromotionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.lifecycleService.Promote(r.Context(), userID, req.Category); err != nil {
		http.Error(w, "Failed to promote user: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// demote godoc
// @Summary Remove a user's category promotion
// @Tags admin
// @Accept json
// @Param userId path string true "User ID"
// @Param promotion body dto.PromotionDTO true "Category"
// @Success 204 {string} string "No Content"
// @Router /admin/users/{userId}/promotions [delete]
func (h *AdminHandler) demote(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var req dto.PromotionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.lifecycleService.Demote(r.Context(), userID, req.Category); err != nil {
		http.Error(w, "Failed to demote user: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// grant godoc
// @Summary Grant or renew an entitlement
// @Description Grants a new entitlement, or renews an unexpired one for the same coverage by adding usage and extending expiry.
// @Tags admin
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param grant body dto.GrantDTO true "Grant"
// @Success 201 {object} model.Entitlement
// @Router /admin/users/{userId}/entitlements [post]
func (h *AdminHandler) grant(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var req dto.GrantDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	kind, err := model.ParseCoverageKind(req.CoverageKind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	coverage := model.Coverage{Kind: kind, Name: req.CoverageName}
	entitlement, err := h.lifecycleService.GrantOrRenew(r.Context(), userID, coverage, model.BillingCycle(req.Cycle), req.UsageLimit)
	if err != nil {
		http.Error(w, "Failed to grant entitlement: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, entitlement, h.logger)
}

// extend godoc
// @Summary Extend an entitlement's expiry
// @Description Pushes out the expiry of the entitlement matching the coverage name. The new expiry must be strictly later than the current one.
// @Tags admin
// @Accept json
// @Produce json
// @Param userId path string true "User ID"
// @Param extension body dto.ExtensionDTO true "Extension"
// @Success 200 {object} model.Entitlement
// @Failure 400 {string} string "Invalid extension duration"
// @Failure 404 {string} string "Entitlement not found"
// @Router /admin/users/{userId}/entitlements/extend [post]
func (h *AdminHandler) extend(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	var req dto.ExtensionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	entitlement, err := h.lifecycleService.Extend(r.Context(), userID, req.CoverageName, time.Duration(req.Days)*24*time.Hour)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEntitlementNotFound):
			http.Error(w, "Entitlement not found", http.StatusNotFound)
		case errors.Is(err, service.ErrInvalidExtension):
			http.Error(w, "Invalid extension duration", http.StatusBadRequest)
		default:
			http.Error(w, "Failed to extend entitlement: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, entitlement, h.logger)
}

// revoke godoc
// @Summary Revoke coverage from a user
// @Description Removes all entitlements for the coverage and any matching category promotion.
// @Tags admin
// @Param userId path string true "User ID"
// @Param coverageKey path string true "Coverage name"
// @Success 204 {string} string "No Content"
// @Router /admin/users/{userId}/entitlements/{coverageKey} [delete]
func (h *AdminHandler) revoke(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	coverageKey := chi.URLParam(r, "coverageKey")
	if err := h.lifecycleService.Revoke(r.Context(), userID, coverageKey); err != nil {
		http.Error(w, "Failed to revoke coverage: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// prune godoc
// @Summary Prune dead entitlements
// @Description Removes every expired or exhausted entitlement from the user's account.
// @Tags admin
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} dto.PruneResponseDTO
// @Router /admin/users/{userId}/entitlements/prune [post]
func (h *AdminHandler) prune(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	removed, err := h.resolverService.PruneDead(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to prune entitlements: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dto.PruneResponseDTO{Removed: removed}, h.logger)
}
