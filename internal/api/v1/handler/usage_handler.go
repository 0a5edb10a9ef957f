package handler

import (
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// UsageHandler serves the caller's entitlement and usage views
type UsageHandler struct {
	usageService service.UsageService
	logger       zerolog.Logger
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usageService service.UsageService, logger zerolog.Logger) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		logger:       logger,
	}
}

// RegisterRoutes mounts usage routes
func (h *UsageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/usage/me", h.overview)
	r.Get("/usage/me/history", h.history)
}

// overview godoc
// @Summary Get my entitlements and usage ledger
// @Description Returns the authenticated user's entitlements with validity evaluated at read time, plus the per-capability invocation ledger.
// @Tags usage
// @Produce json
// @Success 200 {object} dto.UsageOverviewDTO
// @Router /usage/me [get]
func (h *UsageHandler) overview(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	overview, err := h.usageService.Overview(r.Context(), userID)
	if err != nil {
		http.Error(w, "Failed to retrieve usage: "+err.Error(), http.StatusInternalServerError)
		return
	}

	resp := dto.UsageOverviewDTO{
		Entitlements: make([]dto.EntitlementDTO, 0, len(overview.Entitlements)),
		Ledger:       make([]dto.UsageRecordDTO, 0, len(overview.Ledger)),
	}
	for _, e := range overview.Entitlements {
		resp.Entitlements = append(resp.Entitlements, dto.EntitlementDTO{
			ID:            e.ID,
			CoverageKind:  string(e.Coverage.Kind),
			CoverageName:  e.Coverage.Name,
			Cycle:         string(e.Cycle),
			UsageLimit:    e.UsageLimit,
			UsageCount:    e.UsageCount,
			GrantedAt:     e.GrantedAt,
			ExpiresAt:     e.ExpiresAt,
			IsPromotional: e.IsPromotional,
			Valid:         e.Valid,
		})
	}
	for _, rec := range overview.Ledger {
		resp.Ledger = append(resp.Ledger, dto.UsageRecordDTO{
			CapabilityKey: rec.CapabilityKey,
			Count:         rec.Count,
			InvokedAt:     rec.InvokedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

// history godoc
// @Summary Get my verification history
// @Description Returns the authenticated user's recorded verification outcomes, newest first.
// @Tags usage
// @Produce json
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Offset (default 0)"
// @Success 200 {array} model.VerificationResult
// @Router /usage/me/history [get]
func (h *UsageHandler) history(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r, 20)
	results, err := h.usageService.History(r.Context(), userID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to retrieve history: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, results, h.logger)
}
