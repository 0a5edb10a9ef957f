package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"app/internal/api/v1/dto"
	"app/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// VerificationHandler handles capability invocation endpoints
type VerificationHandler struct {
	verificationService service.VerificationService
	validate            *validator.Validate
	logger              zerolog.Logger
}

// NewVerificationHandler creates a new VerificationHandler
func NewVerificationHandler(verificationService service.VerificationService, validate *validator.Validate, logger zerolog.Logger) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		validate:            validate,
		logger:              logger,
	}
}

// RegisterRoutes mounts verification routes
func (h *VerificationHandler) RegisterRoutes(r chi.Router) {
	r.Post("/verifications", h.invoke)
}

// invoke godoc
// @Summary Invoke a verification capability
// @Description Resolves an entitlement for the capability, forwards the request to the upstream provider and charges one usage unit on success.
// @Tags verifications
// @Accept json
// @Produce json
// @Param request body dto.VerificationRequestDTO true "Invocation request"
// @Success 200 {object} dto.VerificationResponseDTO
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 403 {string} string "No valid entitlement"
// @Failure 404 {string} string "Capability not found"
// @Failure 502 {string} string "Provider invocation failed"
// @Router /verifications [post]
func (h *VerificationHandler) invoke(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.VerificationRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.verificationService.Invoke(r.Context(), userID, req.CapabilityKey, req.Fields)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCapabilityNotFound):
			http.Error(w, "Capability not found", http.StatusNotFound)
		case errors.Is(err, service.ErrUserNotFound):
			http.Error(w, "User not found", http.StatusNotFound)
		case errors.Is(err, service.ErrNoValidEntitlement):
			http.Error(w, "No valid entitlement for this capability", http.StatusForbidden)
		case errors.Is(err, service.ErrProviderInvocation):
			http.Error(w, "Provider invocation failed", http.StatusBadGateway)
		case errors.Is(err, service.ErrUsageNotRecorded):
			http.Error(w, "Usage could not be recorded", http.StatusInternalServerError)
		default:
			http.Error(w, "Failed to process verification: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}

	resp := dto.VerificationResponseDTO{
		CapabilityKey: result.Capability.CapabilityKey,
		Promoted:      result.Promoted,
		Code:          result.Result.Code,
		Message:       result.Result.Message,
		Data:          result.Result.Data,
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}
