package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"app/internal/api/v1/dto"
	"app/internal/model"
	"app/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// PaymentHandler handles the order/verify purchase flow
type PaymentHandler struct {
	paymentService service.PaymentService
	validate       *validator.Validate
	logger         zerolog.Logger
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService service.PaymentService, validate *validator.Validate, logger zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		validate:       validate,
		logger:         logger,
	}
}

// RegisterRoutes mounts payment routes
func (h *PaymentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/payments/orders", h.createOrder)
	r.Post("/payments/verify", h.verifyPayment)
	r.Get("/payments/orders/me", h.listOrders)
}

// createOrder godoc
// @Summary Create a payment order
// @Description Creates a pending order for a bundle plan. A coupon covering the full price grants the entitlement immediately.
// @Tags payments
// @Accept json
// @Produce json
// @Param request body dto.OrderCreateDTO true "Order request"
// @Success 201 {object} dto.OrderResponseDTO
// @Failure 400 {string} string "Invalid JSON payload or validation failed"
// @Failure 404 {string} string "Plan not found"
// @Failure 409 {string} string "Active entitlement already exists"
// @Router /payments/orders [post]
func (h *PaymentHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	var req dto.OrderCreateDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	intent, err := h.paymentService.CreateOrder(r.Context(), userID, req.PlanName, model.BillingCycle(req.Cycle), req.CouponCode)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPlanNotFound):
			http.Error(w, "Plan not found", http.StatusNotFound)
		case errors.Is(err, service.ErrActiveEntitlementExists):
			http.Error(w, "An active entitlement for this plan already exists", http.StatusConflict)
		default:
			http.Error(w, "Failed to create order: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, orderResponse(intent.Order, intent.PaymentSkipped), h.logger)
}

// verifyPayment godoc
// @Summary Confirm a payment
// @Description Verifies the gateway signature for a pending order and grants the entitlement. Each order grants at most once.
// @Tags payments
// @Accept json
// @Produce json
// @Param request body dto.PaymentVerifyDTO true "Payment confirmation"
// @Success 200 {string} string "Payment verified"
// @Failure 400 {string} string "Signature mismatch"
// @Failure 404 {string} string "Order not found"
// @Failure 409 {string} string "Order already processed"
// @Router /payments/verify [post]
func (h *PaymentHandler) verifyPayment(w http.ResponseWriter, r *http.Request) {
	if _, ok := callerID(w, r); !ok {
		return
	}
	var req dto.PaymentVerifyDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON payload: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	err := h.paymentService.VerifyPayment(r.Context(), req.OrderID, req.GatewayPaymentID, req.Signature)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			http.Error(w, "Order not found", http.StatusNotFound)
		case errors.Is(err, service.ErrOrderAlreadyProcessed):
			http.Error(w, "Order already processed", http.StatusConflict)
		case errors.Is(err, service.ErrSignatureMismatch):
			http.Error(w, "Payment verification failed: signature mismatch", http.StatusBadRequest)
		default:
			http.Error(w, "Failed to verify payment: "+err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "verified"}, h.logger)
}

// listOrders godoc
// @Summary List my payment orders
// @Description Returns the authenticated user's order history, newest first.
// @Tags payments
// @Produce json
// @Param limit query int false "Page size (default 20)"
// @Param offset query int false "Offset (default 0)"
// @Success 200 {array} dto.OrderResponseDTO
// @Router /payments/orders/me [get]
func (h *PaymentHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}
	limit, offset := pageParams(r, 20)
	orders, err := h.paymentService.ListOrders(r.Context(), userID, limit, offset)
	if err != nil {
		http.Error(w, "Failed to list orders: "+err.Error(), http.StatusInternalServerError)
		return
	}
	resp := make([]dto.OrderResponseDTO, 0, len(orders))
	for i := range orders {
		resp = append(resp, orderResponse(&orders[i], false))
	}
	writeJSON(w, http.StatusOK, resp, h.logger)
}

func orderResponse(o *model.PaymentOrder, skipped bool) dto.OrderResponseDTO {
	return dto.OrderResponseDTO{
		ID:                  o.ID,
		PlanName:            o.Coverage.Name,
		Cycle:               string(o.Cycle),
		UsageLimitGranted:   o.UsageLimitGranted,
		AmountCents:         o.AmountCents,
		OriginalAmountCents: o.OriginalAmountCents,
		DiscountCents:       o.DiscountCents,
		CouponCode:          o.CouponCode,
		Status:              string(o.Status),
		GatewayOrderID:      o.GatewayOrderID,
		PaymentSkipped:      skipped,
		CreatedAt:           o.CreatedAt,
	}
}

func pageParams(r *http.Request, defaultLimit int) (limit, offset int) {
	limit = defaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
