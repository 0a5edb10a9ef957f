package service

import (
	"context"
	"errors"
	"fmt"

	"app/internal/model"
	"app/internal/provider"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrProviderInvocation means the upstream provider call failed; no
	// usage was charged for it.
	ErrProviderInvocation = errors.New("provider invocation failed")
	// ErrUsageNotRecorded means the provider call succeeded but the usage
	// charge could not be persisted.
	ErrUsageNotRecorded = errors.New("usage could not be recorded")
)

// InvocationResult carries the provider response back to the caller along
// with the entitlement that paid for it, if any.
type InvocationResult struct {
	Capability *model.Capability `json:"capability"`
	Promoted   bool              `json:"promoted"`
	Result     *provider.Result  `json:"result"`
}

// VerificationService gates provider invocations behind entitlement
// resolution and records every outcome.
type VerificationService interface {
	// Invoke resolves an entitlement for the capability, calls the upstream
	// provider and charges usage on success. Fields carries the request
	// payload; for JSON capabilities values may be of any type, for form
	// capabilities they are coerced to strings.
	Invoke(ctx context.Context, userID, capabilityKey string, fields map[string]interface{}) (*InvocationResult, error)
}

type verificationService struct {
	resolver  EntitlementService
	usageRepo repository.UsageRepository
	auditRepo repository.AuditRepository
	invoker   provider.Invoker
	logger    zerolog.Logger
}

// NewVerificationService creates a new VerificationService with a scoped logger.
func NewVerificationService(
	resolver EntitlementService,
	usageRepo repository.UsageRepository,
	auditRepo repository.AuditRepository,
	invoker provider.Invoker,
	logger zerolog.Logger,
) VerificationService {
	return &verificationService{
		resolver:  resolver,
		usageRepo: usageRepo,
		auditRepo: auditRepo,
		invoker:   invoker,
		logger:    logger.With().Str("service", "VerificationService").Logger(),
	}
}

func (s *verificationService) Invoke(ctx context.Context, userID, capabilityKey string, fields map[string]interface{}) (*InvocationResult, error) {
	res, err := s.resolver.Resolve(ctx, userID, capabilityKey)
	if err != nil {
		return nil, err
	}
	capability := res.Capability

	var result *provider.Result
	var callErr error
	switch capability.APIType {
	case model.APITypeForm:
		form := make(map[string]string, len(fields))
		for k, v := range fields {
			form[k] = fmt.Sprint(v)
		}
		result, callErr = s.invoker.InvokeForm(ctx, capability.Endpoint, form)
	default:
		result, callErr = s.invoker.InvokeJSON(ctx, capability.Endpoint, fields)
	}
	if callErr != nil {
		s.audit(ctx, userID, capability.ID, model.VerificationFailed, callErr.Error())
		return nil, fmt.Errorf("%w: %v", ErrProviderInvocation, callErr)
	}

	// The provider delivered, so the charge must land. A failure here is a
	// reconciliation gap, not a free call.
	if res.Promoted {
		err = s.usageRepo.RecordPromotedInvocation(ctx, userID, capability.ID)
	} else {
		err = s.usageRepo.RecordInvocation(ctx, userID, res.Entitlement.ID, capability.ID)
	}
	if err != nil {
		s.logger.Error().Err(err).
			Str("user_id", userID).
			Str("capability", capability.CapabilityKey).
			Msg("Provider call succeeded but usage was not recorded; needs reconciliation")
		return nil, fmt.Errorf("%w: %v", ErrUsageNotRecorded, err)
	}

	s.audit(ctx, userID, capability.ID, model.VerificationSucceeded, snippet(result.Message))
	return &InvocationResult{Capability: capability, Promoted: res.Promoted, Result: result}, nil
}

func (s *verificationService) audit(ctx context.Context, userID, capabilityID string, status model.VerificationStatus, detail string) {
	rec := &model.VerificationResult{
		ID:           uuid.NewString(),
		UserID:       userID,
		CapabilityID: capabilityID,
		Status:       status,
		Detail:       snippet(detail),
	}
	if err := s.auditRepo.InsertResult(ctx, rec); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to record verification result")
	}
}

// snippet truncates provider detail so audit rows stay bounded.
func snippet(s string) string {
	const max = 512
	if len(s) > max {
		return s[:max]
	}
	return s
}
