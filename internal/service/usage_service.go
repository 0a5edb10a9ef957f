package service

import (
	"context"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

// UsageOverview is what a user sees on their usage page: current
// entitlements annotated with validity, plus the per-capability ledger.
type UsageOverview struct {
	Entitlements []EntitlementView   `json:"entitlements"`
	Ledger       []model.UsageRecord `json:"ledger"`
}

// EntitlementView is an entitlement with its validity evaluated at read time.
type EntitlementView struct {
	model.Entitlement
	Valid bool `json:"valid"`
}

// UsageService exposes read-side views over entitlements and the
// invocation ledger.
type UsageService interface {
	Overview(ctx context.Context, userID string) (*UsageOverview, error)
	History(ctx context.Context, userID string, limit, offset int) ([]model.VerificationResult, error)
}

type usageService struct {
	userRepo  repository.UserRepository
	usageRepo repository.UsageRepository
	auditRepo repository.AuditRepository
	now       func() time.Time
	logger    zerolog.Logger
}

// NewUsageService creates a new UsageService with a scoped logger.
func NewUsageService(userRepo repository.UserRepository, usageRepo repository.UsageRepository, auditRepo repository.AuditRepository, logger zerolog.Logger) UsageService {
	return &usageService{
		userRepo:  userRepo,
		usageRepo: usageRepo,
		auditRepo: auditRepo,
		now:       time.Now,
		logger:    logger.With().Str("service", "UsageService").Logger(),
	}
}

func (s *usageService) Overview(ctx context.Context, userID string) (*UsageOverview, error) {
	entitlements, err := s.userRepo.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}
	ledger, err := s.usageRepo.GetLedger(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	views := make([]EntitlementView, 0, len(entitlements))
	for i := range entitlements {
		views = append(views, EntitlementView{
			Entitlement: entitlements[i],
			Valid:       entitlements[i].Valid(now),
		})
	}
	return &UsageOverview{Entitlements: views, Ledger: ledger}, nil
}

func (s *usageService) History(ctx context.Context, userID string, limit, offset int) ([]model.VerificationResult, error) {
	return s.auditRepo.ListByUser(ctx, userID, limit, offset)
}
