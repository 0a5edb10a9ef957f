package service

import (
	"context"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidExtension means the requested extension would not move the
	// expiry forward.
	ErrInvalidExtension = errors.New("invalid extension duration")
	// ErrEntitlementNotFound means no entitlement matches the coverage key.
	ErrEntitlementNotFound = errors.New("entitlement not found")
)

// LifecycleService creates, renews, extends and revokes entitlements in
// response to payment events and admin actions.
type LifecycleService interface {
	// GrantOrRenew renews the first unexpired entitlement with the same
	// coverage, extending its expiry by one cycle from its current expiry
	// and adding the new grant's capacity to its limit. With no unexpired
	// match it creates a fresh entitlement expiring one cycle from now.
	GrantOrRenew(ctx context.Context, userID string, coverage model.Coverage, cycle model.BillingCycle, usageLimit int) (*model.Entitlement, error)
	// Revoke removes every entitlement with the coverage key and the key
	// from the user's promoted set, regardless of expiry state.
	Revoke(ctx context.Context, userID, coverageKey string) error
	// Extend adds duration to the expiry of the first entitlement matching
	// the coverage key, valid or not.
	Extend(ctx context.Context, userID, coverageKey string, duration time.Duration) (*model.Entitlement, error)
	Promote(ctx context.Context, userID, category string) error
	Demote(ctx context.Context, userID, category string) error
}

type lifecycleService struct {
	userRepo repository.UserRepository
	now      func() time.Time
	logger   zerolog.Logger
}

// NewLifecycleService creates a new LifecycleService with a scoped logger.
func NewLifecycleService(userRepo repository.UserRepository, logger zerolog.Logger) LifecycleService {
	return &lifecycleService{
		userRepo: userRepo,
		now:      time.Now,
		logger:   logger.With().Str("service", "LifecycleService").Logger(),
	}
}

func (s *lifecycleService) GrantOrRenew(ctx context.Context, userID string, coverage model.Coverage, cycle model.BillingCycle, usageLimit int) (*model.Entitlement, error) {
	entitlements, err := s.userRepo.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	for i := range entitlements {
		e := &entitlements[i]
		if e.Coverage != coverage || !e.ExpiresAt.After(now) {
			continue
		}
		// Renewal augments the grant rather than resetting it: the expiry
		// extends from the current expiry so no remaining time is lost, and
		// the limits accumulate.
		newExpiry := cycle.Next(e.ExpiresAt)
		if err := s.userRepo.RenewEntitlement(ctx, e.ID, newExpiry, usageLimit); err != nil {
			return nil, err
		}
		e.ExpiresAt = newExpiry
		e.UsageLimit += usageLimit
		s.logger.Info().
			Str("user_id", userID).
			Str("coverage", coverage.Name).
			Str("entitlement_id", e.ID).
			Time("expires_at", newExpiry).
			Msg("Renewed entitlement")
		return e, nil
	}

	e := &model.Entitlement{
		ID:            uuid.NewString(),
		UserID:        userID,
		Coverage:      coverage,
		Cycle:         cycle,
		UsageLimit:    usageLimit,
		UsageCount:    0,
		GrantedAt:     now,
		ExpiresAt:     cycle.Next(now),
		IsPromotional: cycle == model.CyclePromotional,
	}
	if err := s.userRepo.InsertEntitlement(ctx, e); err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("user_id", userID).
		Str("coverage", coverage.Name).
		Str("entitlement_id", e.ID).
		Time("expires_at", e.ExpiresAt).
		Msg("Created entitlement")
	return e, nil
}

func (s *lifecycleService) Revoke(ctx context.Context, userID, coverageKey string) error {
	if err := s.userRepo.RevokeCoverage(ctx, userID, coverageKey); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Str("coverage", coverageKey).Msg("Failed to revoke coverage")
		return err
	}
	return nil
}

func (s *lifecycleService) Extend(ctx context.Context, userID, coverageKey string, duration time.Duration) (*model.Entitlement, error) {
	entitlements, err := s.userRepo.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range entitlements {
		e := &entitlements[i]
		if e.Coverage.Name != coverageKey {
			continue
		}
		newExpiry := e.ExpiresAt.Add(duration)
		if !newExpiry.After(e.ExpiresAt) {
			return nil, ErrInvalidExtension
		}
		if err := s.userRepo.SetEntitlementExpiry(ctx, e.ID, newExpiry); err != nil {
			return nil, err
		}
		e.ExpiresAt = newExpiry
		return e, nil
	}
	return nil, ErrEntitlementNotFound
}

func (s *lifecycleService) Promote(ctx context.Context, userID, category string) error {
	return s.userRepo.Promote(ctx, userID, category)
}

func (s *lifecycleService) Demote(ctx context.Context, userID, category string) error {
	return s.userRepo.Demote(ctx, userID, category)
}
