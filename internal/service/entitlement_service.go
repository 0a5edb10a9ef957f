package service

import (
	"context"
	"errors"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/rs/zerolog"
)

var (
	// ErrCapabilityNotFound means the requested capability does not exist or
	// is inactive.
	ErrCapabilityNotFound = errors.New("capability not found")
	// ErrNoValidEntitlement means no covering entitlement is unexpired with
	// remaining usage. Clients should route to the purchase flow.
	ErrNoValidEntitlement = errors.New("no valid entitlement")
	// ErrUserNotFound means the authenticated user has no profile row.
	ErrUserNotFound = errors.New("user not found")
)

// Resolution is the outcome of a successful authorization check. Entitlement
// is nil when access was granted through an admin promotion, which is
// unconditional and uncounted.
type Resolution struct {
	Capability  *model.Capability
	Entitlement *model.Entitlement
	Promoted    bool
}

// EntitlementService decides whether a (user, capability) pair is authorized
// and which entitlement pays for the call.
type EntitlementService interface {
	Resolve(ctx context.Context, userID, capabilityKey string) (*Resolution, error)
	// PruneDead removes every expired or exhausted entitlement of the user,
	// regardless of coverage. Returns the number removed.
	PruneDead(ctx context.Context, userID string) (int, error)
}

type entitlementService struct {
	userRepo repository.UserRepository
	capRepo  repository.CapabilityRepository
	planRepo repository.PlanRepository
	now      func() time.Time
	logger   zerolog.Logger
}

// NewEntitlementService creates a new EntitlementService with a scoped logger.
func NewEntitlementService(
	userRepo repository.UserRepository,
	capRepo repository.CapabilityRepository,
	planRepo repository.PlanRepository,
	logger zerolog.Logger,
) EntitlementService {
	return &entitlementService{
		userRepo: userRepo,
		capRepo:  capRepo,
		planRepo: planRepo,
		now:      time.Now,
		logger:   logger.With().Str("service", "EntitlementService").Logger(),
	}
}

// Resolve checks, in order: the capability exists and is active, the user is
// promoted for its category (bypasses everything else), and finally the
// user's entitlement list. The first valid covering entitlement in list order
// wins. When none is valid, every dead covering entry is pruned in one write
// before the call fails; a successful resolution never prunes.
func (s *entitlementService) Resolve(ctx context.Context, userID, capabilityKey string) (*Resolution, error) {
	capability, err := s.capRepo.FindActiveByKey(ctx, capabilityKey)
	if err != nil {
		return nil, err
	}
	if capability == nil {
		return nil, ErrCapabilityNotFound
	}

	user, err := s.userRepo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.IsPromotedFor(capability.Category) {
		return &Resolution{Capability: capability, Promoted: true}, nil
	}

	planNames, err := s.planRepo.FindPlanNamesIncluding(ctx, capability.ID)
	if err != nil {
		return nil, err
	}
	entitlements, err := s.userRepo.ListEntitlements(ctx, userID)
	if err != nil {
		return nil, err
	}

	chosen, deadIDs := selectEntitlement(entitlements, capability, planNames, s.now())
	if chosen != nil {
		return &Resolution{Capability: capability, Entitlement: chosen}, nil
	}

	// Pruning is an intended side effect of a failed lookup, not a rollback
	// candidate: the deletion persists even though the call fails.
	if len(deadIDs) > 0 {
		if err := s.userRepo.DeleteEntitlements(ctx, userID, deadIDs); err != nil {
			s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to prune dead entitlements")
			return nil, err
		}
		s.logger.Info().Str("user_id", userID).Int("pruned", len(deadIDs)).Msg("Pruned dead entitlements")
	}
	return nil, ErrNoValidEntitlement
}

// selectEntitlement walks the list once. Covering entitlements are either
// valid or dead; the first valid one (list order, no expiry or remaining-use
// preference) is selected. Dead ids are only reported when nothing valid was
// found, since a successful resolution must not prune.
func selectEntitlement(entitlements []model.Entitlement, capability *model.Capability, planNames []string, now time.Time) (*model.Entitlement, []string) {
	var deadIDs []string
	for i := range entitlements {
		e := &entitlements[i]
		if !e.Coverage.Covers(capability, planNames) {
			continue
		}
		if e.Valid(now) {
			return e, nil
		}
		deadIDs = append(deadIDs, e.ID)
	}
	return nil, deadIDs
}

func (s *entitlementService) PruneDead(ctx context.Context, userID string) (int, error) {
	entitlements, err := s.userRepo.ListEntitlements(ctx, userID)
	if err != nil {
		return 0, err
	}
	now := s.now()
	var deadIDs []string
	for i := range entitlements {
		if !entitlements[i].Valid(now) {
			deadIDs = append(deadIDs, entitlements[i].ID)
		}
	}
	if len(deadIDs) == 0 {
		return 0, nil
	}
	if err := s.userRepo.DeleteEntitlements(ctx, userID, deadIDs); err != nil {
		s.logger.Error().Err(err).Str("user_id", userID).Msg("Failed to prune entitlements")
		return 0, err
	}
	return len(deadIDs), nil
}
