package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/model"
	"app/internal/repository"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

var (
	// ErrCapabilityExists means a capability with the same key already exists.
	ErrCapabilityExists = errors.New("capability already exists")
	// ErrPlanExists means a plan with the same name already exists.
	ErrPlanExists = errors.New("pricing plan already exists")
	// ErrUnknownCapabilityKeys means a plan references capability keys the
	// catalog doesn't contain.
	ErrUnknownCapabilityKeys = errors.New("unknown capability keys")
)

// CatalogService manages the capability catalog and the bundle plans sold
// on top of it.
type CatalogService interface {
	GetCapability(ctx context.Context, capabilityKey string) (*model.Capability, error)
	ListCapabilities(ctx context.Context, activeOnly bool) ([]model.Capability, error)
	CreateCapability(ctx context.Context, c *model.Capability) error
	UpdateCapability(ctx context.Context, c *model.Capability) error
	DeleteCapability(ctx context.Context, capabilityKey string) error

	GetPlan(ctx context.Context, name string) (*model.BundlePlan, error)
	ListPlans(ctx context.Context) ([]model.BundlePlan, error)
	// CreatePlans validates and inserts a batch of plans. The whole batch is
	// rejected if any plan name already exists or any capability key is
	// unknown.
	CreatePlans(ctx context.Context, plans []model.BundlePlan) error
	UpdatePlan(ctx context.Context, p *model.BundlePlan) error
	DeletePlan(ctx context.Context, name string) error
}

type catalogService struct {
	capRepo  repository.CapabilityRepository
	planRepo repository.PlanRepository
	logger   zerolog.Logger
}

// NewCatalogService creates a new CatalogService with a scoped logger.
func NewCatalogService(capRepo repository.CapabilityRepository, planRepo repository.PlanRepository, logger zerolog.Logger) CatalogService {
	return &catalogService{
		capRepo:  capRepo,
		planRepo: planRepo,
		logger:   logger.With().Str("service", "CatalogService").Logger(),
	}
}

func (s *catalogService) GetCapability(ctx context.Context, capabilityKey string) (*model.Capability, error) {
	c, err := s.capRepo.FindByKey(ctx, capabilityKey)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrCapabilityNotFound
	}
	return c, nil
}

func (s *catalogService) ListCapabilities(ctx context.Context, activeOnly bool) ([]model.Capability, error) {
	return s.capRepo.List(ctx, activeOnly)
}

func (s *catalogService) CreateCapability(ctx context.Context, c *model.Capability) error {
	existing, err := s.capRepo.FindByKey(ctx, c.CapabilityKey)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrCapabilityExists
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.APIType == "" {
		c.APIType = model.APITypeJSON
	}
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	return s.capRepo.Create(ctx, c)
}

func (s *catalogService) UpdateCapability(ctx context.Context, c *model.Capability) error {
	c.UpdatedAt = time.Now()
	if err := s.capRepo.Update(ctx, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCapabilityNotFound
		}
		return err
	}
	return nil
}

func (s *catalogService) DeleteCapability(ctx context.Context, capabilityKey string) error {
	if err := s.capRepo.Delete(ctx, capabilityKey); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrCapabilityNotFound
		}
		return err
	}
	return nil
}

func (s *catalogService) GetPlan(ctx context.Context, name string) (*model.BundlePlan, error) {
	p, err := s.planRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPlanNotFound
	}
	return p, nil
}

func (s *catalogService) ListPlans(ctx context.Context) ([]model.BundlePlan, error) {
	return s.planRepo.List(ctx)
}

func (s *catalogService) CreatePlans(ctx context.Context, plans []model.BundlePlan) error {
	names := make([]string, 0, len(plans))
	keySet := map[string]struct{}{}
	for i := range plans {
		names = append(names, plans[i].Name)
		for _, k := range plans[i].CapabilityKeys {
			keySet[k] = struct{}{}
		}
	}

	taken, err := s.planRepo.ExistingNames(ctx, names)
	if err != nil {
		return err
	}
	if len(taken) > 0 {
		return fmt.Errorf("%w: %v", ErrPlanExists, taken)
	}

	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	idByKey, err := s.planRepo.ResolveCapabilityIDs(ctx, keys)
	if err != nil {
		return err
	}
	var missing []string
	for _, k := range keys {
		if _, ok := idByKey[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnknownCapabilityKeys, missing)
	}

	for i := range plans {
		p := &plans[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		ids := make([]string, 0, len(p.CapabilityKeys))
		for _, k := range p.CapabilityKeys {
			ids = append(ids, idByKey[k])
		}
		if err := s.planRepo.Create(ctx, p, ids); err != nil {
			return err
		}
		s.logger.Info().Str("plan", p.Name).Int("capabilities", len(ids)).Msg("Pricing plan created")
	}
	return nil
}

func (s *catalogService) UpdatePlan(ctx context.Context, p *model.BundlePlan) error {
	idByKey, err := s.planRepo.ResolveCapabilityIDs(ctx, p.CapabilityKeys)
	if err != nil {
		return err
	}
	var missing []string
	ids := make([]string, 0, len(p.CapabilityKeys))
	for _, k := range p.CapabilityKeys {
		id, ok := idByKey[k]
		if !ok {
			missing = append(missing, k)
			continue
		}
		ids = append(ids, id)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrUnknownCapabilityKeys, missing)
	}
	if err := s.planRepo.Update(ctx, p, ids); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPlanNotFound
		}
		return err
	}
	return nil
}

func (s *catalogService) DeletePlan(ctx context.Context, name string) error {
	if err := s.planRepo.Delete(ctx, name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPlanNotFound
		}
		return err
	}
	return nil
}
