package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/repository"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Plan  *config.PlanHolder
	Repo  repository.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	plan  *config.PlanHolder
	repo  repository.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("carrier.service"),
		genID: p.GenID,
		plan:  p.Plan,
		repo:  p.Repo,
	}
}

func (s *Service) CreateCarrier(ctx context.Context, req domain.CreateCarrierRequest) (domain.Carrier, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Carrier{}, domain.ErrInvalidName
	}

	lines := make([]string, 0, len(req.Lines))
	for _, line := range req.Lines {
		line = strings.ToUpper(strings.TrimSpace(line))
		if !domain.ValidLine(line) {
			return domain.Carrier{}, domain.ErrInvalidLine
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = []string{domain.LineLife, domain.LineHealth}
	}

	now := time.Now().UTC()
	carrier := domain.Carrier{
		ID:        s.genID.Generate(),
		Name:      name,
		Code:      slug.Make(name),
		Lines:     pq.StringArray(lines),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.InsertCarrier(ctx, s.db, &carrier); err != nil {
		return domain.Carrier{}, err
	}
	return carrier, nil
}

func (s *Service) GetCarrier(ctx context.Context, id string) (domain.Carrier, error) {
	carrierID, err := parseID(id)
	if err != nil {
		return domain.Carrier{}, domain.ErrInvalidID
	}
	carrier, err := s.repo.FindCarrierByID(ctx, s.db, carrierID)
	if err != nil {
		return domain.Carrier{}, err
	}
	if carrier == nil {
		return domain.Carrier{}, domain.ErrNotFound
	}
	return *carrier, nil
}

func (s *Service) ListCarriers(ctx context.Context) ([]domain.Carrier, error) {
	carriers, err := s.repo.ListCarriers(ctx, s.db)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Carrier, 0, len(carriers))
	for _, carrier := range carriers {
		out = append(out, *carrier)
	}
	return out, nil
}

func (s *Service) UpsertRate(ctx context.Context, req domain.UpsertRateRequest) (domain.CarrierRate, error) {
	agentID, err := parseID(req.AgentID)
	if err != nil {
		return domain.CarrierRate{}, domain.ErrInvalidID
	}
	carrierID, err := parseID(req.CarrierID)
	if err != nil {
		return domain.CarrierRate{}, domain.ErrInvalidID
	}
	if req.AgentRate.IsNegative() || req.AgentRate.IsZero() || req.AgentRate.GreaterThan(decimal.NewFromInt(2)) {
		return domain.CarrierRate{}, domain.ErrInvalidRate
	}
	if req.ManagerRate.IsNegative() {
		return domain.CarrierRate{}, domain.ErrInvalidRate
	}

	carrier, err := s.repo.FindCarrierByID(ctx, s.db, carrierID)
	if err != nil {
		return domain.CarrierRate{}, err
	}
	if carrier == nil {
		return domain.CarrierRate{}, domain.ErrNotFound
	}

	now := time.Now().UTC()
	rate := domain.CarrierRate{
		ID:          s.genID.Generate(),
		AgentID:     agentID,
		CarrierID:   carrierID,
		AgentRate:   req.AgentRate,
		ManagerRate: req.ManagerRate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.UpsertRate(ctx, s.db, &rate); err != nil {
		return domain.CarrierRate{}, err
	}
	return rate, nil
}

func (s *Service) ListRates(ctx context.Context, agentID string) ([]domain.CarrierRate, error) {
	id, err := parseID(agentID)
	if err != nil {
		return nil, domain.ErrInvalidID
	}
	rates, err := s.repo.ListRatesByAgent(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	out := make([]domain.CarrierRate, 0, len(rates))
	for _, rate := range rates {
		out = append(out, *rate)
	}
	return out, nil
}

// ResolveRate prefers the per-(agent, carrier) override row; absent
// that, the plan FYC default for the insurance type applies.
func (s *Service) ResolveRate(ctx context.Context, agentID, carrierID snowflake.ID, insuranceType string) (domain.EffectiveRate, error) {
	override, err := s.repo.FindRate(ctx, s.db, agentID, carrierID)
	if err != nil {
		return domain.EffectiveRate{}, err
	}
	if override != nil {
		return domain.EffectiveRate{
			Rate:        override.AgentRate,
			ManagerRate: override.ManagerRate,
			Overridden:  true,
		}, nil
	}

	plan := s.plan.Get()
	switch strings.ToUpper(strings.TrimSpace(insuranceType)) {
	case domain.LineLife:
		return domain.EffectiveRate{Rate: decimal.NewFromFloat(plan.LifeFYCRate)}, nil
	case domain.LineHealth:
		return domain.EffectiveRate{Rate: decimal.NewFromFloat(plan.HealthFYCRate)}, nil
	default:
		return domain.EffectiveRate{}, domain.ErrUnknownInsuranceType
	}
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
