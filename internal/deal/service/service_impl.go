package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Plan          *config.PlanHolder
	AgentSvc      agentdomain.Service
	AgentRepo     agentdomain.Repository
	CarrierSvc    carrierdomain.Service
	CommissionSvc commissiondomain.Service
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	plan          *config.PlanHolder
	agentSvc      agentdomain.Service
	agentRepo     agentdomain.Repository
	carrierSvc    carrierdomain.Service
	commissionSvc commissiondomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("deal.service"),
		genID:         p.GenID,
		plan:          p.Plan,
		agentSvc:      p.AgentSvc,
		agentRepo:     p.AgentRepo,
		carrierSvc:    p.CarrierSvc,
		commissionSvc: p.CommissionSvc,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateDealRequest) (domain.DealWithSplits, error) {
	agentID, err := parseID(req.AgentID)
	if err != nil {
		return domain.DealWithSplits{}, domain.ErrInvalidID
	}
	carrierID, err := parseID(req.CarrierID)
	if err != nil {
		return domain.DealWithSplits{}, domain.ErrCarrierRequired
	}

	insuranceType := strings.ToUpper(strings.TrimSpace(req.InsuranceType))
	if !carrierdomain.ValidLine(insuranceType) {
		return domain.DealWithSplits{}, commissiondomain.ErrUnknownInsuranceType
	}
	if !req.AnnualPremium.IsPositive() {
		return domain.DealWithSplits{}, commissiondomain.ErrInvalidPremium
	}

	agent, err := s.agentRepo.FindByID(ctx, s.db, agentID)
	if err != nil {
		return domain.DealWithSplits{}, err
	}
	if agent == nil {
		return domain.DealWithSplits{}, agentdomain.ErrNotFound
	}
	if !agent.IsActive() {
		// Reject up front: a deal must never be recorded with wrong
		// economics and fixed up later.
		return domain.DealWithSplits{}, commissiondomain.ErrInactiveAgent
	}

	if _, err := s.carrierSvc.GetCarrier(ctx, carrierID.String()); err != nil {
		return domain.DealWithSplits{}, err
	}

	plan := s.plan.Get()
	chain, err := s.agentSvc.UplineChain(ctx, agentID, plan.MaxUplineDepth)
	if err != nil {
		return domain.DealWithSplits{}, err
	}

	effective, err := s.carrierSvc.ResolveRate(ctx, agentID, carrierID, insuranceType)
	if err != nil {
		return domain.DealWithSplits{}, err
	}

	now := time.Now().UTC()
	applicationDate := req.ApplicationDate
	if applicationDate.IsZero() {
		applicationDate = now
	}

	deal := domain.Deal{
		ID:              s.genID.Generate(),
		AgentID:         agentID,
		CarrierID:       carrierID,
		AnnualPremium:   req.AnnualPremium,
		InsuranceType:   insuranceType,
		ApplicationDate: applicationDate.UTC(),
		EffectiveDate:   normalizeDate(req.EffectiveDate),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var splits []commissiondomain.CommissionSplit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&deal).Error; err != nil {
			return err
		}
		splits, err = s.commissionSvc.ReplaceSplits(ctx, tx, snapshot(deal), *agent, chain, effective.Rate, commissiondomain.AuditActionCreated)
		return err
	})
	if err != nil {
		return domain.DealWithSplits{}, err
	}

	return domain.DealWithSplits{Deal: deal, Splits: splits}, nil
}

func (s *Service) Amend(ctx context.Context, req domain.AmendDealRequest) (domain.DealWithSplits, error) {
	dealID, err := parseID(req.ID)
	if err != nil {
		return domain.DealWithSplits{}, domain.ErrInvalidID
	}

	deal, err := s.findDeal(ctx, dealID)
	if err != nil {
		return domain.DealWithSplits{}, err
	}

	changed := false
	if req.AnnualPremium != nil {
		if !req.AnnualPremium.IsPositive() {
			return domain.DealWithSplits{}, commissiondomain.ErrInvalidPremium
		}
		deal.AnnualPremium = *req.AnnualPremium
		changed = true
	}
	if insuranceType := strings.ToUpper(strings.TrimSpace(req.InsuranceType)); insuranceType != "" {
		if !carrierdomain.ValidLine(insuranceType) {
			return domain.DealWithSplits{}, commissiondomain.ErrUnknownInsuranceType
		}
		deal.InsuranceType = insuranceType
		changed = true
	}
	if req.EffectiveDate != nil {
		deal.EffectiveDate = normalizeDate(req.EffectiveDate)
		changed = true
	}
	if !changed {
		return domain.DealWithSplits{}, domain.ErrNothingToAmend
	}

	agent, err := s.agentRepo.FindByID(ctx, s.db, deal.AgentID)
	if err != nil {
		return domain.DealWithSplits{}, err
	}
	if agent == nil {
		return domain.DealWithSplits{}, agentdomain.ErrNotFound
	}

	plan := s.plan.Get()
	chain, err := s.agentSvc.UplineChain(ctx, deal.AgentID, plan.MaxUplineDepth)
	if err != nil {
		return domain.DealWithSplits{}, err
	}

	effective, err := s.carrierSvc.ResolveRate(ctx, deal.AgentID, deal.CarrierID, deal.InsuranceType)
	if err != nil {
		return domain.DealWithSplits{}, err
	}

	deal.UpdatedAt = time.Now().UTC()

	var splits []commissiondomain.CommissionSplit
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Deal{}).Where("id = ?", deal.ID).Updates(map[string]any{
			"annual_premium": deal.AnnualPremium,
			"insurance_type": deal.InsuranceType,
			"effective_date": deal.EffectiveDate,
			"updated_at":     deal.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		splits, err = s.commissionSvc.ReplaceSplits(ctx, tx, snapshot(*deal), *agent, chain, effective.Rate, commissiondomain.AuditActionReplaced)
		return err
	})
	if err != nil {
		return domain.DealWithSplits{}, err
	}

	return domain.DealWithSplits{Deal: *deal, Splits: splits}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.DealWithSplits, error) {
	dealID, err := parseID(id)
	if err != nil {
		return domain.DealWithSplits{}, domain.ErrInvalidID
	}
	deal, err := s.findDeal(ctx, dealID)
	if err != nil {
		return domain.DealWithSplits{}, err
	}
	splits, err := s.commissionSvc.ListByDeal(ctx, dealID)
	if err != nil {
		return domain.DealWithSplits{}, err
	}
	return domain.DealWithSplits{Deal: *deal, Splits: splits}, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	dealID, err := parseID(id)
	if err != nil {
		return domain.ErrInvalidID
	}
	if _, err := s.findDeal(ctx, dealID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.commissionSvc.DeleteSplits(ctx, tx, dealID); err != nil {
			return err
		}
		return tx.Where("id = ?", dealID).Delete(&domain.Deal{}).Error
	})
}

func (s *Service) findDeal(ctx context.Context, id snowflake.ID) (*domain.Deal, error) {
	var deal domain.Deal
	err := s.db.WithContext(ctx).
		Model(&domain.Deal{}).
		Where("id = ?", id).
		First(&deal).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &deal, nil
}

func snapshot(deal domain.Deal) commissiondomain.DealSnapshot {
	return commissiondomain.DealSnapshot{
		ID:            deal.ID,
		AgentID:       deal.AgentID,
		CarrierID:     deal.CarrierID,
		AnnualPremium: deal.AnnualPremium,
		InsuranceType: deal.InsuranceType,
	}
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}
