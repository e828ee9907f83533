package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/engine"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	obsmetrics "github.com/landonhauser7-sys/Everguardio-sub000/internal/observability/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Plan       *config.PlanHolder
	AgentRepo  agentdomain.Repository
	AgentSvc   agentdomain.Service
	CarrierSvc carrierdomain.Service
	Metrics    *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	plan       *config.PlanHolder
	agentRepo  agentdomain.Repository
	agentSvc   agentdomain.Service
	carrierSvc carrierdomain.Service
	metrics    *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("commission.service"),
		genID:      p.GenID,
		plan:       p.Plan,
		agentRepo:  p.AgentRepo,
		agentSvc:   p.AgentSvc,
		carrierSvc: p.CarrierSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) ReplaceSplits(
	ctx context.Context,
	tx *gorm.DB,
	deal domain.DealSnapshot,
	agent agentdomain.Agent,
	chain []agentdomain.Agent,
	rate decimal.Decimal,
	action string,
) ([]domain.CommissionSplit, error) {
	plan := s.plan.Get()

	input := engine.Input{
		Premium:     deal.AnnualPremium,
		Rate:        rate,
		Agent:       engine.Participant{ID: agent.ID, CommissionLevel: agent.CommissionLevel},
		AgentActive: agent.IsActive(),
		UplineChain: toParticipants(chain),
		Cap:         plan.OwnershipCap,
	}

	if plan.UnclaimedPolicy == config.UnclaimedHouse {
		house, err := s.houseParticipant(ctx, tx, plan.HouseAgentCode, agent.ID)
		if err != nil {
			return nil, err
		}
		input.HouseAgent = house
	}

	result, err := engine.Compute(input)
	if err != nil {
		return nil, err
	}

	// Replace-not-append: the batch for a deal is rewritten whole so a
	// reader never observes a partial split set.
	if err := tx.WithContext(ctx).
		Where("deal_id = ?", deal.ID).
		Delete(&domain.CommissionSplit{}).Error; err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	splits := make([]domain.CommissionSplit, 0, len(result.Shares))
	for _, share := range result.Shares {
		splits = append(splits, domain.CommissionSplit{
			ID:             s.genID.Generate(),
			DealID:         deal.ID,
			BeneficiaryID:  share.BeneficiaryID,
			Role:           share.Role,
			HierarchyDepth: share.Depth,
			Percent:        share.Percent,
			Amount:         share.Amount,
			CreatedAt:      now,
		})
	}
	if err := tx.WithContext(ctx).Create(&splits).Error; err != nil {
		return nil, err
	}

	if err := s.writeAudit(ctx, tx, deal, action, result, splits, now); err != nil {
		return nil, err
	}

	s.metrics.RecordDealSplit(ctx, deal.InsuranceType, plan.UnclaimedPolicy, len(splits))
	s.metrics.RecordUnclaimedPercent(ctx, result.UnclaimedPercent)
	s.log.Info("deal splits written",
		zap.String("deal_id", deal.ID.String()),
		zap.String("action", action),
		zap.Int("rows", len(splits)),
		zap.Int("total_percent", result.TotalPercent),
		zap.Int("unclaimed_percent", result.UnclaimedPercent),
	)

	return splits, nil
}

func (s *Service) DeleteSplits(ctx context.Context, tx *gorm.DB, dealID snowflake.ID) error {
	if err := tx.WithContext(ctx).
		Where("deal_id = ?", dealID).
		Delete(&domain.CommissionSplit{}).Error; err != nil {
		return err
	}
	audit := domain.SplitAudit{
		ID:        s.genID.Generate(),
		DealID:    dealID,
		Action:    domain.AuditActionDeleted,
		Detail:    datatypes.JSONMap{},
		CreatedAt: time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&audit).Error
}

func (s *Service) ListByDeal(ctx context.Context, dealID snowflake.ID) ([]domain.CommissionSplit, error) {
	var splits []domain.CommissionSplit
	err := s.db.WithContext(ctx).
		Model(&domain.CommissionSplit{}).
		Where("deal_id = ?", dealID).
		Order("hierarchy_depth asc, id asc").
		Find(&splits).Error
	if err != nil {
		return nil, err
	}
	return splits, nil
}

func (s *Service) ListAuditsByDeal(ctx context.Context, dealID snowflake.ID) ([]domain.SplitAudit, error) {
	var audits []domain.SplitAudit
	err := s.db.WithContext(ctx).
		Model(&domain.SplitAudit{}).
		Where("deal_id = ?", dealID).
		Order("created_at desc, id desc").
		Find(&audits).Error
	if err != nil {
		return nil, err
	}
	return audits, nil
}

// Preview runs the split math from CURRENT commission levels without
// touching the store. Used for what-if responses only; reporting reads
// the rows persisted at deal time.
func (s *Service) Preview(ctx context.Context, req domain.PreviewRequest) (domain.PreviewResponse, error) {
	agent, err := s.agentSvc.GetByID(ctx, req.AgentID)
	if err != nil {
		return domain.PreviewResponse{}, err
	}

	carrierID, err := snowflake.ParseString(strings.TrimSpace(req.CarrierID))
	if err != nil {
		return domain.PreviewResponse{}, carrierdomain.ErrInvalidID
	}

	plan := s.plan.Get()
	chain, err := s.agentSvc.UplineChain(ctx, agent.ID, plan.MaxUplineDepth)
	if err != nil {
		return domain.PreviewResponse{}, err
	}

	effective, err := s.carrierSvc.ResolveRate(ctx, agent.ID, carrierID, req.InsuranceType)
	if err != nil {
		return domain.PreviewResponse{}, err
	}

	input := engine.Input{
		Premium:     req.AnnualPremium,
		Rate:        effective.Rate,
		Agent:       engine.Participant{ID: agent.ID, CommissionLevel: agent.CommissionLevel},
		AgentActive: agent.IsActive(),
		UplineChain: toParticipants(chain),
		Cap:         plan.OwnershipCap,
	}
	if plan.UnclaimedPolicy == config.UnclaimedHouse {
		house, err := s.houseParticipant(ctx, s.db, plan.HouseAgentCode, agent.ID)
		if err != nil {
			return domain.PreviewResponse{}, err
		}
		input.HouseAgent = house
	}

	result, err := engine.Compute(input)
	if err != nil {
		return domain.PreviewResponse{}, err
	}

	names := map[snowflake.ID]string{agent.ID: agent.Name}
	for _, ancestor := range chain {
		names[ancestor.ID] = ancestor.Name
	}

	resp := domain.PreviewResponse{
		Variant:          "recomputed_preview",
		Pool:             result.Pool,
		Rate:             effective.Rate,
		RateOverridden:   effective.Overridden,
		TotalPercent:     result.TotalPercent,
		UnclaimedPercent: result.UnclaimedPercent,
		Shares:           make([]domain.PreviewShare, 0, len(result.Shares)),
	}
	for _, share := range result.Shares {
		split := domain.CommissionSplit{Role: share.Role, HierarchyDepth: share.Depth}
		resp.Shares = append(resp.Shares, domain.PreviewShare{
			BeneficiaryID: share.BeneficiaryID,
			Name:          names[share.BeneficiaryID],
			Role:          share.Role,
			RoleLabel:     split.RoleLabel(),
			Depth:         share.Depth,
			Percent:       share.Percent,
			Amount:        share.Amount,
		})
	}
	return resp, nil
}

type dealRow struct {
	ID            snowflake.ID    `gorm:"column:id"`
	AgentID       snowflake.ID    `gorm:"column:agent_id"`
	CarrierID     snowflake.ID    `gorm:"column:carrier_id"`
	AnnualPremium decimal.Decimal `gorm:"column:annual_premium"`
	InsuranceType string          `gorm:"column:insurance_type"`
}

func (s *Service) VerifyDeal(ctx context.Context, dealID snowflake.ID) error {
	var deal dealRow
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, agent_id, carrier_id, annual_premium, insurance_type
		 FROM deals WHERE id = ?`,
		dealID,
	).Scan(&deal).Error
	if err != nil {
		return err
	}
	if deal.ID == 0 {
		return domain.ErrDealNotFound
	}

	splits, err := s.ListByDeal(ctx, dealID)
	if err != nil {
		return err
	}
	if len(splits) == 0 {
		s.metrics.RecordReconciliationFailure(ctx, "missing_splits")
		return domain.ErrInconsistentSplit
	}

	effective, err := s.carrierSvc.ResolveRate(ctx, deal.AgentID, deal.CarrierID, deal.InsuranceType)
	if err != nil {
		return err
	}

	pool := deal.AnnualPremium.Mul(effective.Rate)
	totalPercent := int64(0)
	totalAmount := decimal.Zero
	for _, split := range splits {
		totalPercent += int64(split.Percent)
		totalAmount = totalAmount.Add(split.Amount)
	}

	expected := pool.Mul(decimal.NewFromInt(totalPercent)).Div(hundred)
	// One cent of rounding slack per persisted row.
	tolerance := decimal.New(int64(len(splits)), -2)
	if totalAmount.Sub(expected).Abs().GreaterThan(tolerance) {
		s.metrics.RecordReconciliationFailure(ctx, "amount_mismatch")
		s.log.Error("split reconciliation failed",
			zap.String("deal_id", dealID.String()),
			zap.String("expected", expected.String()),
			zap.String("actual", totalAmount.String()),
		)
		return domain.ErrInconsistentSplit
	}
	return nil
}

func (s *Service) SweepRange(ctx context.Context, from, to time.Time) (domain.SweepReport, error) {
	var ids []snowflake.ID
	err := s.db.WithContext(ctx).Raw(
		`SELECT id FROM deals WHERE created_at >= ? AND created_at < ? ORDER BY created_at ASC`,
		from.UTC(),
		to.UTC(),
	).Scan(&ids).Error
	if err != nil {
		return domain.SweepReport{}, err
	}

	report := domain.SweepReport{CheckedDeals: len(ids), InconsistentDeals: []snowflake.ID{}}
	for _, id := range ids {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if err := s.VerifyDeal(ctx, id); err != nil {
			if err == domain.ErrInconsistentSplit {
				report.InconsistentDeals = append(report.InconsistentDeals, id)
				continue
			}
			return report, err
		}
	}
	return report, nil
}

func (s *Service) writeAudit(
	ctx context.Context,
	tx *gorm.DB,
	deal domain.DealSnapshot,
	action string,
	result engine.Result,
	splits []domain.CommissionSplit,
	now time.Time,
) error {
	shares := make([]map[string]any, 0, len(splits))
	for _, split := range splits {
		shares = append(shares, map[string]any{
			"beneficiary_id": split.BeneficiaryID.String(),
			"role":           split.RoleLabel(),
			"percent":        split.Percent,
			"amount":         split.Amount.String(),
		})
	}

	audit := domain.SplitAudit{
		ID:     s.genID.Generate(),
		DealID: deal.ID,
		Action: action,
		Detail: datatypes.JSONMap{
			"pool":              result.Pool.String(),
			"total_percent":     result.TotalPercent,
			"unclaimed_percent": result.UnclaimedPercent,
			"shares":            shares,
		},
		CreatedAt: now,
	}
	return tx.WithContext(ctx).Create(&audit).Error
}

func (s *Service) houseParticipant(ctx context.Context, db *gorm.DB, code string, writerID snowflake.ID) (*engine.Participant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	house, err := s.agentRepo.FindByCode(ctx, db, code)
	if err != nil {
		return nil, err
	}
	if house == nil {
		s.log.Warn("house agent not found, forfeiting unclaimed percent", zap.String("code", code))
		return nil, nil
	}
	if house.ID == writerID {
		// The house selling personally keeps the whole pool already.
		return nil, nil
	}
	return &engine.Participant{ID: house.ID, CommissionLevel: house.CommissionLevel}, nil
}

func toParticipants(chain []agentdomain.Agent) []engine.Participant {
	out := make([]engine.Participant, 0, len(chain))
	for _, ancestor := range chain {
		out = append(out, engine.Participant{ID: ancestor.ID, CommissionLevel: ancestor.CommissionLevel})
	}
	return out
}

var hundred = decimal.NewFromInt(100)
