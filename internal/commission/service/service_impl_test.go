package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	agentrepo "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/repository"
	agentservice "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/service"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	carrierrepo "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/repository"
	carrierservice "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/service"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	dealdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type testStack struct {
	db         *gorm.DB
	node       *snowflake.Node
	agentSvc   agentdomain.Service
	carrierSvc carrierdomain.Service
	splitSvc   domain.Service
}

func newTestStack(t *testing.T, dsn string, plan config.CommissionPlan) testStack {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&agentdomain.Agent{},
		&carrierdomain.Carrier{},
		&carrierdomain.CarrierRate{},
		&dealdomain.Deal{},
		&domain.CommissionSplit{},
		&domain.SplitAudit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := config.NewStaticPlanHolder(plan)
	repo := agentrepo.Provide()
	agentSvc := agentservice.New(agentservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Plan:  holder,
		Repo:  repo,
	})
	carrierSvc := carrierservice.New(carrierservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Plan:  holder,
		Repo:  carrierrepo.Provide(),
	})
	splitSvc := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Plan:       holder,
		AgentRepo:  repo,
		AgentSvc:   agentSvc,
		CarrierSvc: carrierSvc,
	})
	return testStack{db: db, node: node, agentSvc: agentSvc, carrierSvc: carrierSvc, splitSvc: splitSvc}
}

func (ts testStack) createAgent(t *testing.T, name string, level int, upline *snowflake.ID) agentdomain.Agent {
	t.Helper()
	agent, err := ts.agentSvc.Create(context.Background(), agentdomain.CreateAgentRequest{
		Name:            name,
		CommissionLevel: level,
		UplineID:        upline,
	})
	require.NoError(t, err)
	return agent
}

func (ts testStack) createDeal(t *testing.T, agentID, carrierID snowflake.ID, premium int64) dealdomain.Deal {
	t.Helper()
	deal := dealdomain.Deal{
		ID:              ts.node.Generate(),
		AgentID:         agentID,
		CarrierID:       carrierID,
		AnnualPremium:   decimal.NewFromInt(premium),
		InsuranceType:   carrierdomain.LineLife,
		ApplicationDate: time.Now().UTC(),
		CreatedAt:       time.Now().UTC(),
		UpdatedAt:       time.Now().UTC(),
	}
	require.NoError(t, ts.db.Create(&deal).Error)
	return deal
}

func (ts testStack) writeSplits(t *testing.T, deal dealdomain.Deal, writer agentdomain.Agent, action string) []domain.CommissionSplit {
	t.Helper()
	ctx := context.Background()
	chain, err := ts.agentSvc.UplineChain(ctx, writer.ID, 16)
	require.NoError(t, err)
	effective, err := ts.carrierSvc.ResolveRate(ctx, writer.ID, deal.CarrierID, deal.InsuranceType)
	require.NoError(t, err)

	snapshot := domain.DealSnapshot{
		ID:            deal.ID,
		AgentID:       deal.AgentID,
		CarrierID:     deal.CarrierID,
		AnnualPremium: deal.AnnualPremium,
		InsuranceType: deal.InsuranceType,
	}

	var splits []domain.CommissionSplit
	err = ts.db.Transaction(func(tx *gorm.DB) error {
		var txErr error
		splits, txErr = ts.splitSvc.ReplaceSplits(ctx, tx, snapshot, writer, chain, effective.Rate, action)
		return txErr
	})
	require.NoError(t, err)
	return splits
}

func TestReplaceSplits_ReplacesBatchWholesale(t *testing.T) {
	ts := newTestStack(t, "file:split_replace?mode=memory&cache=shared", config.DefaultCommissionPlan())
	ctx := context.Background()

	owner := ts.createAgent(t, "Rhea Caldwell", 130, nil)
	manager := ts.createAgent(t, "Theo Branch", 100, &owner.ID)
	writer := ts.createAgent(t, "Imani Cole", 70, &manager.ID)

	carrier, err := ts.carrierSvc.CreateCarrier(ctx, carrierdomain.CreateCarrierRequest{
		Name:  "Atlas Life",
		Lines: []string{carrierdomain.LineLife},
	})
	require.NoError(t, err)

	deal := ts.createDeal(t, writer.ID, carrier.ID, 10000)
	splits := ts.writeSplits(t, deal, writer, domain.AuditActionCreated)

	require.Len(t, splits, 3)
	assert.Equal(t, domain.RoleAgent, splits[0].Role)
	assert.Equal(t, 70, splits[0].Percent)
	assert.True(t, splits[0].Amount.Equal(decimal.NewFromInt(7000)))
	assert.Equal(t, domain.RoleOverride, splits[1].Role)
	assert.Equal(t, 1, splits[1].HierarchyDepth)
	assert.Equal(t, 30, splits[1].Percent)
	assert.True(t, splits[1].Amount.Equal(decimal.NewFromInt(3000)))
	assert.Equal(t, manager.ID, splits[1].BeneficiaryID)
	assert.Equal(t, owner.ID, splits[2].BeneficiaryID)
	assert.Equal(t, 30, splits[2].Percent)

	// A rewrite must not append a second batch.
	ts.writeSplits(t, deal, writer, domain.AuditActionReplaced)

	var count int64
	require.NoError(t, ts.db.Model(&domain.CommissionSplit{}).
		Where("deal_id = ?", deal.ID).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	audits, err := ts.splitSvc.ListAuditsByDeal(ctx, deal.ID)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, domain.AuditActionReplaced, audits[0].Action)
	assert.Equal(t, domain.AuditActionCreated, audits[1].Action)
	assert.Equal(t, "10000", audits[0].Detail["pool"])
}

func TestReplaceSplits_RoutesUnclaimedToHouse(t *testing.T) {
	plan := config.DefaultCommissionPlan()
	plan.UnclaimedPolicy = config.UnclaimedHouse
	plan.HouseAgentCode = "house"

	ts := newTestStack(t, "file:split_house?mode=memory&cache=shared", plan)
	ctx := context.Background()

	house := ts.createAgent(t, "House", 130, nil)
	require.Equal(t, "house", house.Code)
	writer := ts.createAgent(t, "Solo Writer", 70, nil)

	carrier, err := ts.carrierSvc.CreateCarrier(ctx, carrierdomain.CreateCarrierRequest{
		Name:  "Beacon Mutual",
		Lines: []string{carrierdomain.LineLife},
	})
	require.NoError(t, err)

	deal := ts.createDeal(t, writer.ID, carrier.ID, 5000)
	splits := ts.writeSplits(t, deal, writer, domain.AuditActionCreated)

	require.Len(t, splits, 2)
	assert.Equal(t, domain.RoleAgent, splits[0].Role)
	assert.True(t, splits[0].Amount.Equal(decimal.NewFromInt(3500)))
	assert.Equal(t, domain.RoleHouse, splits[1].Role)
	assert.Equal(t, house.ID, splits[1].BeneficiaryID)
	assert.Equal(t, 60, splits[1].Percent)
	assert.True(t, splits[1].Amount.Equal(decimal.NewFromInt(3000)))
}

func TestVerifyDeal_FlagsTamperedBatch(t *testing.T) {
	ts := newTestStack(t, "file:split_verify?mode=memory&cache=shared", config.DefaultCommissionPlan())
	ctx := context.Background()

	writer := ts.createAgent(t, "Lena Park", 100, nil)
	carrier, err := ts.carrierSvc.CreateCarrier(ctx, carrierdomain.CreateCarrierRequest{
		Name:  "Atlas Life",
		Lines: []string{carrierdomain.LineLife},
	})
	require.NoError(t, err)

	deal := ts.createDeal(t, writer.ID, carrier.ID, 8000)
	splits := ts.writeSplits(t, deal, writer, domain.AuditActionCreated)
	require.NoError(t, ts.splitSvc.VerifyDeal(ctx, deal.ID))

	tampered := splits[0].Amount.Add(decimal.NewFromInt(50))
	require.NoError(t, ts.db.Model(&domain.CommissionSplit{}).
		Where("id = ?", splits[0].ID).
		Update("amount", tampered).Error)

	assert.ErrorIs(t, ts.splitSvc.VerifyDeal(ctx, deal.ID), domain.ErrInconsistentSplit)

	report, err := ts.splitSvc.SweepRange(ctx,
		time.Now().UTC().Add(-time.Hour),
		time.Now().UTC().Add(time.Hour),
	)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CheckedDeals)
	require.Len(t, report.InconsistentDeals, 1)
	assert.Equal(t, deal.ID, report.InconsistentDeals[0])
}

func TestVerifyDeal_UnknownDeal(t *testing.T) {
	ts := newTestStack(t, "file:split_verify_missing?mode=memory&cache=shared", config.DefaultCommissionPlan())
	err := ts.splitSvc.VerifyDeal(context.Background(), ts.node.Generate())
	assert.ErrorIs(t, err, domain.ErrDealNotFound)
}

func TestPreview_NeverPersists(t *testing.T) {
	ts := newTestStack(t, "file:split_preview?mode=memory&cache=shared", config.DefaultCommissionPlan())
	ctx := context.Background()

	owner := ts.createAgent(t, "Quinn Hale", 110, nil)
	writer := ts.createAgent(t, "Robin Frost", 80, &owner.ID)
	carrier, err := ts.carrierSvc.CreateCarrier(ctx, carrierdomain.CreateCarrierRequest{
		Name:  "Beacon Mutual",
		Lines: []string{carrierdomain.LineHealth},
	})
	require.NoError(t, err)

	resp, err := ts.splitSvc.Preview(ctx, domain.PreviewRequest{
		AgentID:       writer.ID.String(),
		CarrierID:     carrier.ID.String(),
		AnnualPremium: decimal.NewFromInt(12000),
		InsuranceType: carrierdomain.LineHealth,
	})
	require.NoError(t, err)

	assert.Equal(t, "recomputed_preview", resp.Variant)
	// Health pool halves the premium.
	assert.True(t, resp.Pool.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, 110, resp.TotalPercent)
	assert.Equal(t, 20, resp.UnclaimedPercent)
	require.Len(t, resp.Shares, 2)
	assert.Equal(t, "AGENT", resp.Shares[0].RoleLabel)
	assert.Equal(t, "OVERRIDE_LEVEL_1", resp.Shares[1].RoleLabel)

	var count int64
	require.NoError(t, ts.db.Model(&domain.CommissionSplit{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}
