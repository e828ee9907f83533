package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	agentrepo "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/repository"
	agentservice "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/service"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	carrierrepo "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/repository"
	carrierservice "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/service"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	commissionservice "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/service"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type dealFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	agentSvc   agentdomain.Service
	carrierSvc carrierdomain.Service
	splitSvc   commissiondomain.Service
	svc        domain.Service
}

func newDealFixture(t *testing.T, dsn string) dealFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&agentdomain.Agent{},
		&carrierdomain.Carrier{},
		&carrierdomain.CarrierRate{},
		&domain.Deal{},
		&commissiondomain.CommissionSplit{},
		&commissiondomain.SplitAudit{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := config.NewStaticPlanHolder(config.DefaultCommissionPlan())
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
	splitSvc := commissionservice.New(commissionservice.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Plan:       holder,
		AgentRepo:  repo,
		AgentSvc:   agentSvc,
		CarrierSvc: carrierSvc,
	})
	svc := New(Params{
		DB:            db,
		Log:           zap.NewNop(),
		GenID:         node,
		Plan:          holder,
		AgentSvc:      agentSvc,
		AgentRepo:     repo,
		CarrierSvc:    carrierSvc,
		CommissionSvc: splitSvc,
	})
	return dealFixture{db: db, node: node, agentSvc: agentSvc, carrierSvc: carrierSvc, splitSvc: splitSvc, svc: svc}
}

func (f dealFixture) seedHierarchy(t *testing.T) (owner, manager, writer agentdomain.Agent, carrier carrierdomain.Carrier) {
	t.Helper()
	ctx := context.Background()

	owner, err := f.agentSvc.Create(ctx, agentdomain.CreateAgentRequest{Name: "Rhea Caldwell", CommissionLevel: 130})
	require.NoError(t, err)
	manager, err = f.agentSvc.Create(ctx, agentdomain.CreateAgentRequest{Name: "Theo Branch", CommissionLevel: 100, UplineID: &owner.ID})
	require.NoError(t, err)
	writer, err = f.agentSvc.Create(ctx, agentdomain.CreateAgentRequest{Name: "Imani Cole", CommissionLevel: 70, UplineID: &manager.ID})
	require.NoError(t, err)

	carrier, err = f.carrierSvc.CreateCarrier(ctx, carrierdomain.CreateCarrierRequest{
		Name:  "Atlas Life",
		Lines: []string{carrierdomain.LineLife, carrierdomain.LineHealth},
	})
	require.NoError(t, err)
	return owner, manager, writer, carrier
}

func TestDealCreate_SnapshotsLevelsAtWriteTime(t *testing.T) {
	f := newDealFixture(t, "file:deal_snapshot?mode=memory&cache=shared")
	ctx := context.Background()

	_, manager, writer, carrier := f.seedHierarchy(t)

	created, err := f.svc.Create(ctx, domain.CreateDealRequest{
		AgentID:       writer.ID.String(),
		CarrierID:     carrier.ID.String(),
		AnnualPremium: decimal.NewFromInt(10000),
		InsuranceType: "life",
	})
	require.NoError(t, err)
	assert.Equal(t, "LIFE", created.Deal.InsuranceType)
	require.Len(t, created.Splits, 3)
	assert.True(t, created.Splits[0].Amount.Equal(decimal.NewFromInt(7000)))

	// Promotions after the fact must not move already-written money.
	_, err = f.agentSvc.SetLevel(ctx, agentdomain.SetLevelRequest{ID: manager.ID.String(), Level: 120})
	require.NoError(t, err)

	fetched, err := f.svc.GetByID(ctx, created.Deal.ID.String())
	require.NoError(t, err)
	require.Len(t, fetched.Splits, 3)
	assert.Equal(t, 30, fetched.Splits[1].Percent)

	// An amendment re-splits from the levels now in effect.
	newPremium := decimal.NewFromInt(20000)
	amended, err := f.svc.Amend(ctx, domain.AmendDealRequest{
		ID:            created.Deal.ID.String(),
		AnnualPremium: &newPremium,
	})
	require.NoError(t, err)
	require.Len(t, amended.Splits, 3)
	assert.Equal(t, 50, amended.Splits[1].Percent)
	assert.True(t, amended.Splits[1].Amount.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, 10, amended.Splits[2].Percent)

	audits, err := f.splitSvc.ListAuditsByDeal(ctx, created.Deal.ID)
	require.NoError(t, err)
	require.Len(t, audits, 2)
	assert.Equal(t, commissiondomain.AuditActionReplaced, audits[0].Action)
}

func TestDealCreate_RejectsBadInput(t *testing.T) {
	f := newDealFixture(t, "file:deal_reject?mode=memory&cache=shared")
	ctx := context.Background()

	_, _, writer, carrier := f.seedHierarchy(t)

	_, err := f.svc.Create(ctx, domain.CreateDealRequest{
		AgentID:       writer.ID.String(),
		CarrierID:     carrier.ID.String(),
		AnnualPremium: decimal.NewFromInt(-100),
		InsuranceType: "LIFE",
	})
	assert.ErrorIs(t, err, commissiondomain.ErrInvalidPremium)

	_, err = f.svc.Create(ctx, domain.CreateDealRequest{
		AgentID:       writer.ID.String(),
		CarrierID:     carrier.ID.String(),
		AnnualPremium: decimal.NewFromInt(100),
		InsuranceType: "AUTO",
	})
	assert.ErrorIs(t, err, commissiondomain.ErrUnknownInsuranceType)

	_, err = f.agentSvc.SetStatus(ctx, agentdomain.SetStatusRequest{
		ID:     writer.ID.String(),
		Status: agentdomain.StatusInactive,
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, domain.CreateDealRequest{
		AgentID:       writer.ID.String(),
		CarrierID:     carrier.ID.String(),
		AnnualPremium: decimal.NewFromInt(100),
		InsuranceType: "LIFE",
	})
	assert.ErrorIs(t, err, commissiondomain.ErrInactiveAgent)

	// Nothing may have leaked into the store.
	var deals int64
	require.NoError(t, f.db.Model(&domain.Deal{}).Count(&deals).Error)
	assert.Equal(t, int64(0), deals)
}

func TestDealAmend_RequiresAChange(t *testing.T) {
	f := newDealFixture(t, "file:deal_noop?mode=memory&cache=shared")
	ctx := context.Background()

	_, _, writer, carrier := f.seedHierarchy(t)
	created, err := f.svc.Create(ctx, domain.CreateDealRequest{
		AgentID:       writer.ID.String(),
		CarrierID:     carrier.ID.String(),
		AnnualPremium: decimal.NewFromInt(5000),
		InsuranceType: "LIFE",
	})
	require.NoError(t, err)

	_, err = f.svc.Amend(ctx, domain.AmendDealRequest{ID: created.Deal.ID.String()})
	assert.ErrorIs(t, err, domain.ErrNothingToAmend)
}

func TestDealDelete_RemovesSplitBatch(t *testing.T) {
	f := newDealFixture(t, "file:deal_delete?mode=memory&cache=shared")
	ctx := context.Background()

	_, _, writer, carrier := f.seedHierarchy(t)
	created, err := f.svc.Create(ctx, domain.CreateDealRequest{
		AgentID:       writer.ID.String(),
		CarrierID:     carrier.ID.String(),
		AnnualPremium: decimal.NewFromInt(5000),
		InsuranceType: "LIFE",
	})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.Deal.ID.String()))

	_, err = f.svc.GetByID(ctx, created.Deal.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	var splits int64
	require.NoError(t, f.db.Model(&commissiondomain.CommissionSplit{}).
		Where("deal_id = ?", created.Deal.ID).Count(&splits).Error)
	assert.Equal(t, int64(0), splits)

	audits, err := f.splitSvc.ListAuditsByDeal(ctx, created.Deal.ID)
	require.NoError(t, err)
	require.NotEmpty(t, audits)
	assert.Equal(t, commissiondomain.AuditActionDeleted, audits[0].Action)
}
