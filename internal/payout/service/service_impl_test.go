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
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/clock"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	dealdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/domain"
	downlineservice "github.com/landonhauser7-sys/Everguardio-sub000/internal/downline/service"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/payout/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Wednesday, so week normalization has something to rewind.
var testNow = time.Date(2026, time.August, 26, 10, 0, 0, 0, time.UTC)

var testWeek = domain.WeekStart(testNow)

type payoutFixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	agentSvc agentdomain.Service
	svc      domain.Service
}

func newPayoutFixture(t *testing.T, dsn string) payoutFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&agentdomain.Agent{},
		&dealdomain.Deal{},
		&commissiondomain.CommissionSplit{},
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
	downlineSvc := downlineservice.New(downlineservice.Params{
		DB:        db,
		Log:       zap.NewNop(),
		Plan:      holder,
		AgentRepo: repo,
	})
	svc := New(Params{
		DB:          db,
		Log:         zap.NewNop(),
		Clock:       clock.NewFakeClock(testNow),
		AgentRepo:   repo,
		DownlineSvc: downlineSvc,
	})
	return payoutFixture{db: db, node: node, agentSvc: agentSvc, svc: svc}
}

func (f payoutFixture) addAgent(t *testing.T, name string, level int, upline *snowflake.ID) agentdomain.Agent {
	t.Helper()
	agent, err := f.agentSvc.Create(context.Background(), agentdomain.CreateAgentRequest{
		Name:            name,
		CommissionLevel: level,
		UplineID:        upline,
	})
	require.NoError(t, err)
	return agent
}

func (f payoutFixture) addDeal(t *testing.T, agentID snowflake.ID, premium int64, effective time.Time) dealdomain.Deal {
	t.Helper()
	deal := dealdomain.Deal{
		ID:              f.node.Generate(),
		AgentID:         agentID,
		CarrierID:       f.node.Generate(),
		AnnualPremium:   decimal.NewFromInt(premium),
		InsuranceType:   "LIFE",
		ApplicationDate: effective,
		EffectiveDate:   &effective,
		CreatedAt:       testNow,
		UpdatedAt:       testNow,
	}
	require.NoError(t, f.db.Create(&deal).Error)
	return deal
}

func (f payoutFixture) addSplit(t *testing.T, dealID, beneficiaryID snowflake.ID, role commissiondomain.Role, amount int64) {
	t.Helper()
	split := commissiondomain.CommissionSplit{
		ID:            f.node.Generate(),
		DealID:        dealID,
		BeneficiaryID: beneficiaryID,
		Role:          role,
		Percent:       10,
		Amount:        decimal.NewFromInt(amount),
		CreatedAt:     testNow,
	}
	require.NoError(t, f.db.Create(&split).Error)
}

func TestPersonalPayouts_ZeroFilledWeek(t *testing.T) {
	f := newPayoutFixture(t, "file:payout_personal?mode=memory&cache=shared")
	ctx := context.Background()

	owner := f.addAgent(t, "Dana Whitfield", 110, nil)
	producer := f.addAgent(t, "Miles Okafor", 70, &owner.ID)

	tuesday := testWeek.AddDate(0, 0, 1)
	thursday := testWeek.AddDate(0, 0, 3)
	ownDeal := f.addDeal(t, owner.ID, 6000, tuesday)
	teamDeal := f.addDeal(t, producer.ID, 4000, thursday)
	staleDeal := f.addDeal(t, producer.ID, 9000, testWeek.AddDate(0, 0, -2))

	f.addSplit(t, ownDeal.ID, owner.ID, commissiondomain.RoleAgent, 6600)
	f.addSplit(t, teamDeal.ID, producer.ID, commissiondomain.RoleAgent, 2800)
	f.addSplit(t, teamDeal.ID, owner.ID, commissiondomain.RoleOverride, 1600)
	// Prior-week rows stay out of this week's report.
	f.addSplit(t, staleDeal.ID, owner.ID, commissiondomain.RoleOverride, 3600)

	// Zero week start resolves to the clock's current week.
	report, err := f.svc.PersonalPayouts(ctx, owner.ID, time.Time{})
	require.NoError(t, err)

	assert.Equal(t, testWeek, report.WeekStart)
	assert.True(t, report.PersonalCommission.Equal(decimal.NewFromInt(6600)))
	assert.True(t, report.OverrideEarnings.Equal(decimal.NewFromInt(1600)))

	require.Len(t, report.DailyBreakdown, 7)
	assert.Equal(t, "Monday", report.DailyBreakdown[0].Day)
	assert.Equal(t, "Sunday", report.DailyBreakdown[6].Day)
	for i, entry := range report.DailyBreakdown {
		switch i {
		case 1:
			assert.True(t, entry.Commission.Equal(decimal.NewFromInt(6600)))
			assert.True(t, entry.Override.Equal(decimal.Zero))
		case 3:
			assert.True(t, entry.Commission.Equal(decimal.Zero))
			assert.True(t, entry.Override.Equal(decimal.NewFromInt(1600)))
		default:
			assert.True(t, entry.Commission.Equal(decimal.Zero))
			assert.True(t, entry.Override.Equal(decimal.Zero))
		}
	}
}

func TestPersonalPayouts_UnknownAgent(t *testing.T) {
	f := newPayoutFixture(t, "file:payout_missing?mode=memory&cache=shared")
	_, err := f.svc.PersonalPayouts(context.Background(), f.node.Generate(), testWeek)
	assert.ErrorIs(t, err, agentdomain.ErrNotFound)
}

func TestTeamPayouts_AggregatesDownlineWeek(t *testing.T) {
	f := newPayoutFixture(t, "file:payout_team?mode=memory&cache=shared")
	ctx := context.Background()

	manager := f.addAgent(t, "Dana Whitfield", 110, nil)
	high := f.addAgent(t, "Ruben Castillo", 100, &manager.ID)
	low := f.addAgent(t, "Miles Okafor", 70, &high.ID)

	dealHigh := f.addDeal(t, high.ID, 9000, testWeek.AddDate(0, 0, 2))
	dealLow := f.addDeal(t, low.ID, 3000, testWeek.AddDate(0, 0, 4))
	f.addDeal(t, low.ID, 7000, testWeek.AddDate(0, 0, 9))

	f.addSplit(t, dealHigh.ID, manager.ID, commissiondomain.RoleOverride, 900)
	f.addSplit(t, dealLow.ID, manager.ID, commissiondomain.RoleOverride, 1200)
	// The writer's own cut never counts toward the manager's override.
	f.addSplit(t, dealLow.ID, low.ID, commissiondomain.RoleAgent, 2100)

	report, err := f.svc.TeamPayouts(ctx, manager.ID, testWeek)
	require.NoError(t, err)

	assert.Equal(t, manager.ID, report.ManagerID)
	assert.False(t, report.Truncated)
	assert.True(t, report.TeamTotals.Production.Equal(decimal.NewFromInt(12000)))
	assert.Equal(t, 2, report.TeamTotals.Deals)
	assert.True(t, report.TeamTotals.OverrideEarned.Equal(decimal.NewFromInt(2100)))

	require.Len(t, report.PerAgentBreakdown, 2)
	assert.Equal(t, high.ID, report.PerAgentBreakdown[0].AgentID)
	assert.True(t, report.PerAgentBreakdown[0].Production.Equal(decimal.NewFromInt(9000)))
	assert.True(t, report.PerAgentBreakdown[0].OverrideEarned.Equal(decimal.NewFromInt(900)))
	assert.Equal(t, low.ID, report.PerAgentBreakdown[1].AgentID)
	assert.Equal(t, 1, report.PerAgentBreakdown[1].Deals)
}

func TestTeamPayouts_UnknownManager(t *testing.T) {
	f := newPayoutFixture(t, "file:payout_team_missing?mode=memory&cache=shared")
	_, err := f.svc.TeamPayouts(context.Background(), f.node.Generate(), testWeek)
	assert.ErrorIs(t, err, agentdomain.ErrNotFound)
}

func TestCompanyRollup_ByRole(t *testing.T) {
	f := newPayoutFixture(t, "file:payout_company?mode=memory&cache=shared")
	ctx := context.Background()

	owner := f.addAgent(t, "Dana Whitfield", 130, nil)
	writer := f.addAgent(t, "Miles Okafor", 70, &owner.ID)

	dealA := f.addDeal(t, writer.ID, 10000, testWeek)
	dealB := f.addDeal(t, writer.ID, 5000, testWeek.AddDate(0, 0, -10))

	f.addSplit(t, dealA.ID, writer.ID, commissiondomain.RoleAgent, 7000)
	f.addSplit(t, dealA.ID, owner.ID, commissiondomain.RoleOverride, 6000)
	f.addSplit(t, dealB.ID, writer.ID, commissiondomain.RoleAgent, 3500)

	rollup, err := f.svc.CompanyRollup(ctx, domain.DateRange{})
	require.NoError(t, err)
	assert.True(t, rollup.Production.Equal(decimal.NewFromInt(15000)))
	assert.Equal(t, 2, rollup.Deals)
	assert.True(t, rollup.ByRole["AGENT"].Amount.Equal(decimal.NewFromInt(10500)))
	assert.Equal(t, 2, rollup.ByRole["AGENT"].Rows)
	assert.True(t, rollup.ByRole["OVERRIDE"].Amount.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, 1, rollup.ByRole["OVERRIDE"].Rows)

	windowed, err := f.svc.CompanyRollup(ctx, domain.DateRange{From: &testWeek})
	require.NoError(t, err)
	assert.Equal(t, 1, windowed.Deals)
	assert.True(t, windowed.ByRole["AGENT"].Amount.Equal(decimal.NewFromInt(7000)))
}

func TestProductionRank_TieBreaksOnID(t *testing.T) {
	f := newPayoutFixture(t, "file:payout_rank?mode=memory&cache=shared")
	ctx := context.Background()

	leader := f.addAgent(t, "Ruben Castillo", 100, nil)
	first := f.addAgent(t, "Priya Raman", 100, nil)
	second := f.addAgent(t, "Miles Okafor", 100, nil)
	idle := f.addAgent(t, "Quinn Hale", 100, nil)
	benched, err := f.agentSvc.SetStatus(ctx, agentdomain.SetStatusRequest{
		ID:     f.addAgent(t, "Lena Park", 100, nil).ID.String(),
		Status: agentdomain.StatusInactive,
	})
	require.NoError(t, err)

	f.addDeal(t, leader.ID, 9000, testWeek)
	f.addDeal(t, first.ID, 5000, testWeek)
	f.addDeal(t, second.ID, 5000, testWeek)
	// Inactive writers never hold a leaderboard slot.
	f.addDeal(t, benched.ID, 20000, testWeek)

	rank, err := f.svc.ProductionRank(ctx, leader.ID, domain.DateRange{})
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, 1, *rank)

	rank, err = f.svc.ProductionRank(ctx, first.ID, domain.DateRange{})
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, 2, *rank)

	// Equal production, later id: the earlier agent wins the tie.
	rank, err = f.svc.ProductionRank(ctx, second.ID, domain.DateRange{})
	require.NoError(t, err)
	require.NotNil(t, rank)
	assert.Equal(t, 3, *rank)

	rank, err = f.svc.ProductionRank(ctx, idle.ID, domain.DateRange{})
	require.NoError(t, err)
	assert.Nil(t, rank)

	rank, err = f.svc.ProductionRank(ctx, benched.ID, domain.DateRange{})
	require.NoError(t, err)
	assert.Nil(t, rank)
}
