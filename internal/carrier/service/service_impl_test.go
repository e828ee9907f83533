package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/repository"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newCarrierService(t *testing.T, dsn string) (domain.Service, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Carrier{}, &domain.CarrierRate{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Plan:  config.NewStaticPlanHolder(config.DefaultCommissionPlan()),
		Repo:  repository.Provide(),
	})
	return svc, node
}

func TestCarrierLifecycle(t *testing.T) {
	svc, _ := newCarrierService(t, "file:carrier_lifecycle?mode=memory&cache=shared")
	ctx := context.Background()

	carrier, err := svc.CreateCarrier(ctx, domain.CreateCarrierRequest{
		Name:  "Atlas Life",
		Lines: []string{"life"},
	})
	require.NoError(t, err)
	assert.Equal(t, "atlas-life", carrier.Code)
	assert.Equal(t, []string{domain.LineLife}, []string(carrier.Lines))

	// No lines means the carrier writes everything.
	broad, err := svc.CreateCarrier(ctx, domain.CreateCarrierRequest{Name: "Beacon Mutual"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{domain.LineLife, domain.LineHealth}, []string(broad.Lines))

	_, err = svc.CreateCarrier(ctx, domain.CreateCarrierRequest{Name: "Bad Lines", Lines: []string{"AUTO"}})
	assert.ErrorIs(t, err, domain.ErrInvalidLine)

	carriers, err := svc.ListCarriers(ctx)
	require.NoError(t, err)
	require.Len(t, carriers, 2)
	assert.Equal(t, "Atlas Life", carriers[0].Name)

	fetched, err := svc.GetCarrier(ctx, carrier.ID.String())
	require.NoError(t, err)
	assert.Equal(t, carrier.ID, fetched.ID)
}

func TestResolveRate_OverrideBeatsPlanDefault(t *testing.T) {
	svc, node := newCarrierService(t, "file:carrier_rates?mode=memory&cache=shared")
	ctx := context.Background()

	carrier, err := svc.CreateCarrier(ctx, domain.CreateCarrierRequest{
		Name:  "Atlas Life",
		Lines: []string{domain.LineLife, domain.LineHealth},
	})
	require.NoError(t, err)
	agentID := node.Generate()

	// Plan defaults until an override lands.
	effective, err := svc.ResolveRate(ctx, agentID, carrier.ID, domain.LineLife)
	require.NoError(t, err)
	assert.False(t, effective.Overridden)
	assert.True(t, effective.Rate.Equal(decimal.NewFromInt(1)))

	effective, err = svc.ResolveRate(ctx, agentID, carrier.ID, domain.LineHealth)
	require.NoError(t, err)
	assert.True(t, effective.Rate.Equal(decimal.NewFromFloat(0.5)))

	_, err = svc.ResolveRate(ctx, agentID, carrier.ID, "AUTO")
	assert.ErrorIs(t, err, domain.ErrUnknownInsuranceType)

	_, err = svc.UpsertRate(ctx, domain.UpsertRateRequest{
		AgentID:     agentID.String(),
		CarrierID:   carrier.ID.String(),
		AgentRate:   decimal.NewFromFloat(0.85),
		ManagerRate: decimal.NewFromFloat(0.1),
	})
	require.NoError(t, err)

	effective, err = svc.ResolveRate(ctx, agentID, carrier.ID, domain.LineLife)
	require.NoError(t, err)
	assert.True(t, effective.Overridden)
	assert.True(t, effective.Rate.Equal(decimal.NewFromFloat(0.85)))

	// Writing twice updates in place rather than stacking rows.
	_, err = svc.UpsertRate(ctx, domain.UpsertRateRequest{
		AgentID:     agentID.String(),
		CarrierID:   carrier.ID.String(),
		AgentRate:   decimal.NewFromFloat(0.9),
		ManagerRate: decimal.NewFromFloat(0.1),
	})
	require.NoError(t, err)

	rates, err := svc.ListRates(ctx, agentID.String())
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.True(t, rates[0].AgentRate.Equal(decimal.NewFromFloat(0.9)))

	_, err = svc.UpsertRate(ctx, domain.UpsertRateRequest{
		AgentID:   agentID.String(),
		CarrierID: carrier.ID.String(),
		AgentRate: decimal.NewFromInt(3),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRate)
}
