package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/repository"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T, dsn string) (domain.Service, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Agent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Plan:  config.NewStaticPlanHolder(config.DefaultCommissionPlan()),
		Repo:  repository.Provide(),
	})
	return svc, db, node
}

func TestAgentLifecycle(t *testing.T) {
	svc, _, _ := newTestService(t, "file:agent_lifecycle?mode=memory&cache=shared")
	ctx := context.Background()

	owner, err := svc.Create(ctx, domain.CreateAgentRequest{
		Name:            "Avery Stone",
		CommissionLevel: 130,
	})
	require.NoError(t, err)
	assert.Equal(t, "avery-stone", owner.Code)
	assert.Equal(t, domain.StatusActive, owner.Status)

	producer, err := svc.Create(ctx, domain.CreateAgentRequest{
		Name:            "Jordan Wells",
		CommissionLevel: 70,
		UplineID:        &owner.ID,
	})
	require.NoError(t, err)
	require.NotNil(t, producer.UplineID)
	assert.Equal(t, owner.ID, *producer.UplineID)

	updated, err := svc.SetLevel(ctx, domain.SetLevelRequest{ID: producer.ID.String(), Level: 80})
	require.NoError(t, err)
	assert.Equal(t, 80, updated.CommissionLevel)

	_, err = svc.SetLevel(ctx, domain.SetLevelRequest{ID: producer.ID.String(), Level: 75})
	assert.ErrorIs(t, err, domain.ErrInvalidLevel)

	suspended, err := svc.SetStatus(ctx, domain.SetStatusRequest{ID: producer.ID.String(), Status: domain.StatusOnLeave})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOnLeave, suspended.Status)
	assert.False(t, suspended.IsActive())
}

func TestAgentCreate_DuplicateNameGetsUniqueCode(t *testing.T) {
	svc, _, _ := newTestService(t, "file:agent_dup_code?mode=memory&cache=shared")
	ctx := context.Background()

	first, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Sam Tate", CommissionLevel: 70})
	require.NoError(t, err)
	second, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Sam Tate", CommissionLevel: 70})
	require.NoError(t, err)

	assert.Equal(t, "sam-tate", first.Code)
	assert.NotEqual(t, first.Code, second.Code)
	assert.Contains(t, second.Code, "sam-tate-")
}

func TestAssignUpline_RejectsCycles(t *testing.T) {
	svc, _, _ := newTestService(t, "file:agent_cycles?mode=memory&cache=shared")
	ctx := context.Background()

	top, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Top", CommissionLevel: 130})
	require.NoError(t, err)
	mid, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Mid", CommissionLevel: 100, UplineID: &top.ID})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Leaf", CommissionLevel: 70, UplineID: &mid.ID})
	require.NoError(t, err)

	// Self-reference.
	_, err = svc.AssignUpline(ctx, domain.AssignUplineRequest{ID: mid.ID.String(), UplineID: mid.ID.String()})
	assert.ErrorIs(t, err, domain.ErrCycleDetected)

	// Re-parenting under a descendant.
	_, err = svc.AssignUpline(ctx, domain.AssignUplineRequest{ID: top.ID.String(), UplineID: leaf.ID.String()})
	assert.ErrorIs(t, err, domain.ErrCycleDetected)

	// Detaching to a root is legal.
	detached, err := svc.AssignUpline(ctx, domain.AssignUplineRequest{ID: leaf.ID.String(), UplineID: ""})
	require.NoError(t, err)
	assert.Nil(t, detached.UplineID)
}

func TestUplineChain_NearestFirst(t *testing.T) {
	svc, _, _ := newTestService(t, "file:agent_chain?mode=memory&cache=shared")
	ctx := context.Background()

	top, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Chain Top", CommissionLevel: 130})
	require.NoError(t, err)
	mid, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Chain Mid", CommissionLevel: 100, UplineID: &top.ID})
	require.NoError(t, err)
	leaf, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Chain Leaf", CommissionLevel: 70, UplineID: &mid.ID})
	require.NoError(t, err)

	chain, err := svc.UplineChain(ctx, leaf.ID, 16)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	assert.Equal(t, mid.ID, chain[0].ID)
	assert.Equal(t, top.ID, chain[1].ID)

	// Depth cap truncates the walk without error.
	short, err := svc.UplineChain(ctx, leaf.ID, 1)
	require.NoError(t, err)
	require.Len(t, short, 1)
	assert.Equal(t, mid.ID, short[0].ID)
}

func TestUplineChain_CorruptedStoreReportsCycle(t *testing.T) {
	svc, db, _ := newTestService(t, "file:agent_corrupt?mode=memory&cache=shared")
	ctx := context.Background()

	a, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Cycle A", CommissionLevel: 100})
	require.NoError(t, err)
	b, err := svc.Create(ctx, domain.CreateAgentRequest{Name: "Cycle B", CommissionLevel: 110, UplineID: &a.ID})
	require.NoError(t, err)

	// Force a back-edge directly, bypassing the service guard.
	require.NoError(t, db.Model(&domain.Agent{}).
		Where("id = ?", a.ID).
		Update("upline_id", b.ID).Error)

	_, err = svc.UplineChain(ctx, b.ID, 16)
	assert.ErrorIs(t, err, domain.ErrCycleDetected)
}
