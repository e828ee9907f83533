package engine

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_ThreeLevelChain(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	writer := Participant{ID: node.Generate(), CommissionLevel: 70}
	mid := Participant{ID: node.Generate(), CommissionLevel: 100}
	top := Participant{ID: node.Generate(), CommissionLevel: 130}

	res, err := Compute(Input{
		Premium:     decimal.NewFromInt(10000),
		Rate:        decimal.NewFromInt(1),
		Agent:       writer,
		AgentActive: true,
		UplineChain: []Participant{mid, top},
		Cap:         130,
	})
	require.NoError(t, err)

	require.Len(t, res.Shares, 3)
	assert.Equal(t, commissiondomain.RoleAgent, res.Shares[0].Role)
	assert.Equal(t, 70, res.Shares[0].Percent)
	assert.True(t, res.Shares[0].Amount.Equal(decimal.NewFromInt(7000)), "agent amount %s", res.Shares[0].Amount)

	assert.Equal(t, commissiondomain.RoleOverride, res.Shares[1].Role)
	assert.Equal(t, mid.ID, res.Shares[1].BeneficiaryID)
	assert.Equal(t, 30, res.Shares[1].Percent)
	assert.True(t, res.Shares[1].Amount.Equal(decimal.NewFromInt(3000)))

	assert.Equal(t, top.ID, res.Shares[2].BeneficiaryID)
	assert.Equal(t, 30, res.Shares[2].Percent)
	assert.True(t, res.Shares[2].Amount.Equal(decimal.NewFromInt(3000)))

	assert.Equal(t, 130, res.TotalPercent)
	assert.Equal(t, 0, res.UnclaimedPercent)
}

func TestCompute_WriterAtCap(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	owner := Participant{ID: node.Generate(), CommissionLevel: 130}
	upline := Participant{ID: node.Generate(), CommissionLevel: 130}

	res, err := Compute(Input{
		Premium:     decimal.NewFromInt(5000),
		Rate:        decimal.NewFromInt(1),
		Agent:       owner,
		AgentActive: true,
		UplineChain: []Participant{upline},
		Cap:         130,
	})
	require.NoError(t, err)

	require.Len(t, res.Shares, 1)
	assert.Equal(t, commissiondomain.RoleAgent, res.Shares[0].Role)
	assert.Equal(t, 130, res.Shares[0].Percent)
	assert.True(t, res.Shares[0].Amount.Equal(decimal.NewFromInt(6500)))
	assert.Equal(t, 0, res.UnclaimedPercent)
}

func TestCompute_NonMonotonicChainSkipsLowerAncestors(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	writer := Participant{ID: node.Generate(), CommissionLevel: 100}
	lower := Participant{ID: node.Generate(), CommissionLevel: 80}
	higher := Participant{ID: node.Generate(), CommissionLevel: 120}

	res, err := Compute(Input{
		Premium:     decimal.NewFromInt(1000),
		Rate:        decimal.NewFromInt(1),
		Agent:       writer,
		AgentActive: true,
		UplineChain: []Participant{lower, higher},
		Cap:         130,
	})
	require.NoError(t, err)

	require.Len(t, res.Shares, 2)
	assert.Equal(t, writer.ID, res.Shares[0].BeneficiaryID)
	assert.Equal(t, 100, res.Shares[0].Percent)
	// The level-80 ancestor is under the watermark and earns nothing;
	// the level-120 ancestor earns the 20-point increment.
	assert.Equal(t, higher.ID, res.Shares[1].BeneficiaryID)
	assert.Equal(t, 20, res.Shares[1].Percent)
	assert.Equal(t, 10, res.UnclaimedPercent)
}

func TestCompute_UnclaimedGoesToHouseWhenSet(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	writer := Participant{ID: node.Generate(), CommissionLevel: 70}
	house := Participant{ID: node.Generate(), CommissionLevel: 130}

	res, err := Compute(Input{
		Premium:     decimal.NewFromInt(10000),
		Rate:        decimal.NewFromFloat(0.5),
		Agent:       writer,
		AgentActive: true,
		Cap:         130,
		HouseAgent:  &house,
	})
	require.NoError(t, err)

	require.Len(t, res.Shares, 2)
	houseShare := res.Shares[1]
	assert.Equal(t, commissiondomain.RoleHouse, houseShare.Role)
	assert.Equal(t, house.ID, houseShare.BeneficiaryID)
	assert.Equal(t, 60, houseShare.Percent)
	// Pool is 5000; 60% of it lands with the house.
	assert.True(t, houseShare.Amount.Equal(decimal.NewFromInt(3000)), "house amount %s", houseShare.Amount)
	assert.Equal(t, 0, res.UnclaimedPercent)
}

func TestCompute_ForfeitLeavesRemainderUnclaimed(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	writer := Participant{ID: node.Generate(), CommissionLevel: 90}

	res, err := Compute(Input{
		Premium:     decimal.NewFromInt(2000),
		Rate:        decimal.NewFromInt(1),
		Agent:       writer,
		AgentActive: true,
		Cap:         130,
	})
	require.NoError(t, err)

	require.Len(t, res.Shares, 1)
	assert.Equal(t, 90, res.TotalPercent)
	assert.Equal(t, 40, res.UnclaimedPercent)
}

func TestCompute_TotalNeverExceedsCap(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	writer := Participant{ID: node.Generate(), CommissionLevel: 70}
	chain := []Participant{
		{ID: node.Generate(), CommissionLevel: 90},
		{ID: node.Generate(), CommissionLevel: 110},
		{ID: node.Generate(), CommissionLevel: 130},
		{ID: node.Generate(), CommissionLevel: 130},
	}

	res, err := Compute(Input{
		Premium:     decimal.NewFromInt(10000),
		Rate:        decimal.NewFromInt(1),
		Agent:       writer,
		AgentActive: true,
		UplineChain: chain,
		Cap:         130,
	})
	require.NoError(t, err)

	total := 0
	for _, share := range res.Shares {
		total += share.Percent
	}
	assert.Equal(t, 130, total)
	assert.Equal(t, 130, res.TotalPercent)
	// The second 130 ancestor arrives after the cap is hit.
	assert.Len(t, res.Shares, 4)
}

func TestCompute_RejectsBadInput(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	writer := Participant{ID: node.Generate(), CommissionLevel: 70}

	_, err = Compute(Input{
		Premium:     decimal.NewFromInt(1000),
		Rate:        decimal.NewFromInt(1),
		Agent:       writer,
		AgentActive: false,
	})
	assert.ErrorIs(t, err, commissiondomain.ErrInactiveAgent)

	_, err = Compute(Input{
		Premium:     decimal.Zero,
		Rate:        decimal.NewFromInt(1),
		Agent:       writer,
		AgentActive: true,
	})
	assert.ErrorIs(t, err, commissiondomain.ErrInvalidPremium)

	_, err = Compute(Input{
		Premium:     decimal.NewFromInt(1000),
		Rate:        decimal.Zero,
		Agent:       writer,
		AgentActive: true,
	})
	assert.ErrorIs(t, err, commissiondomain.ErrInvalidRate)
}
