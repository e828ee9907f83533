package engine

import (
	"github.com/bwmarrin/snowflake"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/shopspring/decimal"
)

// Participant is an agent as seen by the split walk: identity and the
// commission level snapshotted for this computation.
type Participant struct {
	ID              snowflake.ID
	CommissionLevel int
}

// Input describes one split computation. UplineChain is the writer's
// ancestors nearest-first, already capped by the caller.
type Input struct {
	Premium     decimal.Decimal
	Rate        decimal.Decimal
	Agent       Participant
	AgentActive bool
	UplineChain []Participant

	// Cap is the ownership ceiling (percent of pool, normally 130).
	Cap int

	// HouseAgent receives the unclaimed remainder when set; when nil
	// the remainder is forfeited.
	HouseAgent *Participant
}

// Share is one emitted slice of the pool.
type Share struct {
	BeneficiaryID snowflake.ID
	Role          commissiondomain.Role
	Depth         int
	Percent       int
	Amount        decimal.Decimal
}

// Result is a full split of one deal's pool.
//
// TotalPercent can exceed 100: every beneficiary is paid a percentage
// of the commission pool, not a slice of the premium, so a fully
// claimed pool pays out Cap percent (130) of premium x rate in total.
type Result struct {
	Pool             decimal.Decimal
	Shares           []Share
	TotalPercent     int
	UnclaimedPercent int
}

var hundred = decimal.NewFromInt(100)

// Compute splits a deal's commission pool across the writing agent and
// its upline chain.
//
// The agent takes its own level. Walking the chain nearest-first, each
// ancestor earns the increment of its level over the highest level seen
// so far, clipped to the cap; an ancestor at or below that watermark is
// skipped (level non-monotonicity across a chain is legal). The walk
// stops at the cap, so an agent already at Cap keeps the whole pool
// with no overrides.
func Compute(in Input) (Result, error) {
	if !in.AgentActive {
		return Result{}, commissiondomain.ErrInactiveAgent
	}
	if !in.Premium.IsPositive() {
		return Result{}, commissiondomain.ErrInvalidPremium
	}
	if !in.Rate.IsPositive() {
		return Result{}, commissiondomain.ErrInvalidRate
	}
	ceiling := in.Cap
	if ceiling <= 0 {
		ceiling = 130
	}

	pool := in.Premium.Mul(in.Rate)

	shares := make([]Share, 0, len(in.UplineChain)+2)

	agentPercent := in.Agent.CommissionLevel
	if agentPercent > ceiling {
		agentPercent = ceiling
	}
	shares = append(shares, Share{
		BeneficiaryID: in.Agent.ID,
		Role:          commissiondomain.RoleAgent,
		Depth:         0,
		Percent:       agentPercent,
	})

	prev := agentPercent
	for i, ancestor := range in.UplineChain {
		if prev >= ceiling {
			break
		}
		increment := ancestor.CommissionLevel - prev
		if remaining := ceiling - prev; increment > remaining {
			increment = remaining
		}
		if increment <= 0 {
			continue
		}
		shares = append(shares, Share{
			BeneficiaryID: ancestor.ID,
			Role:          commissiondomain.RoleOverride,
			Depth:         i + 1,
			Percent:       increment,
		})
		prev += increment
	}

	unclaimed := ceiling - prev
	if unclaimed > 0 && in.HouseAgent != nil {
		shares = append(shares, Share{
			BeneficiaryID: in.HouseAgent.ID,
			Role:          commissiondomain.RoleHouse,
			Depth:         len(in.UplineChain) + 1,
			Percent:       unclaimed,
		})
		prev = ceiling
		unclaimed = 0
	}

	total := 0
	for i := range shares {
		shares[i].Amount = pool.
			Mul(decimal.NewFromInt(int64(shares[i].Percent))).
			Div(hundred).
			Round(2)
		total += shares[i].Percent
	}

	return Result{
		Pool:             pool,
		Shares:           shares,
		TotalPercent:     total,
		UnclaimedPercent: unclaimed,
	}, nil
}
