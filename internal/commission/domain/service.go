package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// DealSnapshot is the slice of a deal the engine needs; the deal
// service owns the full record.
type DealSnapshot struct {
	ID            snowflake.ID
	AgentID       snowflake.ID
	CarrierID     snowflake.ID
	AnnualPremium decimal.Decimal
	InsuranceType string
}

// Audit actions recorded alongside every split batch write.
const (
	AuditActionCreated  = "created"
	AuditActionReplaced = "replaced"
	AuditActionDeleted  = "deleted"
)

// PreviewRequest asks for a what-if split from CURRENT levels. The
// result is ephemeral and never persisted; reporting always reads the
// rows written at deal time.
type PreviewRequest struct {
	AgentID       string
	CarrierID     string
	AnnualPremium decimal.Decimal
	InsuranceType string
}

type PreviewShare struct {
	BeneficiaryID snowflake.ID    `json:"beneficiary_id"`
	Name          string          `json:"name"`
	Role          Role            `json:"role"`
	RoleLabel     string          `json:"role_label"`
	Depth         int             `json:"depth"`
	Percent       int             `json:"percent"`
	Amount        decimal.Decimal `json:"amount"`
}

type PreviewResponse struct {
	Variant          string          `json:"variant"` // always "recomputed_preview"
	Pool             decimal.Decimal `json:"pool"`
	Rate             decimal.Decimal `json:"rate"`
	RateOverridden   bool            `json:"rate_overridden"`
	TotalPercent     int             `json:"total_percent"`
	UnclaimedPercent int             `json:"unclaimed_percent"`
	Shares           []PreviewShare  `json:"shares"`
}

// SweepReport summarizes a reconciliation pass over a date range.
type SweepReport struct {
	CheckedDeals      int            `json:"checked_deals"`
	InconsistentDeals []snowflake.ID `json:"inconsistent_deals"`
}

type Service interface {
	// ReplaceSplits computes and writes the split batch for a deal
	// inside the caller's transaction: delete-then-insert keyed by
	// deal id, with an audit row in the same transaction. The chain
	// is the agent's ancestors nearest-first, already depth-capped.
	ReplaceSplits(ctx context.Context, tx *gorm.DB, deal DealSnapshot, agent agentdomain.Agent, chain []agentdomain.Agent, rate decimal.Decimal, action string) ([]CommissionSplit, error)

	// DeleteSplits removes a deal's split batch (deal deletion path).
	DeleteSplits(ctx context.Context, tx *gorm.DB, dealID snowflake.ID) error

	ListByDeal(ctx context.Context, dealID snowflake.ID) ([]CommissionSplit, error)

	// ListAuditsByDeal returns the split write history for a deal,
	// newest first.
	ListAuditsByDeal(ctx context.Context, dealID snowflake.ID) ([]SplitAudit, error)

	Preview(ctx context.Context, req PreviewRequest) (PreviewResponse, error)

	// VerifyDeal re-derives the pool and checks the persisted batch
	// within a cents-per-row tolerance.
	VerifyDeal(ctx context.Context, dealID snowflake.ID) error

	// SweepRange verifies every deal created in the range.
	SweepRange(ctx context.Context, from, to time.Time) (SweepReport, error)
}

var (
	ErrInactiveAgent        = errors.New("inactive_agent")
	ErrInvalidPremium       = errors.New("invalid_premium")
	ErrUnknownInsuranceType = errors.New("unknown_insurance_type")
	ErrInvalidRate          = errors.New("invalid_rate")
	ErrInconsistentSplit    = errors.New("inconsistent_split")
	ErrDealNotFound         = errors.New("deal_not_found")
)
