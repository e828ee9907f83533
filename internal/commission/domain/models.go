package domain

import (
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Role of a beneficiary inside one deal's split set.
type Role string

const (
	RoleAgent    Role = "AGENT"
	RoleOverride Role = "OVERRIDE"
	RoleHouse    Role = "HOUSE"
)

// CommissionSplit is one beneficiary's share of a deal's commission
// pool. Rows are written once, from the commission levels in effect at
// deal creation; later level changes never rewrite them.
type CommissionSplit struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	DealID         snowflake.ID    `gorm:"column:deal_id;not null;uniqueIndex:idx_splits_deal_beneficiary;index" json:"deal_id"`
	BeneficiaryID  snowflake.ID    `gorm:"column:beneficiary_id;not null;uniqueIndex:idx_splits_deal_beneficiary;index" json:"beneficiary_id"`
	Role           Role            `gorm:"not null" json:"role"`
	HierarchyDepth int             `gorm:"column:hierarchy_depth;not null" json:"hierarchy_depth"`
	Percent        int             `gorm:"not null" json:"percent"`
	Amount         decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (CommissionSplit) TableName() string { return "commission_splits" }

// SplitAudit records every split batch write, in the same transaction
// as the batch itself. Detail carries the pool and the per-beneficiary
// shares as written.
type SplitAudit struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	DealID    snowflake.ID      `gorm:"column:deal_id;not null;index" json:"deal_id"`
	Action    string            `gorm:"not null" json:"action"`
	Detail    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"detail"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SplitAudit) TableName() string { return "split_audits" }

// RoleLabel renders the generalized hierarchy role: AGENT for the
// writer, OVERRIDE_LEVEL_k for an ancestor k hops up, HOUSE for the
// routed unclaimed share.
func (s CommissionSplit) RoleLabel() string {
	switch s.Role {
	case RoleOverride:
		return fmt.Sprintf("OVERRIDE_LEVEL_%d", s.HierarchyDepth)
	default:
		return string(s.Role)
	}
}
