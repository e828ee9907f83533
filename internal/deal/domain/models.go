package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Deal is a written piece of business. Premium and insurance type are
// immutable once commission-split; amendments go through the re-split
// path which rewrites the split batch atomically.
type Deal struct {
	ID              snowflake.ID    `gorm:"primaryKey" json:"id"`
	AgentID         snowflake.ID    `gorm:"column:agent_id;not null;index" json:"agent_id"`
	CarrierID       snowflake.ID    `gorm:"column:carrier_id;not null;index" json:"carrier_id"`
	AnnualPremium   decimal.Decimal `gorm:"column:annual_premium;type:numeric(20,2);not null" json:"annual_premium"`
	InsuranceType   string          `gorm:"column:insurance_type;not null" json:"insurance_type"`
	ApplicationDate time.Time       `gorm:"column:application_date;not null" json:"application_date"`
	// EffectiveDate is the deposit date reporting buckets by; when
	// null, CreatedAt is used instead.
	EffectiveDate *time.Time `gorm:"column:effective_date" json:"effective_date,omitempty"`
	CreatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Deal) TableName() string { return "deals" }

// BucketDate is the date the deal lands in for reporting windows.
func (d Deal) BucketDate() time.Time {
	if d.EffectiveDate != nil {
		return *d.EffectiveDate
	}
	return d.CreatedAt
}
