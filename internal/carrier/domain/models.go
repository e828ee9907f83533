package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Carrier is an insurance carrier agents can write business with.
type Carrier struct {
	ID        snowflake.ID   `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Code      string         `gorm:"not null;uniqueIndex" json:"code"`
	Lines     pq.StringArray `gorm:"type:text[]" json:"lines"`
	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Carrier) TableName() string { return "carriers" }

// CarrierRate is a per-(agent, carrier) FYC override. When absent the
// plan defaults apply (life 1.0, health 0.5).
type CarrierRate struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	AgentID     snowflake.ID    `gorm:"column:agent_id;not null;uniqueIndex:idx_carrier_rates_agent_carrier" json:"agent_id"`
	CarrierID   snowflake.ID    `gorm:"column:carrier_id;not null;uniqueIndex:idx_carrier_rates_agent_carrier" json:"carrier_id"`
	AgentRate   decimal.Decimal `gorm:"column:agent_rate;type:numeric(6,4);not null" json:"agent_rate"`
	ManagerRate decimal.Decimal `gorm:"column:manager_rate;type:numeric(6,4);not null" json:"manager_rate"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (CarrierRate) TableName() string { return "carrier_rates" }
