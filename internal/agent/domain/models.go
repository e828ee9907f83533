package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Status is the lifecycle state of an agent. Only ACTIVE agents may
// write deals; every status still appears in hierarchy walks.
type Status string

const (
	StatusActive     Status = "ACTIVE"
	StatusInactive   Status = "INACTIVE"
	StatusOnLeave    Status = "ON_LEAVE"
	StatusTerminated Status = "TERMINATED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusOnLeave, StatusTerminated:
		return true
	default:
		return false
	}
}

// Agent is a producer embedded in the single-parent recruiting tree.
// UplineID is a weak reference; the forest invariant (no agent is its
// own ancestor) is enforced at assignment time.
type Agent struct {
	ID              snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name            string        `gorm:"not null" json:"name"`
	Code            string        `gorm:"not null;uniqueIndex" json:"code"`
	CommissionLevel int           `gorm:"column:commission_level;not null" json:"commission_level"`
	UplineID        *snowflake.ID `gorm:"column:upline_id;index" json:"upline_id,omitempty"`
	Status          Status        `gorm:"not null" json:"status"`
	CreatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Agent) TableName() string { return "agents" }

// IsActive reports whether the agent may write deals.
func (a Agent) IsActive() bool { return a.Status == StatusActive }
