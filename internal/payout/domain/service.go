package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// WeekStart maps a date to the Monday opening its week, at midnight
// UTC. Sundays land six days back.
func WeekStart(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return day.AddDate(0, 0, -offset)
}

// DailyEntry is one day of a weekly breakdown. Weeks always render
// seven entries, Monday through Sunday, zero-filled.
type DailyEntry struct {
	Date       time.Time       `json:"date"`
	Day        string          `json:"day"`
	Commission decimal.Decimal `json:"commission"`
	Override   decimal.Decimal `json:"override"`
}

type PersonalPayouts struct {
	AgentID            snowflake.ID    `json:"agent_id"`
	WeekStart          time.Time       `json:"week_start"`
	PersonalCommission decimal.Decimal `json:"personal_commission"`
	OverrideEarnings   decimal.Decimal `json:"override_earnings"`
	DailyBreakdown     []DailyEntry    `json:"daily_breakdown"`
}

type TeamTotals struct {
	Production     decimal.Decimal `json:"production"`
	Deals          int             `json:"deals"`
	OverrideEarned decimal.Decimal `json:"override_earned"`
}

type AgentWeek struct {
	AgentID        snowflake.ID    `json:"agent_id"`
	Name           string          `json:"name"`
	Level          int             `json:"level"`
	Production     decimal.Decimal `json:"production"`
	Deals          int             `json:"deals"`
	OverrideEarned decimal.Decimal `json:"override_earned"`
}

type TeamPayouts struct {
	ManagerID         snowflake.ID `json:"manager_id"`
	WeekStart         time.Time    `json:"week_start"`
	TeamTotals        TeamTotals   `json:"team_totals"`
	PerAgentBreakdown []AgentWeek  `json:"per_agent_breakdown"`
	Truncated         bool         `json:"truncated,omitempty"`
}

type RoleTotal struct {
	Amount decimal.Decimal `json:"amount"`
	Rows   int             `json:"rows"`
}

type CompanyRollup struct {
	Production decimal.Decimal      `json:"production"`
	Deals      int                  `json:"deals"`
	ByRole     map[string]RoleTotal `json:"by_role"`
}

// DateRange bounds a report. Nil bounds are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

type Service interface {
	// PersonalPayouts reports an agent's own commission against the
	// overrides they earned on downline deals for one week. A zero
	// weekStart means the current week; any date normalizes to its
	// Monday.
	PersonalPayouts(ctx context.Context, agentID snowflake.ID, weekStart time.Time) (PersonalPayouts, error)

	// TeamPayouts covers the manager's entire downline for one week.
	TeamPayouts(ctx context.Context, managerID snowflake.ID, weekStart time.Time) (TeamPayouts, error)

	// CompanyRollup sums persisted splits by role tier plus deal
	// production over a range.
	CompanyRollup(ctx context.Context, dr DateRange) (CompanyRollup, error)

	// ProductionRank is the agent's 1-based position among active
	// agents by production, ties broken by id. Nil when the agent
	// produced nothing in range.
	ProductionRank(ctx context.Context, agentID snowflake.ID, dr DateRange) (*int, error)
}
