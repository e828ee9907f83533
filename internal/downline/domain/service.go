package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	"github.com/shopspring/decimal"
)

// DateRange filters deals by bucket date (effective date, falling back
// to creation time). Nil bounds are open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// Walk is the result of a breadth-first descent. IDs are in level
// order, root excluded. Truncated marks a depth-ceiling hit: the ids
// collected so far are still valid, the walk just stopped early.
type Walk struct {
	IDs       []snowflake.ID
	Truncated bool
}

type SubtreeStats struct {
	TotalDownline  int             `json:"total_downline"`
	ByLevelCount   map[string]int  `json:"by_level_count"`
	Production     decimal.Decimal `json:"production"`
	Deals          int             `json:"deals"`
	OverrideEarned decimal.Decimal `json:"override_earned"`
	Truncated      bool            `json:"truncated,omitempty"`
}

type SearchFilter struct {
	Query string
	Level *int
}

type SearchResult struct {
	Agent          agentdomain.Agent `json:"agent"`
	Depth          int               `json:"depth"`
	UplineName     string            `json:"upline_name"`
	Production     decimal.Decimal   `json:"production"`
	Deals          int               `json:"deals"`
	OverrideEarned decimal.Decimal   `json:"override_earned"`

	// ProjectedOverride is the ceiling on what the root can earn per
	// hundred of this agent's production, capped at ten points per
	// hop of separation.
	ProjectedOverride int `json:"projected_override"`
}

type Service interface {
	// Descendants walks the subtree below root, one query per level.
	// A depth-ceiling hit truncates softly; callers that cannot
	// tolerate a partial walk use DescendantsStrict.
	Descendants(ctx context.Context, rootID snowflake.ID) (Walk, error)

	// DescendantsStrict fails with ErrDepthLimitExceeded instead of
	// truncating.
	DescendantsStrict(ctx context.Context, rootID snowflake.ID) ([]snowflake.ID, error)

	// SubtreeStats aggregates the root's whole downline in one
	// consistent read transaction. Level counts reflect current
	// membership; money figures come from persisted splits.
	SubtreeStats(ctx context.Context, rootID snowflake.ID, dr DateRange) (SubtreeStats, error)

	// SearchDownline filters the subtree by name fragment and level,
	// capped and ordered by production.
	SearchDownline(ctx context.Context, rootID snowflake.ID, filter SearchFilter, dr DateRange) ([]SearchResult, error)
}

var (
	ErrRootNotFound       = errors.New("root_agent_not_found")
	ErrCycleDetected      = errors.New("hierarchy_cycle_detected")
	ErrDepthLimitExceeded = errors.New("depth_limit_exceeded")
)
