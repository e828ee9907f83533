package service

import (
	"context"
	"database/sql"
	"sort"
	"strings"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/downline/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/observability/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Plan      *config.PlanHolder
	AgentRepo agentdomain.Repository
	Metrics   *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	plan      *config.PlanHolder
	agentRepo agentdomain.Repository
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("downline.service"),
		plan:      p.Plan,
		agentRepo: p.AgentRepo,
		metrics:   p.Metrics,
	}
}

// node is one walked descendant with the depth it was found at.
type node struct {
	agent *agentdomain.Agent
	depth int
}

func (s *Service) Descendants(ctx context.Context, rootID snowflake.ID) (domain.Walk, error) {
	nodes, truncated, err := s.walk(ctx, s.db, rootID)
	if err != nil {
		return domain.Walk{}, err
	}
	ids := make([]snowflake.ID, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.agent.ID)
	}
	return domain.Walk{IDs: ids, Truncated: truncated}, nil
}

func (s *Service) DescendantsStrict(ctx context.Context, rootID snowflake.ID) ([]snowflake.ID, error) {
	walk, err := s.Descendants(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if walk.Truncated {
		return nil, domain.ErrDepthLimitExceeded
	}
	return walk.IDs, nil
}

func (s *Service) SubtreeStats(ctx context.Context, rootID snowflake.ID, dr domain.DateRange) (domain.SubtreeStats, error) {
	plan := s.plan.Get()
	stats := domain.SubtreeStats{
		ByLevelCount:   map[string]int{},
		Production:     decimal.Zero,
		OverrideEarned: decimal.Zero,
	}

	err := s.readTx(ctx, func(tx *gorm.DB) error {
		nodes, truncated, err := s.walk(ctx, tx, rootID)
		if err != nil {
			return err
		}
		stats.TotalDownline = len(nodes)
		stats.Truncated = truncated
		for _, n := range nodes {
			stats.ByLevelCount[plan.RankLabel(n.agent.CommissionLevel)]++
		}
		if len(nodes) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.agent.ID)
		}

		production, deals, err := sumProduction(ctx, tx, ids, dr)
		if err != nil {
			return err
		}
		stats.Production = production
		stats.Deals = deals

		override, err := sumOverrideByRoot(ctx, tx, rootID, ids, dr)
		if err != nil {
			return err
		}
		stats.OverrideEarned = override
		return nil
	})
	if err != nil {
		return domain.SubtreeStats{}, err
	}
	return stats, nil
}

func (s *Service) SearchDownline(ctx context.Context, rootID snowflake.ID, filter domain.SearchFilter, dr domain.DateRange) ([]domain.SearchResult, error) {
	plan := s.plan.Get()

	var results []domain.SearchResult
	err := s.readTx(ctx, func(tx *gorm.DB) error {
		root, err := s.agentRepo.FindByID(ctx, tx, rootID)
		if err != nil {
			return err
		}
		if root == nil {
			return domain.ErrRootNotFound
		}

		nodes, _, err := s.walk(ctx, tx, rootID)
		if err != nil {
			return err
		}

		names := map[snowflake.ID]string{rootID: root.Name}
		for _, n := range nodes {
			names[n.agent.ID] = n.agent.Name
		}

		query := strings.ToLower(strings.TrimSpace(filter.Query))
		matched := make([]node, 0, len(nodes))
		for _, n := range nodes {
			if query != "" && !strings.Contains(strings.ToLower(n.agent.Name), query) {
				continue
			}
			if filter.Level != nil && n.agent.CommissionLevel != *filter.Level {
				continue
			}
			matched = append(matched, n)
		}
		if len(matched) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(matched))
		for _, n := range matched {
			ids = append(ids, n.agent.ID)
		}
		production, dealCounts, err := productionByAgent(ctx, tx, ids, dr)
		if err != nil {
			return err
		}
		override, err := overrideByAgent(ctx, tx, rootID, ids, dr)
		if err != nil {
			return err
		}

		results = make([]domain.SearchResult, 0, len(matched))
		for _, n := range matched {
			uplineName := ""
			if n.agent.UplineID != nil {
				uplineName = names[*n.agent.UplineID]
			}
			results = append(results, domain.SearchResult{
				Agent:             *n.agent,
				Depth:             n.depth,
				UplineName:        uplineName,
				Production:        valueOrZero(production[n.agent.ID]),
				Deals:             dealCounts[n.agent.ID],
				OverrideEarned:    valueOrZero(override[n.agent.ID]),
				ProjectedOverride: projectedOverride(root.CommissionLevel, n.agent.CommissionLevel, n.depth),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if c := results[i].Production.Cmp(results[j].Production); c != 0 {
			return c > 0
		}
		return results[i].Agent.ID < results[j].Agent.ID
	})
	if len(results) > plan.SearchCap {
		results = results[:plan.SearchCap]
	}
	return results, nil
}

// walk descends level by level, one ListByUplineIDs query per level.
// The visited set keeps a corrupted store (back-edge in the upline
// graph) from looping; the ceiling bounds pathological deep chains.
func (s *Service) walk(ctx context.Context, db *gorm.DB, rootID snowflake.ID) ([]node, bool, error) {
	root, err := s.agentRepo.FindByID(ctx, db, rootID)
	if err != nil {
		return nil, false, err
	}
	if root == nil {
		return nil, false, domain.ErrRootNotFound
	}

	plan := s.plan.Get()
	visited := map[snowflake.ID]struct{}{rootID: {}}
	frontier := []snowflake.ID{rootID}

	var nodes []node
	truncated := false
	for depth := 1; len(frontier) > 0; depth++ {
		if depth > plan.DepthCeiling {
			truncated = true
			s.metrics.RecordTraversalTruncated(ctx, "descendants")
			s.log.Warn("downline walk hit depth ceiling",
				zap.String("root_id", rootID.String()),
				zap.Int("depth_ceiling", plan.DepthCeiling))
			break
		}
		children, err := s.agentRepo.ListByUplineIDs(ctx, db, frontier)
		if err != nil {
			return nil, false, err
		}
		frontier = frontier[:0]
		for _, child := range children {
			if _, seen := visited[child.ID]; seen {
				s.metrics.RecordCycleDetected(ctx, "descendants")
				s.log.Error("cycle in upline graph",
					zap.String("agent_id", child.ID.String()),
					zap.String("root_id", rootID.String()))
				return nil, false, domain.ErrCycleDetected
			}
			visited[child.ID] = struct{}{}
			nodes = append(nodes, node{agent: child, depth: depth})
			frontier = append(frontier, child.ID)
		}
	}
	return nodes, truncated, nil
}

// readTx runs fn in a repeatable-read read-only transaction where the
// dialect supports it, so multi-query aggregates see one snapshot.
func (s *Service) readTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db.Name() == "postgres" {
		return s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{
			Isolation: sql.LevelRepeatableRead,
			ReadOnly:  true,
		})
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func projectedOverride(rootLevel, agentLevel, depth int) int {
	projected := rootLevel - agentLevel
	if byDepth := 10 * depth; byDepth < projected {
		projected = byDepth
	}
	if projected < 0 {
		projected = 0
	}
	return projected
}

func valueOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

func sumProduction(ctx context.Context, tx *gorm.DB, agentIDs []snowflake.ID, dr domain.DateRange) (decimal.Decimal, int, error) {
	var row struct {
		Production decimal.Decimal
		Deals      int
	}
	q := tx.WithContext(ctx).
		Table("deals").
		Select("COALESCE(SUM(annual_premium), 0) AS production, COUNT(*) AS deals").
		Where("agent_id IN ?", agentIDs)
	q = applyDateRange(q, dr)
	if err := q.Scan(&row).Error; err != nil {
		return decimal.Zero, 0, err
	}
	return row.Production, row.Deals, nil
}

func sumOverrideByRoot(ctx context.Context, tx *gorm.DB, rootID snowflake.ID, agentIDs []snowflake.ID, dr domain.DateRange) (decimal.Decimal, error) {
	var row struct {
		Override decimal.Decimal
	}
	q := tx.WithContext(ctx).
		Table("commission_splits AS cs").
		Select("COALESCE(SUM(cs.amount), 0) AS override").
		Joins("JOIN deals ON deals.id = cs.deal_id").
		Where("cs.beneficiary_id = ?", rootID).
		Where("cs.role = ?", commissiondomain.RoleOverride).
		Where("deals.agent_id IN ?", agentIDs)
	q = applyDateRange(q, dr)
	if err := q.Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return row.Override, nil
}

func productionByAgent(ctx context.Context, tx *gorm.DB, agentIDs []snowflake.ID, dr domain.DateRange) (map[snowflake.ID]*decimal.Decimal, map[snowflake.ID]int, error) {
	var rows []struct {
		AgentID    snowflake.ID
		Production decimal.Decimal
		Deals      int
	}
	q := tx.WithContext(ctx).
		Table("deals").
		Select("agent_id, COALESCE(SUM(annual_premium), 0) AS production, COUNT(*) AS deals").
		Where("agent_id IN ?", agentIDs).
		Group("agent_id")
	q = applyDateRange(q, dr)
	if err := q.Scan(&rows).Error; err != nil {
		return nil, nil, err
	}
	production := make(map[snowflake.ID]*decimal.Decimal, len(rows))
	deals := make(map[snowflake.ID]int, len(rows))
	for i := range rows {
		production[rows[i].AgentID] = &rows[i].Production
		deals[rows[i].AgentID] = rows[i].Deals
	}
	return production, deals, nil
}

func overrideByAgent(ctx context.Context, tx *gorm.DB, rootID snowflake.ID, agentIDs []snowflake.ID, dr domain.DateRange) (map[snowflake.ID]*decimal.Decimal, error) {
	var rows []struct {
		AgentID  snowflake.ID
		Override decimal.Decimal
	}
	q := tx.WithContext(ctx).
		Table("commission_splits AS cs").
		Select("deals.agent_id AS agent_id, COALESCE(SUM(cs.amount), 0) AS override").
		Joins("JOIN deals ON deals.id = cs.deal_id").
		Where("cs.beneficiary_id = ?", rootID).
		Where("cs.role = ?", commissiondomain.RoleOverride).
		Where("deals.agent_id IN ?", agentIDs).
		Group("deals.agent_id")
	q = applyDateRange(q, dr)
	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	override := make(map[snowflake.ID]*decimal.Decimal, len(rows))
	for i := range rows {
		override[rows[i].AgentID] = &rows[i].Override
	}
	return override, nil
}

// applyDateRange filters on the deal bucket date: effective date when
// set, otherwise creation time.
func applyDateRange(q *gorm.DB, dr domain.DateRange) *gorm.DB {
	if dr.From != nil {
		q = q.Where("COALESCE(deals.effective_date, deals.created_at) >= ?", dr.From.UTC())
	}
	if dr.To != nil {
		q = q.Where("COALESCE(deals.effective_date, deals.created_at) < ?", dr.To.UTC())
	}
	return q
}
