package service

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/clock"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	downlinedomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/downline/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/payout/domain"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	AgentRepo   agentdomain.Repository
	DownlineSvc downlinedomain.Service
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	agentRepo   agentdomain.Repository
	downlineSvc downlinedomain.Service
}

func New(p Params) domain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payout.service"),
		clock:       p.Clock,
		agentRepo:   p.AgentRepo,
		downlineSvc: p.DownlineSvc,
	}
}

func (s *Service) PersonalPayouts(ctx context.Context, agentID snowflake.ID, weekStart time.Time) (domain.PersonalPayouts, error) {
	week := s.normalizeWeek(weekStart)
	weekEnd := week.AddDate(0, 0, 7)

	report := domain.PersonalPayouts{
		AgentID:            agentID,
		WeekStart:          week,
		PersonalCommission: decimal.Zero,
		OverrideEarnings:   decimal.Zero,
		DailyBreakdown:     emptyWeek(week),
	}

	err := s.readTx(ctx, func(tx *gorm.DB) error {
		agent, err := s.agentRepo.FindByID(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return agentdomain.ErrNotFound
		}

		var rows []struct {
			Role   commissiondomain.Role
			Amount decimal.Decimal
			Bucket time.Time
		}
		err = tx.WithContext(ctx).
			Table("commission_splits AS cs").
			Select("cs.role, cs.amount, COALESCE(deals.effective_date, deals.created_at) AS bucket").
			Joins("JOIN deals ON deals.id = cs.deal_id").
			Where("cs.beneficiary_id = ?", agentID).
			Where("cs.role IN ?", []commissiondomain.Role{commissiondomain.RoleAgent, commissiondomain.RoleOverride}).
			Where("COALESCE(deals.effective_date, deals.created_at) >= ?", week).
			Where("COALESCE(deals.effective_date, deals.created_at) < ?", weekEnd).
			Scan(&rows).Error
		if err != nil {
			return err
		}

		for _, row := range rows {
			day := int(row.Bucket.UTC().Sub(week).Hours()) / 24
			if day < 0 || day > 6 {
				continue
			}
			switch row.Role {
			case commissiondomain.RoleAgent:
				report.PersonalCommission = report.PersonalCommission.Add(row.Amount)
				report.DailyBreakdown[day].Commission = report.DailyBreakdown[day].Commission.Add(row.Amount)
			case commissiondomain.RoleOverride:
				report.OverrideEarnings = report.OverrideEarnings.Add(row.Amount)
				report.DailyBreakdown[day].Override = report.DailyBreakdown[day].Override.Add(row.Amount)
			}
		}
		return nil
	})
	if err != nil {
		return domain.PersonalPayouts{}, err
	}
	return report, nil
}

func (s *Service) TeamPayouts(ctx context.Context, managerID snowflake.ID, weekStart time.Time) (domain.TeamPayouts, error) {
	week := s.normalizeWeek(weekStart)
	weekEnd := week.AddDate(0, 0, 7)

	report := domain.TeamPayouts{
		ManagerID: managerID,
		WeekStart: week,
		TeamTotals: domain.TeamTotals{
			Production:     decimal.Zero,
			OverrideEarned: decimal.Zero,
		},
	}

	err := s.readTx(ctx, func(tx *gorm.DB) error {
		walk, err := s.downlineSvc.Descendants(ctx, managerID)
		if err != nil {
			if err == downlinedomain.ErrRootNotFound {
				return agentdomain.ErrNotFound
			}
			return err
		}
		report.Truncated = walk.Truncated
		if len(walk.IDs) == 0 {
			return nil
		}

		agents, err := s.agentRepo.ListByIDs(ctx, tx, walk.IDs)
		if err != nil {
			return err
		}

		var productionRows []struct {
			AgentID    snowflake.ID
			Production decimal.Decimal
			Deals      int
		}
		err = tx.WithContext(ctx).
			Table("deals").
			Select("agent_id, COALESCE(SUM(annual_premium), 0) AS production, COUNT(*) AS deals").
			Where("agent_id IN ?", walk.IDs).
			Where("COALESCE(effective_date, created_at) >= ?", week).
			Where("COALESCE(effective_date, created_at) < ?", weekEnd).
			Group("agent_id").
			Scan(&productionRows).Error
		if err != nil {
			return err
		}

		var overrideRows []struct {
			AgentID  snowflake.ID
			Override decimal.Decimal
		}
		err = tx.WithContext(ctx).
			Table("commission_splits AS cs").
			Select("deals.agent_id AS agent_id, COALESCE(SUM(cs.amount), 0) AS override").
			Joins("JOIN deals ON deals.id = cs.deal_id").
			Where("cs.beneficiary_id = ?", managerID).
			Where("cs.role = ?", commissiondomain.RoleOverride).
			Where("deals.agent_id IN ?", walk.IDs).
			Where("COALESCE(deals.effective_date, deals.created_at) >= ?", week).
			Where("COALESCE(deals.effective_date, deals.created_at) < ?", weekEnd).
			Group("deals.agent_id").
			Scan(&overrideRows).Error
		if err != nil {
			return err
		}

		production := map[snowflake.ID]decimal.Decimal{}
		deals := map[snowflake.ID]int{}
		for _, row := range productionRows {
			production[row.AgentID] = row.Production
			deals[row.AgentID] = row.Deals
		}
		override := map[snowflake.ID]decimal.Decimal{}
		for _, row := range overrideRows {
			override[row.AgentID] = row.Override
		}

		report.PerAgentBreakdown = make([]domain.AgentWeek, 0, len(agents))
		for _, agent := range agents {
			entry := domain.AgentWeek{
				AgentID:        agent.ID,
				Name:           agent.Name,
				Level:          agent.CommissionLevel,
				Production:     decimal.Zero,
				OverrideEarned: decimal.Zero,
			}
			if p, ok := production[agent.ID]; ok {
				entry.Production = p
				entry.Deals = deals[agent.ID]
			}
			if o, ok := override[agent.ID]; ok {
				entry.OverrideEarned = o
			}
			report.TeamTotals.Production = report.TeamTotals.Production.Add(entry.Production)
			report.TeamTotals.Deals += entry.Deals
			report.TeamTotals.OverrideEarned = report.TeamTotals.OverrideEarned.Add(entry.OverrideEarned)
			report.PerAgentBreakdown = append(report.PerAgentBreakdown, entry)
		}
		sort.SliceStable(report.PerAgentBreakdown, func(i, j int) bool {
			if c := report.PerAgentBreakdown[i].Production.Cmp(report.PerAgentBreakdown[j].Production); c != 0 {
				return c > 0
			}
			return report.PerAgentBreakdown[i].AgentID < report.PerAgentBreakdown[j].AgentID
		})
		return nil
	})
	if err != nil {
		return domain.TeamPayouts{}, err
	}
	return report, nil
}

func (s *Service) CompanyRollup(ctx context.Context, dr domain.DateRange) (domain.CompanyRollup, error) {
	rollup := domain.CompanyRollup{
		Production: decimal.Zero,
		ByRole:     map[string]domain.RoleTotal{},
	}

	err := s.readTx(ctx, func(tx *gorm.DB) error {
		var dealRow struct {
			Production decimal.Decimal
			Deals      int
		}
		q := tx.WithContext(ctx).
			Table("deals").
			Select("COALESCE(SUM(annual_premium), 0) AS production, COUNT(*) AS deals")
		q = applyDealRange(q, dr, "")
		if err := q.Scan(&dealRow).Error; err != nil {
			return err
		}
		rollup.Production = dealRow.Production
		rollup.Deals = dealRow.Deals

		var roleRows []struct {
			Role     string
			Amount   decimal.Decimal
			RowCount int
		}
		rq := tx.WithContext(ctx).
			Table("commission_splits AS cs").
			Select("cs.role AS role, COALESCE(SUM(cs.amount), 0) AS amount, COUNT(*) AS row_count").
			Joins("JOIN deals ON deals.id = cs.deal_id").
			Group("cs.role")
		rq = applyDealRange(rq, dr, "deals.")
		if err := rq.Scan(&roleRows).Error; err != nil {
			return err
		}
		for _, row := range roleRows {
			rollup.ByRole[row.Role] = domain.RoleTotal{Amount: row.Amount, Rows: row.RowCount}
		}
		return nil
	})
	if err != nil {
		return domain.CompanyRollup{}, err
	}
	return rollup, nil
}

func (s *Service) ProductionRank(ctx context.Context, agentID snowflake.ID, dr domain.DateRange) (*int, error) {
	var rank *int
	err := s.readTx(ctx, func(tx *gorm.DB) error {
		agent, err := s.agentRepo.FindByID(ctx, tx, agentID)
		if err != nil {
			return err
		}
		if agent == nil {
			return agentdomain.ErrNotFound
		}
		if !agent.IsActive() {
			return nil
		}

		var own struct {
			Production decimal.Decimal
		}
		q := tx.WithContext(ctx).
			Table("deals").
			Select("COALESCE(SUM(annual_premium), 0) AS production").
			Where("agent_id = ?", agentID)
		q = applyDealRange(q, dr, "")
		if err := q.Scan(&own).Error; err != nil {
			return err
		}
		if !own.Production.IsPositive() {
			return nil
		}

		var rows []struct {
			AgentID    snowflake.ID
			Production decimal.Decimal
		}
		rq := tx.WithContext(ctx).
			Table("deals").
			Select("deals.agent_id AS agent_id, COALESCE(SUM(deals.annual_premium), 0) AS production").
			Joins("JOIN agents ON agents.id = deals.agent_id").
			Where("agents.status = ?", agentdomain.StatusActive).
			Group("deals.agent_id")
		rq = applyDealRange(rq, dr, "deals.")
		if err := rq.Scan(&rows).Error; err != nil {
			return err
		}

		ahead := 0
		for _, row := range rows {
			if row.AgentID == agentID {
				continue
			}
			c := row.Production.Cmp(own.Production)
			if c > 0 || (c == 0 && row.AgentID < agentID) {
				ahead++
			}
		}
		position := ahead + 1
		rank = &position
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rank, nil
}

func (s *Service) normalizeWeek(weekStart time.Time) time.Time {
	if weekStart.IsZero() {
		return domain.WeekStart(s.clock.Now())
	}
	return domain.WeekStart(weekStart)
}

func (s *Service) readTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.db.Name() == "postgres" {
		return s.db.WithContext(ctx).Transaction(fn, &sql.TxOptions{
			Isolation: sql.LevelRepeatableRead,
			ReadOnly:  true,
		})
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func emptyWeek(weekStart time.Time) []domain.DailyEntry {
	entries := make([]domain.DailyEntry, 7)
	for i := range entries {
		day := weekStart.AddDate(0, 0, i)
		entries[i] = domain.DailyEntry{
			Date:       day,
			Day:        day.Weekday().String(),
			Commission: decimal.Zero,
			Override:   decimal.Zero,
		}
	}
	return entries
}

func applyDealRange(q *gorm.DB, dr domain.DateRange, prefix string) *gorm.DB {
	bucket := "COALESCE(" + prefix + "effective_date, " + prefix + "created_at)"
	if dr.From != nil {
		q = q.Where(bucket+" >= ?", dr.From.UTC())
	}
	if dr.To != nil {
		q = q.Where(bucket+" < ?", dr.To.UTC())
	}
	return q
}
