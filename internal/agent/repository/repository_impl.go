package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/db/option"
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, agent *domain.Agent) error {
	return db.WithContext(ctx).Create(agent).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Agent, error) {
	var agent domain.Agent
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, code, commission_level, upline_id, status, created_at, updated_at
		 FROM agents WHERE id = ?`,
		id,
	).Scan(&agent).Error
	if err != nil {
		return nil, err
	}
	if agent.ID == 0 {
		return nil, nil
	}
	return &agent, nil
}

func (r *repo) FindByCode(ctx context.Context, db *gorm.DB, code string) (*domain.Agent, error) {
	var agent domain.Agent
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, code, commission_level, upline_id, status, created_at, updated_at
		 FROM agents WHERE code = ?`,
		strings.TrimSpace(code),
	).Scan(&agent).Error
	if err != nil {
		return nil, err
	}
	if agent.ID == 0 {
		return nil, nil
	}
	return &agent, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListAgentFilter, page pagination.Pagination) ([]*domain.Agent, error) {
	var agents []*domain.Agent
	stmt := db.WithContext(ctx).Model(&domain.Agent{})
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Level != 0 {
		stmt = stmt.Where("commission_level = ?", filter.Level)
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		stmt = stmt.Where("LOWER(name) LIKE ? OR LOWER(code) LIKE ?", like, like)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repo) ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Agent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var agents []*domain.Agent
	err := db.WithContext(ctx).
		Model(&domain.Agent{}).
		Where("id IN ?", ids).
		Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repo) ListByUplineIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*domain.Agent, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var agents []*domain.Agent
	err := db.WithContext(ctx).
		Model(&domain.Agent{}).
		Where("upline_id IN ?", ids).
		Order("id asc").
		Find(&agents).Error
	if err != nil {
		return nil, err
	}
	return agents, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, id snowflake.ID, updates map[string]any) error {
	return db.WithContext(ctx).
		Model(&domain.Agent{}).
		Where("id = ?", id).
		Updates(updates).Error
}
