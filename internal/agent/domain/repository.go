package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListAgentFilter struct {
	Status Status
	Level  int
	Query  string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, agent *Agent) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Agent, error)
	FindByCode(ctx context.Context, db *gorm.DB, code string) (*Agent, error)
	List(ctx context.Context, db *gorm.DB, filter ListAgentFilter, page pagination.Pagination) ([]*Agent, error)
	// ListByIDs loads a batch of agents in one query.
	ListByIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Agent, error)
	// ListByUplineIDs returns the direct reports of every id in one
	// query; downline traversal issues one call per tree level.
	ListByUplineIDs(ctx context.Context, db *gorm.DB, ids []snowflake.ID) ([]*Agent, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, updates map[string]any) error
}
