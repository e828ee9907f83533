package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/db/option"
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/repository"
	"gorm.io/gorm"
)

// Repository covers carriers and their per-agent rate overrides.
type Repository interface {
	InsertCarrier(ctx context.Context, db *gorm.DB, carrier *domain.Carrier) error
	FindCarrierByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Carrier, error)
	ListCarriers(ctx context.Context, db *gorm.DB) ([]*domain.Carrier, error)

	UpsertRate(ctx context.Context, db *gorm.DB, rate *domain.CarrierRate) error
	FindRate(ctx context.Context, db *gorm.DB, agentID, carrierID snowflake.ID) (*domain.CarrierRate, error)
	ListRatesByAgent(ctx context.Context, db *gorm.DB, agentID snowflake.ID) ([]*domain.CarrierRate, error)
}

type repo struct{}

func Provide() Repository {
	return &repo{}
}

func (r *repo) InsertCarrier(ctx context.Context, db *gorm.DB, carrier *domain.Carrier) error {
	return repository.ProvideStore[domain.Carrier](db).Create(ctx, carrier)
}

func (r *repo) FindCarrierByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Carrier, error) {
	return repository.ProvideStore[domain.Carrier](db).FindOne(ctx, &domain.Carrier{ID: id})
}

func (r *repo) ListCarriers(ctx context.Context, db *gorm.DB) ([]*domain.Carrier, error) {
	return repository.ProvideStore[domain.Carrier](db).Find(ctx, &domain.Carrier{}, option.OrderBy("name asc"))
}

// UpsertRate stays raw SQL: the store has no conflict-target upsert and
// the (agent_id, carrier_id) key must win over the surrogate id.
func (r *repo) UpsertRate(ctx context.Context, db *gorm.DB, rate *domain.CarrierRate) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO carrier_rates (id, agent_id, carrier_id, agent_rate, manager_rate, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (agent_id, carrier_id) DO UPDATE
		 SET agent_rate = EXCLUDED.agent_rate,
		     manager_rate = EXCLUDED.manager_rate,
		     updated_at = EXCLUDED.updated_at`,
		rate.ID,
		rate.AgentID,
		rate.CarrierID,
		rate.AgentRate,
		rate.ManagerRate,
		rate.CreatedAt,
		rate.UpdatedAt,
	).Error
}

func (r *repo) FindRate(ctx context.Context, db *gorm.DB, agentID, carrierID snowflake.ID) (*domain.CarrierRate, error) {
	return repository.ProvideStore[domain.CarrierRate](db).FindOne(ctx, &domain.CarrierRate{
		AgentID:   agentID,
		CarrierID: carrierID,
	})
}

func (r *repo) ListRatesByAgent(ctx context.Context, db *gorm.DB, agentID snowflake.ID) ([]*domain.CarrierRate, error) {
	return repository.ProvideStore[domain.CarrierRate](db).Find(ctx,
		&domain.CarrierRate{AgentID: agentID},
		option.OrderBy("carrier_id asc"),
	)
}
