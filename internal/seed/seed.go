package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// EnsureDemoAgency seeds a small hierarchy and two carriers for
// standalone mode. Idempotent: an already-populated agents table is
// left alone.
func EnsureDemoAgency(db *gorm.DB, node *snowflake.Node) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.WithContext(ctx).Model(&agentdomain.Agent{}).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		now := time.Now().UTC()
		newAgent := func(name, code string, level int, upline *snowflake.ID) agentdomain.Agent {
			return agentdomain.Agent{
				ID:              node.Generate(),
				Name:            name,
				Code:            code,
				CommissionLevel: level,
				UplineID:        upline,
				Status:          agentdomain.StatusActive,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
		}

		owner := newAgent("Everguard House", "house", 130, nil)
		mga := newAgent("Dana Whitfield", "dana-whitfield", 110, &owner.ID)
		ga := newAgent("Ruben Castillo", "ruben-castillo", 100, &mga.ID)
		sa := newAgent("Priya Raman", "priya-raman", 90, &ga.ID)
		producer := newAgent("Miles Okafor", "miles-okafor", 70, &sa.ID)

		for _, agent := range []agentdomain.Agent{owner, mga, ga, sa, producer} {
			if err := tx.WithContext(ctx).Create(&agent).Error; err != nil {
				return err
			}
		}

		carriers := []carrierdomain.Carrier{
			{
				ID:        node.Generate(),
				Name:      "Atlas Life Assurance",
				Code:      "atlas-life",
				Lines:     pq.StringArray{carrierdomain.LineLife},
				CreatedAt: now,
				UpdatedAt: now,
			},
			{
				ID:        node.Generate(),
				Name:      "Beacon Mutual",
				Code:      "beacon-mutual",
				Lines:     pq.StringArray{carrierdomain.LineLife, carrierdomain.LineHealth},
				CreatedAt: now,
				UpdatedAt: now,
			},
		}
		for _, carrier := range carriers {
			if err := tx.WithContext(ctx).Create(&carrier).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
