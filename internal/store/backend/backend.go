// Package backend opens the store.Store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/aimerfeng/ChallengeHive/internal/config"
	"github.com/aimerfeng/ChallengeHive/internal/database"
	"github.com/aimerfeng/ChallengeHive/internal/store"
	"github.com/aimerfeng/ChallengeHive/internal/store/memory"
	"github.com/aimerfeng/ChallengeHive/internal/store/mongo"
	"github.com/aimerfeng/ChallengeHive/internal/store/postgres"
	"github.com/rs/zerolog/log"
)

// Open connects the configured driver. Postgres runs the embedded migrations
// first when MigrateOnStart is set.
func Open(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		if cfg.Database.MigrateOnStart {
			if err := database.RunMigrations(cfg.Database.URL); err != nil {
				return nil, err
			}
		}
		db, err := database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgres.New(db.Pool), nil

	case config.StoreDriverMongo:
		return mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)

	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
