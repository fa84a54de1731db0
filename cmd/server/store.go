package main

import (
	"context"
	"fmt"

	"github.com/99minutos/credential-service/internal/core/domain"
	"github.com/99minutos/credential-service/internal/core/ports"
	"github.com/99minutos/credential-service/internal/infrastructure/config"
	"github.com/99minutos/credential-service/internal/infrastructure/db/memory"
	"github.com/99minutos/credential-service/internal/infrastructure/db/mongo"
	"github.com/99minutos/credential-service/internal/infrastructure/db/redis"
)

// openStore builds the configured CredentialStore and a func that releases
// its connections.
func openStore(ctx context.Context, cfg *config.Config) (ports.CredentialStore, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMongo:
		client, store, err := mongo.Open(ctx, mongo.Config{
			URI:         cfg.Mongo.URI,
			Database:    cfg.Mongo.Database,
			UniqueEmail: cfg.Conflicts() != domain.ConflictLegacy,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open mongo store: %w", err)
		}
		return store, func() { _ = client.Disconnect(context.Background()) }, nil

	case config.BackendRedis:
		client, err := redis.Connect(ctx, redis.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("open redis store: %w", err)
		}
		return redis.NewCredentialStore(client), func() { _ = client.Close() }, nil

	default:
		return memory.NewCredentialStore(), func() {}, nil
	}
}
