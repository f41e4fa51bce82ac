package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/quizdash/quizdash/internal/gateway"
	"github.com/quizdash/quizdash/internal/questions"
	"github.com/quizdash/quizdash/internal/store"
)

type Services struct {
	Gateway   *gateway.Service
	Handler   *gateway.Handler
	Questions *questions.App
}

// setupStore picks the shared game store backend.
func setupStore(ctx context.Context, config *Config) (store.GameStore, error) {
	switch config.Store.Backend {
	case "memory":
		return store.NewMemoryStore(), nil
	case "nats", "":
		kvCfg := store.DefaultKVConfig()
		if config.Store.NatsURL != "" {
			kvCfg.URL = config.Store.NatsURL
		}
		if config.Store.Bucket != "" {
			kvCfg.Bucket = config.Store.Bucket
		}
		return store.NewKVStore(ctx, kvCfg)
	default:
		return nil, fmt.Errorf("unknown store backend %q", config.Store.Backend)
	}
}

// setupServices wires the dependency chain: store and database at the bottom,
// repository, app and gateway layers above.
func setupServices(ctx context.Context, gameStore store.GameStore, pool *pgxpool.Pool) *Services {
	var questionsRepo questions.QuestionsRepository
	if pool != nil {
		questionsRepo = questions.NewRepository(pool)
	}
	questionsApp := questions.NewApp(questionsRepo)

	gatewayService := gateway.NewService(ctx, gameStore, questionsApp, clockwork.NewRealClock())

	return &Services{
		Gateway:   gatewayService,
		Handler:   gateway.NewHandler(gatewayService),
		Questions: questionsApp,
	}
}
