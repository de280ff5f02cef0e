package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/intentflow/intentflow/pkg/persistence"
	"github.com/intentflow/intentflow/pkg/persistence/memory"
	"github.com/intentflow/intentflow/pkg/persistence/postgresql"
)

// NewPersistence creates the storage backend for the given database URL.
// postgresql:// URLs get the production backend with migrations applied;
// anything else falls back to the in-memory store used for local runs.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "postgresql", "postgres":
		store, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to create PostgreSQL persistence: %w", err))
		}

		return store
	default:
		return memory.NewPersistence()
	}
}

func parsePersistenceProvider(databaseURL string) string {
	provider, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "memory"
	}

	return provider
}
