package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quarryhq/quarry/pkg/config"
	"github.com/quarryhq/quarry/pkg/models"
)

// newTestStore starts (once per package run) a disposable Postgres
// container, migrates it, and returns a ready Store.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("quarry_test"),
		tcpostgres.WithUsername("quarry_test"),
		tcpostgres.WithPassword("quarry_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	s, err := Open(ctx, config.StoreConfig{DSN: connStr, MaxConns: 5, BatchFlushEvery: 10})
	require.NoError(t, err)
	t.Cleanup(s.Close)

	return s
}

// newTestSearchSpace creates a minimal SearchSpace row to satisfy foreign
// key constraints in tests that need one.
func newTestSearchSpace(t *testing.T, s *Store) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateSearchSpace(ctx, models.SearchSpace{
		OwnerID: "owner-" + t.Name(),
		Name:    "space-" + t.Name(),
	})
	require.NoError(t, err)
	return id
}

// newTestConnector creates a minimal Connector row under searchSpaceID.
func newTestConnector(t *testing.T, s *Store, searchSpaceID int64) int64 {
	t.Helper()
	ctx := context.Background()
	id, err := s.CreateConnector(ctx, models.Connector{
		SearchSpaceID: searchSpaceID,
		Type:          models.ConnectorTypeWebcrawler,
		Name:          "crawler-" + t.Name(),
		IsIndexable:   true,
	})
	require.NoError(t, err)
	return id
}

func uniqueSuffix() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
