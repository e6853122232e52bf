package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Run with NEWSPORTAL_INTEGRATION=1 go test ./internal/storage -v
func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("NEWSPORTAL_INTEGRATION") == "" {
		t.Skip("integration tests are disabled (set NEWSPORTAL_INTEGRATION=1)")
	}
}

func startContainer(t *testing.T, req tc.ContainerRequest, port nat.Port) string {
	t.Helper()
	ctx := context.Background()

	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	require.NoError(t, err)
	mapped, err := c.MappedPort(ctx, port)
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, mapped.Port())
}

func TestIntegration_PostgresStore(t *testing.T) {
	skipUnlessIntegration(t)

	addr := startContainer(t, tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "news",
			"POSTGRES_PASSWORD": "news",
			"POSTGRES_DB":       "news",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432/tcp")

	runStoreContract(t, func(t *testing.T) NewsStore {
		// every subtest gets a fresh schema
		schema := "t_" + uuid.NewString()[:8]
		admin, err := NewSQLStore(context.Background(), DialectPostgres,
			fmt.Sprintf("postgres://news:news@%s/news?sslmode=disable", addr), testLogger)
		require.NoError(t, err)
		_, err = admin.db.Exec("CREATE SCHEMA " + schema)
		require.NoError(t, err)
		require.NoError(t, admin.Close())

		s, err := NewSQLStore(context.Background(), DialectPostgres,
			fmt.Sprintf("postgres://news:news@%s/news?sslmode=disable&search_path=%s", addr, schema), testLogger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestIntegration_MongoStore(t *testing.T) {
	skipUnlessIntegration(t)

	addr := startContainer(t, tc.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
	}, "27017/tcp")

	runStoreContract(t, func(t *testing.T) NewsStore {
		s, err := NewMongoStore(context.Background(), "mongodb://"+addr, "news_"+uuid.NewString()[:8], testLogger)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}
