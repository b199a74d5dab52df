package tcpostgres

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"

	"github.com/mpapenbr/zenride/pkg/db/migrate"
	database "github.com/mpapenbr/zenride/pkg/db/postgres"
)

// SetupTestDB returns a migrated pool for tests. TESTDB_URL points to an
// external database, otherwise a postgres container is started. The test is
// skipped if neither is available.
func SetupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TESTDB_URL")
	if dbURL == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
		var err error
		if dbURL, err = startContainer(context.Background()); err != nil {
			t.Fatalf("could not start postgres container: %v", err)
		}
	}
	if err := migrate.MigrateDB(dbURL); err != nil {
		t.Fatalf("could not migrate test database: %v", err)
	}
	pool, err := database.InitWithURL(context.Background(), dbURL)
	if err != nil {
		t.Fatalf("could not connect to test database: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func startContainer(ctx context.Context) (string, error) {
	c, err := StartContainer(ctx)
	if err != nil {
		return "", err
	}
	return c.URL(ctx)
}

// ClearBlobTable removes all stored blobs
func ClearBlobTable(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	if _, err := pool.Exec(context.Background(), "delete from drive_blob"); err != nil {
		t.Fatalf("could not clear drive_blob: %v", err)
	}
}
