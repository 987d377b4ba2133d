package postgres_test

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"

	"github.com/qualgent/testorch/internal/config"
	"github.com/qualgent/testorch/internal/env"
	"github.com/qualgent/testorch/internal/store"
	"github.com/qualgent/testorch/internal/store/postgres"
	"github.com/qualgent/testorch/internal/store/storetest"
)

// dsn returns the test database DSN loaded via config.TestStoreConfig,
// skipping the test when unset, the way the teacher's LoadTestConfig
// callers skip without a configured database.
func dsn(t *testing.T) string {
	t.Helper()
	var cfg config.TestStoreConfig
	require.NoError(t, env.Load(&cfg))
	if cfg.DSN == "" {
		t.Skip("TESTORCH_TEST_STORE_DSN not set, skipping postgres store tests")
	}
	return cfg.DSN
}

func TestCompliance(t *testing.T) {
	d := dsn(t)
	storetest.RunCompliance(t, func(t *testing.T) (store.JobStore, func()) {
		ctx := context.Background()
		s, err := postgres.NewStore(ctx, d)
		require.NoError(t, err)
		return s, func() {
			_ = s.Close()
			db, err := sql.Open("pgx", d)
			require.NoError(t, err)
			defer db.Close()
			_, _ = db.Exec(`TRUNCATE TABLE jobs`)
		}
	})
}
