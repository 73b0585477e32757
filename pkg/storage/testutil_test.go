package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/simple-batch-jobs/pkg/core"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh in-memory SQLite instance limited to one connection, since
// each SQLite ":memory:" connection is its own database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		require.NoError(t, err, "open postgres test db")

		sqlDB, err := db.DB()
		require.NoError(t, err, "get underlying sql.DB")
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(2)

		// Clean before AND after to ensure test isolation.
		cleanupPostgresDB(db)
		t.Cleanup(func() {
			cleanupPostgresDB(db)
			_ = sqlDB.Close()
		})
		return db
	}

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open in-memory sqlite")
	require.NoError(t, ConfigurePool(db, WithPoolConfig(SingleConnPoolConfig())))
	return db
}

func cleanupPostgresDB(db *gorm.DB) {
	if db.Migrator().HasTable(&jobRecord{}) {
		db.Exec("DELETE FROM jobs")
	}
}

// newTestQueues returns a migrated pending and failed queue sharing one
// database.
func newTestQueues(t *testing.T) (pending, failed *GormQueue) {
	t.Helper()
	db := openTestDB(t)
	pending = NewGormQueue(db, "default")
	require.NoError(t, pending.Migrate(context.Background()))
	return pending, NewGormQueue(db, "failed")
}

func newTestJob(t *testing.T, handler string, params ...any) *core.Job {
	t.Helper()
	job, err := core.NewJob(handler, params...)
	require.NoError(t, err)
	return job
}
