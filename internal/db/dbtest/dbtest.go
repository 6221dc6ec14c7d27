// Package dbtest opens isolated in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Keoroanthony/shopnow-api/internal/db"
)

// Open returns a migrated SQLite database private to t and installs it as
// db.DB until the test ends. The pool holds a single connection so that
// concurrent transactions serialize the way row locks would on PostgreSQL.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=on"
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err, "failed to connect test database")

	sqlDB, err := testDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, testDB.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, db.Migrate(testDB), "failed to auto-migrate models")

	original := db.DB
	db.SetTestDB(testDB)
	t.Cleanup(func() {
		db.SetTestDB(original)
		_ = sqlDB.Close()
	})
	return testDB
}
