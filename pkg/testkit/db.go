// Package testkit holds shared test helpers: a migrated throwaway database,
// an outgoing HTTP interceptor, a mail spy and envelope decoding.
package testkit

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	_ "github.com/shashiranjanraj/eshop/database/migrations" // registers the schema
	"github.com/shashiranjanraj/eshop/pkg/database"
	"github.com/shashiranjanraj/eshop/pkg/migration"
)

// NewDB opens a fresh sqlite file under t.TempDir and runs every registered
// migration against it.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "eshop_test.db") + "?_busy_timeout=5000&_foreign_keys=on"
	db, err := database.Open("sqlite", dsn)
	require.NoError(t, err)

	require.NoError(t, migration.New(db).Quiet().Run())

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
