// Package testutil holds fixtures shared by the external test packages.
package testutil

import (
	"fmt"
	"strings"
	"testing"

	"geo-ingest-backend/internal/repository"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewRepository returns a repository over a private in-memory SQLite
// database with the catalog schema applied.
func NewRepository(t *testing.T) *repository.Repository {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	repo := repository.New(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}
