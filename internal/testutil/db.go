// Package testutil provides an in-memory database wired with the same
// models the API migrates, for repository, service and handler tests.
package testutil

import (
	"path/filepath"
	"testing"

	"melodia-go/internal/infra/database"
	"melodia-go/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens a private in-memory SQLite database and migrates all models.
// The pool is pinned to one connection so the memory database lives as long
// as the test.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	return open(t, "file::memory:", 1)
}

// NewFileDB opens a file-backed SQLite database with a pool of conns
// connections, so concurrent callers really run on separate connections.
// Writers wait on each other through busy_timeout and transactions begin
// IMMEDIATE.
func NewFileDB(t *testing.T, conns int) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "melodia.db") +
		"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	return open(t, dsn, conns)
}

func open(t *testing.T, dsn string, conns int) *gorm.DB {
	t.Helper()

	cfg := database.GormConfig("release")
	cfg.Logger = logger.Default.LogMode(logger.Silent)
	db, err := gorm.Open(sqlite.Open(dsn), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(conns)

	require.NoError(t, database.MigrateCommentSchema(db))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// SeedUser inserts a user row and returns it.
func SeedUser(t *testing.T, db *gorm.DB, id int64, name string, avatar *string) *model.User {
	t.Helper()
	u := &model.User{ID: id, UserName: name, Avatar: avatar, UserRole: "user"}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedAdmin inserts a user with the admin role.
func SeedAdmin(t *testing.T, db *gorm.DB, id int64, name string) *model.User {
	t.Helper()
	u := &model.User{ID: id, UserName: name, UserRole: "admin"}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
