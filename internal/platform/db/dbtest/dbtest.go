// Package dbtest opens throwaway in-memory databases for package tests.
package dbtest

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/alanwang5210/telegram-bot/internal/platform/db"
)

// New returns a migrated in-memory database private to t. The pool holds
// a single connection, so code under test must reach the store through
// db.Gateway.Conn while a transaction is open.
func New(t testing.TB) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         gormlogger.Discard,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gdb.AutoMigrate(db.AllModels()...))
	return gdb
}

// NewGateway is New wrapped in a db.Gateway.
func NewGateway(t testing.TB) (*db.Gateway, *gorm.DB) {
	gdb := New(t)
	return db.NewGateway(gdb), gdb
}
