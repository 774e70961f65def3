// Package testdb opens throwaway migrated databases for package tests.
package testdb

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vliewarden/backend/internal/database"
	"github.com/vliewarden/backend/internal/logger"
)

var seq atomic.Int64

// Service returns a migrated in-memory sqlite database private to the test.
// A single pooled connection serializes access the way row locks would.
func Service(t testing.TB) database.Service {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	svc, err := database.Open(sqlite.Open(dsn), database.Options{
		Name:         name,
		MaxIdleConns: 1,
		MaxOpenConns: 1,
	}, logger.Nop())
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func New(t testing.TB) *gorm.DB {
	t.Helper()
	return Service(t).GetDB()
}
