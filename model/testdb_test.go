package model

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newTestDB opens an isolated in-memory registry store for one test and
// migrates the same tables InitDB does. Each test gets its own named shared
// cache so parallel subtests never see each other's rows, and the pool is
// pinned to one connection so SQLite doesn't drop the in-memory DB between
// queries.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open in-memory sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("underlying sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Service{}, &ModelLimits{}, &UserKey{}, &UserKeyModel{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}
