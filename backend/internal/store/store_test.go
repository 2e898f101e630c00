package store

import (
	"fmt"
	"testing"

	"gorm.io/gorm"
)

// openTestDB opens a fresh in-memory sqlite database per test. The DSN is
// namespaced by test name so tests never share state.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	return db
}
