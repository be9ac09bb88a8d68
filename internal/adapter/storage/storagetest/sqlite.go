// Package storagetest opens throwaway SQLite-backed stores for tests.
package storagetest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/rl1809/storefront-ledger/internal/adapter/storage"
	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

// NewSQLite returns a migrated store in a temp file. Connections are capped at one
// so transactions serialize the way row locks would make them on MySQL.
func NewSQLite(t testing.TB) (*sql.DB, *storage.MySQLAdapter) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		filepath.Join(t.TempDir(), "ledger.db"))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := storage.NewMySQLAdapter(db)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db, store
}

// SeedProduct inserts or overwrites a catalog product.
func SeedProduct(t testing.TB, store *storage.MySQLAdapter, id, name, price string, stock int) {
	t.Helper()

	err := store.UpsertProduct(context.Background(), domain.Product{
		ID:    id,
		Name:  name,
		Price: decimal.RequireFromString(price),
		Stock: stock,
	})
	if err != nil {
		t.Fatalf("seed product %s: %v", id, err)
	}
}

// Count returns the number of rows in table.
func Count(t testing.TB, db *sql.DB, table string) int {
	t.Helper()

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}
