package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

const mysqlErrDuplicateKeyName = 1061

var schemaTables = []string{
	`CREATE TABLE IF NOT EXISTS products (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		stock INT NOT NULL,
		version INT NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		CHECK (stock >= 0)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		customer_id VARCHAR(64) NOT NULL,
		customer_name VARCHAR(255) NOT NULL DEFAULT '',
		total_price DECIMAL(12,2) NOT NULL,
		delivery_method VARCHAR(32) NOT NULL,
		store_location VARCHAR(255) NULL,
		status VARCHAR(16) NOT NULL,
		delivery_date DATETIME NULL,
		address VARCHAR(512) NOT NULL,
		idempotency_key VARCHAR(255) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_lines (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		order_id VARCHAR(36) NOT NULL,
		product_id VARCHAR(64) NOT NULL,
		quantity INT NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		CHECK (quantity > 0),
		FOREIGN KEY (order_id) REFERENCES orders (id)
	)`,
	`CREATE TABLE IF NOT EXISTS sales_facts (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		order_id VARCHAR(36) NOT NULL,
		line_id VARCHAR(36) NOT NULL,
		customer_id VARCHAR(64) NOT NULL,
		customer_name VARCHAR(255) NOT NULL DEFAULT '',
		product_id VARCHAR(64) NOT NULL,
		product_name VARCHAR(255) NOT NULL,
		unit_price DECIMAL(12,2) NOT NULL,
		quantity INT NOT NULL,
		address VARCHAR(512) NOT NULL,
		payment_reference VARCHAR(128) NOT NULL,
		recorded_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS outbox_events (
		id VARCHAR(36) NOT NULL PRIMARY KEY,
		topic VARCHAR(255) NOT NULL,
		event_key VARCHAR(64) NOT NULL,
		event_type VARCHAR(64) NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME(6) NOT NULL,
		published_at DATETIME(6) NULL
	)`,
}

var schemaIndexes = []string{
	`CREATE INDEX idx_orders_customer ON orders (customer_id, created_at)`,
	`CREATE INDEX idx_orders_store_location ON orders (store_location)`,
	`CREATE INDEX idx_orders_created ON orders (created_at)`,
	// NULL keys do not collide, so orders placed without a key are unaffected.
	`CREATE UNIQUE INDEX idx_orders_idempotency_key ON orders (idempotency_key)`,
	`CREATE INDEX idx_order_lines_order ON order_lines (order_id)`,
	`CREATE INDEX idx_sales_facts_line ON sales_facts (line_id)`,
	`CREATE INDEX idx_outbox_unpublished ON outbox_events (published_at, created_at)`,
}

// Migrate creates the ledger tables and indexes. It is safe to run repeatedly
// against MySQL and SQLite.
func (m *MySQLAdapter) Migrate(ctx context.Context) error {
	_, onMySQL := m.db.Driver().(*mysql.MySQLDriver)
	for _, stmt := range schemaTables {
		if !onMySQL {
			// SQLite keeps sub-second precision as written, and the driver only
			// decodes times for columns declared exactly DATETIME.
			stmt = strings.ReplaceAll(stmt, "DATETIME(6)", "DATETIME")
		}
		if _, err := m.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	for _, stmt := range schemaIndexes {
		if _, err := m.db.ExecContext(ctx, stmt); err != nil && !isDuplicateIndex(err) {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func isDuplicateIndex(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDuplicateKeyName
	}
	return strings.Contains(err.Error(), "already exists")
}
