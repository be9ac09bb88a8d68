package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/port"
)

func (m *MySQLAdapter) ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.OrderSummary, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, total_price, delivery_method, status, delivery_date, created_at
		FROM orders
		WHERE customer_id = ?
		ORDER BY created_at DESC, id`, customerID)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("query orders: %w", err))
	}
	return scanSummaries(ctx, rows)
}

// ListRecentOrders returns the newest orders across all customers.
func (m *MySQLAdapter) ListRecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT id, total_price, delivery_method, status, delivery_date, created_at
		FROM orders
		ORDER BY created_at DESC, id
		LIMIT ?`, limit)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("query orders: %w", err))
	}
	return scanSummaries(ctx, rows)
}

func scanSummaries(ctx context.Context, rows *sql.Rows) ([]domain.OrderSummary, error) {
	defer rows.Close()

	orders := make([]domain.OrderSummary, 0)
	for rows.Next() {
		var (
			s            domain.OrderSummary
			method       string
			status       string
			deliveryDate sql.NullTime
		)
		if err := rows.Scan(&s.ID, &s.TotalPrice, &method, &status, &deliveryDate, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		s.DeliveryMethod = domain.DeliveryMethod(method)
		s.Status = domain.OrderStatus(status)
		if deliveryDate.Valid {
			s.DeliveryDate = deliveryDate.Time
		}
		orders = append(orders, s)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(ctx, err)
	}
	return orders, nil
}

// FindOrderIDByIdempotencyKey returns the id of the committed order placed with
// key, or "" when there is none.
func (m *MySQLAdapter) FindOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error) {
	var orderID string
	err := m.db.QueryRowContext(ctx, `SELECT id FROM orders WHERE idempotency_key = ?`, key).Scan(&orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", classify(ctx, fmt.Errorf("query order by idempotency key: %w", err))
	}
	return orderID, nil
}

func (m *MySQLAdapter) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := getOrderHeader(ctx, m.db, orderID)
	if err != nil || order == nil {
		return nil, classify(ctx, err)
	}

	lines, err := getOrderLines(ctx, m.db, orderID)
	if err != nil {
		return nil, classify(ctx, err)
	}
	order.Lines = lines
	return order, nil
}

// UpsertProduct creates the product or overwrites its name, price and stock.
func (m *MySQLAdapter) UpsertProduct(ctx context.Context, p domain.Product) error {
	if p.Stock < 0 {
		return &domain.ValidationError{Fields: []string{"stock must not be negative"}}
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(ctx, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	// version always changes, so MySQL reports the row as affected even when
	// the other values are identical
	result, err := tx.ExecContext(ctx, `
		UPDATE products
		SET name = ?, price = ?, stock = ?, version = version + 1, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Price, p.Stock, now, p.ID,
	)
	if err != nil {
		return classify(ctx, fmt.Errorf("update product: %w", err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO products (id, name, price, stock, version, updated_at)
			VALUES (?, ?, ?, ?, 0, ?)`,
			p.ID, p.Name, p.Price, p.Stock, now,
		)
		if err != nil {
			return classify(ctx, fmt.Errorf("insert product: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return classify(ctx, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Restock adds quantity units to an existing product.
func (m *MySQLAdapter) Restock(ctx context.Context, productID string, quantity int) error {
	if quantity <= 0 {
		return &domain.ValidationError{Fields: []string{"quantity must be positive"}}
	}
	return m.Within(ctx, func(tx port.LedgerTx) error {
		ok, err := tx.IncrementStock(ctx, productID, quantity)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.ProductNotFoundError{ProductID: productID}
		}
		return nil
	})
}

func (m *MySQLAdapter) GetStock(ctx context.Context, productID string) (int, error) {
	var stock int
	err := m.db.QueryRowContext(ctx, `SELECT stock FROM products WHERE id = ?`, productID).Scan(&stock)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, &domain.ProductNotFoundError{ProductID: productID}
	}
	if err != nil {
		return 0, classify(ctx, fmt.Errorf("query stock: %w", err))
	}
	return stock, nil
}

// MostSold ranks products by units sold. Facts whose order line was removed by a
// cancellation are not counted.
func (m *MySQLAdapter) MostSold(ctx context.Context, limit int) ([]domain.ProductSales, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT f.product_id, f.product_name, SUM(f.quantity) AS units_sold, SUM(f.unit_price * f.quantity) AS revenue
		FROM sales_facts f
		JOIN order_lines l ON l.id = f.line_id
		GROUP BY f.product_id, f.product_name
		ORDER BY units_sold DESC, f.product_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("query most sold: %w", err))
	}
	defer rows.Close()

	report := make([]domain.ProductSales, 0)
	for rows.Next() {
		var ps domain.ProductSales
		if err := rows.Scan(&ps.ProductID, &ps.ProductName, &ps.UnitsSold, &ps.Revenue); err != nil {
			return nil, fmt.Errorf("scan most sold: %w", err)
		}
		report = append(report, ps)
	}
	return report, rows.Err()
}

// TopStoreLocations ranks pickup locations by number of live orders.
func (m *MySQLAdapter) TopStoreLocations(ctx context.Context, limit int) ([]domain.LocationOrders, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT store_location, COUNT(*) AS order_count
		FROM orders
		WHERE store_location IS NOT NULL AND store_location <> ''
		GROUP BY store_location
		ORDER BY order_count DESC, store_location
		LIMIT ?`, limit)
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("query store locations: %w", err))
	}
	defer rows.Close()

	report := make([]domain.LocationOrders, 0)
	for rows.Next() {
		var lo domain.LocationOrders
		if err := rows.Scan(&lo.StoreLocation, &lo.Orders); err != nil {
			return nil, fmt.Errorf("scan store location: %w", err)
		}
		report = append(report, lo)
	}
	return report, rows.Err()
}
