package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/port"
)

// MySQL error numbers that mean "try the whole transaction again".
const (
	mysqlErrLockWaitTimeout   = 1205
	mysqlErrDeadlock          = 1213
	mysqlErrTooManyConnection = 1040
)

const mysqlErrDuplicateEntry = 1062

// MySQLAdapter is the relational store behind the ledger. Statements stay within
// the SQL subset SQLite also accepts, so the same adapter runs in-process in tests.
type MySQLAdapter struct {
	db *sql.DB
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{db: db}
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (m *MySQLAdapter) Within(ctx context.Context, fn func(tx port.LedgerTx) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(ctx, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		return classify(ctx, err)
	}

	if err := tx.Commit(); err != nil {
		return classify(ctx, fmt.Errorf("commit: %w", err))
	}
	return nil
}

type ledgerTx struct {
	tx *sql.Tx
}

func (t *ledgerTx) GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	products := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return products, nil
	}

	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}
	rows, err := t.tx.QueryContext(ctx, `
		SELECT id, name, price, stock, updated_at
		FROM products WHERE id IN (`+placeholders(len(productIDs))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Stock, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	return products, rows.Err()
}

func (t *ledgerTx) DecrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock - ?, version = version + 1, updated_at = ?
		WHERE id = ? AND stock >= ?`,
		quantity, time.Now().UTC(), productID, quantity,
	)
	if err != nil {
		return false, fmt.Errorf("update stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *ledgerTx) IncrementStock(ctx context.Context, productID string, quantity int) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE products
		SET stock = stock + ?, version = version + 1, updated_at = ?
		WHERE id = ?`,
		quantity, time.Now().UTC(), productID,
	)
	if err != nil {
		return false, fmt.Errorf("update stock: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *ledgerTx) InsertOrder(ctx context.Context, order domain.Order) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, customer_name, total_price, delivery_method,
			store_location, status, delivery_date, address, idempotency_key, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.CustomerID, order.CustomerName, order.TotalPrice, string(order.DeliveryMethod),
		nullString(order.StoreLocation), string(order.Status), nullTime(order.DeliveryDate), order.Address,
		nullString(order.IdempotencyKey), order.CreatedAt, order.UpdatedAt,
	)
	if err != nil && order.IdempotencyKey != "" && isDuplicateEntry(err) {
		return fmt.Errorf("%w: idempotency key %q already placed an order", domain.ErrDuplicateRequest, order.IdempotencyKey)
	}
	return err
}

func (t *ledgerTx) InsertOrderLine(ctx context.Context, line domain.OrderLine) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO order_lines (id, order_id, product_id, quantity, unit_price)
		VALUES (?, ?, ?, ?, ?)`,
		line.ID, line.OrderID, line.ProductID, line.Quantity, line.UnitPrice,
	)
	return err
}

func (t *ledgerTx) InsertSalesFact(ctx context.Context, f domain.SalesFact) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO sales_facts (id, order_id, line_id, customer_id, customer_name, product_id,
			product_name, unit_price, quantity, address, payment_reference, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.OrderID, f.LineID, f.CustomerID, f.CustomerName, f.ProductID,
		f.ProductName, f.UnitPrice, f.Quantity, f.Address, f.PaymentReference, f.RecordedAt,
	)
	return err
}

func (t *ledgerTx) InsertOutboxEvent(ctx context.Context, e domain.OutboxEvent) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO outbox_events (id, topic, event_key, event_type, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Topic, e.Key, e.Type, e.Payload, e.CreatedAt,
	)
	return err
}

func (t *ledgerTx) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	return getOrderHeader(ctx, t.tx, orderID)
}

func (t *ledgerTx) GetOrderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	return getOrderLines(ctx, t.tx, orderID)
}

func (t *ledgerTx) DeletePendingOrder(ctx context.Context, orderID string) (bool, error) {
	result, err := t.tx.ExecContext(ctx,
		`DELETE FROM orders WHERE id = ? AND status = ?`, orderID, string(domain.OrderStatusPending))
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func (t *ledgerTx) DeleteOrderLines(ctx context.Context, orderID string) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM order_lines WHERE order_id = ?`, orderID)
	return err
}

func (t *ledgerTx) UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (bool, error) {
	result, err := t.tx.ExecContext(ctx, `
		UPDATE orders SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(to), at, orderID, string(from),
	)
	if err != nil {
		return false, err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return rows == 1, nil
}

func getOrderHeader(ctx context.Context, q querier, orderID string) (*domain.Order, error) {
	var (
		o              domain.Order
		method         string
		status         string
		storeLocation  sql.NullString
		idempotencyKey sql.NullString
		deliveryDate   sql.NullTime
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, customer_id, customer_name, total_price, delivery_method, store_location,
			status, delivery_date, address, idempotency_key, created_at, updated_at
		FROM orders WHERE id = ?`, orderID,
	).Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.TotalPrice, &method, &storeLocation,
		&status, &deliveryDate, &o.Address, &idempotencyKey, &o.CreatedAt, &o.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query order: %w", err)
	}

	o.DeliveryMethod = domain.DeliveryMethod(method)
	o.Status = domain.OrderStatus(status)
	o.StoreLocation = storeLocation.String
	o.IdempotencyKey = idempotencyKey.String
	if deliveryDate.Valid {
		o.DeliveryDate = deliveryDate.Time
	}
	return &o, nil
}

func getOrderLines(ctx context.Context, q querier, orderID string) ([]domain.OrderLine, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, order_id, product_id, quantity, unit_price
		FROM order_lines WHERE order_id = ?
		ORDER BY id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("query order lines: %w", err)
	}
	defer rows.Close()

	var lines []domain.OrderLine
	for rows.Next() {
		var l domain.OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.Quantity, &l.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// classify marks infrastructure failures as ErrStoreUnavailable so callers can
// tell a safe-to-retry failure from a business rule rejection.
func classify(ctx context.Context, err error) error {
	if err == nil || !isTransient(ctx, err) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
}

func isTransient(ctx context.Context, err error) bool {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlErrDeadlock, mysqlErrLockWaitTimeout, mysqlErrTooManyConnection:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// isDuplicateEntry reports a unique index violation from either driver.
func isDuplicateEntry(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDuplicateEntry
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
