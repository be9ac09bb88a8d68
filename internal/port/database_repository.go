package port

import (
	"context"
	"time"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

// UnitOfWork runs a function inside one store transaction.
type UnitOfWork interface {
	// Within commits when fn returns nil and rolls back on any error, panic or
	// context cancellation.
	Within(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LedgerTx is the set of store operations available inside a unit of work.
type LedgerTx interface {
	// GetProducts returns the requested products keyed by id; absent ids are missing from the map.
	GetProducts(ctx context.Context, productIDs []string) (map[string]domain.Product, error)

	// DecrementStock subtracts quantity only if stock >= quantity, returns false otherwise
	DecrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	// IncrementStock adds quantity back, returns false if the product no longer exists
	IncrementStock(ctx context.Context, productID string, quantity int) (bool, error)

	InsertOrder(ctx context.Context, order domain.Order) error
	InsertOrderLine(ctx context.Context, line domain.OrderLine) error
	InsertSalesFact(ctx context.Context, fact domain.SalesFact) error
	InsertOutboxEvent(ctx context.Context, event domain.OutboxEvent) error

	// GetOrder returns the order header without lines, nil if absent
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	GetOrderLines(ctx context.Context, orderID string) ([]domain.OrderLine, error)

	// DeletePendingOrder removes the order row only while it is pending
	DeletePendingOrder(ctx context.Context, orderID string) (bool, error)
	DeleteOrderLines(ctx context.Context, orderID string) error

	// UpdateOrderStatus moves the order from one status to another, returns false if
	// the order was not in the from status
	UpdateOrderStatus(ctx context.Context, orderID string, from, to domain.OrderStatus, at time.Time) (bool, error)
}

type OrderRepository interface {
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]domain.OrderSummary, error)
	ListRecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error)

	// FindOrderIDByIdempotencyKey returns "" when no committed order carries key
	FindOrderIDByIdempotencyKey(ctx context.Context, key string) (string, error)

	// GetOrder returns the order with its lines, nil if absent
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
}

type CatalogRepository interface {
	UpsertProduct(ctx context.Context, product domain.Product) error
	Restock(ctx context.Context, productID string, quantity int) error
	GetStock(ctx context.Context, productID string) (int, error)
}

type ReportingRepository interface {
	MostSold(ctx context.Context, limit int) ([]domain.ProductSales, error)
	TopStoreLocations(ctx context.Context, limit int) ([]domain.LocationOrders, error)
}

type OutboxRepository interface {
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, eventID string, at time.Time) error
}
