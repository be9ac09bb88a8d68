package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "order.placed"
	EventOrderCanceled      = "order.canceled"
	EventOrderStatusChanged = "order.status_changed"
)

// OutboxEvent is written in the same transaction as the change it describes
// and published to the broker afterwards.
type OutboxEvent struct {
	ID          string
	Topic       string
	Key         string
	Type        string
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
}

type OrderPlacedEvent struct {
	OrderID        string            `json:"order_id"`
	CustomerID     string            `json:"customer_id"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	DeliveryMethod DeliveryMethod    `json:"delivery_method"`
	StoreLocation  string            `json:"store_location,omitempty"`
	DeliveryDate   time.Time         `json:"delivery_date"`
	Facts          []SalesFactRecord `json:"facts"`
	PlacedAt       time.Time         `json:"placed_at"`
}

// SalesFactRecord is the wire form of a SalesFact. The payment reference is left out.
type SalesFactRecord struct {
	FactID      string          `json:"fact_id"`
	LineID      string          `json:"line_id"`
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	Address     string          `json:"address"`
}

type OrderCanceledEvent struct {
	OrderID    string         `json:"order_id"`
	CustomerID string         `json:"customer_id"`
	Restocked  map[string]int `json:"restocked"`
	CanceledAt time.Time      `json:"canceled_at"`
}

type OrderStatusChangedEvent struct {
	OrderID   string      `json:"order_id"`
	From      OrderStatus `json:"from"`
	To        OrderStatus `json:"to"`
	ChangedAt time.Time   `json:"changed_at"`
}
