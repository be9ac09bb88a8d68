package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCanceled  OrderStatus = "canceled"
)

// fulfillmentTransitions lists the status changes UpdateStatus may apply.
// Cancellation is not here: it deletes the order instead of moving it.
var fulfillmentTransitions = map[OrderStatus]OrderStatus{
	OrderStatusPending: OrderStatusShipped,
	OrderStatusShipped: OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusShipped, OrderStatusDelivered, OrderStatusCanceled:
		return true
	}
	return false
}

// CanTransitionTo reports whether a fulfillment update may move an order from s to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	return fulfillmentTransitions[s] == next
}

type DeliveryMethod string

const (
	DeliveryHomeDelivery  DeliveryMethod = "home_delivery"
	DeliveryInStorePickup DeliveryMethod = "in_store_pickup"
)

// ParseDeliveryMethod accepts the canonical names and the camelCase spellings
// the storefront frontend sends.
func ParseDeliveryMethod(s string) (DeliveryMethod, bool) {
	switch s {
	case string(DeliveryHomeDelivery), "homeDelivery":
		return DeliveryHomeDelivery, true
	case string(DeliveryInStorePickup), "inStorePickup":
		return DeliveryInStorePickup, true
	}
	return "", false
}

type Order struct {
	ID             string
	CustomerID     string
	CustomerName   string
	TotalPrice     decimal.Decimal
	DeliveryMethod DeliveryMethod
	StoreLocation  string
	Status         OrderStatus
	DeliveryDate   time.Time
	Address        string
	IdempotencyKey string
	Lines          []OrderLine
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type OrderLine struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderSummary is the past-orders view of an order.
type OrderSummary struct {
	ID             string
	TotalPrice     decimal.Decimal
	DeliveryMethod DeliveryMethod
	Status         OrderStatus
	DeliveryDate   time.Time
	CreatedAt      time.Time
}

// PlacementLine is one validated cart entry.
type PlacementLine struct {
	ProductID     string
	Quantity      int
	UnitPriceHint *decimal.Decimal
}

// PlacementRequest is a cart that passed validation and may be handed to the ledger.
type PlacementRequest struct {
	IdempotencyKey   string
	CustomerID       string
	CustomerName     string
	TotalPrice       decimal.Decimal
	DeliveryMethod   DeliveryMethod
	StoreLocation    string
	DeliveryDate     time.Time
	Lines            []PlacementLine
	Address          string
	PaymentReference string
}
