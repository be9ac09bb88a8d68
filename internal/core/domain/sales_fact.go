package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalesFact is the denormalized, write-once record of a committed order line.
type SalesFact struct {
	ID               string
	OrderID          string
	LineID           string
	CustomerID       string
	CustomerName     string
	ProductID        string
	ProductName      string
	UnitPrice        decimal.Decimal
	Quantity         int
	Address          string
	PaymentReference string
	RecordedAt       time.Time
}
