package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is the catalog entry the ledger reads prices from and decrements stock on.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Stock     int
	UpdatedAt time.Time
}

// ProductSales is one row of the most-sold report.
type ProductSales struct {
	ProductID   string
	ProductName string
	UnitsSold   int
	Revenue     decimal.Decimal
}

// LocationOrders is one row of the top store locations report.
type LocationOrders struct {
	StoreLocation string
	Orders        int
}
