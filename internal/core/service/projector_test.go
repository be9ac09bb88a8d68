package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

func TestProjectSalesFact(t *testing.T) {
	placed := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	order := domain.Order{ID: "o1", CustomerID: "c1", CustomerName: "Ada", CreatedAt: placed}
	line := domain.OrderLine{ID: "l1", OrderID: "o1", ProductID: "p1", Quantity: 3, UnitPrice: decimal.RequireFromString("4.50")}

	fact := ProjectSalesFact(order, line, "Widget", "1 Main St", "tok_123")

	assert.NotEmpty(t, fact.ID)
	assert.Equal(t, "o1", fact.OrderID)
	assert.Equal(t, "l1", fact.LineID)
	assert.Equal(t, "c1", fact.CustomerID)
	assert.Equal(t, "Ada", fact.CustomerName)
	assert.Equal(t, "Widget", fact.ProductName)
	assert.Equal(t, 3, fact.Quantity)
	assert.True(t, fact.UnitPrice.Equal(line.UnitPrice))
	assert.Equal(t, "1 Main St", fact.Address)
	assert.Equal(t, "tok_123", fact.PaymentReference)
	assert.Equal(t, placed, fact.RecordedAt)

	other := ProjectSalesFact(order, line, "Widget", "1 Main St", "tok_123")
	assert.NotEqual(t, fact.ID, other.ID)
}

func TestSalesFactRecordOmitsPayment(t *testing.T) {
	fact := domain.SalesFact{ID: "f1", LineID: "l1", ProductID: "p1", PaymentReference: "tok_123", Quantity: 1}

	rec := salesFactRecord(fact)
	assert.Equal(t, "f1", rec.FactID)
	assert.Equal(t, "l1", rec.LineID)
	assert.NotContains(t, rec.Address+rec.ProductName, "tok_123")
}
