package service

import (
	"github.com/google/uuid"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

// ProjectSalesFact derives the reporting record for one order line.
// It only builds the value; the ledger writes it in the order's transaction.
func ProjectSalesFact(order domain.Order, line domain.OrderLine, productName, address, paymentReference string) domain.SalesFact {
	return domain.SalesFact{
		ID:               uuid.NewString(),
		OrderID:          order.ID,
		LineID:           line.ID,
		CustomerID:       order.CustomerID,
		CustomerName:     order.CustomerName,
		ProductID:        line.ProductID,
		ProductName:      productName,
		UnitPrice:        line.UnitPrice,
		Quantity:         line.Quantity,
		Address:          address,
		PaymentReference: paymentReference,
		RecordedAt:       order.CreatedAt,
	}
}

func salesFactRecord(f domain.SalesFact) domain.SalesFactRecord {
	return domain.SalesFactRecord{
		FactID:      f.ID,
		LineID:      f.LineID,
		ProductID:   f.ProductID,
		ProductName: f.ProductName,
		UnitPrice:   f.UnitPrice,
		Quantity:    f.Quantity,
		Address:     f.Address,
	}
}
