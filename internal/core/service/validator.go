package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
)

const (
	deliveryDateLayout   = "2006-01-02"
	maxIdempotencyKeyLen = 255
)

// OrderSubmission is a cart as received from a client, before validation.
// Pointer fields distinguish absent values from zero values.
type OrderSubmission struct {
	IdempotencyKey   string
	CustomerID       string
	CustomerName     string
	TotalPrice       *decimal.Decimal
	DeliveryMethod   string
	StoreLocation    string
	DeliveryDate     string
	Lines            []SubmittedLine
	Address          string
	PaymentReference string
}

type SubmittedLine struct {
	ProductID     string
	Quantity      int
	UnitPriceHint *decimal.Decimal
}

// ValidateSubmission checks the shape of a submission. It has no side effects.
func ValidateSubmission(sub OrderSubmission) (domain.PlacementRequest, error) {
	var problems []string
	missing := func(field string) { problems = append(problems, field+" is required") }

	if strings.TrimSpace(sub.CustomerID) == "" {
		missing("customerId")
	}
	if sub.TotalPrice == nil {
		missing("totalPrice")
	} else if sub.TotalPrice.IsNegative() {
		problems = append(problems, "totalPrice must not be negative")
	}

	var method domain.DeliveryMethod
	if strings.TrimSpace(sub.DeliveryMethod) == "" {
		missing("deliveryMethod")
	} else if m, ok := domain.ParseDeliveryMethod(sub.DeliveryMethod); !ok {
		problems = append(problems, fmt.Sprintf("deliveryMethod %q is not supported", sub.DeliveryMethod))
	} else {
		method = m
	}
	if method == domain.DeliveryInStorePickup && strings.TrimSpace(sub.StoreLocation) == "" {
		problems = append(problems, "storeLocation is required for in-store pickup")
	}

	var deliveryDate time.Time
	if sub.DeliveryDate != "" {
		d, err := parseDeliveryDate(sub.DeliveryDate)
		if err != nil {
			problems = append(problems, fmt.Sprintf("deliveryDate %q is not a date", sub.DeliveryDate))
		}
		deliveryDate = d
	}

	if strings.TrimSpace(sub.Address) == "" {
		missing("address")
	}
	if strings.TrimSpace(sub.PaymentReference) == "" {
		missing("paymentReference")
	}

	if len(strings.TrimSpace(sub.IdempotencyKey)) > maxIdempotencyKeyLen {
		problems = append(problems, fmt.Sprintf("idempotency key must be at most %d bytes", maxIdempotencyKeyLen))
	}

	if len(sub.Lines) == 0 {
		problems = append(problems, "lines must contain at least one entry")
	}
	lines := make([]domain.PlacementLine, 0, len(sub.Lines))
	for i, l := range sub.Lines {
		if strings.TrimSpace(l.ProductID) == "" {
			problems = append(problems, fmt.Sprintf("lines[%d].productId is required", i))
		}
		if l.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("lines[%d].quantity must be positive", i))
		}
		if l.UnitPriceHint != nil && l.UnitPriceHint.IsNegative() {
			problems = append(problems, fmt.Sprintf("lines[%d].unitPriceHint must not be negative", i))
		}
		lines = append(lines, domain.PlacementLine{
			ProductID:     strings.TrimSpace(l.ProductID),
			Quantity:      l.Quantity,
			UnitPriceHint: l.UnitPriceHint,
		})
	}

	if len(problems) > 0 {
		return domain.PlacementRequest{}, &domain.ValidationError{Fields: problems}
	}

	req := domain.PlacementRequest{
		IdempotencyKey:   strings.TrimSpace(sub.IdempotencyKey),
		CustomerID:       strings.TrimSpace(sub.CustomerID),
		CustomerName:     strings.TrimSpace(sub.CustomerName),
		TotalPrice:       *sub.TotalPrice,
		DeliveryMethod:   method,
		DeliveryDate:     deliveryDate,
		Lines:            lines,
		Address:          strings.TrimSpace(sub.Address),
		PaymentReference: strings.TrimSpace(sub.PaymentReference),
	}
	if method == domain.DeliveryInStorePickup {
		req.StoreLocation = strings.TrimSpace(sub.StoreLocation)
	}
	return req, nil
}

func parseDeliveryDate(s string) (time.Time, error) {
	if d, err := time.Parse(deliveryDateLayout, s); err == nil {
		return d, nil
	}
	d, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return d.UTC().Truncate(24 * time.Hour), nil
}
