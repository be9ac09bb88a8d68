package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidRequest    = errors.New("invalid request")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrPriceMismatch     = errors.New("price mismatch")
	ErrNotFound          = errors.New("not found")
	ErrOrderNotFound     = fmt.Errorf("order %w", ErrNotFound)
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// ValidationError lists every field of a submission that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRequest }

type InsufficientStockError struct {
	ProductID string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (requested %d)", e.ProductID, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// PriceMismatchError is returned when the client's prices disagree with the catalog.
// ProductID is set when a single line's unit price hint was wrong.
type PriceMismatchError struct {
	ProductID string
	Submitted decimal.Decimal
	Computed  decimal.Decimal
}

func (e *PriceMismatchError) Error() string {
	if e.ProductID != "" {
		return fmt.Sprintf("price mismatch for product %s: submitted %s, catalog %s",
			e.ProductID, e.Submitted.StringFixed(2), e.Computed.StringFixed(2))
	}
	return fmt.Sprintf("price mismatch: submitted total %s, computed %s",
		e.Submitted.StringFixed(2), e.Computed.StringFixed(2))
}

func (e *PriceMismatchError) Unwrap() error { return ErrPriceMismatch }

type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Unwrap() error { return ErrNotFound }

type InvalidTransitionError struct {
	OrderID string
	From    OrderStatus
	To      OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }
