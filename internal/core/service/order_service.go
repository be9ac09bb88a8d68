package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/port"
)

const defaultLedgerTimeout = 5 * time.Second

var errNoOrderLookup = errors.New("no order repository to look up idempotency keys")

type OrderService struct {
	ledger      *Ledger
	orders      port.OrderRepository
	idempotency port.IdempotencyStore
	logger      *zap.Logger
	timeout     time.Duration
}

// NewOrderService wires the ledger with the read side. idempotency may be nil,
// in which case idempotency keys are ignored.
func NewOrderService(ledger *Ledger, orders port.OrderRepository, idempotency port.IdempotencyStore, logger *zap.Logger, timeout time.Duration) *OrderService {
	if timeout <= 0 {
		timeout = defaultLedgerTimeout
	}
	return &OrderService{
		ledger:      ledger,
		orders:      orders,
		idempotency: idempotency,
		logger:      logger,
		timeout:     timeout,
	}
}

// PlaceOrder validates the submission and hands it to the ledger under a bounded timeout.
// A replayed idempotency key whose order committed returns the original order id.
// The key is stored on the order row, so the orders table settles every replay the
// idempotency store cannot answer.
func (s *OrderService) PlaceOrder(ctx context.Context, sub OrderSubmission) (string, error) {
	req, err := ValidateSubmission(sub)
	if err != nil {
		return "", err
	}

	key := req.IdempotencyKey
	tracked := key != "" && s.idempotency != nil
	if tracked {
		claimed, existing, err := s.idempotency.Claim(ctx, key)
		if err != nil {
			if orderID, lookupErr := s.committedOrder(ctx, key); lookupErr == nil && orderID != "" {
				s.logger.Info("replayed order request", zap.String("idempotency_key", key), zap.String("order_id", orderID))
				return orderID, nil
			}
			return "", fmt.Errorf("%w: idempotency check failed: %w", domain.ErrStoreUnavailable, err)
		}
		if !claimed {
			if existing == "" {
				// In flight, or an earlier attempt whose outcome was never recorded.
				existing, err = s.committedOrder(ctx, key)
				if err != nil || existing == "" {
					return "", domain.ErrDuplicateRequest
				}
				s.completeKey(ctx, key, existing)
			}
			s.logger.Info("replayed order request", zap.String("idempotency_key", key), zap.String("order_id", existing))
			return existing, nil
		}
	}

	ledgerCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	orderID, err := s.ledger.PlaceOrder(ledgerCtx, req)
	if err == nil {
		if tracked {
			s.completeKey(ctx, key, orderID)
		}
		return orderID, nil
	}

	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrStoreUnavailable) {
		err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
	}
	if key == "" {
		return "", err
	}

	// A store failure may have hidden a commit, and a duplicate means another
	// attempt with this key committed. Only the orders table can tell.
	if errors.Is(err, domain.ErrStoreUnavailable) || errors.Is(err, domain.ErrDuplicateRequest) {
		committed, lookupErr := s.committedOrder(ctx, key)
		if lookupErr != nil {
			// Outcome unknown: the claim stays until it expires.
			s.logger.Warn("order outcome unknown, keeping idempotency key",
				zap.String("idempotency_key", key), zap.Error(lookupErr))
			return "", err
		}
		if committed != "" {
			if tracked {
				s.completeKey(ctx, key, committed)
			}
			s.logger.Info("recovered committed order", zap.String("idempotency_key", key), zap.String("order_id", committed))
			return committed, nil
		}
	}

	// Nothing committed under key. A late commit still holds the unique index.
	if tracked {
		if relErr := s.idempotency.Release(context.WithoutCancel(ctx), key); relErr != nil {
			s.logger.Error("failed to release idempotency key", zap.String("idempotency_key", key), zap.Error(relErr))
		}
	}
	return "", err
}

// committedOrder looks up the order placed with key. It runs on its own
// deadline so a placement that ran out of time can still be settled.
func (s *OrderService) committedOrder(ctx context.Context, key string) (string, error) {
	if s.orders == nil {
		return "", errNoOrderLookup
	}
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	return s.orders.FindOrderIDByIdempotencyKey(lookupCtx, key)
}

// completeKey records the order for key. The order is committed either way; a
// key left in flight is still resolved through the orders table.
func (s *OrderService) completeKey(ctx context.Context, key, orderID string) {
	if err := s.idempotency.Complete(context.WithoutCancel(ctx), key, orderID); err != nil {
		s.logger.Error("failed to record idempotency key", zap.String("idempotency_key", key), zap.String("order_id", orderID), zap.Error(err))
	}
}

func (s *OrderService) ListOrders(ctx context.Context, customerID string) ([]domain.OrderSummary, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, &domain.ValidationError{Fields: []string{"customerId is required"}}
	}
	orders, err := s.orders.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

// ListRecentOrders returns the newest orders across all customers.
func (s *OrderService) ListRecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error) {
	if limit <= 0 {
		return nil, &domain.ValidationError{Fields: []string{"limit must be positive"}}
	}
	orders, err := s.orders.ListRecentOrders(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *OrderService) CancelOrder(ctx context.Context, orderID string) error {
	if strings.TrimSpace(orderID) == "" {
		return &domain.ValidationError{Fields: []string{"orderId is required"}}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ledger.CancelOrder(ctx, orderID)
}

func (s *OrderService) UpdateStatus(ctx context.Context, orderID string, status string) error {
	to := domain.OrderStatus(strings.TrimSpace(status))
	if !to.Valid() {
		return &domain.ValidationError{Fields: []string{fmt.Sprintf("status %q is not supported", status)}}
	}
	if to == domain.OrderStatusCanceled {
		return s.CancelOrder(ctx, orderID)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.ledger.UpdateStatus(ctx, orderID, to)
}
