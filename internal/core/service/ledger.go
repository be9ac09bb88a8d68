package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/port"
)

const tracerName = "github.com/rl1809/storefront-ledger/ledger"

// Ledger owns every write that touches orders, order lines, stock and sales facts.
// Each operation runs as a single unit of work.
type Ledger struct {
	uow    port.UnitOfWork
	topic  string
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type LedgerOption func(*Ledger)

func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) { l.now = now }
}

func WithTracer(tracer trace.Tracer) LedgerOption {
	return func(l *Ledger) { l.tracer = tracer }
}

// NewLedger creates a ledger writing its outbox events for topic.
func NewLedger(uow port.UnitOfWork, topic string, logger *zap.Logger, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		uow:    uow,
		topic:  topic,
		logger: logger,
		tracer: otel.Tracer(tracerName),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// PlaceOrder persists the order, its lines and sales facts and decrements stock,
// all or nothing. It never retries.
func (l *Ledger) PlaceOrder(ctx context.Context, req domain.PlacementRequest) (string, error) {
	ctx, span := l.tracer.Start(ctx, "ledger.place_order")
	defer span.End()

	now := l.now().UTC()
	order := domain.Order{
		ID:             uuid.NewString(),
		CustomerID:     req.CustomerID,
		CustomerName:   req.CustomerName,
		DeliveryMethod: req.DeliveryMethod,
		StoreLocation:  req.StoreLocation,
		Status:         domain.OrderStatusPending,
		DeliveryDate:   req.DeliveryDate,
		Address:        req.Address,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("customer.id", req.CustomerID),
		attribute.Int("order.lines", len(req.Lines)),
	)

	err := l.uow.Within(ctx, func(tx port.LedgerTx) error {
		products, err := tx.GetProducts(ctx, distinctProductIDs(req.Lines))
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}

		lines, total, err := priceLines(order.ID, req, products)
		if err != nil {
			return err
		}
		order.TotalPrice = total
		order.Lines = lines

		if err := tx.InsertOrder(ctx, order); err != nil {
			return fmt.Errorf("insert order: %w", err)
		}

		facts := make([]domain.SalesFact, 0, len(lines))
		for _, line := range lines {
			ok, err := tx.DecrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return fmt.Errorf("decrement stock: %w", err)
			}
			if !ok {
				return &domain.InsufficientStockError{ProductID: line.ProductID, Requested: line.Quantity}
			}

			if err := tx.InsertOrderLine(ctx, line); err != nil {
				return fmt.Errorf("insert order line: %w", err)
			}

			fact := ProjectSalesFact(order, line, products[line.ProductID].Name, req.Address, req.PaymentReference)
			if err := tx.InsertSalesFact(ctx, fact); err != nil {
				return fmt.Errorf("insert sales fact: %w", err)
			}
			facts = append(facts, fact)
		}

		records := make([]domain.SalesFactRecord, 0, len(facts))
		for _, f := range facts {
			records = append(records, salesFactRecord(f))
		}
		event, err := l.newEvent(order.ID, domain.EventOrderPlaced, domain.OrderPlacedEvent{
			OrderID:        order.ID,
			CustomerID:     order.CustomerID,
			TotalPrice:     order.TotalPrice,
			DeliveryMethod: order.DeliveryMethod,
			StoreLocation:  order.StoreLocation,
			DeliveryDate:   order.DeliveryDate,
			Facts:          records,
			PlacedAt:       now,
		})
		if err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, event)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetStatus(codes.Ok, "order placed")
	l.logger.Info("order placed",
		zap.String("order_id", order.ID),
		zap.String("customer_id", order.CustomerID),
		zap.String("total_price", order.TotalPrice.StringFixed(2)),
		zap.Int("lines", len(order.Lines)),
	)
	return order.ID, nil
}

// CancelOrder deletes a pending order and its lines and puts the stock back,
// in one unit of work.
func (l *Ledger) CancelOrder(ctx context.Context, orderID string) error {
	ctx, span := l.tracer.Start(ctx, "ledger.cancel_order")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	restocked := make(map[string]int)
	err := l.uow.Within(ctx, func(tx port.LedgerTx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if order.Status != domain.OrderStatusPending {
			return &domain.InvalidTransitionError{OrderID: orderID, From: order.Status, To: domain.OrderStatusCanceled}
		}

		lines, err := tx.GetOrderLines(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order lines: %w", err)
		}
		if err := tx.DeleteOrderLines(ctx, orderID); err != nil {
			return fmt.Errorf("delete order lines: %w", err)
		}

		deleted, err := tx.DeletePendingOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		if !deleted {
			current, err := tx.GetOrder(ctx, orderID)
			if err != nil {
				return fmt.Errorf("reload order: %w", err)
			}
			if current == nil {
				return domain.ErrOrderNotFound
			}
			return &domain.InvalidTransitionError{OrderID: orderID, From: current.Status, To: domain.OrderStatusCanceled}
		}

		for _, line := range lines {
			ok, err := tx.IncrementStock(ctx, line.ProductID, line.Quantity)
			if err != nil {
				return fmt.Errorf("restock: %w", err)
			}
			if !ok {
				l.logger.Warn("product removed from catalog, skipping restock",
					zap.String("order_id", orderID),
					zap.String("product_id", line.ProductID),
				)
				continue
			}
			restocked[line.ProductID] += line.Quantity
		}

		event, err := l.newEvent(orderID, domain.EventOrderCanceled, domain.OrderCanceledEvent{
			OrderID:    orderID,
			CustomerID: order.CustomerID,
			Restocked:  restocked,
			CanceledAt: l.now().UTC(),
		})
		if err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, event)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "order canceled")
	l.logger.Info("order canceled", zap.String("order_id", orderID), zap.Any("restocked", restocked))
	return nil
}

// UpdateStatus applies a fulfillment transition (pending→shipped→delivered).
func (l *Ledger) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus) error {
	ctx, span := l.tracer.Start(ctx, "ledger.update_status")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status", string(to)))

	err := l.uow.Within(ctx, func(tx port.LedgerTx) error {
		order, err := tx.GetOrder(ctx, orderID)
		if err != nil {
			return fmt.Errorf("load order: %w", err)
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}
		if !order.Status.CanTransitionTo(to) {
			return &domain.InvalidTransitionError{OrderID: orderID, From: order.Status, To: to}
		}

		now := l.now().UTC()
		ok, err := tx.UpdateOrderStatus(ctx, orderID, order.Status, to, now)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		if !ok {
			// someone else moved the order since we read it
			return &domain.InvalidTransitionError{OrderID: orderID, From: order.Status, To: to}
		}

		event, err := l.newEvent(orderID, domain.EventOrderStatusChanged, domain.OrderStatusChangedEvent{
			OrderID:   orderID,
			From:      order.Status,
			To:        to,
			ChangedAt: now,
		})
		if err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, event)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (l *Ledger) newEvent(key, eventType string, payload any) (domain.OutboxEvent, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return domain.OutboxEvent{
		ID:        uuid.NewString(),
		Topic:     l.topic,
		Key:       key,
		Type:      eventType,
		Payload:   body,
		CreatedAt: l.now().UTC(),
	}, nil
}

// priceLines snapshots catalog prices onto the lines and checks them, and the
// client's total, against what the catalog says.
func priceLines(orderID string, req domain.PlacementRequest, products map[string]domain.Product) ([]domain.OrderLine, decimal.Decimal, error) {
	lines := make([]domain.OrderLine, 0, len(req.Lines))
	total := decimal.Zero
	for _, pl := range req.Lines {
		product, ok := products[pl.ProductID]
		if !ok {
			return nil, decimal.Zero, &domain.ProductNotFoundError{ProductID: pl.ProductID}
		}
		if pl.UnitPriceHint != nil && !pl.UnitPriceHint.Equal(product.Price) {
			return nil, decimal.Zero, &domain.PriceMismatchError{
				ProductID: pl.ProductID,
				Submitted: *pl.UnitPriceHint,
				Computed:  product.Price,
			}
		}

		line := domain.OrderLine{
			ID:        uuid.NewString(),
			OrderID:   orderID,
			ProductID: pl.ProductID,
			Quantity:  pl.Quantity,
			UnitPrice: product.Price,
		}
		total = total.Add(line.Subtotal())
		lines = append(lines, line)
	}

	if !total.Equal(req.TotalPrice) {
		return nil, decimal.Zero, &domain.PriceMismatchError{Submitted: req.TotalPrice, Computed: total}
	}
	return lines, total, nil
}

func distinctProductIDs(lines []domain.PlacementLine) []string {
	seen := make(map[string]struct{}, len(lines))
	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}
