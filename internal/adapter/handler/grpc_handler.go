package handler

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rl1809/storefront-ledger/internal/adapter/handler/pb"
	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/core/service"
)

type GRPCHandler struct {
	pb.UnimplementedOrderServiceServer
	orders OrderAPI
	logger *zap.Logger
}

func NewGRPCHandler(orders OrderAPI, logger *zap.Logger) *GRPCHandler {
	return &GRPCHandler{orders: orders, logger: logger}
}

func (h *GRPCHandler) PlaceOrder(ctx context.Context, req *pb.PlaceOrderRequest) (*pb.PlaceOrderResponse, error) {
	var problems []string

	var total *decimal.Decimal
	if raw := req.GetTotalPrice(); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			problems = append(problems, "totalPrice is not a number")
		} else {
			total = &d
		}
	}

	sub := service.OrderSubmission{
		IdempotencyKey:   req.GetIdempotencyKey(),
		CustomerID:       req.GetCustomerId(),
		CustomerName:     req.GetCustomerName(),
		TotalPrice:       total,
		DeliveryMethod:   req.GetDeliveryMethod(),
		StoreLocation:    req.GetStoreLocation(),
		DeliveryDate:     req.GetDeliveryDate(),
		Address:          req.GetAddress(),
		PaymentReference: req.GetPaymentReference(),
	}
	for i, l := range req.GetLines() {
		line := service.SubmittedLine{
			ProductID: l.GetProductId(),
			Quantity:  int(l.GetQuantity()),
		}
		if raw := l.GetUnitPriceHint(); raw != "" {
			d, err := decimal.NewFromString(raw)
			if err != nil {
				problems = append(problems, fmt.Sprintf("lines[%d].unitPriceHint is not a number", i))
			} else {
				line.UnitPriceHint = &d
			}
		}
		sub.Lines = append(sub.Lines, line)
	}
	if len(problems) > 0 {
		return nil, h.toStatus(&domain.ValidationError{Fields: problems})
	}

	orderID, err := h.orders.PlaceOrder(ctx, sub)
	if err != nil {
		return nil, h.toStatus(err)
	}
	return &pb.PlaceOrderResponse{OrderId: orderID}, nil
}

func (h *GRPCHandler) ListOrders(ctx context.Context, req *pb.ListOrdersRequest) (*pb.ListOrdersResponse, error) {
	orders, err := h.orders.ListOrders(ctx, req.GetCustomerId())
	if err != nil {
		return nil, h.toStatus(err)
	}

	resp := &pb.ListOrdersResponse{Orders: make([]*pb.OrderSummary, 0, len(orders))}
	for _, o := range orders {
		summary := &pb.OrderSummary{
			OrderId:        o.ID,
			TotalPrice:     o.TotalPrice.StringFixed(2),
			DeliveryMethod: string(o.DeliveryMethod),
			Status:         string(o.Status),
			CreatedAt:      o.CreatedAt.UTC().Format(time.RFC3339),
		}
		if !o.DeliveryDate.IsZero() {
			summary.DeliveryDate = o.DeliveryDate.Format(dateLayout)
		}
		resp.Orders = append(resp.Orders, summary)
	}
	return resp, nil
}

func (h *GRPCHandler) CancelOrder(ctx context.Context, req *pb.CancelOrderRequest) (*pb.CancelOrderResponse, error) {
	if err := h.orders.CancelOrder(ctx, req.GetOrderId()); err != nil {
		return nil, h.toStatus(err)
	}
	return &pb.CancelOrderResponse{OrderId: req.GetOrderId()}, nil
}

func (h *GRPCHandler) UpdateOrderStatus(ctx context.Context, req *pb.UpdateOrderStatusRequest) (*pb.UpdateOrderStatusResponse, error) {
	if err := h.orders.UpdateStatus(ctx, req.GetOrderId(), req.GetStatus()); err != nil {
		return nil, h.toStatus(err)
	}
	return &pb.UpdateOrderStatusResponse{OrderId: req.GetOrderId(), Status: req.GetStatus()}, nil
}

func (h *GRPCHandler) toStatus(err error) error {
	m := classifyError(err)
	if m.grpc == codes.Internal || m.grpc == codes.Unavailable {
		h.logger.Error("grpc request failed", zap.Error(err))
	}
	return status.Error(m.grpc, publicMessage(err, m))
}
