package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/rl1809/storefront-ledger/internal/core/domain"
	"github.com/rl1809/storefront-ledger/internal/core/service"
	"github.com/rl1809/storefront-ledger/internal/port"
)

const (
	maxBodyBytes       = 1 << 20
	defaultReportLimit = 5
	maxReportLimit     = 100
	defaultListLimit   = 50
	maxListLimit       = 500
	dateLayout         = "2006-01-02"
)

// OrderAPI is the order service as the transport layer sees it.
type OrderAPI interface {
	PlaceOrder(ctx context.Context, sub service.OrderSubmission) (string, error)
	ListOrders(ctx context.Context, customerID string) ([]domain.OrderSummary, error)
	ListRecentOrders(ctx context.Context, limit int) ([]domain.OrderSummary, error)
	GetOrder(ctx context.Context, orderID string) (*domain.Order, error)
	CancelOrder(ctx context.Context, orderID string) error
	UpdateStatus(ctx context.Context, orderID, status string) error
}

type HTTPHandler struct {
	orders  OrderAPI
	catalog port.CatalogRepository
	reports port.ReportingRepository
	logger  *zap.Logger
}

func NewHTTPHandler(orders OrderAPI, catalog port.CatalogRepository, reports port.ReportingRepository, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{orders: orders, catalog: catalog, reports: reports, logger: logger}
}

const placeOrderSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["customerId", "totalPrice", "deliveryMethod", "lines", "address", "paymentReference"],
  "properties": {
    "customerId": { "type": "string", "minLength": 1 },
    "customerName": { "type": "string" },
    "totalPrice": { "type": ["number", "string"] },
    "deliveryMethod": { "type": "string", "enum": ["home_delivery", "in_store_pickup", "homeDelivery", "inStorePickup"] },
    "storeLocation": { "type": "string" },
    "deliveryDate": { "type": "string" },
    "lines": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["productId", "quantity"],
        "properties": {
          "productId": { "type": "string", "minLength": 1 },
          "quantity": { "type": "integer", "minimum": 1 },
          "unitPriceHint": { "type": ["number", "string"] }
        },
        "additionalProperties": false
      }
    },
    "address": { "type": "string", "minLength": 1 },
    "paymentReference": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const updateStatusSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["status"],
  "properties": {
    "status": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": false
}`

const restockSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["quantity"],
  "properties": {
    "quantity": { "type": "integer", "minimum": 1 }
  },
  "additionalProperties": false
}`

var (
	placeOrderLoader   = gojsonschema.NewStringLoader(placeOrderSchema)
	updateStatusLoader = gojsonschema.NewStringLoader(updateStatusSchema)
	restockLoader      = gojsonschema.NewStringLoader(restockSchema)
)

type PlaceOrderHTTPRequest struct {
	CustomerID       string             `json:"customerId"`
	CustomerName     string             `json:"customerName"`
	TotalPrice       *decimal.Decimal   `json:"totalPrice"`
	DeliveryMethod   string             `json:"deliveryMethod"`
	StoreLocation    string             `json:"storeLocation"`
	DeliveryDate     string             `json:"deliveryDate"`
	Lines            []OrderLineHTTPDTO `json:"lines"`
	Address          string             `json:"address"`
	PaymentReference string             `json:"paymentReference"`
}

type OrderLineHTTPDTO struct {
	ProductID     string           `json:"productId"`
	Quantity      int              `json:"quantity"`
	UnitPriceHint *decimal.Decimal `json:"unitPriceHint,omitempty"`
	UnitPrice     string           `json:"unitPrice,omitempty"`
}

type OrderSummaryHTTPResponse struct {
	OrderID        string `json:"orderId"`
	TotalPrice     string `json:"totalPrice"`
	DeliveryMethod string `json:"deliveryMethod"`
	Status         string `json:"status"`
	DeliveryDate   string `json:"deliveryDate,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

type OrderHTTPResponse struct {
	OrderSummaryHTTPResponse
	CustomerID    string             `json:"customerId"`
	CustomerName  string             `json:"customerName,omitempty"`
	StoreLocation string             `json:"storeLocation,omitempty"`
	Address       string             `json:"address"`
	Lines         []OrderLineHTTPDTO `json:"lines"`
}

type ErrorHTTPResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r, placeOrderLoader)
	if !ok {
		return
	}

	var req PlaceOrderHTTPRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	sub := service.OrderSubmission{
		IdempotencyKey:   r.Header.Get("Idempotency-Key"),
		CustomerID:       req.CustomerID,
		CustomerName:     req.CustomerName,
		TotalPrice:       req.TotalPrice,
		DeliveryMethod:   req.DeliveryMethod,
		StoreLocation:    req.StoreLocation,
		DeliveryDate:     req.DeliveryDate,
		Address:          req.Address,
		PaymentReference: req.PaymentReference,
	}
	for _, l := range req.Lines {
		sub.Lines = append(sub.Lines, service.SubmittedLine{
			ProductID:     l.ProductID,
			Quantity:      l.Quantity,
			UnitPriceHint: l.UnitPriceHint,
		})
	}

	orderID, err := h.orders.PlaceOrder(r.Context(), sub)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": orderID})
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSummaries(w, orders)
}

// ListRecentOrders lists the newest orders of every customer, at most ?limit.
func (h *HTTPHandler) ListRecentOrders(w http.ResponseWriter, r *http.Request) {
	limit, err := limitParam(r, defaultListLimit, maxListLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	orders, err := h.orders.ListRecentOrders(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeSummaries(w, orders)
}

func writeSummaries(w http.ResponseWriter, orders []domain.OrderSummary) {
	resp := make([]OrderSummaryHTTPResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toSummaryResponse(o.ID, o.TotalPrice, o.DeliveryMethod, o.Status, o.DeliveryDate, o.CreatedAt))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": resp})
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	resp := OrderHTTPResponse{
		OrderSummaryHTTPResponse: toSummaryResponse(order.ID, order.TotalPrice, order.DeliveryMethod, order.Status, order.DeliveryDate, order.CreatedAt),
		CustomerID:               order.CustomerID,
		CustomerName:             order.CustomerName,
		StoreLocation:            order.StoreLocation,
		Address:                  order.Address,
		Lines:                    make([]OrderLineHTTPDTO, 0, len(order.Lines)),
	}
	for _, l := range order.Lines {
		resp.Lines = append(resp.Lines, OrderLineHTTPDTO{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *HTTPHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if err := h.orders.CancelOrder(r.Context(), orderID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": orderID, "status": string(domain.OrderStatusCanceled)})
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r, updateStatusLoader)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	orderID := chi.URLParam(r, "orderID")
	if err := h.orders.UpdateStatus(r.Context(), orderID, req.Status); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"orderId": orderID, "status": strings.TrimSpace(req.Status)})
}

func (h *HTTPHandler) Restock(w http.ResponseWriter, r *http.Request) {
	body, ok := h.readBody(w, r, restockLoader)
	if !ok {
		return
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	productID := chi.URLParam(r, "productID")
	if err := h.catalog.Restock(r.Context(), productID, req.Quantity); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	stock, err := h.catalog.GetStock(r.Context(), productID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"productId": productID, "stock": stock})
}

func (h *HTTPHandler) MostSold(w http.ResponseWriter, r *http.Request) {
	limit, err := reportLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	rows, err := h.reports.MostSold(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type item struct {
		ProductID   string `json:"productId"`
		ProductName string `json:"productName"`
		UnitsSold   int    `json:"unitsSold"`
		Revenue     string `json:"revenue"`
	}
	resp := make([]item, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, item{row.ProductID, row.ProductName, row.UnitsSold, row.Revenue.StringFixed(2)})
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": resp})
}

func (h *HTTPHandler) TopStoreLocations(w http.ResponseWriter, r *http.Request) {
	limit, err := reportLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return
	}

	rows, err := h.reports.TopStoreLocations(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	type item struct {
		StoreLocation string `json:"storeLocation"`
		Orders        int    `json:"orders"`
	}
	resp := make([]item, 0, len(rows))
	for _, row := range rows {
		resp = append(resp, item{row.StoreLocation, row.Orders})
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": resp})
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readBody reads the request body and checks it against schema. It writes the
// error response itself and reports whether the handler should continue.
func (h *HTTPHandler) readBody(w http.ResponseWriter, r *http.Request, schema gojsonschema.JSONLoader) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return nil, false
	}
	if err := validateJSONSchema(schema, body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, err.Error())
		return nil, false
	}
	return body, true
}

func (h *HTTPHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	m := classifyError(err)
	if m.status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeError(w, m.status, m.code, publicMessage(err, m))
}

func validateJSONSchema(schemaLoader gojsonschema.JSONLoader, body []byte) error {
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			problems = append(problems, e.String())
		}
		return errors.New("request does not conform to schema: " + strings.Join(problems, "; "))
	}
	return nil
}

func reportLimit(r *http.Request) (int, error) {
	return limitParam(r, defaultReportLimit, maxReportLimit)
}

func limitParam(r *http.Request, fallback, upper int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 || n > upper {
		return 0, fmt.Errorf("limit must be between 1 and %d", upper)
	}
	return n, nil
}

func toSummaryResponse(id string, total decimal.Decimal, method domain.DeliveryMethod, status domain.OrderStatus, deliveryDate, createdAt time.Time) OrderSummaryHTTPResponse {
	resp := OrderSummaryHTTPResponse{
		OrderID:        id,
		TotalPrice:     total.StringFixed(2),
		DeliveryMethod: string(method),
		Status:         string(status),
		CreatedAt:      createdAt.UTC().Format(time.RFC3339),
	}
	if !deliveryDate.IsZero() {
		resp.DeliveryDate = deliveryDate.Format(dateLayout)
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorHTTPResponse{Error: code, Message: message})
}
