// Package pb holds the wire messages and service descriptor of the OrderService
// gRPC API. Messages travel as JSON through the codec registered by this package.
package pb

type OrderLine struct {
	ProductId     string `json:"product_id,omitempty"`
	Quantity      int32  `json:"quantity,omitempty"`
	UnitPriceHint string `json:"unit_price_hint,omitempty"`
}

func (x *OrderLine) GetProductId() string {
	if x != nil {
		return x.ProductId
	}
	return ""
}

func (x *OrderLine) GetQuantity() int32 {
	if x != nil {
		return x.Quantity
	}
	return 0
}

func (x *OrderLine) GetUnitPriceHint() string {
	if x != nil {
		return x.UnitPriceHint
	}
	return ""
}

type PlaceOrderRequest struct {
	IdempotencyKey   string       `json:"idempotency_key,omitempty"`
	CustomerId       string       `json:"customer_id,omitempty"`
	CustomerName     string       `json:"customer_name,omitempty"`
	TotalPrice       string       `json:"total_price,omitempty"`
	DeliveryMethod   string       `json:"delivery_method,omitempty"`
	StoreLocation    string       `json:"store_location,omitempty"`
	DeliveryDate     string       `json:"delivery_date,omitempty"`
	Lines            []*OrderLine `json:"lines,omitempty"`
	Address          string       `json:"address,omitempty"`
	PaymentReference string       `json:"payment_reference,omitempty"`
}

func (x *PlaceOrderRequest) GetIdempotencyKey() string {
	if x != nil {
		return x.IdempotencyKey
	}
	return ""
}

func (x *PlaceOrderRequest) GetCustomerId() string {
	if x != nil {
		return x.CustomerId
	}
	return ""
}

func (x *PlaceOrderRequest) GetCustomerName() string {
	if x != nil {
		return x.CustomerName
	}
	return ""
}

func (x *PlaceOrderRequest) GetTotalPrice() string {
	if x != nil {
		return x.TotalPrice
	}
	return ""
}

func (x *PlaceOrderRequest) GetDeliveryMethod() string {
	if x != nil {
		return x.DeliveryMethod
	}
	return ""
}

func (x *PlaceOrderRequest) GetStoreLocation() string {
	if x != nil {
		return x.StoreLocation
	}
	return ""
}

func (x *PlaceOrderRequest) GetDeliveryDate() string {
	if x != nil {
		return x.DeliveryDate
	}
	return ""
}

func (x *PlaceOrderRequest) GetLines() []*OrderLine {
	if x != nil {
		return x.Lines
	}
	return nil
}

func (x *PlaceOrderRequest) GetAddress() string {
	if x != nil {
		return x.Address
	}
	return ""
}

func (x *PlaceOrderRequest) GetPaymentReference() string {
	if x != nil {
		return x.PaymentReference
	}
	return ""
}

type PlaceOrderResponse struct {
	OrderId string `json:"order_id,omitempty"`
}

func (x *PlaceOrderResponse) GetOrderId() string {
	if x != nil {
		return x.OrderId
	}
	return ""
}

type ListOrdersRequest struct {
	CustomerId string `json:"customer_id,omitempty"`
}

func (x *ListOrdersRequest) GetCustomerId() string {
	if x != nil {
		return x.CustomerId
	}
	return ""
}

type OrderSummary struct {
	OrderId        string `json:"order_id,omitempty"`
	TotalPrice     string `json:"total_price,omitempty"`
	DeliveryMethod string `json:"delivery_method,omitempty"`
	Status         string `json:"status,omitempty"`
	DeliveryDate   string `json:"delivery_date,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*OrderSummary `json:"orders,omitempty"`
}

func (x *ListOrdersResponse) GetOrders() []*OrderSummary {
	if x != nil {
		return x.Orders
	}
	return nil
}

type CancelOrderRequest struct {
	OrderId string `json:"order_id,omitempty"`
}

func (x *CancelOrderRequest) GetOrderId() string {
	if x != nil {
		return x.OrderId
	}
	return ""
}

type CancelOrderResponse struct {
	OrderId string `json:"order_id,omitempty"`
}

type UpdateOrderStatusRequest struct {
	OrderId string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

func (x *UpdateOrderStatusRequest) GetOrderId() string {
	if x != nil {
		return x.OrderId
	}
	return ""
}

func (x *UpdateOrderStatusRequest) GetStatus() string {
	if x != nil {
		return x.Status
	}
	return ""
}

type UpdateOrderStatusResponse struct {
	OrderId string `json:"order_id,omitempty"`
	Status  string `json:"status,omitempty"`
}
