package commerce

import (
	"math"
	"strings"
	"time"
)

// CartItem is one product line in a cart.
type CartItem struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Name      string    `json:"name"`
	Price     float64   `json:"price"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Cart is a user's cart with its computed totals.
type Cart struct {
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	ItemCount int        `json:"itemCount"`
}

func newCart(items []CartItem) *Cart {
	c := &Cart{Items: items}
	for _, it := range items {
		c.Total += it.Price * float64(it.Quantity)
		c.ItemCount += it.Quantity
	}
	c.Total = roundCents(c.Total)
	return c
}

// OrderStatus is the fulfilment state of an order.
type OrderStatus string

// OrderStatus constants.
const (
	OrderPending    OrderStatus = "PENDING"
	OrderConfirmed  OrderStatus = "CONFIRMED"
	OrderProcessing OrderStatus = "PROCESSING"
	OrderShipped    OrderStatus = "SHIPPED"
	OrderDelivered  OrderStatus = "DELIVERED"
	OrderCancelled  OrderStatus = "CANCELLED"
)

var validOrderStatuses = []OrderStatus{
	OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled,
}

// ParseOrderStatus accepts status names in any case.
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range validOrderStatuses {
		if st == v {
			return st, nil
		}
	}
	return "", ErrInvalidOrderStatus
}

// Cancellable reports whether a customer may still cancel the order.
func (s OrderStatus) Cancellable() bool {
	return s == OrderPending || s == OrderConfirmed
}

// PaymentStatus tracks the external payment.
type PaymentStatus string

// PaymentStatus constants.
const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

// ParsePaymentStatus accepts payment states in any case.
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	p := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return p, nil
	}
	return "", ErrInvalidPayment
}

// Order is a placed order.
type Order struct {
	ID              string        `json:"id"`
	OrderNumber     string        `json:"orderNumber"`
	UserID          string        `json:"userId"`
	Status          OrderStatus   `json:"status"`
	TotalAmount     float64       `json:"totalAmount"`
	ShippingAddress string        `json:"shippingAddress"`
	BillingAddress  string        `json:"billingAddress,omitempty"`
	PaymentStatus   PaymentStatus `json:"paymentStatus"`
	TrackingNumber  string        `json:"trackingNumber,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	Items           []OrderItem   `json:"items"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// OrderItem is one product line of an order, priced at checkout time.
type OrderItem struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// OrderLine requests a quantity of a product at checkout.
type OrderLine struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// OrderInput carries a checkout request. When Items is empty the order is
// built from the user's cart.
type OrderInput struct {
	ShippingAddress string      `json:"shippingAddress"`
	BillingAddress  string      `json:"billingAddress,omitempty"`
	Notes           string      `json:"notes,omitempty"`
	Items           []OrderLine `json:"items,omitempty"`
}

// StatusUpdate is an administrative order change. Empty fields are
// unchanged.
type StatusUpdate struct {
	Status         string  `json:"status"`
	PaymentStatus  string  `json:"paymentStatus,omitempty"`
	TrackingNumber *string `json:"trackingNumber,omitempty"`
}

// OrderFilter narrows a user's order listing.
type OrderFilter struct {
	Status OrderStatus
	Page   int
	Limit  int
}

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// OrderPage is one page of orders.
type OrderPage struct {
	Orders     []Order    `json:"orders"`
	Pagination Pagination `json:"pagination"`
}

// Pagination defaults.
const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
