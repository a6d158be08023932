package commerce

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/validation"
)

// Logger defines the logging interface used by the Service.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

const (
	maxAddressLength = 1000
	maxNotesLength   = 2000
)

// Service implements cart and order operations.
type Service struct {
	repo   Repository
	logger Logger
	now    func() time.Time
}

// NewService creates a commerce service.
func NewService(repo Repository) *Service {
	return &Service{
		repo:   repo,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// SetLogger sets the logger for the service.
func (s *Service) SetLogger(logger Logger) {
	s.logger = logger
}

// ─── Cart ──────────────────────────────────────────────────────────

// Cart returns the user's cart. A user without one gets an empty cart.
func (s *Service) Cart(ctx context.Context, userID string) (*Cart, error) {
	items, err := s.repo.CartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	return newCart(items), nil
}

// AddItem puts quantity of a product in the user's cart.
func (s *Service) AddItem(ctx context.Context, userID, productID string, quantity int) (*Cart, error) {
	var verr validation.Errors
	if strings.TrimSpace(productID) == "" {
		verr = append(verr, ErrMissingProduct)
	}
	if quantity < 1 {
		verr = append(verr, ErrInvalidQuantity)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if err := s.repo.AddCartItem(ctx, userID, productID, quantity, s.now()); err != nil {
		return nil, err
	}
	return s.Cart(ctx, userID)
}

// UpdateItem sets a cart line's quantity. Zero removes the line.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	if err := s.repo.SetCartItemQuantity(ctx, userID, itemID, quantity, s.now()); err != nil {
		return nil, err
	}
	return s.Cart(ctx, userID)
}

// RemoveItem deletes a cart line.
func (s *Service) RemoveItem(ctx context.Context, userID, itemID string) (*Cart, error) {
	if err := s.repo.RemoveCartItem(ctx, userID, itemID); err != nil {
		return nil, err
	}
	return s.Cart(ctx, userID)
}

// ClearCart empties the user's cart.
func (s *Service) ClearCart(ctx context.Context, userID string) error {
	return s.repo.ClearCart(ctx, userID)
}

// ─── Orders ────────────────────────────────────────────────────────

// PlaceOrder checks out the given lines, or the user's cart when none are
// given.
func (s *Service) PlaceOrder(ctx context.Context, userID string, in OrderInput) (*Order, error) {
	var verr validation.Errors
	shipping := strings.TrimSpace(in.ShippingAddress)
	if shipping == "" {
		verr = append(verr, ErrMissingAddress)
	} else if len(shipping) > maxAddressLength {
		verr.Add("shippingAddress", "must not exceed 1000 characters")
	}
	if len(in.BillingAddress) > maxAddressLength {
		verr.Add("billingAddress", "must not exceed 1000 characters")
	}
	if len(in.Notes) > maxNotesLength {
		verr.Add("notes", "must not exceed 2000 characters")
	}
	for _, l := range in.Items {
		if strings.TrimSpace(l.ProductID) == "" {
			verr = append(verr, ErrMissingProduct)
		}
		if l.Quantity < 1 {
			verr = append(verr, ErrInvalidQuantity)
		}
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	o := &Order{
		OrderNumber:     newOrderNumber(now),
		UserID:          userID,
		Status:          OrderPending,
		ShippingAddress: shipping,
		BillingAddress:  strings.TrimSpace(in.BillingAddress),
		PaymentStatus:   PaymentPending,
		Notes:           strings.TrimSpace(in.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.CreateOrder(ctx, o, in.Items); err != nil {
		return nil, err
	}
	s.logger.Info("order placed", "order", o.OrderNumber, "user", userID,
		"items", len(o.Items), "total", o.TotalAmount)
	return o, nil
}

// Orders returns one page of the user's orders.
func (s *Service) Orders(ctx context.Context, userID string, f OrderFilter) (OrderPage, error) {
	if f.Status != "" {
		st, err := ParseOrderStatus(string(f.Status))
		if err != nil {
			return OrderPage{}, err
		}
		f.Status = st
	}
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}

	orders, total, err := s.repo.ListOrders(ctx, userID, f)
	if err != nil {
		return OrderPage{}, err
	}
	pages := 0
	if total > 0 {
		pages = (total + f.Limit - 1) / f.Limit
	}
	return OrderPage{
		Orders:     orders,
		Pagination: Pagination{Page: f.Page, Limit: f.Limit, Total: total, Pages: pages},
	}, nil
}

// Order returns one order. Only its owner may read it unless anyUser is
// set.
func (s *Service) Order(ctx context.Context, userID, id string, anyUser bool) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !anyUser && o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// Cancel cancels a pending or confirmed order and restores its stock.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*Order, error) {
	if err := s.repo.CancelOrder(ctx, userID, id, s.now()); err != nil {
		return nil, err
	}
	s.logger.Info("order cancelled", "id", id, "user", userID)
	return s.repo.GetOrder(ctx, id)
}

// UpdateStatus applies an administrative status change.
func (s *Service) UpdateStatus(ctx context.Context, id string, in StatusUpdate) (*Order, error) {
	o, err := s.repo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}

	var verr validation.Errors
	if in.Status != "" {
		st, err := ParseOrderStatus(in.Status)
		verr.AddErr(err)
		o.Status = st
	}
	if in.PaymentStatus != "" {
		ps, err := ParsePaymentStatus(in.PaymentStatus)
		verr.AddErr(err)
		o.PaymentStatus = ps
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	if in.TrackingNumber != nil {
		o.TrackingNumber = strings.TrimSpace(*in.TrackingNumber)
	}
	o.UpdatedAt = s.now()

	if err := s.repo.UpdateOrder(ctx, o); err != nil {
		return nil, err
	}
	s.logger.Info("order status changed", "order", o.OrderNumber, "status", o.Status)
	return o, nil
}

// newOrderNumber builds "ORD-<unix millis>-<random>".
func newOrderNumber(now time.Time) string {
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), strings.ToUpper(uuid.NewString()[:8]))
}
