package commerce

import (
	"errors"

	"github.com/tvmmachans/Customo/internal/validation"
)

// Domain errors for the commerce package.
var (
	// ErrOrderNotFound is returned when an order does not exist or belongs
	// to someone else.
	ErrOrderNotFound = errors.New("commerce: order not found")

	// ErrCartItemNotFound is returned when an item is not in the user's cart.
	ErrCartItemNotFound = errors.New("commerce: cart item not found")

	ErrInvalidQuantity     = validation.New("quantity", "must be a positive whole number")
	ErrInsufficientStock   = validation.New("quantity", "exceeds available stock")
	ErrMissingProduct      = validation.New("productId", "is required")
	ErrMissingAddress      = validation.New("shippingAddress", "is required")
	ErrEmptyOrder          = validation.New("items", "order has no items and the cart is empty")
	ErrInvalidOrderStatus  = validation.New("status", "must be one of PENDING, CONFIRMED, PROCESSING, SHIPPED, DELIVERED, CANCELLED")
	ErrInvalidPayment      = validation.New("paymentStatus", "must be one of PENDING, PAID, FAILED, REFUNDED")
	ErrOrderNotCancellable = validation.New("status", "only pending or confirmed orders can be cancelled")
	ErrOrderCancelled      = validation.New("status", "cancelled orders cannot be reopened")
)
