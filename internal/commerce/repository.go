package commerce

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/catalog"
	"github.com/tvmmachans/Customo/internal/infrastructure/database"
)

// Repository defines the persistence operations for carts and orders.
// Every multi-row change runs in a single transaction.
type Repository interface {
	CartItems(ctx context.Context, userID string) ([]CartItem, error)
	AddCartItem(ctx context.Context, userID, productID string, quantity int, now time.Time) error
	SetCartItemQuantity(ctx context.Context, userID, itemID string, quantity int, now time.Time) error
	RemoveCartItem(ctx context.Context, userID, itemID string) error
	ClearCart(ctx context.Context, userID string) error

	// CreateOrder fills in the order's items and total from current prices,
	// decrements stock and stores the order. With no lines it checks out
	// the user's cart and empties it.
	CreateOrder(ctx context.Context, order *Order, lines []OrderLine) error

	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, userID string, filter OrderFilter) ([]Order, int, error)

	// CancelOrder cancels an order owned by userID and restores its stock.
	CancelOrder(ctx context.Context, userID, id string, now time.Time) error

	// UpdateOrder writes status, payment and tracking. Moving an order into
	// CANCELLED restores its stock.
	UpdateOrder(ctx context.Context, order *Order) error
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type productRow struct {
	name  string
	price float64
	stock int
}

// activeProduct loads the purchasable fields of an active product.
func activeProduct(ctx context.Context, q querier, id string) (productRow, error) {
	var p productRow
	var active int
	err := q.QueryRowContext(ctx,
		`SELECT name, price, stock_count, is_active FROM products WHERE id = ?`, id,
	).Scan(&p.name, &p.price, &p.stock, &active)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && active == 0) {
		return productRow{}, catalog.ErrProductNotFound
	}
	if err != nil {
		return productRow{}, fmt.Errorf("loading product: %w", err)
	}
	return p, nil
}

// ─── Cart ──────────────────────────────────────────────────────────

// CartItems returns the user's cart lines, oldest first.
func (r *SQLiteRepository) CartItems(ctx context.Context, userID string) ([]CartItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT ci.id, ci.product_id, ci.name, ci.price, ci.quantity, ci.created_at
		 FROM cart_items ci JOIN carts c ON c.id = ci.cart_id
		 WHERE c.user_id = ? ORDER BY ci.created_at, ci.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		var it CartItem
		var createdAt string
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Price, &it.Quantity, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		if it.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cart items: %w", err)
	}
	return items, nil
}

// AddCartItem adds quantity of a product, summing with an existing line.
func (r *SQLiteRepository) AddCartItem(ctx context.Context, userID, productID string, quantity int, now time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		p, err := activeProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		cartID, err := ensureCart(ctx, tx, userID, now)
		if err != nil {
			return err
		}

		var itemID string
		var existing int
		err = tx.QueryRowContext(ctx,
			`SELECT id, quantity FROM cart_items WHERE cart_id = ? AND product_id = ?`, cartID, productID,
		).Scan(&itemID, &existing)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("loading cart item: %w", err)
		}
		if existing+quantity > p.stock {
			return ErrInsufficientStock
		}

		if itemID != "" {
			_, err = tx.ExecContext(ctx,
				`UPDATE cart_items SET quantity = ?, name = ?, price = ? WHERE id = ?`,
				existing+quantity, p.name, p.price, itemID)
		} else {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO cart_items (id, cart_id, product_id, name, price, quantity, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), cartID, productID, p.name, p.price, quantity, database.FormatTime(now))
		}
		if err != nil {
			return fmt.Errorf("writing cart item: %w", err)
		}
		return touchCart(ctx, tx, cartID, now)
	})
}

// SetCartItemQuantity replaces a line's quantity; zero removes the line.
func (r *SQLiteRepository) SetCartItemQuantity(ctx context.Context, userID, itemID string, quantity int, now time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var cartID, productID string
		err := tx.QueryRowContext(ctx,
			`SELECT ci.cart_id, ci.product_id FROM cart_items ci JOIN carts c ON c.id = ci.cart_id
			 WHERE ci.id = ? AND c.user_id = ?`, itemID, userID,
		).Scan(&cartID, &productID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCartItemNotFound
		}
		if err != nil {
			return fmt.Errorf("loading cart item: %w", err)
		}

		if quantity == 0 {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE id = ?`, itemID); err != nil {
				return fmt.Errorf("removing cart item: %w", err)
			}
			return touchCart(ctx, tx, cartID, now)
		}

		p, err := activeProduct(ctx, tx, productID)
		if err != nil {
			return err
		}
		if quantity > p.stock {
			return ErrInsufficientStock
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE cart_items SET quantity = ?, name = ?, price = ? WHERE id = ?`,
			quantity, p.name, p.price, itemID); err != nil {
			return fmt.Errorf("updating cart item: %w", err)
		}
		return touchCart(ctx, tx, cartID, now)
	})
}

// RemoveCartItem deletes one line from the user's cart.
func (r *SQLiteRepository) RemoveCartItem(ctx context.Context, userID, itemID string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM cart_items WHERE id = ? AND cart_id IN (SELECT id FROM carts WHERE user_id = ?)`,
		itemID, userID)
	if err != nil {
		return fmt.Errorf("removing cart item: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// ClearCart empties the user's cart.
func (r *SQLiteRepository) ClearCart(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart: %w", err)
	}
	return nil
}

const clearCartSQL = `DELETE FROM cart_items WHERE cart_id IN (SELECT id FROM carts WHERE user_id = ?)`

func ensureCart(ctx context.Context, tx *sql.Tx, userID string, now time.Time) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM carts WHERE user_id = ?`, userID).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("loading cart: %w", err)
	}
	id = uuid.NewString()
	ts := database.FormatTime(now)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO carts (id, user_id, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, userID, ts, ts); err != nil {
		return "", fmt.Errorf("creating cart: %w", err)
	}
	return id, nil
}

func touchCart(ctx context.Context, tx *sql.Tx, cartID string, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = ? WHERE id = ?`,
		database.FormatTime(now), cartID); err != nil {
		return fmt.Errorf("touching cart: %w", err)
	}
	return nil
}

// ─── Orders ────────────────────────────────────────────────────────

// CreateOrder checks out lines, or the user's cart when lines is empty.
func (r *SQLiteRepository) CreateOrder(ctx context.Context, o *Order, lines []OrderLine) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		fromCart := len(lines) == 0
		if fromCart {
			var err error
			if lines, err = cartLines(ctx, tx, o.UserID); err != nil {
				return err
			}
			if len(lines) == 0 {
				return ErrEmptyOrder
			}
		}

		o.Items = make([]OrderItem, 0, len(lines))
		o.TotalAmount = 0
		ts := database.FormatTime(o.CreatedAt)
		for _, line := range mergeLines(lines) {
			p, err := activeProduct(ctx, tx, line.ProductID)
			if err != nil {
				return err
			}
			if line.Quantity > p.stock {
				return fmt.Errorf("%s: %w", p.name, ErrInsufficientStock)
			}
			if _, err := tx.ExecContext(ctx,
				`UPDATE products SET stock_count = stock_count - ?,
					in_stock = CASE WHEN stock_count - ? > 0 THEN 1 ELSE 0 END, updated_at = ?
				 WHERE id = ?`, line.Quantity, line.Quantity, ts, line.ProductID); err != nil {
				return fmt.Errorf("decrementing stock: %w", err)
			}
			o.Items = append(o.Items, OrderItem{
				ID: uuid.NewString(), ProductID: line.ProductID, Name: p.name,
				Quantity: line.Quantity, Price: p.price,
			})
			o.TotalAmount += p.price * float64(line.Quantity)
		}
		o.TotalAmount = roundCents(o.TotalAmount)

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO orders (id, order_number, user_id, status, total_amount, shipping_address,
				billing_address, payment_status, tracking_number, notes, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			o.ID, o.OrderNumber, o.UserID, string(o.Status), o.TotalAmount, o.ShippingAddress,
			database.NullString(o.BillingAddress), string(o.PaymentStatus),
			database.NullString(o.TrackingNumber), database.NullString(o.Notes),
			ts, database.FormatTime(o.UpdatedAt)); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}
		for _, it := range o.Items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO order_items (id, order_id, product_id, name, quantity, price, created_at)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				it.ID, o.ID, it.ProductID, it.Name, it.Quantity, it.Price, ts); err != nil {
				return fmt.Errorf("creating order item: %w", err)
			}
		}

		if fromCart {
			if _, err := tx.ExecContext(ctx, clearCartSQL, o.UserID); err != nil {
				return fmt.Errorf("clearing cart: %w", err)
			}
		}
		return nil
	})
}

func cartLines(ctx context.Context, tx *sql.Tx, userID string) ([]OrderLine, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT ci.product_id, ci.quantity FROM cart_items ci JOIN carts c ON c.id = ci.cart_id
		 WHERE c.user_id = ? ORDER BY ci.created_at, ci.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("reading cart: %w", err)
	}
	defer rows.Close()

	var lines []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scanning cart line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// mergeLines sums quantities of repeated products, keeping first-seen order.
func mergeLines(lines []OrderLine) []OrderLine {
	index := make(map[string]int, len(lines))
	out := make([]OrderLine, 0, len(lines))
	for _, l := range lines {
		if i, ok := index[l.ProductID]; ok {
			out[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, l)
	}
	return out
}

const orderColumns = `id, order_number, user_id, status, total_amount, shipping_address, billing_address,
	payment_status, tracking_number, notes, created_at, updated_at`

// GetOrder retrieves an order with its items.
func (r *SQLiteRepository) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id))
	if err != nil {
		return nil, err
	}
	if o.Items, err = r.orderItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrders returns one page of a user's orders, newest first.
func (r *SQLiteRepository) ListOrders(ctx context.Context, userID string, f OrderFilter) ([]Order, int, error) {
	where := ` WHERE user_id = ?`
	args := []any{userID}
	if f.Status != "" {
		where += ` AND status = ?`
		args = append(args, string(f.Status))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at DESC, id LIMIT ? OFFSET ?`,
		append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		orders = append(orders, *o)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, 0, fmt.Errorf("iterating orders: %w", err)
	}

	// Items are loaded after the cursor is closed: the pool holds one
	// connection.
	for i := range orders {
		if orders[i].Items, err = r.orderItems(ctx, orders[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return orders, total, nil
}

func (r *SQLiteRepository) orderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, product_id, name, quantity, price FROM order_items WHERE order_id = ? ORDER BY created_at, rowid`,
		orderID)
	if err != nil {
		return nil, fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	items := []OrderItem{}
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Name, &it.Quantity, &it.Price); err != nil {
			return nil, fmt.Errorf("scanning order item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating order items: %w", err)
	}
	return items, nil
}

// CancelOrder cancels a cancellable order owned by userID.
func (r *SQLiteRepository) CancelOrder(ctx context.Context, userID, id string, now time.Time) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx,
			`SELECT status FROM orders WHERE id = ? AND user_id = ?`, id, userID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("loading order: %w", err)
		}
		if !OrderStatus(status).Cancellable() {
			return ErrOrderNotCancellable
		}
		if err := restoreStock(ctx, tx, id, now); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
			string(OrderCancelled), database.FormatTime(now), id); err != nil {
			return fmt.Errorf("cancelling order: %w", err)
		}
		return nil
	})
}

// UpdateOrder writes the administrative fields of o. Moving into
// CANCELLED restores stock; moving out of it fails with ErrOrderCancelled.
func (r *SQLiteRepository) UpdateOrder(ctx context.Context, o *Order) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = ?`, o.ID).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("loading order: %w", err)
		}
		// CANCELLED is terminal: its stock has already gone back on the shelf.
		switch {
		case OrderStatus(current) == OrderCancelled && o.Status != OrderCancelled:
			return ErrOrderCancelled
		case OrderStatus(current) != OrderCancelled && o.Status == OrderCancelled:
			if err := restoreStock(ctx, tx, o.ID, o.UpdatedAt); err != nil {
				return err
			}
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE orders SET status = ?, payment_status = ?, tracking_number = ?, updated_at = ? WHERE id = ?`,
			string(o.Status), string(o.PaymentStatus), database.NullString(o.TrackingNumber),
			database.FormatTime(o.UpdatedAt), o.ID); err != nil {
			return fmt.Errorf("updating order: %w", err)
		}
		return nil
	})
}

func restoreStock(ctx context.Context, tx *sql.Tx, orderID string, now time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE products SET
			stock_count = stock_count + (SELECT COALESCE(SUM(quantity), 0) FROM order_items
				WHERE order_id = ? AND product_id = products.id),
			in_stock = CASE WHEN stock_count + (SELECT COALESCE(SUM(quantity), 0) FROM order_items
				WHERE order_id = ? AND product_id = products.id) > 0 THEN 1 ELSE 0 END,
			updated_at = ?
		 WHERE id IN (SELECT product_id FROM order_items WHERE order_id = ?)`,
		orderID, orderID, database.FormatTime(now), orderID)
	if err != nil {
		return fmt.Errorf("restoring stock: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(s scanner) (*Order, error) {
	var o Order
	var status, payment, createdAt, updatedAt string
	var billing, tracking, notes sql.NullString
	err := s.Scan(&o.ID, &o.OrderNumber, &o.UserID, &status, &o.TotalAmount, &o.ShippingAddress,
		&billing, &payment, &tracking, &notes, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	o.Status = OrderStatus(status)
	o.PaymentStatus = PaymentStatus(payment)
	o.BillingAddress, o.TrackingNumber, o.Notes = billing.String, tracking.String, notes.String
	if o.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
