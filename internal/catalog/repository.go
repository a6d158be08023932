package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/tvmmachans/Customo/internal/infrastructure/database"
)

// Repository defines the persistence operations for products and reviews.
type Repository interface {
	// List returns one page of active products and the total match count.
	// The filter must already be validated.
	List(ctx context.Context, filter Filter) ([]Product, int, error)

	// GetByID retrieves a product whether or not it is active.
	GetByID(ctx context.Context, id string) (*Product, error)

	Create(ctx context.Context, p *Product) error
	Save(ctx context.Context, p *Product) error

	// CreateReview inserts a review and recomputes the product's rating and
	// review count in one transaction.
	CreateReview(ctx context.Context, r *Review) error

	// Reviews returns a product's reviews, newest first.
	Reviews(ctx context.Context, productID string, limit, offset int) ([]Review, int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const productColumns = `id, name, description, price, original_price, category, images, features,
	specifications, in_stock, stock_count, rating, review_count, badge, is_active, created_at, updated_at`

// List returns one page of active products.
func (r *SQLiteRepository) List(ctx context.Context, f Filter) ([]Product, int, error) {
	where := ` WHERE is_active = 1`
	var args []any
	if f.Category != "" {
		where += ` AND category = ?`
		args = append(args, string(f.Category))
	}
	if f.Search != "" {
		where += ` AND (name LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')`
		like := database.ContainsPattern(f.Search)
		args = append(args, like, like)
	}
	if f.MinPrice != nil {
		where += ` AND price >= ?`
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where += ` AND price <= ?`
		args = append(args, *f.MaxPrice)
	}
	if f.InStock != nil {
		where += ` AND in_stock = ?`
		args = append(args, database.BoolToInt(*f.InStock))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting products: %w", err)
	}

	column, ok := sortColumns[f.SortBy]
	if !ok {
		column = sortColumns[SortCreatedAt]
	}
	direction := "DESC"
	if f.SortOrder == "asc" {
		direction = "ASC"
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+productColumns+` FROM products`+where+
			` ORDER BY `+column+` `+direction+`, id LIMIT ? OFFSET ?`,
		append(args, f.Limit, (f.Page-1)*f.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing products: %w", err)
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating products: %w", err)
	}
	return products, total, nil
}

// GetByID retrieves a product by id.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Product, error) {
	return scanProduct(r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = ?`, id))
}

// Create inserts a product. The ID is generated if empty.
func (r *SQLiteRepository) Create(ctx context.Context, p *Product) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	images, features, specs, err := encodeLists(p)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, nullFloat(p.OriginalPrice), string(p.Category),
		images, features, specs, database.BoolToInt(p.InStock), p.StockCount,
		p.Rating, p.ReviewCount, database.NullString(p.Badge), database.BoolToInt(p.IsActive),
		database.FormatTime(p.CreatedAt), database.FormatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("creating product: %w", err)
	}
	return nil
}

// Save writes every editable column of p. Rating and review count are
// owned by CreateReview and left alone.
func (r *SQLiteRepository) Save(ctx context.Context, p *Product) error {
	images, features, specs, err := encodeLists(p)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE products SET name = ?, description = ?, price = ?, original_price = ?, category = ?,
			images = ?, features = ?, specifications = ?, in_stock = ?, stock_count = ?,
			badge = ?, is_active = ?, updated_at = ?
		 WHERE id = ?`,
		p.Name, p.Description, p.Price, nullFloat(p.OriginalPrice), string(p.Category),
		images, features, specs, database.BoolToInt(p.InStock), p.StockCount,
		database.NullString(p.Badge), database.BoolToInt(p.IsActive), database.FormatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating product: %w", err)
	}
	n, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	if n == 0 {
		return ErrProductNotFound
	}
	return nil
}

// CreateReview inserts rev and refreshes the product aggregate.
func (r *SQLiteRepository) CreateReview(ctx context.Context, rev *Review) error {
	if rev.ID == "" {
		rev.ID = uuid.NewString()
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO reviews (id, user_id, product_id, rating, title, comment, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			rev.ID, rev.UserID, rev.ProductID, rev.Rating,
			database.NullString(rev.Title), database.NullString(rev.Comment),
			database.FormatTime(rev.CreatedAt),
		)
		if err != nil {
			switch {
			case database.IsUniqueViolation(err):
				return ErrDuplicateReview
			case database.IsForeignKeyViolation(err):
				return ErrProductNotFound
			}
			return fmt.Errorf("creating review: %w", err)
		}

		var count int
		var avg float64
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*), COALESCE(AVG(rating), 0) FROM reviews WHERE product_id = ?`, rev.ProductID,
		).Scan(&count, &avg); err != nil {
			return fmt.Errorf("aggregating reviews: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE products SET rating = ?, review_count = ?, updated_at = ? WHERE id = ?`,
			roundRating(avg), count, database.FormatTime(rev.CreatedAt), rev.ProductID)
		if err != nil {
			return fmt.Errorf("updating product rating: %w", err)
		}
		return nil
	})
}

// Reviews returns a product's reviews, newest first.
func (r *SQLiteRepository) Reviews(ctx context.Context, productID string, limit, offset int) ([]Review, int, error) {
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE product_id = ?`, productID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting reviews: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, product_id, rating, title, comment, created_at FROM reviews
		 WHERE product_id = ? ORDER BY created_at DESC, id LIMIT ? OFFSET ?`, productID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("listing reviews: %w", err)
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var rev Review
		var title, comment sql.NullString
		var createdAt string
		if err := rows.Scan(&rev.ID, &rev.UserID, &rev.ProductID, &rev.Rating, &title, &comment, &createdAt); err != nil {
			return nil, 0, fmt.Errorf("scanning review: %w", err)
		}
		rev.Title, rev.Comment = title.String, comment.String
		if rev.CreatedAt, err = database.ParseTime(createdAt); err != nil {
			return nil, 0, err
		}
		reviews = append(reviews, rev)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating reviews: %w", err)
	}
	return reviews, total, nil
}

// roundRating rounds an average to one decimal place.
func roundRating(avg float64) float64 {
	return math.Round(avg*10) / 10
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProduct(s scanner) (*Product, error) {
	var p Product
	var original sql.NullFloat64
	var category, images, features, specs string
	var badge sql.NullString
	var inStock, active int
	var createdAt, updatedAt string

	err := s.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &original, &category, &images, &features,
		&specs, &inStock, &p.StockCount, &p.Rating, &p.ReviewCount, &badge, &active, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("scanning product: %w", err)
	}

	p.Category = Category(category)
	if original.Valid {
		p.OriginalPrice = &original.Float64
	}
	p.InStock = inStock != 0
	p.IsActive = active != 0
	p.Badge = badge.String
	if err := json.Unmarshal([]byte(images), &p.Images); err != nil {
		return nil, fmt.Errorf("decoding product images: %w", err)
	}
	if err := json.Unmarshal([]byte(features), &p.Features); err != nil {
		return nil, fmt.Errorf("decoding product features: %w", err)
	}
	if err := json.Unmarshal([]byte(specs), &p.Specifications); err != nil {
		return nil, fmt.Errorf("decoding product specifications: %w", err)
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	if p.CreatedAt, err = database.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = database.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func encodeLists(p *Product) (images, features, specs string, err error) {
	enc := func(v any, empty string) (string, error) {
		b, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encoding product: %w", err)
		}
		if string(b) == "null" {
			return empty, nil
		}
		return string(b), nil
	}
	if images, err = enc(p.Images, "[]"); err != nil {
		return "", "", "", err
	}
	if features, err = enc(p.Features, "[]"); err != nil {
		return "", "", "", err
	}
	if specs, err = enc(p.Specifications, "{}"); err != nil {
		return "", "", "", err
	}
	return images, features, specs, nil
}

func nullFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
