package catalog

import (
	"strings"
	"time"
)

// Category groups products in the storefront.
type Category string

// Category constants.
const (
	CategorySecurity   Category = "SECURITY"
	CategoryAssistant  Category = "ASSISTANT"
	CategoryIndustrial Category = "INDUSTRIAL"
	CategoryDrone      Category = "DRONE"
	CategoryComponent  Category = "COMPONENT"
)

// ValidCategories lists every category.
var ValidCategories = []Category{
	CategorySecurity, CategoryAssistant, CategoryIndustrial, CategoryDrone, CategoryComponent,
}

// ParseCategory accepts category names in any case.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, v := range ValidCategories {
		if c == v {
			return c, nil
		}
	}
	return "", ErrInvalidCategory
}

// Product is a catalog entry.
type Product struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          float64           `json:"price"`
	OriginalPrice  *float64          `json:"originalPrice,omitempty"`
	Category       Category          `json:"category"`
	Images         []string          `json:"images"`
	Features       []string          `json:"features"`
	Specifications map[string]string `json:"specifications"`
	InStock        bool              `json:"inStock"`
	StockCount     int               `json:"stockCount"`
	Rating         float64           `json:"rating"`
	ReviewCount    int               `json:"reviewCount"`
	Badge          string            `json:"badge,omitempty"`
	IsActive       bool              `json:"isActive"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// setStock writes the count and the derived flag together.
func (p *Product) setStock(count int) {
	p.StockCount = count
	p.InStock = count > 0
}

// ProductDetail is a product with its most recent reviews.
type ProductDetail struct {
	Product
	Reviews []Review `json:"reviews"`
}

// ProductInput carries the fields accepted when creating a product.
type ProductInput struct {
	Name           string            `json:"name"`
	Description    string            `json:"description"`
	Price          float64           `json:"price"`
	OriginalPrice  *float64          `json:"originalPrice,omitempty"`
	Category       string            `json:"category"`
	Images         []string          `json:"images,omitempty"`
	Features       []string          `json:"features,omitempty"`
	Specifications map[string]string `json:"specifications,omitempty"`
	StockCount     int               `json:"stockCount"`
	Badge          string            `json:"badge,omitempty"`
}

// ProductUpdate carries the editable fields. Nil fields are unchanged.
type ProductUpdate struct {
	Name           *string            `json:"name,omitempty"`
	Description    *string            `json:"description,omitempty"`
	Price          *float64           `json:"price,omitempty"`
	OriginalPrice  *float64           `json:"originalPrice,omitempty"`
	Category       *string            `json:"category,omitempty"`
	Images         *[]string          `json:"images,omitempty"`
	Features       *[]string          `json:"features,omitempty"`
	Specifications *map[string]string `json:"specifications,omitempty"`
	StockCount     *int               `json:"stockCount,omitempty"`
	Badge          *string            `json:"badge,omitempty"`
	IsActive       *bool              `json:"isActive,omitempty"`
}

// SortField orders a product listing.
type SortField string

// SortField constants.
const (
	SortName      SortField = "name"
	SortPrice     SortField = "price"
	SortRating    SortField = "rating"
	SortCreatedAt SortField = "createdAt"
)

var sortColumns = map[SortField]string{
	SortName:      "name",
	SortPrice:     "price",
	SortRating:    "rating",
	SortCreatedAt: "created_at",
}

// Filter narrows a public product listing.
type Filter struct {
	Category  Category
	Search    string
	MinPrice  *float64
	MaxPrice  *float64
	InStock   *bool
	SortBy    SortField
	SortOrder string // "asc" or "desc"
	Page      int
	Limit     int
}

// Pagination defaults.
const (
	DefaultPageLimit   = 20
	MaxPageLimit       = 100
	DefaultReviewLimit = 10
	MaxReviewLimit     = 50
	recentReviewCount  = 5
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

// NewPagination clamps page and limit and computes the page count.
func NewPagination(page, limit, defLimit, maxLimit, total int) Pagination {
	page, limit = ClampPage(page, limit, defLimit, maxLimit)
	pages := 0
	if total > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// ClampPage applies the default and upper bound to page and limit.
func ClampPage(page, limit, defLimit, maxLimit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit
}

// ProductPage is one page of products.
type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// Review is a customer's rating of a product.
type Review struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ProductID string    `json:"productId"`
	Rating    int       `json:"rating"`
	Title     string    `json:"title,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ReviewInput carries a new review.
type ReviewInput struct {
	Rating  int    `json:"rating"`
	Title   string `json:"title,omitempty"`
	Comment string `json:"comment,omitempty"`
}

// ReviewPage is one page of a product's reviews.
type ReviewPage struct {
	Reviews    []Review   `json:"reviews"`
	Pagination Pagination `json:"pagination"`
}
