package catalog

import (
	"errors"

	"github.com/tvmmachans/Customo/internal/validation"
)

// Domain errors for the catalog package.
var (
	// ErrProductNotFound is returned when a product does not exist or has
	// been withdrawn.
	ErrProductNotFound = errors.New("catalog: product not found")

	// ErrDuplicateReview is returned when a user reviews the same product
	// twice.
	ErrDuplicateReview = errors.New("catalog: product already reviewed by this user")

	ErrInvalidName        = validation.New("name", "is required and must not exceed 255 characters")
	ErrInvalidDescription = validation.New("description", "is required")
	ErrInvalidPrice       = validation.New("price", "must be zero or greater")
	ErrInvalidOriginal    = validation.New("originalPrice", "must be zero or greater")
	ErrInvalidCategory    = validation.New("category", "must be one of SECURITY, ASSISTANT, INDUSTRIAL, DRONE, COMPONENT")
	ErrInvalidStock       = validation.New("stockCount", "must be zero or greater")
	ErrInvalidRating      = validation.New("rating", "must be between 1 and 5")
	ErrInvalidSort        = validation.New("sortBy", "must be one of name, price, rating, createdAt")
	ErrInvalidSortOrder   = validation.New("sortOrder", "must be asc or desc")
	ErrInvalidPriceRange  = validation.New("maxPrice", "must not be below minPrice")
)
