package catalog

import (
	"context"
	"strings"
	"time"

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
	maxNameLength    = 255
	maxTitleLength   = 200
	maxCommentLength = 2000
)

// Service implements the product catalog operations.
type Service struct {
	repo   Repository
	logger Logger
	now    func() time.Time
}

// NewService creates a catalog service.
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

// List returns one page of active products.
func (s *Service) List(ctx context.Context, f Filter) (ProductPage, error) {
	var verr validation.Errors
	if f.Category != "" {
		c, err := ParseCategory(string(f.Category))
		verr.AddErr(err)
		f.Category = c
	}
	if f.SortBy == "" {
		f.SortBy = SortCreatedAt
	}
	if _, ok := sortColumns[f.SortBy]; !ok {
		verr = append(verr, ErrInvalidSort)
	}
	f.SortOrder = strings.ToLower(strings.TrimSpace(f.SortOrder))
	switch f.SortOrder {
	case "":
		f.SortOrder = "desc"
	case "asc", "desc":
	default:
		verr = append(verr, ErrInvalidSortOrder)
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MaxPrice < *f.MinPrice {
		verr = append(verr, ErrInvalidPriceRange)
	}
	if err := verr.Err(); err != nil {
		return ProductPage{}, err
	}

	f.Page, f.Limit = ClampPage(f.Page, f.Limit, DefaultPageLimit, MaxPageLimit)
	f.Search = strings.TrimSpace(f.Search)

	products, total, err := s.repo.List(ctx, f)
	if err != nil {
		return ProductPage{}, err
	}
	return ProductPage{
		Products:   products,
		Pagination: NewPagination(f.Page, f.Limit, DefaultPageLimit, MaxPageLimit, total),
	}, nil
}

// Get returns an active product with its most recent reviews.
func (s *Service) Get(ctx context.Context, id string) (*ProductDetail, error) {
	p, err := s.active(ctx, id)
	if err != nil {
		return nil, err
	}
	reviews, _, err := s.repo.Reviews(ctx, id, recentReviewCount, 0)
	if err != nil {
		return nil, err
	}
	return &ProductDetail{Product: *p, Reviews: reviews}, nil
}

func (s *Service) active(ctx context.Context, id string) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, ErrProductNotFound
	}
	return p, nil
}

// Create adds a product to the catalog.
func (s *Service) Create(ctx context.Context, in ProductInput) (*Product, error) {
	var verr validation.Errors
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLength {
		verr = append(verr, ErrInvalidName)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		verr = append(verr, ErrInvalidDescription)
	}
	if in.Price < 0 {
		verr = append(verr, ErrInvalidPrice)
	}
	if in.OriginalPrice != nil && *in.OriginalPrice < 0 {
		verr = append(verr, ErrInvalidOriginal)
	}
	category, err := ParseCategory(in.Category)
	verr.AddErr(err)
	if in.StockCount < 0 {
		verr = append(verr, ErrInvalidStock)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	now := s.now()
	p := &Product{
		Name:           name,
		Description:    desc,
		Price:          in.Price,
		OriginalPrice:  in.OriginalPrice,
		Category:       category,
		Images:         orEmpty(in.Images),
		Features:       orEmpty(in.Features),
		Specifications: in.Specifications,
		Badge:          strings.TrimSpace(in.Badge),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Specifications == nil {
		p.Specifications = map[string]string{}
	}
	p.setStock(in.StockCount)

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("product created", "id", p.ID, "name", p.Name, "category", p.Category)
	return p, nil
}

// Update edits a product. Withdrawn products can be edited and
// re-activated.
func (s *Service) Update(ctx context.Context, id string, in ProductUpdate) (*Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	var verr validation.Errors
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		if n == "" || len(n) > maxNameLength {
			verr = append(verr, ErrInvalidName)
		}
		p.Name = n
	}
	if in.Description != nil {
		d := strings.TrimSpace(*in.Description)
		if d == "" {
			verr = append(verr, ErrInvalidDescription)
		}
		p.Description = d
	}
	if in.Price != nil {
		if *in.Price < 0 {
			verr = append(verr, ErrInvalidPrice)
		}
		p.Price = *in.Price
	}
	if in.OriginalPrice != nil {
		if *in.OriginalPrice < 0 {
			verr = append(verr, ErrInvalidOriginal)
		}
		p.OriginalPrice = in.OriginalPrice
	}
	if in.Category != nil {
		c, err := ParseCategory(*in.Category)
		verr.AddErr(err)
		p.Category = c
	}
	if in.StockCount != nil {
		if *in.StockCount < 0 {
			verr = append(verr, ErrInvalidStock)
		}
		p.setStock(*in.StockCount)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if in.Images != nil {
		p.Images = orEmpty(*in.Images)
	}
	if in.Features != nil {
		p.Features = orEmpty(*in.Features)
	}
	if in.Specifications != nil {
		p.Specifications = *in.Specifications
	}
	if in.Badge != nil {
		p.Badge = strings.TrimSpace(*in.Badge)
	}
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.UpdatedAt = s.now()

	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info("product updated", "id", p.ID)
	return p, nil
}

// Delete withdraws a product from the catalog.
func (s *Service) Delete(ctx context.Context, id string) error {
	p, err := s.active(ctx, id)
	if err != nil {
		return err
	}
	p.IsActive = false
	p.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, p); err != nil {
		return err
	}
	s.logger.Info("product withdrawn", "id", id)
	return nil
}

// AddReview records userID's review of an active product and refreshes
// the product's rating.
func (s *Service) AddReview(ctx context.Context, userID, productID string, in ReviewInput) (*Review, error) {
	var verr validation.Errors
	if in.Rating < 1 || in.Rating > 5 {
		verr = append(verr, ErrInvalidRating)
	}
	title := strings.TrimSpace(in.Title)
	if len(title) > maxTitleLength {
		verr.Add("title", "must not exceed 200 characters")
	}
	comment := strings.TrimSpace(in.Comment)
	if len(comment) > maxCommentLength {
		verr.Add("comment", "must not exceed 2000 characters")
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if _, err := s.active(ctx, productID); err != nil {
		return nil, err
	}

	rev := &Review{
		UserID:    userID,
		ProductID: productID,
		Rating:    in.Rating,
		Title:     title,
		Comment:   comment,
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateReview(ctx, rev); err != nil {
		return nil, err
	}
	s.logger.Debug("review added", "product", productID, "rating", rev.Rating)
	return rev, nil
}

// Reviews returns one page of an active product's reviews.
func (s *Service) Reviews(ctx context.Context, productID string, page, limit int) (ReviewPage, error) {
	if _, err := s.active(ctx, productID); err != nil {
		return ReviewPage{}, err
	}
	page, limit = ClampPage(page, limit, DefaultReviewLimit, MaxReviewLimit)
	reviews, total, err := s.repo.Reviews(ctx, productID, limit, (page-1)*limit)
	if err != nil {
		return ReviewPage{}, err
	}
	return ReviewPage{
		Reviews:    reviews,
		Pagination: NewPagination(page, limit, DefaultReviewLimit, MaxReviewLimit, total),
	}, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
