// Package catalog holds the storefront's products and their reviews.
//
// Products are never hard-deleted: Delete clears isActive, which hides the
// product from public listings while keeping order history intact. Stock is
// tracked as a count, and inStock is rewritten alongside it on every stock
// write so the two never disagree.
//
// Reviews are unique per (user, product). Each insert recomputes the
// product's average rating (one decimal) and review count by scanning every
// review, in the same transaction as the insert.
//
// Usage:
//
//	svc := catalog.NewService(catalog.NewSQLiteRepository(db.DB))
//	page, err := svc.List(ctx, catalog.Filter{Category: catalog.CategoryDrone})
package catalog
