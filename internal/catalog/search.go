package catalog

import (
	"context"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

// Filter narrows a product list. Zero fields do not filter.
type Filter struct {
	Query      string
	Categories []string
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
}

// Match reports whether p passes the filter. The query matches title or
// description case-insensitively; categories are matched against the
// product's category; the price range is inclusive.
func (f Filter) Match(p domain.Product) bool {
	if q := strings.TrimSpace(f.Query); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(p.Title), q) && !strings.Contains(strings.ToLower(p.Description), q) {
			return false
		}
	}
	if len(f.Categories) > 0 {
		found := false
		for _, c := range f.Categories {
			if c == p.Category {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
		return false
	}
	return true
}

func (f Filter) Apply(products []domain.Product) []domain.Product {
	out := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if f.Match(p) {
			out = append(out, p)
		}
	}
	return out
}

// Search fetches the sorted product list for the selected categories and
// applies the rest of the filter locally.
func (c *Catalog) Search(ctx context.Context, f Filter, sort Sort) ([]domain.Product, error) {
	products, err := c.Products(ctx, ListOptions{Sort: sort, Categories: f.Categories})
	if err != nil {
		return nil, err
	}
	return f.Apply(products), nil
}
