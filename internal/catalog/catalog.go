// Package catalog is product and category browsing. Backend reads are cached
// in the shared store for a short TTL.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ProductsGateway interface {
	List(ctx context.Context, q gateway.ProductQuery) ([]domain.Product, error)
	ByID(ctx context.Context, id string) (domain.Product, error)
	RecentlyAdded(ctx context.Context) ([]domain.Product, error)
	Featured(ctx context.Context) ([]domain.Product, error)
}

type CategoriesGateway interface {
	List(ctx context.Context) ([]domain.Category, error)
	BySlug(ctx context.Context, slug string) (domain.Category, error)
}

// Sort is one of the sort options offered by the product list.
type Sort string

const (
	SortDefault      Sort = ""
	SortPriceLowHigh Sort = "priceLowHigh"
	SortPriceHighLow Sort = "priceHighLow"
	SortNameAZ       Sort = "nameAZ"
	SortNameZA       Sort = "nameZA"
	SortNewest       Sort = "newest"
)

type sortMapping struct {
	by    string
	order int
}

var sortMappings = map[Sort]sortMapping{
	SortPriceLowHigh: {"price", 1},
	SortPriceHighLow: {"price", -1},
	SortNameAZ:       {"title", 1},
	SortNameZA:       {"title", -1},
	SortNewest:       {"createdAt", -1},
}

var ErrUnknownSort = errors.New("unknown sort option")

// ParseSort accepts the option names and "" / "sort" for no ordering.
func ParseSort(s string) (Sort, error) {
	if s == "" || s == "sort" {
		return SortDefault, nil
	}
	if _, ok := sortMappings[Sort(s)]; ok {
		return Sort(s), nil
	}
	return SortDefault, fmt.Errorf("%w: %q", ErrUnknownSort, s)
}

// ListOptions selects a page of products.
type ListOptions struct {
	Limit      int
	Sort       Sort
	Categories []string
}

type Catalog struct {
	products   ProductsGateway
	categories CategoriesGateway
	cache      storage.Store
	ttl        time.Duration
	log        *logger.Logger
	sfg        singleflight.Group
	now        func() time.Time
}

func New(products ProductsGateway, categories CategoriesGateway, cache storage.Store, ttl time.Duration, log *logger.Logger) *Catalog {
	return &Catalog{
		products:   products,
		categories: categories,
		cache:      cache,
		ttl:        ttl,
		log:        log.Named("catalog"),
		now:        time.Now,
	}
}

type envelope struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Data      json.RawMessage `json:"data"`
}

// cached runs fetch on a miss or an expired entry and stores its result.
// Cache failures are logged and never fail the read.
func cached[T any](ctx context.Context, c *Catalog, key string, fetch func() (T, error)) (T, error) {
	v, err, _ := c.sfg.Do(key, func() (interface{}, error) {
		if c.ttl > 0 {
			if raw, err := c.cache.Get(ctx, key); err == nil {
				var env envelope
				var out T
				if json.Unmarshal(raw, &env) == nil && c.now().Before(env.ExpiresAt) && json.Unmarshal(env.Data, &out) == nil {
					return out, nil
				}
			} else if !errors.Is(err, storage.ErrNotFound) {
				c.log.Warn(ctx, "catalog cache get error", zap.String("key", key), zap.Error(err))
			}
		}

		out, err := fetch()
		if err != nil {
			return out, err
		}
		if c.ttl > 0 {
			c.store(ctx, key, out)
		}
		return out, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}

func (c *Catalog) store(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	raw, err := json.Marshal(envelope{ExpiresAt: c.now().Add(c.ttl), Data: data})
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw); err != nil {
		c.log.Warn(ctx, "catalog cache set error", zap.String("key", key), zap.Error(err))
	}
}

func (c *Catalog) Products(ctx context.Context, opts ListOptions) ([]domain.Product, error) {
	q := gateway.ProductQuery{Limit: opts.Limit, Category: joinCategories(opts.Categories)}
	if m, ok := sortMappings[opts.Sort]; ok {
		q.SortBy = m.by
		q.SortOrder = m.order
	}
	key := fmt.Sprintf("products:%d:%s:%d:%s", q.Limit, q.SortBy, q.SortOrder, q.Category)
	return cached(ctx, c, key, func() ([]domain.Product, error) {
		return c.products.List(ctx, q)
	})
}

func (c *Catalog) Product(ctx context.Context, id string) (domain.Product, error) {
	return cached(ctx, c, "product:"+id, func() (domain.Product, error) {
		return c.products.ByID(ctx, id)
	})
}

func (c *Catalog) Recent(ctx context.Context) ([]domain.Product, error) {
	return cached(ctx, c, "recent", func() ([]domain.Product, error) {
		return c.products.RecentlyAdded(ctx)
	})
}

func (c *Catalog) Featured(ctx context.Context) ([]domain.Product, error) {
	return cached(ctx, c, "featured", func() ([]domain.Product, error) {
		return c.products.Featured(ctx)
	})
}

func (c *Catalog) Categories(ctx context.Context) ([]domain.Category, error) {
	return cached(ctx, c, "categories", func() ([]domain.Category, error) {
		return c.categories.List(ctx)
	})
}

// CategoryPage is a category with its products.
type CategoryPage struct {
	Category domain.Category  `json:"category"`
	Products []domain.Product `json:"products"`
}

func (c *Catalog) Category(ctx context.Context, slug string, opts ListOptions) (CategoryPage, error) {
	cat, err := cached(ctx, c, "category:"+slug, func() (domain.Category, error) {
		return c.categories.BySlug(ctx, slug)
	})
	if err != nil {
		return CategoryPage{}, err
	}
	opts.Categories = []string{cat.ID}
	products, err := c.Products(ctx, opts)
	if err != nil {
		return CategoryPage{}, err
	}
	return CategoryPage{Category: cat, Products: products}, nil
}

func joinCategories(ids []string) string {
	return strings.Join(ids, ",")
}
