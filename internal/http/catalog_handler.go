package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
	log     *logger.Logger
}

func NewCatalogHandler(c *catalog.Catalog, log *logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, log: log.Named("catalog_handler")}
}

// listOptions reads ?limit=&sort=&category=a,b.
func listOptions(r *http.Request) (catalog.ListOptions, bool, string) {
	q := r.URL.Query()
	var opts catalog.ListOptions

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return opts, false, "limit must be a non-negative integer"
		}
		opts.Limit = n
	}

	sort, err := catalog.ParseSort(q.Get("sort"))
	if err != nil {
		return opts, false, err.Error()
	}
	opts.Sort = sort
	opts.Categories = splitCSV(q.Get("category"))
	return opts, true, ""
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	opts, ok, msg := listOptions(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_query", msg)
		return
	}
	products, err := h.catalog.Products(r.Context(), opts)
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.Product(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) RecentProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Recent(r.Context())
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) FeaturedProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.Featured(r.Context())
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.Categories(r.Context())
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	opts, ok, msg := listOptions(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_query", msg)
		return
	}
	page, err := h.catalog.Category(r.Context(), chi.URLParam(r, "slug"), opts)
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

// Search reads ?q=&category=&minPrice=&maxPrice=&sort=.
func (h *CatalogHandler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := catalog.Filter{
		Query:      q.Get("q"),
		Categories: splitCSV(q.Get("category")),
	}
	for _, bound := range []struct {
		name string
		dst  **decimal.Decimal
	}{{"minPrice", &f.MinPrice}, {"maxPrice", &f.MaxPrice}} {
		s := q.Get(bound.name)
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_query", bound.name+" must be a number")
			return
		}
		*bound.dst = &d
	}

	sort, err := catalog.ParseSort(q.Get("sort"))
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	products, err := h.catalog.Search(r.Context(), f, sort)
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}
