package http

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/workspace"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// ProductLookup resolves the product being added so the cart line carries
// the catalog's current title, price and image.
type ProductLookup interface {
	Product(ctx context.Context, id string) (domain.Product, error)
}

type CartHandler struct {
	products ProductLookup
	log      *logger.Logger
}

func NewCartHandler(products ProductLookup, log *logger.Logger) *CartHandler {
	return &CartHandler{products: products, log: log.Named("cart_handler")}
}

type AddItemRequestDTO struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type SheetDTO struct {
	Open bool `json:"open"`
}

type CartResponse struct {
	Items    []domain.CartLine `json:"items"`
	Subtotal decimal.Decimal   `json:"subtotal"`
	Count    int               `json:"count"`
}

func cartResponse(ws *workspace.Workspace) CartResponse {
	items := ws.Cart.Items()
	if items == nil {
		items = []domain.CartLine{}
	}
	return CartResponse{
		Items:    items,
		Subtotal: ws.Cart.Subtotal(),
		Count:    ws.Cart.Count(),
	}
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, cartResponse(workspaceFrom(r.Context())))
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "productId is required")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := h.products.Product(r.Context(), req.ProductID)
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}

	ws := workspaceFrom(r.Context())
	err = ws.Do(func() error {
		return ws.Cart.AddItem(r.Context(), p, req.Quantity)
	})
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, cartResponse(ws))
}

// UpdateQuantity sets a line's quantity; zero or less removes it.
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req UpdateQuantityRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	productID := chi.URLParam(r, "productID")

	ws := workspaceFrom(r.Context())
	_ = ws.Do(func() error {
		ws.Cart.SetQuantity(r.Context(), productID, req.Quantity)
		return nil
	})
	respondJSON(w, http.StatusOK, cartResponse(ws))
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "productID")

	ws := workspaceFrom(r.Context())
	_ = ws.Do(func() error {
		ws.Cart.RemoveItem(r.Context(), productID)
		return nil
	})
	respondJSON(w, http.StatusOK, cartResponse(ws))
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	_ = ws.Do(func() error {
		ws.Cart.Clear(r.Context())
		return nil
	})
	respondJSON(w, http.StatusOK, cartResponse(ws))
}

func (h *CartHandler) GetSheet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SheetDTO{Open: workspaceFrom(r.Context()).Sheet.Open()})
}

func (h *CartHandler) SetSheet(w http.ResponseWriter, r *http.Request) {
	var req SheetDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ws := workspaceFrom(r.Context())
	ws.Sheet.SetOpen(req.Open)
	respondJSON(w, http.StatusOK, SheetDTO{Open: ws.Sheet.Open()})
}
