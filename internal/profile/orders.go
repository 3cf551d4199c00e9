package profile

import (
	"context"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type OrdersGateway interface {
	ByID(ctx context.Context, id string) (domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
}

// OrderHistory lists past orders. Single orders can be read without a
// session so a guest can see the confirmation page.
type OrderHistory struct {
	orders  OrdersGateway
	session Session
}

func NewOrderHistory(orders OrdersGateway, session Session) *OrderHistory {
	return &OrderHistory{orders: orders, session: session}
}

func (h *OrderHistory) List(ctx context.Context) ([]domain.Order, error) {
	if !h.session.IsAuthenticated() {
		return nil, ErrLoginRequired
	}
	list, err := h.orders.List(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Order{}
	}
	return list, nil
}

func (h *OrderHistory) Get(ctx context.Context, id string) (domain.Order, error) {
	return h.orders.ByID(ctx, id)
}
