package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

// PaymentCash is the only method the backend accepts today.
const PaymentCash PaymentMethod = "cash"

// OrderDraft is built while the checkout form is edited. It is never
// persisted client-side.
type OrderDraft struct {
	FirstName     string        `json:"firstName" validate:"required,min=2,max=50"`
	LastName      string        `json:"lastName" validate:"required,min=2,max=50"`
	Email         string        `json:"email" validate:"required,email"`
	Phone         string        `json:"phone" validate:"required,min=10,max=15,phone"`
	Address       string        `json:"address" validate:"required,min=10,max=200"`
	City          string        `json:"city" validate:"required,min=2,max=50"`
	Province      string        `json:"province" validate:"required,min=2,max=50"`
	PostalCode    string        `json:"zip" validate:"required,min=5,max=10,postalcode"`
	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"required,oneof=cash"`
	SaveAddress   bool          `json:"-"`
	AddressLabel  string        `json:"-"`
}

// SavedAddress returns the address sub-fields as an unsaved SavedAddress.
func (d OrderDraft) SavedAddress(label string) SavedAddress {
	return SavedAddress{
		Label:       label,
		AddressLine: d.Address,
		City:        d.City,
		Province:    d.Province,
		PostalCode:  d.PostalCode,
	}
}

// ClearAddress empties the address sub-fields.
func (d *OrderDraft) ClearAddress() {
	d.Address = ""
	d.City = ""
	d.Province = ""
	d.PostalCode = ""
}

// ApplyAddress copies a saved address into the draft.
func (d *OrderDraft) ApplyAddress(a SavedAddress) {
	d.Address = a.AddressLine
	d.City = a.City
	d.Province = a.Province
	d.PostalCode = a.PostalCode
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// OrderRequest is the body of POST /orders. UserID is set for logged-in
// shoppers, Token (the emailed one-time code) for guests.
type OrderRequest struct {
	OrderDraft
	UserID     string          `json:"userId,omitempty"`
	Token      string          `json:"token,omitempty"`
	Items      []OrderItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
}

// NewOrderRequest prices the given lines. The total is computed here and not
// re-validated against the backend's prices.
func NewOrderRequest(draft OrderDraft, lines []CartLine) OrderRequest {
	items := make([]OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, OrderItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			Price:     l.UnitPrice,
		})
	}
	draft.PaymentMethod = PaymentCash
	return OrderRequest{
		OrderDraft: draft,
		Items:      items,
		TotalPrice: Subtotal(lines),
	}
}

type OrderStatus string

type Order struct {
	ID         string          `json:"_id"`
	FirstName  string          `json:"firstName"`
	LastName   string          `json:"lastName"`
	Email      string          `json:"email"`
	Phone      string          `json:"phone"`
	Address    string          `json:"address"`
	City       string          `json:"city"`
	Province   string          `json:"province"`
	PostalCode string          `json:"zip"`
	Items      []OrderItem     `json:"items"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Status     OrderStatus     `json:"status,omitempty"`
	CreatedAt  time.Time       `json:"createdAt,omitempty"`
}
