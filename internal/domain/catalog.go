package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID           string          `json:"_id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Price        decimal.Decimal `json:"price"`
	Images       []string        `json:"images,omitempty"`
	PrimaryImage string          `json:"primaryImage"`
	Category     string          `json:"category"`
	CreatedAt    time.Time       `json:"createdAt,omitempty"`
}

// Line converts a product into a cart line of the given quantity.
func (p Product) Line(quantity int) CartLine {
	return CartLine{
		ProductID:    p.ID,
		Title:        p.Title,
		UnitPrice:    p.Price,
		PrimaryImage: p.PrimaryImage,
		Quantity:     quantity,
	}
}

type Category struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Slug  string `json:"slug"`
	Image string `json:"image"`
}
