package domain

import "github.com/shopspring/decimal"

// CartLine is one product's entry in the cart. The json names match the
// snapshot shape the storefront has always written to local storage.
type CartLine struct {
	ProductID    string          `json:"_id"`
	Title        string          `json:"title"`
	UnitPrice    decimal.Decimal `json:"price"`
	PrimaryImage string          `json:"primaryImage"`
	Quantity     int             `json:"quantity"`
}

// LineTotal is UnitPrice × Quantity.
func (l CartLine) LineTotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Subtotal sums LineTotal over lines.
func Subtotal(lines []CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}
