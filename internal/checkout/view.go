package checkout

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/otp"
	"github.com/shopspring/decimal"
)

// View is a snapshot of the checkout screen.
type View struct {
	State           State                 `json:"state"`
	LoggedIn        bool                  `json:"loggedIn"`
	Draft           DraftView             `json:"draft"`
	LockedFields    []string              `json:"lockedFields,omitempty"`
	Addresses       []domain.SavedAddress `json:"addresses,omitempty"`
	SelectedAddress string                `json:"selectedAddress,omitempty"`
	Items           []domain.CartLine     `json:"items"`
	Subtotal        decimal.Decimal       `json:"subtotal"`
	Error           string                `json:"error,omitempty"`
	Otp             *otp.View             `json:"otp,omitempty"`
	Result          *Result               `json:"result,omitempty"`
}

// DraftView adds the save-address choice, which OrderDraft keeps out of its
// wire form.
type DraftView struct {
	domain.OrderDraft
	SaveAddress  bool   `json:"saveAddress"`
	AddressLabel string `json:"addressLabel,omitempty"`
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	items := f.d.Cart.Items()
	v := View{
		State:           f.state,
		LoggedIn:        f.loggedIn,
		Draft:           DraftView{OrderDraft: f.draft, SaveAddress: f.draft.SaveAddress, AddressLabel: f.draft.AddressLabel},
		LockedFields:    f.lockedFields(),
		Addresses:       append([]domain.SavedAddress(nil), f.addresses...),
		SelectedAddress: f.selected,
		Items:           items,
		Subtotal:        domain.Subtotal(items),
		Error:           f.lastErr,
	}
	if f.state == StateAwaitingOtp {
		ov := f.challenge.View()
		v.Otp = &ov
	}
	if f.result != nil {
		r := *f.result
		v.Result = &r
	}
	return v
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
