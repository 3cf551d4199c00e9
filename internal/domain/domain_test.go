package domain

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() OrderDraft {
	return OrderDraft{
		FirstName:     "Ali",
		LastName:      "Ahmad",
		Email:         "ali@example.com",
		Phone:         "03001234567",
		Address:       "123 Main Street, Block B",
		City:          "Lahore",
		Province:      "Punjab",
		PostalCode:    "54000",
		PaymentMethod: PaymentCash,
	}
}

func TestSubtotal(t *testing.T) {
	lines := []CartLine{
		{ProductID: "p1", UnitPrice: decimal.RequireFromString("10.50"), Quantity: 2},
		{ProductID: "p2", UnitPrice: decimal.RequireFromString("0.10"), Quantity: 3},
	}
	assert.True(t, decimal.RequireFromString("21.30").Equal(Subtotal(lines)))
	assert.True(t, decimal.Zero.Equal(Subtotal(nil)))
}

func TestNewOrderRequest_PricesLines(t *testing.T) {
	draft := validDraft()
	draft.PaymentMethod = ""
	req := NewOrderRequest(draft, []CartLine{
		{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
	})

	assert.Equal(t, PaymentCash, req.PaymentMethod)
	require.Len(t, req.Items, 1)
	assert.Equal(t, "p1", req.Items[0].ProductID)
	assert.Equal(t, 2, req.Items[0].Quantity)
	assert.True(t, decimal.NewFromInt(20).Equal(req.TotalPrice))
}

func TestOrderRequest_JSONShape(t *testing.T) {
	req := NewOrderRequest(validDraft(), []CartLine{
		{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
	})
	req.Token = "123456"

	raw, err := json.Marshal(req)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Ali", body["firstName"])
	assert.Equal(t, "54000", body["zip"])
	assert.Equal(t, "cash", body["paymentMethod"])
	assert.Equal(t, "123456", body["token"])
	assert.NotContains(t, body, "userId")
	assert.NotContains(t, body, "SaveAddress")
}

func TestValidate_Draft(t *testing.T) {
	require.NoError(t, Validate(validDraft()))

	d := validDraft()
	d.Email = "not-an-email"
	d.Phone = "12"
	err := Validate(d)
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "phone")
	assert.NotContains(t, verr.Fields, "firstName")
}

func TestValidate_PaymentMethodRestrictedToCash(t *testing.T) {
	d := validDraft()
	d.PaymentMethod = "card"
	var verr *ValidationError
	require.ErrorAs(t, Validate(d), &verr)
	assert.Contains(t, verr.Fields, "paymentMethod")
}

func TestValidate_SignupPasswordPolicy(t *testing.T) {
	form := SignupForm{FirstName: "Sara", LastName: "Khan", Email: "sara@example.com", Password: "password1"}
	var verr *ValidationError
	require.ErrorAs(t, Validate(form), &verr)
	assert.Contains(t, verr.Fields["password"], "uppercase")

	form.Password = "Password1"
	assert.NoError(t, Validate(form))
}

func TestDraft_AddressHelpers(t *testing.T) {
	d := validDraft()
	d.ClearAddress()
	assert.Empty(t, d.Address)
	assert.Empty(t, d.PostalCode)

	d.ApplyAddress(SavedAddress{AddressLine: "9 Canal Road", City: "Multan", Province: "Punjab", PostalCode: "60000"})
	assert.Equal(t, "9 Canal Road", d.Address)
	assert.Equal(t, "60000", d.PostalCode)

	saved := d.SavedAddress("Home")
	assert.Equal(t, "Home", saved.Label)
	assert.Equal(t, "Multan", saved.City)
}

func TestSavedAddress_AddressBookShape(t *testing.T) {
	a := SavedAddress{
		Label:       "Office",
		AddressLine: "Plot 14, Industrial Area, Phase 2",
		City:        "Islamabad",
		Province:    "Islamabad Capital Territory",
		PostalCode:  "44000-1234",
	}
	require.NoError(t, Validate(a))

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "Plot 14, Industrial Area, Phase 2", body["addressLine"])
	assert.Equal(t, "44000-1234", body["postalCode"])
	assert.NotContains(t, body, "zip")

	a.Label = "H"
	a.PostalCode = "44000 1234 5678 90123"
	var verr *ValidationError
	require.ErrorAs(t, Validate(a), &verr)
	assert.Contains(t, verr.Fields, "label")
	assert.Contains(t, verr.Fields, "postalCode")
}
