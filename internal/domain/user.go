package domain

type User struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

// SavedAddress is owned by the backend; the client only caches it. Its wire
// shape is the address book's, not the checkout form's.
type SavedAddress struct {
	ID          string `json:"id,omitempty"`
	Label       string `json:"label" validate:"required,min=2,max=20"`
	AddressLine string `json:"addressLine" validate:"required,min=5,max=255"`
	City        string `json:"city" validate:"required,min=2,max=100"`
	Province    string `json:"province" validate:"required,min=2,max=100"`
	PostalCode  string `json:"postalCode" validate:"required,min=5,max=20,postalcode"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

// SignupForm is the registration form. ConfirmPassword never leaves the client.
type SignupForm struct {
	FirstName       string `json:"firstName" validate:"required,min=2,max=50,personname"`
	LastName        string `json:"lastName" validate:"required,min=2,max=50,personname"`
	Email           string `json:"email" validate:"required,email,max=100"`
	Password        string `json:"password" validate:"required,min=8,max=100,password"`
	ConfirmPassword string `json:"-"`
}
