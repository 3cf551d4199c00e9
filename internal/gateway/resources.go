package gateway

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// ErrEmptyResponse is returned when a call that must produce a value got a
// 2xx response without a JSON body.
var ErrEmptyResponse = errors.New("backend returned no content")

type AuthGateway struct {
	c *Client
}

func NewAuthGateway(c *Client) *AuthGateway {
	return &AuthGateway{c: c}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type signUpRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// Login exchanges credentials for a bearer token.
func (g *AuthGateway) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	err := g.c.Post(ctx, Anonymous{}, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", ErrEmptyResponse
	}
	return out.AccessToken, nil
}

func (g *AuthGateway) SignUp(ctx context.Context, form domain.SignupForm) error {
	return g.c.Post(ctx, Anonymous{}, "/auth/sign-up", signUpRequest{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  form.Password,
	}, nil)
}

// VerifyEmail confirms a signup with the emailed code and returns the token
// of the new session.
func (g *AuthGateway) VerifyEmail(ctx context.Context, email, code string) (string, error) {
	var out tokenResponse
	err := g.c.Post(ctx, Anonymous{}, "/auth/verify-email", map[string]string{
		"email": email,
		"token": code,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", ErrEmptyResponse
	}
	return out.AccessToken, nil
}

func (g *AuthGateway) ResendToken(ctx context.Context, email string) error {
	return g.c.PostForm(ctx, Anonymous{}, "/auth/resend-token", url.Values{"email": {email}}, nil)
}

type ProductsGateway struct {
	c    *Client
	auth AuthContext
}

func NewProductsGateway(c *Client, auth AuthContext) *ProductsGateway {
	return &ProductsGateway{c: c, auth: auth}
}

// ProductQuery mirrors the query string of GET /products. Zero fields are
// left out.
type ProductQuery struct {
	PageNumber int
	Limit      int
	SortBy     string
	SortOrder  int
	Category   string
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Limit > 0 {
		page := q.PageNumber
		if page < 1 {
			page = 1
		}
		v.Set("pageNumber", strconv.Itoa(page))
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.SortBy != "" {
		order := q.SortOrder
		if order == 0 {
			order = 1
		}
		v.Set("sortBy", q.SortBy)
		v.Set("sortOrder", strconv.Itoa(order))
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	return v
}

func (g *ProductsGateway) List(ctx context.Context, q ProductQuery) ([]domain.Product, error) {
	var out struct {
		Data []domain.Product `json:"data"`
	}
	if err := g.c.Get(ctx, g.auth, "/products", q.values(), &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (g *ProductsGateway) ByID(ctx context.Context, id string) (domain.Product, error) {
	var out *domain.Product
	if err := g.c.Get(ctx, g.auth, "/products/product/"+url.PathEscape(id), nil, &out); err != nil {
		return domain.Product{}, err
	}
	if out == nil {
		return domain.Product{}, ErrEmptyResponse
	}
	return *out, nil
}

func (g *ProductsGateway) RecentlyAdded(ctx context.Context) ([]domain.Product, error) {
	var out []domain.Product
	if err := g.c.Get(ctx, g.auth, "/products/recently-added", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *ProductsGateway) Featured(ctx context.Context) ([]domain.Product, error) {
	var out struct {
		Products []domain.Product `json:"products"`
	}
	if err := g.c.Get(ctx, g.auth, "/featured-products", nil, &out); err != nil {
		return nil, err
	}
	return out.Products, nil
}

type CategoriesGateway struct {
	c    *Client
	auth AuthContext
}

func NewCategoriesGateway(c *Client, auth AuthContext) *CategoriesGateway {
	return &CategoriesGateway{c: c, auth: auth}
}

func (g *CategoriesGateway) List(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if err := g.c.Get(ctx, g.auth, "/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *CategoriesGateway) BySlug(ctx context.Context, slug string) (domain.Category, error) {
	var out *domain.Category
	if err := g.c.Get(ctx, g.auth, "/categories/slug/"+url.PathEscape(slug), nil, &out); err != nil {
		return domain.Category{}, err
	}
	if out == nil {
		return domain.Category{}, ErrEmptyResponse
	}
	return *out, nil
}

type UsersGateway struct {
	c    *Client
	auth AuthContext
}

func NewUsersGateway(c *Client, auth AuthContext) *UsersGateway {
	return &UsersGateway{c: c, auth: auth}
}

func (g *UsersGateway) CurrentUser(ctx context.Context) (domain.User, error) {
	var out *domain.User
	if err := g.c.Get(ctx, g.auth, "/user/current-user", nil, &out); err != nil {
		return domain.User{}, err
	}
	if out == nil {
		return domain.User{}, ErrEmptyResponse
	}
	return *out, nil
}

func (g *UsersGateway) Addresses(ctx context.Context) ([]domain.SavedAddress, error) {
	var out []domain.SavedAddress
	if err := g.c.Get(ctx, g.auth, "/user/address", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AddAddress saves a new address. When the backend answers without a body the
// input is returned unchanged.
func (g *UsersGateway) AddAddress(ctx context.Context, a domain.SavedAddress) (domain.SavedAddress, error) {
	out := a
	if err := g.c.Post(ctx, g.auth, "/user/address", a, &out); err != nil {
		return domain.SavedAddress{}, err
	}
	return out, nil
}

func (g *UsersGateway) UpdateAddress(ctx context.Context, a domain.SavedAddress) (domain.SavedAddress, error) {
	out := a
	if err := g.c.Patch(ctx, g.auth, "/user/address/"+url.PathEscape(a.ID), a, &out); err != nil {
		return domain.SavedAddress{}, err
	}
	return out, nil
}

func (g *UsersGateway) DeleteAddress(ctx context.Context, id string) error {
	return g.c.Delete(ctx, g.auth, "/user/address/"+url.PathEscape(id), nil)
}

type OrdersGateway struct {
	c    *Client
	auth AuthContext
}

func NewOrdersGateway(c *Client, auth AuthContext) *OrdersGateway {
	return &OrdersGateway{c: c, auth: auth}
}

// Submit places the order and returns the id the backend assigned.
func (g *OrdersGateway) Submit(ctx context.Context, req domain.OrderRequest) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := g.c.Post(ctx, g.auth, "/orders", req, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", ErrEmptyResponse
	}
	return out.ID, nil
}

func (g *OrdersGateway) ByID(ctx context.Context, id string) (domain.Order, error) {
	var out *domain.Order
	if err := g.c.Get(ctx, g.auth, "/orders/"+url.PathEscape(id), nil, &out); err != nil {
		return domain.Order{}, err
	}
	if out == nil {
		return domain.Order{}, ErrEmptyResponse
	}
	return *out, nil
}

func (g *OrdersGateway) List(ctx context.Context) ([]domain.Order, error) {
	var out []domain.Order
	if err := g.c.Get(ctx, g.auth, "/orders", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RequestVerificationEmail asks the backend to email a one-time code that
// authorises a guest order.
func (g *OrdersGateway) RequestVerificationEmail(ctx context.Context, email, firstName string) error {
	return g.c.Post(ctx, g.auth, "/orders/verification-email-for-order", map[string]string{
		"email":     email,
		"firstName": firstName,
	}, nil)
}
