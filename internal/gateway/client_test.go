package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticAuth string

func (a staticAuth) Token() (string, bool) { return string(a), a != "" }

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second, BreakerFailures: 3, BreakerTimeout: time.Minute}, logger.Nop())
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func TestClient_BearerHeader(t *testing.T) {
	var got []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	})
	ctx := context.Background()

	require.NoError(t, c.Get(ctx, staticAuth("abc"), "/x", nil, nil))
	require.NoError(t, c.Get(ctx, staticAuth(""), "/x", nil, nil))
	require.NoError(t, c.Get(ctx, Anonymous{}, "/x", nil, nil))
	require.NoError(t, c.Get(ctx, nil, "/x", nil, nil))

	assert.Equal(t, []string{"Bearer abc", "", "", ""}, got)
}

func TestClient_PropagatesRequestID(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Request-ID")
		w.WriteHeader(http.StatusNoContent)
	})

	ctx := logger.WithRequestID(context.Background(), "req-1")
	require.NoError(t, c.Get(ctx, nil, "/x", nil, nil))
	assert.Equal(t, "req-1", got)
}

func TestClient_SuccessBodies(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        map[string]any
	}{
		{name: "json", contentType: "application/json", body: `{"a":"b"}`, want: map[string]any{"a": "b"}},
		{name: "empty json", contentType: "application/json", body: "  ", want: nil},
		{name: "text", contentType: "text/plain", body: "OK", want: nil},
		{name: "no content type", contentType: "", body: `{"a":"b"}`, want: nil},
		{name: "broken json", contentType: "application/json", body: `{"a":`, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				} else {
					w.Header()["Content-Type"] = nil
				}
				_, _ = io.WriteString(w, tt.body)
			})

			var out map[string]any
			err := c.Get(context.Background(), nil, "/x", nil, &out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestClient_ErrorNormalisation(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        string
		wantMessage string
		wantCode    ErrorCode
	}{
		{
			name: "json message", status: 409, contentType: "application/json",
			body:        `{"message":"User with this email already exists","statusCode":409}`,
			wantMessage: "User with this email already exists", wantCode: CodeUserAlreadyExists,
		},
		{
			name: "pending verification", status: 400, contentType: "application/json",
			body:        `{"message":"Email is pending verification"}`,
			wantMessage: "Email is pending verification", wantCode: CodeEmailPendingVerification,
		},
		{
			name: "explicit code wins", status: 400, contentType: "application/json",
			body:        `{"message":"Ihr Code ist abgelaufen","errorCode":"token_expired"}`,
			wantMessage: "Ihr Code ist abgelaufen", wantCode: CodeTokenExpired,
		},
		{
			name: "unknown explicit code falls back to message", status: 404, contentType: "application/json",
			body:        `{"message":"Not found","code":"E_SOMETHING"}`,
			wantMessage: "Not found", wantCode: CodeNotFound,
		},
		{
			name: "array message", status: 400, contentType: "application/json",
			body:        `{"message":["email must be an email","password is too weak"]}`,
			wantMessage: "email must be an email; password is too weak", wantCode: CodeUnknown,
		},
		{
			name: "text body", status: 502, contentType: "text/plain",
			body: "upstream exploded", wantMessage: "upstream exploded", wantCode: CodeUnknown,
		},
		{
			name: "json without message", status: 403, contentType: "application/json",
			body: `{"error":"nope"}`, wantMessage: "Forbidden", wantCode: CodeUnknown,
		},
		{
			name: "empty body", status: 404, body: "", wantMessage: "Not Found", wantCode: CodeUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				if tt.contentType != "" {
					w.Header().Set("Content-Type", tt.contentType)
				}
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.Post(context.Background(), nil, "/auth/sign-up", map[string]string{}, nil)
			require.Error(t, err)

			var he *HTTPError
			require.True(t, errors.As(err, &he))
			assert.Equal(t, tt.status, he.StatusCode)
			assert.Equal(t, tt.wantMessage, he.Message)
			assert.Equal(t, tt.wantCode, he.Code)
			assert.Equal(t, tt.body, he.Body)
			assert.Contains(t, he.URL, "/auth/sign-up")
			assert.Equal(t, tt.wantCode, CodeOf(err))
			assert.Equal(t, tt.wantMessage, MessageOf(err))
		})
	}
}

func TestClient_BreakerTripsOnServerErrorsOnly(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusBadRequest)
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, int(status.Load()), `{"message":"nope"}`)
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := c.Get(ctx, nil, "/x", nil, nil)
		assert.False(t, errors.Is(err, ErrBackendUnavailable))
	}
	assert.EqualValues(t, 5, hits.Load())

	status.Store(http.StatusInternalServerError)
	for i := 0; i < 3; i++ {
		_ = c.Get(ctx, nil, "/x", nil, nil)
	}
	err := c.Get(ctx, nil, "/x", nil, nil)
	assert.ErrorIs(t, err, ErrBackendUnavailable)
	assert.EqualValues(t, 8, hits.Load())
}

func TestClient_PostForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "a@b.co", r.PostForm.Get("email"))
		w.WriteHeader(http.StatusCreated)
	})

	require.NoError(t, NewAuthGateway(c).ResendToken(context.Background(), "a@b.co"))
}

func TestAuthGateway_Login(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@b.co", body["email"])
		writeJSON(w, 201, `{"access_token":"tok"}`)
	})

	tok, err := NewAuthGateway(c).Login(context.Background(), "a@b.co", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)
}

func TestAuthGateway_VerifyWithoutToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := NewAuthGateway(c).VerifyEmail(context.Background(), "a@b.co", "123456")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestProductsGateway_ListQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "1", q.Get("pageNumber"))
		assert.Equal(t, "4", q.Get("limit"))
		assert.Equal(t, "price", q.Get("sortBy"))
		assert.Equal(t, "-1", q.Get("sortOrder"))
		assert.Equal(t, "c1,c2", q.Get("category"))
		writeJSON(w, 200, `{"data":[{"_id":"p1","title":"Lamp","price":12.5}]}`)
	})

	products, err := NewProductsGateway(c, nil).List(context.Background(), ProductQuery{
		Limit: 4, SortBy: "price", SortOrder: -1, Category: "c1,c2",
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, decimal.RequireFromString("12.5").Equal(products[0].Price))
}

func TestProductsGateway_Featured(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/featured-products", r.URL.Path)
		writeJSON(w, 200, `{"products":[{"_id":"p1"},{"_id":"p2"}]}`)
	})

	products, err := NewProductsGateway(c, nil).Featured(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestOrdersGateway_Submit(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "u1", body["userId"])
		assert.Equal(t, "cash", body["paymentMethod"])
		writeJSON(w, 201, `{"id":"o-9"}`)
	})

	req := domain.NewOrderRequest(domain.OrderDraft{FirstName: "Ada"}, []domain.CartLine{
		{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
	})
	req.UserID = "u1"

	id, err := NewOrdersGateway(c, staticAuth("user-token")).Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "o-9", id)
}

func TestUsersGateway_AddressPaths(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, 200, `[{"id":"a1","label":"Home"}]`)
		case http.MethodPost:
			writeJSON(w, 201, `{"id":"a2","label":"Work"}`)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	g := NewUsersGateway(c, staticAuth("t"))
	ctx := context.Background()

	list, err := g.Addresses(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	added, err := g.AddAddress(ctx, domain.SavedAddress{Label: "Work"})
	require.NoError(t, err)
	assert.Equal(t, "a2", added.ID)

	updated, err := g.UpdateAddress(ctx, domain.SavedAddress{ID: "a2", Label: "Office"})
	require.NoError(t, err)
	assert.Equal(t, "Office", updated.Label)

	require.NoError(t, g.DeleteAddress(ctx, "a2"))

	assert.Equal(t, []string{
		"GET /user/address",
		"POST /user/address",
		"PATCH /user/address/a2",
		"DELETE /user/address/a2",
	}, seen)
}

func TestCategoriesGateway_BySlugEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/categories/slug/lamps", r.URL.Path)
		writeJSON(w, 200, `null`)
	})

	_, err := NewCategoriesGateway(c, nil).BySlug(context.Background(), "lamps")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
