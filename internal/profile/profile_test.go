package profile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUsers struct {
	m         sync.Mutex
	list      []domain.SavedAddress
	err       error
	listCalls atomic.Int32
	delay     time.Duration
}

func (u *mockUsers) Addresses(context.Context) ([]domain.SavedAddress, error) {
	u.listCalls.Add(1)
	if u.delay > 0 {
		time.Sleep(u.delay)
	}
	u.m.Lock()
	defer u.m.Unlock()
	if u.err != nil {
		return nil, u.err
	}
	return append([]domain.SavedAddress(nil), u.list...), nil
}

func (u *mockUsers) AddAddress(_ context.Context, a domain.SavedAddress) (domain.SavedAddress, error) {
	u.m.Lock()
	defer u.m.Unlock()
	if u.err != nil {
		return domain.SavedAddress{}, u.err
	}
	a.ID = "a-new"
	u.list = append(u.list, a)
	return a, nil
}

func (u *mockUsers) UpdateAddress(_ context.Context, a domain.SavedAddress) (domain.SavedAddress, error) {
	u.m.Lock()
	defer u.m.Unlock()
	for i := range u.list {
		if u.list[i].ID == a.ID {
			u.list[i] = a
			return a, nil
		}
	}
	return domain.SavedAddress{}, errors.New("not found")
}

func (u *mockUsers) DeleteAddress(_ context.Context, id string) error {
	u.m.Lock()
	defer u.m.Unlock()
	for i := range u.list {
		if u.list[i].ID == id {
			u.list = append(u.list[:i], u.list[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

type authState bool

func (a authState) IsAuthenticated() bool { return bool(a) }

func address(id, label string) domain.SavedAddress {
	return domain.SavedAddress{
		ID:          id,
		Label:       label,
		AddressLine: "10 Downing Street",
		City:        "London",
		Province:    "Westminster",
		PostalCode:  "SW1A2AA",
	}
}

func setupRedisCache(t *testing.T) storage.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return storage.Prefixed(storage.NewRedisStore(client, time.Hour), "ws-1")
}

func TestAddressBook_ReadThrough(t *testing.T) {
	users := &mockUsers{list: []domain.SavedAddress{address("a1", "Home")}}
	book := NewAddressBook(users, authState(true), setupRedisCache(t), logger.Nop())
	ctx := context.Background()

	first, err := book.List(ctx)
	require.NoError(t, err)
	second, err := book.List(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, users.listCalls.Load())
}

func TestAddressBook_SingleflightCollapsesMisses(t *testing.T) {
	users := &mockUsers{list: []domain.SavedAddress{address("a1", "Home")}, delay: 50 * time.Millisecond}
	book := NewAddressBook(users, authState(true), storage.NewMemoryStore(), logger.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, err := book.List(context.Background())
			assert.NoError(t, err)
			assert.Len(t, list, 1)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, users.listCalls.Load())
}

func TestAddressBook_WritesInvalidate(t *testing.T) {
	users := &mockUsers{list: []domain.SavedAddress{address("a1", "Home")}}
	book := NewAddressBook(users, authState(true), setupRedisCache(t), logger.Nop())
	ctx := context.Background()

	_, err := book.List(ctx)
	require.NoError(t, err)

	saved, err := book.Add(ctx, address("", "Work"))
	require.NoError(t, err)
	assert.Equal(t, "a-new", saved.ID)

	list, err := book.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	updated := address("a1", "Cottage")
	_, err = book.Update(ctx, updated)
	require.NoError(t, err)
	list, err = book.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cottage", list[0].Label)

	require.NoError(t, book.Delete(ctx, "a-new"))
	list, err = book.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestAddressBook_Limit(t *testing.T) {
	users := &mockUsers{}
	for i := 0; i < MaxAddresses; i++ {
		users.list = append(users.list, address(string(rune('a'+i)), "L"))
	}
	book := NewAddressBook(users, authState(true), storage.NewMemoryStore(), logger.Nop())

	_, err := book.Add(context.Background(), address("", "One more"))
	assert.ErrorIs(t, err, ErrAddressLimit)
}

func TestAddressBook_Validation(t *testing.T) {
	book := NewAddressBook(&mockUsers{}, authState(true), storage.NewMemoryStore(), logger.Nop())

	bad := address("", "")
	bad.PostalCode = "1"
	_, err := book.Add(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = book.Update(context.Background(), address("", "Home"))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAddressBook_RequiresLogin(t *testing.T) {
	book := NewAddressBook(&mockUsers{}, authState(false), storage.NewMemoryStore(), logger.Nop())
	ctx := context.Background()

	_, err := book.List(ctx)
	assert.ErrorIs(t, err, ErrLoginRequired)
	_, err = book.Add(ctx, address("", "Home"))
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.ErrorIs(t, book.Delete(ctx, "a1"), ErrLoginRequired)
}

func TestAddressBook_BackendErrorNotCached(t *testing.T) {
	users := &mockUsers{err: errors.New("backend down")}
	book := NewAddressBook(users, authState(true), storage.NewMemoryStore(), logger.Nop())
	ctx := context.Background()

	_, err := book.List(ctx)
	require.Error(t, err)

	users.m.Lock()
	users.err = nil
	users.list = []domain.SavedAddress{address("a1", "Home")}
	users.m.Unlock()

	list, err := book.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

type mockOrders struct {
	list []domain.Order
}

func (m mockOrders) ByID(_ context.Context, id string) (domain.Order, error) {
	for _, o := range m.list {
		if o.ID == id {
			return o, nil
		}
	}
	return domain.Order{}, errors.New("not found")
}

func (m mockOrders) List(context.Context) ([]domain.Order, error) { return m.list, nil }

func TestOrderHistory(t *testing.T) {
	orders := mockOrders{list: []domain.Order{{ID: "o1"}, {ID: "o2"}}}

	_, err := NewOrderHistory(orders, authState(false)).List(context.Background())
	assert.ErrorIs(t, err, ErrLoginRequired)

	o, err := NewOrderHistory(orders, authState(false)).Get(context.Background(), "o2")
	require.NoError(t, err)
	assert.Equal(t, "o2", o.ID)

	list, err := NewOrderHistory(orders, authState(true)).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, list, 2)

	empty, err := NewOrderHistory(mockOrders{}, authState(true)).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, empty)
}
