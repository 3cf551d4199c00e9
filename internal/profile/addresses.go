// Package profile serves the logged-in shopper's saved addresses and order
// history.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MaxAddresses is how many addresses a profile may hold.
const MaxAddresses = 5

const addressesKey = "addresses"

var (
	ErrLoginRequired = errors.New("login required")
	ErrAddressLimit  = fmt.Errorf("no more than %d addresses can be saved", MaxAddresses)
)

type UsersGateway interface {
	Addresses(ctx context.Context) ([]domain.SavedAddress, error)
	AddAddress(ctx context.Context, a domain.SavedAddress) (domain.SavedAddress, error)
	UpdateAddress(ctx context.Context, a domain.SavedAddress) (domain.SavedAddress, error)
	DeleteAddress(ctx context.Context, id string) error
}

type Session interface {
	IsAuthenticated() bool
}

// AddressBook is a read-through cache over the backend's address list. The
// backend owns the data; every write goes there first and drops the cache.
type AddressBook struct {
	users   UsersGateway
	session Session
	cache   storage.Store
	log     *logger.Logger
	sfg     singleflight.Group
}

func NewAddressBook(users UsersGateway, session Session, cache storage.Store, log *logger.Logger) *AddressBook {
	return &AddressBook{
		users:   users,
		session: session,
		cache:   cache,
		log:     log.Named("addresses"),
	}
}

func (b *AddressBook) List(ctx context.Context) ([]domain.SavedAddress, error) {
	if !b.session.IsAuthenticated() {
		return nil, ErrLoginRequired
	}

	v, err, _ := b.sfg.Do(addressesKey, func() (interface{}, error) {
		raw, err := b.cache.Get(ctx, addressesKey)
		if err == nil {
			var cached []domain.SavedAddress
			if errDecode := json.Unmarshal(raw, &cached); errDecode == nil {
				return cached, nil
			}
			b.log.Warn(ctx, "cached address list unreadable")
		} else if !errors.Is(err, storage.ErrNotFound) {
			b.log.Warn(ctx, "address cache get error", zap.Error(err)) // continue to backend
		}

		list, err := b.users.Addresses(ctx)
		if err != nil {
			return nil, err
		}
		if list == nil {
			list = []domain.SavedAddress{}
		}

		if raw, errEncode := json.Marshal(list); errEncode == nil {
			if errSet := b.cache.Set(ctx, addressesKey, raw); errSet != nil {
				b.log.Warn(ctx, "address cache set error", zap.Error(errSet))
			}
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}

	list := v.([]domain.SavedAddress)
	return append([]domain.SavedAddress(nil), list...), nil
}

func (b *AddressBook) Add(ctx context.Context, a domain.SavedAddress) (domain.SavedAddress, error) {
	if !b.session.IsAuthenticated() {
		return domain.SavedAddress{}, ErrLoginRequired
	}
	if err := domain.Validate(a); err != nil {
		return domain.SavedAddress{}, err
	}
	if existing, err := b.List(ctx); err == nil && len(existing) >= MaxAddresses {
		return domain.SavedAddress{}, ErrAddressLimit
	}

	saved, err := b.users.AddAddress(ctx, a)
	if err != nil {
		return domain.SavedAddress{}, err
	}
	b.invalidate(ctx)
	return saved, nil
}

func (b *AddressBook) Update(ctx context.Context, a domain.SavedAddress) (domain.SavedAddress, error) {
	if !b.session.IsAuthenticated() {
		return domain.SavedAddress{}, ErrLoginRequired
	}
	if a.ID == "" {
		return domain.SavedAddress{}, domain.FieldError("id", "is required")
	}
	if err := domain.Validate(a); err != nil {
		return domain.SavedAddress{}, err
	}

	saved, err := b.users.UpdateAddress(ctx, a)
	if err != nil {
		return domain.SavedAddress{}, err
	}
	b.invalidate(ctx)
	return saved, nil
}

func (b *AddressBook) Delete(ctx context.Context, id string) error {
	if !b.session.IsAuthenticated() {
		return ErrLoginRequired
	}
	if err := b.users.DeleteAddress(ctx, id); err != nil {
		return err
	}
	b.invalidate(ctx)
	return nil
}

// Invalidate drops the cached list, e.g. on logout.
func (b *AddressBook) Invalidate(ctx context.Context) {
	b.invalidate(ctx)
}

func (b *AddressBook) invalidate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := b.cache.Delete(ctx, addressesKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.log.Warn(ctx, "address cache invalidate error", zap.Error(err))
	}
}
