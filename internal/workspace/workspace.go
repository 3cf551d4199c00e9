// Package workspace owns the per-visitor state containers. One workspace is
// one browser session: its cart, drawer, auth session and open flows are
// built here once and handed to whatever needs them.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/cartsheet"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/profile"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/signup"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Shared is what every workspace is built from.
type Shared struct {
	Store            storage.Store
	Client           *gateway.Client
	Events           events.Publisher
	Log              *logger.Logger
	CooldownInterval time.Duration
	OtpEvery         time.Duration
	OtpBurst         int
}

type Workspace struct {
	ID string

	// mu serialises visitor actions the way a single UI thread would.
	mu sync.Mutex

	Cart      *cart.Store
	Sheet     *cartsheet.Store
	Session   *session.Session
	Signup    *signup.Flow
	Addresses *profile.AddressBook
	Orders    *profile.OrderHistory
	OtpLimit  *rate.Limiter

	shared   *Shared
	log      *logger.Logger
	users    *gateway.UsersGateway
	ordersGW *gateway.OrdersGateway

	// flowMu guards checkout and closed so Close never waits behind mu.
	flowMu   sync.Mutex
	checkout *checkout.Flow
	closed   bool
	authed   bool
}

func newWorkspace(ctx context.Context, id string, sh *Shared) *Workspace {
	kv := storage.Prefixed(sh.Store, id)
	log := sh.Log.With(zap.String("workspace", id))

	sess := session.New(ctx, kv, log)
	users := gateway.NewUsersGateway(sh.Client, sess)
	ordersGW := gateway.NewOrdersGateway(sh.Client, sess)

	w := &Workspace{
		ID:        id,
		Cart:      cart.New(ctx, kv, log, cart.WithPersistObserver(metrics.CartObserver{})),
		Sheet:     cartsheet.New(),
		Session:   sess,
		Signup:    signup.New(gateway.NewAuthGateway(sh.Client), sess, log, sh.CooldownInterval),
		Addresses: profile.NewAddressBook(users, sess, kv, log),
		Orders:    profile.NewOrderHistory(ordersGW, sess),
		OtpLimit:  rate.NewLimiter(rate.Every(sh.OtpEvery), sh.OtpBurst),
		shared:    sh,
		log:       log,
		users:     users,
		ordersGW:  ordersGW,
		authed:    sess.IsAuthenticated(),
	}

	// A logout or a new login changes whose addresses are cached.
	sess.Subscribe(func(st session.State) {
		if st.User == nil {
			w.Addresses.Invalidate(context.Background())
		}
		w.authChanged(st.Authenticated)
	})
	return w
}

// authChanged drops a guest checkout once the visitor signs in; it was
// built without the profile and would still ask for an emailed code.
func (w *Workspace) authChanged(authenticated bool) {
	w.flowMu.Lock()
	defer w.flowMu.Unlock()
	signedIn := authenticated && !w.authed
	w.authed = authenticated
	if signedIn && w.checkout != nil {
		w.checkout.Close()
		w.checkout = nil
	}
}

// Do runs fn with the workspace locked.
func (w *Workspace) Do(fn func() error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn()
}

// StartCheckout opens a fresh checkout, closing any previous one. Callers
// hold the workspace through Do.
func (w *Workspace) StartCheckout(ctx context.Context) (*checkout.Flow, error) {
	w.flowMu.Lock()
	if w.closed {
		w.flowMu.Unlock()
		return nil, checkout.ErrFlowClosed
	}
	if w.checkout != nil {
		w.checkout.Close()
		w.checkout = nil
	}
	w.flowMu.Unlock()

	f, err := checkout.Start(ctx, checkout.Deps{
		Cart:             w.Cart,
		Session:          w.Session,
		Orders:           w.ordersGW,
		Users:            w.users,
		Addresses:        w.Addresses,
		Events:           w.shared.Events,
		Log:              w.log,
		CooldownInterval: w.shared.CooldownInterval,
	})
	if err != nil {
		return nil, err
	}

	w.flowMu.Lock()
	defer w.flowMu.Unlock()
	if w.closed {
		f.Close()
		return nil, checkout.ErrFlowClosed
	}
	w.checkout = f
	return f, nil
}

// Checkout returns the open checkout, if any.
func (w *Workspace) Checkout() (*checkout.Flow, bool) {
	w.flowMu.Lock()
	defer w.flowMu.Unlock()
	if w.checkout == nil || w.checkout.Closed() {
		return nil, false
	}
	return w.checkout, true
}

// Profile returns the logged-in user, loading and caching it on first use.
func (w *Workspace) Profile(ctx context.Context) (domain.User, error) {
	if u, ok := w.Session.Profile(); ok {
		return u, nil
	}
	u, err := w.users.CurrentUser(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("load current user: %w", err)
	}
	w.Session.SetProfile(u)
	return u, nil
}

// Logout ends the auth session and drops anything built for the old user.
func (w *Workspace) Logout(ctx context.Context) {
	w.Signup.Logout(ctx)

	w.flowMu.Lock()
	defer w.flowMu.Unlock()
	if w.checkout != nil {
		w.checkout.Close()
		w.checkout = nil
	}
}

// Close cancels in-flight flow calls without waiting for the running
// action. Persisted cart and credential stay in storage.
func (w *Workspace) Close() {
	w.flowMu.Lock()
	defer w.flowMu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	if w.checkout != nil {
		w.checkout.Close()
	}
	w.Signup.Close()
}

func (w *Workspace) Closed() bool {
	w.flowMu.Lock()
	defer w.flowMu.Unlock()
	return w.closed
}
