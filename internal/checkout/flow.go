// Package checkout is the order submission flow: the checkout form, the
// guest email-verification step and the final order POST.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/otp"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

type State string

const (
	StateEditing     State = "editing"
	StateAwaitingOtp State = "awaiting_otp"
	StateSubmitting  State = "submitting"
	StateDone        State = "done"
)

// NewAddress is the pseudo address id that selects "enter a new address".
const NewAddress = "new"

var (
	ErrEmptyCart          = errors.New("cart is empty, nothing to checkout")
	ErrAlreadySubmitted   = errors.New("order already submitted")
	ErrSubmissionInFlight = errors.New("order submission in progress")
	ErrFlowClosed         = errors.New("checkout closed")
	ErrNotAwaitingCode    = errors.New("no verification code was requested")
	ErrAwaitingCode       = errors.New("verification code pending, enter it or close the dialog")
	ErrUnknownAddress     = errors.New("unknown saved address")
	ErrLoginRequired      = errors.New("saving an address requires a logged-in user")
	ErrCooldownActive     = otp.ErrCooldownActive
)

type Cart interface {
	Items() []domain.CartLine
}

type Session interface {
	IsAuthenticated() bool
	Profile() (domain.User, bool)
	SetProfile(u domain.User)
	Subject() string
}

type Orders interface {
	Submit(ctx context.Context, req domain.OrderRequest) (string, error)
	RequestVerificationEmail(ctx context.Context, email, firstName string) error
}

type Users interface {
	CurrentUser(ctx context.Context) (domain.User, error)
}

type AddressBook interface {
	List(ctx context.Context) ([]domain.SavedAddress, error)
	Add(ctx context.Context, a domain.SavedAddress) (domain.SavedAddress, error)
}

type Deps struct {
	Cart      Cart
	Session   Session
	Orders    Orders
	Users     Users
	Addresses AddressBook
	Events    events.Publisher
	Log       *logger.Logger

	// CooldownInterval is the resend countdown step. Zero means the
	// countdown only moves when ticked by hand.
	CooldownInterval time.Duration
}

// Result is what a successful submission leaves behind.
type Result struct {
	OrderID        string `json:"orderId"`
	Redirect       string `json:"redirect"`
	AddressWarning string `json:"addressWarning,omitempty"`
}

type Flow struct {
	mu sync.Mutex

	d      Deps
	log    *logger.Logger
	life   context.Context
	cancel context.CancelFunc

	state      State
	requesting bool
	draft      domain.OrderDraft
	loggedIn   bool
	user       domain.User
	addresses  []domain.SavedAddress
	selected   string
	lastErr    string
	result     *Result
	challenge  *otp.Challenge
}

// Start opens the checkout form. For a logged-in shopper the form is filled
// from the profile and the saved addresses are loaded once; failing to load
// them leaves the list empty.
func Start(ctx context.Context, d Deps) (*Flow, error) {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Events == nil {
		d.Events = events.Nop{}
	}
	life, cancel := context.WithCancel(context.Background())
	f := &Flow{
		d:         d,
		log:       d.Log.Named("checkout"),
		life:      life,
		cancel:    cancel,
		state:     StateEditing,
		draft:     domain.OrderDraft{PaymentMethod: domain.PaymentCash},
		challenge: otp.NewChallenge(otp.CheckoutCooldown, d.CooldownInterval),
	}

	if !d.Session.IsAuthenticated() {
		return f, nil
	}

	user, ok := d.Session.Profile()
	if !ok {
		cctx, done := f.callCtx(ctx)
		u, err := d.Users.CurrentUser(cctx)
		done()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("load current user: %w", err)
		}
		d.Session.SetProfile(u)
		user = u
	}
	if user.ID == "" {
		user.ID = d.Session.Subject()
	}

	f.loggedIn = true
	f.user = user
	f.applyProfile(&f.draft)

	cctx, done := f.callCtx(ctx)
	addrs, err := d.Addresses.List(cctx)
	done()
	if err != nil {
		f.log.Warn(ctx, "saved addresses unavailable", zap.Error(err))
	}
	f.addresses = addrs
	return f, nil
}

// applyProfile overwrites the locked contact fields. Phone is only locked
// when the profile has one.
func (f *Flow) applyProfile(d *domain.OrderDraft) {
	d.FirstName = f.user.FirstName
	d.LastName = f.user.LastName
	d.Email = f.user.Email
	if f.user.Phone != "" {
		d.Phone = f.user.Phone
	}
}

func (f *Flow) lockedFields() []string {
	if !f.loggedIn {
		return nil
	}
	locked := []string{"firstName", "lastName", "email"}
	if f.user.Phone != "" {
		locked = append(locked, "phone")
	}
	return locked
}

// editable reports why the form cannot be changed right now. Callers hold mu.
func (f *Flow) editable() error {
	if f.life.Err() != nil {
		return ErrFlowClosed
	}
	switch f.state {
	case StateDone:
		return ErrAlreadySubmitted
	case StateSubmitting:
		return ErrSubmissionInFlight
	case StateAwaitingOtp:
		return ErrAwaitingCode
	}
	if f.requesting {
		return ErrSubmissionInFlight
	}
	return nil
}

// UpdateDraft replaces the form contents. Locked fields keep their profile
// values and the save-address choice is kept.
func (f *Flow) UpdateDraft(d domain.OrderDraft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}

	d.SaveAddress = f.draft.SaveAddress
	d.AddressLabel = f.draft.AddressLabel
	if d.PaymentMethod == "" {
		d.PaymentMethod = domain.PaymentCash
	}
	if f.loggedIn {
		f.applyProfile(&d)
	}
	f.draft = d
	f.lastErr = ""
	return nil
}

func (f *Flow) SelectSavedAddress(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	if id == NewAddress {
		f.selectNewLocked()
		return nil
	}
	for _, a := range f.addresses {
		if a.ID == id {
			f.draft.ApplyAddress(a)
			f.draft.SaveAddress = false
			f.draft.AddressLabel = ""
			f.selected = id
			return nil
		}
	}
	return ErrUnknownAddress
}

// AddNewAddress clears the address fields for a new entry.
func (f *Flow) AddNewAddress() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	f.selectNewLocked()
	return nil
}

func (f *Flow) selectNewLocked() {
	f.draft.ClearAddress()
	f.selected = NewAddress
}

// SetSaveAddress asks for the entered address to be stored under label once
// the order is placed.
func (f *Flow) SetSaveAddress(save bool, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.editable(); err != nil {
		return err
	}
	if save && !f.loggedIn {
		return ErrLoginRequired
	}
	f.draft.SaveAddress = save
	f.draft.AddressLabel = ""
	if save {
		f.draft.AddressLabel = label
	}
	return nil
}

// Proceed submits the form. Logged-in shoppers go straight to the order
// POST; guests are sent a verification code first and the flow waits for it.
func (f *Flow) Proceed(ctx context.Context) (*Result, error) {
	f.mu.Lock()
	if err := f.editable(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	lines := f.d.Cart.Items()
	if len(lines) == 0 {
		f.mu.Unlock()
		return nil, ErrEmptyCart
	}
	if err := f.validateLocked(); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	draft := f.draft

	if f.loggedIn {
		f.state = StateSubmitting
		f.mu.Unlock()
		req := domain.NewOrderRequest(draft, lines)
		req.UserID = f.user.ID
		return f.submit(ctx, req, StateEditing)
	}

	f.requesting = true
	f.mu.Unlock()

	cctx, done := f.callCtx(ctx)
	err := f.d.Orders.RequestVerificationEmail(cctx, draft.Email, draft.FirstName)
	done()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requesting = false
	if f.life.Err() != nil {
		return nil, ErrFlowClosed
	}
	if err != nil {
		f.lastErr = gateway.MessageOf(err)
		return nil, fmt.Errorf("request order verification code: %w", err)
	}
	f.lastErr = ""
	f.state = StateAwaitingOtp
	f.challenge.Begin(draft.Email)
	f.log.Info(ctx, "order verification code sent")
	return nil, nil
}

func (f *Flow) validateLocked() error {
	if err := domain.Validate(f.draft); err != nil {
		return err
	}
	if f.draft.SaveAddress {
		if err := domain.Validate(f.draft.SavedAddress(f.draft.AddressLabel)); err != nil {
			return err
		}
	}
	return nil
}

// SubmitCode places the guest order with the emailed code. The code is not
// checked here; the backend validates it.
func (f *Flow) SubmitCode(ctx context.Context, code string) (*Result, error) {
	f.mu.Lock()
	if f.life.Err() != nil {
		f.mu.Unlock()
		return nil, ErrFlowClosed
	}
	switch f.state {
	case StateDone:
		f.mu.Unlock()
		return nil, ErrAlreadySubmitted
	case StateSubmitting:
		f.mu.Unlock()
		return nil, ErrSubmissionInFlight
	case StateEditing:
		f.mu.Unlock()
		return nil, ErrNotAwaitingCode
	}
	if code == "" {
		f.mu.Unlock()
		return nil, domain.FieldError("code", "code is required")
	}
	lines := f.d.Cart.Items()
	if len(lines) == 0 {
		f.mu.Unlock()
		return nil, ErrEmptyCart
	}
	f.state = StateSubmitting
	draft := f.draft
	f.mu.Unlock()

	req := domain.NewOrderRequest(draft, lines)
	req.Token = code
	return f.submit(ctx, req, StateAwaitingOtp)
}

func (f *Flow) submit(ctx context.Context, req domain.OrderRequest, onFailure State) (*Result, error) {
	cctx, done := f.callCtx(ctx)
	id, err := f.d.Orders.Submit(cctx, req)
	done()

	if f.life.Err() != nil {
		return nil, ErrFlowClosed
	}
	if err != nil {
		msg := gateway.MessageOf(err)
		f.mu.Lock()
		f.state = onFailure
		f.lastErr = msg
		if onFailure == StateAwaitingOtp {
			f.challenge.Fail(msg)
		}
		f.mu.Unlock()
		return nil, fmt.Errorf("submit order: %w", err)
	}

	res := &Result{OrderID: id, Redirect: "/order-success/" + id}
	if f.loggedIn && req.SaveAddress {
		res.AddressWarning = f.saveAddress(ctx, req.OrderDraft)
	}

	f.mu.Lock()
	f.state = StateDone
	f.lastErr = ""
	f.result = res
	f.challenge.Dismiss()
	f.challenge.Close()
	f.mu.Unlock()

	f.log.Info(ctx, "order submitted", zap.String("order_id", id), zap.Bool("guest", !f.loggedIn))
	f.publish(ctx, id, req)

	out := *res
	return &out, nil
}

// saveAddress runs after the order is placed. Its failure is reported as a
// warning and never undoes the order.
func (f *Flow) saveAddress(ctx context.Context, draft domain.OrderDraft) string {
	cctx, done := f.callCtx(ctx)
	_, err := f.d.Addresses.Add(cctx, draft.SavedAddress(draft.AddressLabel))
	done()
	if err == nil {
		return ""
	}
	f.log.Warn(ctx, "address save after order failed", zap.Error(err))
	return "Your order was placed, but the address could not be saved: " + gateway.MessageOf(err)
}

func (f *Flow) publish(ctx context.Context, orderID string, req domain.OrderRequest) {
	err := f.d.Events.PublishOrderSubmitted(ctx, events.OrderSubmitted{
		OrderID:    orderID,
		UserID:     req.UserID,
		Guest:      !f.loggedIn,
		Email:      req.Email,
		Items:      req.Items,
		TotalPrice: req.TotalPrice,
	})
	if err != nil {
		f.log.Warn(ctx, "order_submitted event not published", zap.String("order_id", orderID), zap.Error(err))
	}
}

// ResendCode asks the backend for a new code. A failure is shown in the
// dialog, which stays open.
func (f *Flow) ResendCode(ctx context.Context) error {
	f.mu.Lock()
	if f.life.Err() != nil {
		f.mu.Unlock()
		return ErrFlowClosed
	}
	if f.state != StateAwaitingOtp {
		f.mu.Unlock()
		return ErrNotAwaitingCode
	}
	if err := f.challenge.CheckResend(); err != nil {
		f.mu.Unlock()
		return err
	}
	draft := f.draft
	f.mu.Unlock()

	cctx, done := f.callCtx(ctx)
	err := f.d.Orders.RequestVerificationEmail(cctx, draft.Email, draft.FirstName)
	done()

	if f.life.Err() != nil {
		return ErrFlowClosed
	}
	if err != nil {
		f.challenge.Fail(gateway.MessageOf(err))
		return fmt.Errorf("resend order verification code: %w", err)
	}
	f.challenge.Resent()
	return nil
}

// CloseOtp dismisses the code dialog and returns to the form.
func (f *Flow) CloseOtp() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.life.Err() != nil {
		return ErrFlowClosed
	}
	if f.state != StateAwaitingOtp {
		return ErrNotAwaitingCode
	}
	f.state = StateEditing
	f.challenge.Dismiss()
	return nil
}

// Close cancels in-flight calls. Results that arrive afterwards are dropped.
func (f *Flow) Close() {
	f.cancel()
	f.challenge.Close()
}

func (f *Flow) Closed() bool {
	return f.life.Err() != nil
}

// Challenge exposes the resend countdown, mostly for tests.
func (f *Flow) Challenge() *otp.Challenge {
	return f.challenge
}

// callCtx derives a context that is cancelled with either the caller or the
// flow.
func (f *Flow) callCtx(ctx context.Context) (context.Context, func()) {
	cctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(f.life, cancel)
	return cctx, func() {
		stop()
		cancel()
	}
}
