// Package signup is the registration and email verification flow of the
// auth page, plus plain login and logout.
package signup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/otp"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

type State string

const (
	StateForm        State = "form"
	StateSubmitting  State = "submitting"
	StateAwaitingOtp State = "awaiting_otp"
	StateLoggedIn    State = "logged_in"
)

// HomeRedirect is where a freshly authenticated visitor is sent.
const HomeRedirect = "/"

var (
	ErrPasswordMismatch = errors.New("passwords do not match")
	ErrAccountExists    = errors.New("an account with this email already exists, log in instead")
	ErrSignupFailed     = errors.New("signup failed")
	ErrLoginFailed      = errors.New("login failed")
	ErrCodeExpired      = errors.New("verification code expired, request a new one")
	ErrInFlight         = errors.New("request in progress")
	ErrAwaitingCode     = errors.New("verification code pending")
	ErrNotAwaitingCode  = errors.New("no verification code was requested")
	ErrFlowClosed       = errors.New("signup closed")
	ErrCooldownActive   = otp.ErrCooldownActive
)

type Auth interface {
	Login(ctx context.Context, email, password string) (string, error)
	SignUp(ctx context.Context, form domain.SignupForm) error
	VerifyEmail(ctx context.Context, email, code string) (string, error)
	ResendToken(ctx context.Context, email string) error
}

type Session interface {
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context)
}

type Result struct {
	Redirect string `json:"redirect"`
}

type loginForm struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Flow struct {
	mu sync.Mutex

	auth    Auth
	session Session
	log     *logger.Logger
	life    context.Context
	cancel  context.CancelFunc

	state     State
	verifying bool
	email     string
	lastErr   string
	notice    string
	challenge *otp.Challenge
}

// New builds a flow in the form state. interval is the resend countdown
// step; zero means it only moves when ticked by hand.
func New(auth Auth, session Session, log *logger.Logger, interval time.Duration) *Flow {
	life, cancel := context.WithCancel(context.Background())
	return &Flow{
		auth:      auth,
		session:   session,
		log:       log.Named("signup"),
		life:      life,
		cancel:    cancel,
		state:     StateForm,
		challenge: otp.NewChallenge(otp.SignupCooldown, interval),
	}
}

// Submit registers the account. Mismatching passwords and invalid fields are
// rejected before any request is made.
func (f *Flow) Submit(ctx context.Context, form domain.SignupForm) error {
	f.mu.Lock()
	if err := f.formOpen(); err != nil {
		f.mu.Unlock()
		return err
	}
	if form.Password != form.ConfirmPassword {
		f.lastErr = ErrPasswordMismatch.Error()
		f.mu.Unlock()
		return ErrPasswordMismatch
	}
	if err := domain.Validate(form); err != nil {
		f.lastErr = err.Error()
		f.mu.Unlock()
		return err
	}
	f.state = StateSubmitting
	f.mu.Unlock()

	cctx, done := f.callCtx(ctx)
	err := f.auth.SignUp(cctx, form)
	done()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.life.Err() != nil {
		return ErrFlowClosed
	}

	switch code := gateway.CodeOf(err); {
	case err == nil:
		f.awaitCodeLocked(form.Email, "")
		return nil
	case code == gateway.CodeEmailPendingVerification:
		// An unconfirmed signup for this email exists; resume it.
		f.awaitCodeLocked(form.Email, gateway.MessageOf(err))
		return nil
	case code == gateway.CodeUserAlreadyExists:
		f.state = StateForm
		f.lastErr = ErrAccountExists.Error()
		return fmt.Errorf("%w: %w", ErrAccountExists, err)
	default:
		f.state = StateForm
		f.lastErr = gateway.MessageOf(err)
		f.log.Info(ctx, "signup rejected", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSignupFailed, err)
	}
}

func (f *Flow) awaitCodeLocked(email, notice string) {
	f.state = StateAwaitingOtp
	f.email = email
	f.lastErr = ""
	f.notice = notice
	f.challenge.Begin(email)
}

func (f *Flow) formOpen() error {
	if f.life.Err() != nil {
		return ErrFlowClosed
	}
	switch f.state {
	case StateSubmitting:
		return ErrInFlight
	case StateAwaitingOtp:
		return ErrAwaitingCode
	}
	return nil
}

// Verify confirms the email with code. On success the session is logged in
// and the visitor is sent home; a wrong code keeps the dialog open.
func (f *Flow) Verify(ctx context.Context, code string) (*Result, error) {
	f.mu.Lock()
	if f.life.Err() != nil {
		f.mu.Unlock()
		return nil, ErrFlowClosed
	}
	if f.state != StateAwaitingOtp {
		f.mu.Unlock()
		return nil, ErrNotAwaitingCode
	}
	if f.verifying {
		f.mu.Unlock()
		return nil, ErrInFlight
	}
	if code == "" {
		f.mu.Unlock()
		return nil, domain.FieldError("code", "is required")
	}
	f.verifying = true
	email := f.email
	f.mu.Unlock()

	cctx, done := f.callCtx(ctx)
	token, err := f.auth.VerifyEmail(cctx, email, code)
	done()

	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifying = false
	if f.life.Err() != nil {
		return nil, ErrFlowClosed
	}
	if err != nil {
		f.challenge.Fail(gateway.MessageOf(err))
		if gateway.CodeOf(err) == gateway.CodeTokenExpired {
			return nil, fmt.Errorf("%w: %w", ErrCodeExpired, err)
		}
		return nil, fmt.Errorf("verify email: %w", err)
	}

	if err := f.session.Login(ctx, token); err != nil {
		f.challenge.Fail(err.Error())
		return nil, fmt.Errorf("verify email: %w", err)
	}
	f.state = StateLoggedIn
	f.notice = ""
	f.challenge.Dismiss()
	f.challenge.Close()
	f.log.Info(ctx, "email verified, session started")
	return &Result{Redirect: HomeRedirect}, nil
}

// Resend asks for a new code. A failure is shown in the dialog, which stays
// open.
func (f *Flow) Resend(ctx context.Context) error {
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
	email := f.email
	f.mu.Unlock()

	cctx, done := f.callCtx(ctx)
	err := f.auth.ResendToken(cctx, email)
	done()

	if f.life.Err() != nil {
		return ErrFlowClosed
	}
	if err != nil {
		f.challenge.Fail(gateway.MessageOf(err))
		return fmt.Errorf("resend verification code: %w", err)
	}
	f.challenge.Resent()
	return nil
}

// CloseOtp dismisses the dialog and goes back to the form.
func (f *Flow) CloseOtp() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAwaitingOtp {
		return ErrNotAwaitingCode
	}
	f.state = StateForm
	f.notice = ""
	f.challenge.Dismiss()
	return nil
}

// Login signs in with email and password.
func (f *Flow) Login(ctx context.Context, email, password string) (*Result, error) {
	if f.life.Err() != nil {
		return nil, ErrFlowClosed
	}
	if err := domain.Validate(loginForm{Email: email, Password: password}); err != nil {
		return nil, err
	}

	cctx, done := f.callCtx(ctx)
	token, err := f.auth.Login(cctx, email, password)
	done()
	if f.life.Err() != nil {
		return nil, ErrFlowClosed
	}
	if err != nil {
		f.mu.Lock()
		f.lastErr = gateway.MessageOf(err)
		f.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}
	if err := f.session.Login(ctx, token); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoginFailed, err)
	}

	f.mu.Lock()
	f.lastErr = ""
	f.mu.Unlock()
	return &Result{Redirect: HomeRedirect}, nil
}

// Logout clears the session and resets the flow.
func (f *Flow) Logout(ctx context.Context) {
	f.session.Logout(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateLoggedIn {
		f.state = StateForm
	}
	f.email = ""
	f.lastErr = ""
}

type View struct {
	State  State     `json:"state"`
	Email  string    `json:"email,omitempty"`
	Error  string    `json:"error,omitempty"`
	Notice string    `json:"notice,omitempty"`
	Otp    *otp.View `json:"otp,omitempty"`
}

func (f *Flow) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()
	v := View{State: f.state, Email: f.email, Error: f.lastErr, Notice: f.notice}
	if f.state == StateAwaitingOtp {
		ov := f.challenge.View()
		v.Otp = &ov
	}
	return v
}

func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Flow) Challenge() *otp.Challenge {
	return f.challenge
}

// Close cancels in-flight calls; late results are discarded.
func (f *Flow) Close() {
	f.cancel()
	f.challenge.Close()
}

func (f *Flow) callCtx(ctx context.Context) (context.Context, func()) {
	cctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(f.life, cancel)
	return cctx, func() {
		stop()
		cancel()
	}
}
