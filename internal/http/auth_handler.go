package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/signup"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

type AuthHandler struct {
	log *logger.Logger
}

func NewAuthHandler(log *logger.Logger) *AuthHandler {
	return &AuthHandler{log: log.Named("auth_handler")}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequestDTO struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type CodeRequestDTO struct {
	Code string `json:"code"`
}

type SessionResponse struct {
	Authenticated bool         `json:"authenticated"`
	User          *domain.User `json:"user,omitempty"`
}

// GetSession reports whether the visitor is logged in. The profile is loaded
// on first use; failing to load it does not fail the request.
func (h *AuthHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	var resp SessionResponse
	_ = ws.Do(func() error {
		if !ws.Session.IsAuthenticated() {
			return nil
		}
		resp.Authenticated = true
		u, err := ws.Profile(r.Context())
		if err != nil {
			h.log.Warn(r.Context(), "profile unavailable", zap.Error(err))
			return nil
		}
		resp.User = &u
		return nil
	})
	respondJSON(w, http.StatusOK, resp)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ws := workspaceFrom(r.Context())

	var res *signup.Result
	err := ws.Do(func() (err error) {
		res, err = ws.Signup.Login(r.Context(), req.Email, req.Password)
		return err
	})
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	_ = ws.Do(func() error {
		ws.Logout(r.Context())
		return nil
	})
	respondJSON(w, http.StatusOK, signup.Result{Redirect: signup.HomeRedirect})
}

func (h *AuthHandler) GetSignup(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	respondJSON(w, http.StatusOK, ws.Signup.View())
}

// Signup registers the account and, on success, leaves the flow waiting for
// the emailed code.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ws := workspaceFrom(r.Context())

	err := ws.Do(func() error {
		return ws.Signup.Submit(r.Context(), domain.SignupForm{
			FirstName:       req.FirstName,
			LastName:        req.LastName,
			Email:           req.Email,
			Password:        req.Password,
			ConfirmPassword: req.ConfirmPassword,
		})
	})
	recordOtp("signup", err)
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ws.Signup.View())
}

func (h *AuthHandler) VerifySignup(w http.ResponseWriter, r *http.Request) {
	var req CodeRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ws := workspaceFrom(r.Context())

	var res *signup.Result
	err := ws.Do(func() (err error) {
		res, err = ws.Signup.Verify(r.Context(), req.Code)
		return err
	})
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *AuthHandler) ResendSignupCode(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	err := ws.Do(func() error {
		return ws.Signup.Resend(r.Context())
	})
	recordOtp("signup", err)
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusAccepted, ws.Signup.View())
}

func (h *AuthHandler) CloseSignupCode(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	if err := ws.Do(ws.Signup.CloseOtp); err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ws.Signup.View())
}
