package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type CheckoutHandler struct {
	log *logger.Logger
}

func NewCheckoutHandler(log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{log: log.Named("checkout_handler")}
}

type SaveAddressRequestDTO struct {
	Save  bool   `json:"save"`
	Label string `json:"label"`
}

// StartCheckout opens a fresh checkout form, replacing any open one.
func (h *CheckoutHandler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())

	var flow *checkout.Flow
	err := ws.Do(func() (err error) {
		flow, err = ws.StartCheckout(r.Context())
		return err
	})
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, flow.View())
}

func (h *CheckoutHandler) GetCheckout(w http.ResponseWriter, r *http.Request) {
	flow, ok := workspaceFrom(r.Context()).Checkout()
	if !ok {
		notFound(w, "checkout")
		return
	}
	respondJSON(w, http.StatusOK, flow.View())
}

// withFlow runs fn against the open checkout and responds with its view.
func (h *CheckoutHandler) withFlow(w http.ResponseWriter, r *http.Request, status int, fn func(f *checkout.Flow) error) {
	ws := workspaceFrom(r.Context())
	flow, ok := ws.Checkout()
	if !ok {
		notFound(w, "checkout")
		return
	}
	if err := ws.Do(func() error { return fn(flow) }); err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, status, flow.View())
}

func (h *CheckoutHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var draft domain.OrderDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	h.withFlow(w, r, http.StatusOK, func(f *checkout.Flow) error {
		return f.UpdateDraft(draft)
	})
}

func (h *CheckoutHandler) SelectAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "addressID")
	h.withFlow(w, r, http.StatusOK, func(f *checkout.Flow) error {
		return f.SelectSavedAddress(id)
	})
}

func (h *CheckoutHandler) NewAddress(w http.ResponseWriter, r *http.Request) {
	h.withFlow(w, r, http.StatusOK, func(f *checkout.Flow) error {
		return f.AddNewAddress()
	})
}

func (h *CheckoutHandler) SetSaveAddress(w http.ResponseWriter, r *http.Request) {
	var req SaveAddressRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	h.withFlow(w, r, http.StatusOK, func(f *checkout.Flow) error {
		return f.SetSaveAddress(req.Save, req.Label)
	})
}

// Proceed submits the form. A logged-in shopper's order is placed right
// away; a guest is emailed a code and gets 202 until it is entered.
func (h *CheckoutHandler) Proceed(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	flow, ok := ws.Checkout()
	if !ok {
		notFound(w, "checkout")
		return
	}
	guest := !flow.View().LoggedIn

	var res *checkout.Result
	err := ws.Do(func() (err error) {
		res, err = flow.Proceed(r.Context())
		return err
	})
	if guest {
		recordOtp("checkout", err)
	}
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	if res == nil {
		respondJSON(w, http.StatusAccepted, flow.View())
		return
	}
	metrics.RecordOrderSubmitted(false)
	respondJSON(w, http.StatusCreated, flow.View())
}

func (h *CheckoutHandler) SubmitCode(w http.ResponseWriter, r *http.Request) {
	var req CodeRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	ws := workspaceFrom(r.Context())
	flow, ok := ws.Checkout()
	if !ok {
		notFound(w, "checkout")
		return
	}

	err := ws.Do(func() error {
		_, err := flow.SubmitCode(r.Context(), req.Code)
		return err
	})
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	metrics.RecordOrderSubmitted(true)
	respondJSON(w, http.StatusCreated, flow.View())
}

func (h *CheckoutHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	h.withFlow(w, r, http.StatusAccepted, func(f *checkout.Flow) error {
		err := f.ResendCode(r.Context())
		recordOtp("checkout", err)
		return err
	})
}

func (h *CheckoutHandler) CloseCode(w http.ResponseWriter, r *http.Request) {
	h.withFlow(w, r, http.StatusOK, func(f *checkout.Flow) error {
		return f.CloseOtp()
	})
}
