package http

import (
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
)

type ProfileHandler struct {
	log *logger.Logger
}

func NewProfileHandler(log *logger.Logger) *ProfileHandler {
	return &ProfileHandler{log: log.Named("profile_handler")}
}

func (h *ProfileHandler) ListAddresses(w http.ResponseWriter, r *http.Request) {
	ws := workspaceFrom(r.Context())
	addrs, err := ws.Addresses.List(r.Context())
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, addrs)
}

func (h *ProfileHandler) AddAddress(w http.ResponseWriter, r *http.Request) {
	var a domain.SavedAddress
	if !decodeJSON(w, r, &a) {
		return
	}
	ws := workspaceFrom(r.Context())

	var saved domain.SavedAddress
	err := ws.Do(func() (err error) {
		saved, err = ws.Addresses.Add(r.Context(), a)
		return err
	})
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

func (h *ProfileHandler) UpdateAddress(w http.ResponseWriter, r *http.Request) {
	var a domain.SavedAddress
	if !decodeJSON(w, r, &a) {
		return
	}
	a.ID = chi.URLParam(r, "addressID")
	ws := workspaceFrom(r.Context())

	var saved domain.SavedAddress
	err := ws.Do(func() (err error) {
		saved, err = ws.Addresses.Update(r.Context(), a)
		return err
	})
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, saved)
}

func (h *ProfileHandler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "addressID")
	ws := workspaceFrom(r.Context())

	err := ws.Do(func() error {
		return ws.Addresses.Delete(r.Context(), id)
	})
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProfileHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := workspaceFrom(r.Context()).Orders.List(r.Context())
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, orders)
}

func (h *ProfileHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := workspaceFrom(r.Context()).Orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		handleError(r.Context(), w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}
