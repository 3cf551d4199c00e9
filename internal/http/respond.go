package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/gateway"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/otp"
	"github.com/fjod/go_cart/storefront/internal/profile"
	"github.com/fjod/go_cart/storefront/internal/signup"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zap.L().Warn("failed to encode response", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body too large")
			return false
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return false
	}
	return true
}

type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order. Flow sentinels come before backend errors because the
// flows wrap the backend error they are reacting to.
var errorMappings = []errorMapping{
	{signup.ErrPasswordMismatch, http.StatusUnprocessableEntity, "password_mismatch"},
	{signup.ErrAccountExists, http.StatusConflict, string(gateway.CodeUserAlreadyExists)},
	{signup.ErrCodeExpired, http.StatusGone, string(gateway.CodeTokenExpired)},
	{otp.ErrCooldownActive, http.StatusTooManyRequests, "cooldown_active"},
	{checkout.ErrEmptyCart, http.StatusConflict, "empty_cart"},
	{checkout.ErrAlreadySubmitted, http.StatusConflict, "already_submitted"},
	{checkout.ErrSubmissionInFlight, http.StatusConflict, "in_flight"},
	{signup.ErrInFlight, http.StatusConflict, "in_flight"},
	{checkout.ErrAwaitingCode, http.StatusConflict, "awaiting_code"},
	{signup.ErrAwaitingCode, http.StatusConflict, "awaiting_code"},
	{checkout.ErrNotAwaitingCode, http.StatusConflict, "not_awaiting_code"},
	{signup.ErrNotAwaitingCode, http.StatusConflict, "not_awaiting_code"},
	{checkout.ErrFlowClosed, http.StatusConflict, "flow_closed"},
	{signup.ErrFlowClosed, http.StatusConflict, "flow_closed"},
	{checkout.ErrUnknownAddress, http.StatusNotFound, "unknown_address"},
	{checkout.ErrLoginRequired, http.StatusUnauthorized, "login_required"},
	{profile.ErrLoginRequired, http.StatusUnauthorized, "login_required"},
	{profile.ErrAddressLimit, http.StatusConflict, "address_limit"},
	{cart.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{catalog.ErrUnknownSort, http.StatusBadRequest, "invalid_sort"},
	{gateway.ErrBackendUnavailable, http.StatusServiceUnavailable, "backend_unavailable"},
	{gateway.ErrEmptyResponse, http.StatusBadGateway, "empty_response"},
}

// handleError maps an error from the flows or the backend gateway to a
// response, the way the gRPC status codes were mapped before.
func handleError(ctx context.Context, w http.ResponseWriter, log *logger.Logger, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "validation failed",
			Code:   "validation_failed",
			Fields: verr.Fields,
		})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			respondJSON(w, m.status, ErrorResponse{
				Error:   m.target.Error(),
				Code:    m.code,
				Details: details(err, m.target),
			})
			return
		}
	}

	var he *gateway.HTTPError
	if errors.As(err, &he) {
		status := he.StatusCode
		if status < http.StatusBadRequest {
			status = http.StatusBadGateway
		}
		if status >= http.StatusInternalServerError {
			log.Warn(ctx, "backend error", zap.Error(err))
		}
		respondError(w, status, string(he.Code), he.Message)
		return
	}

	switch {
	case errors.Is(err, signup.ErrLoginFailed), errors.Is(err, signup.ErrSignupFailed):
		log.Warn(ctx, "auth request failed", zap.Error(err))
		respondError(w, http.StatusBadGateway, "auth_failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, http.StatusGatewayTimeout, "timeout", "request timeout")
	case errors.Is(err, context.Canceled):
		respondError(w, http.StatusRequestTimeout, "cancelled", "request cancelled")
	default:
		log.Error(ctx, "unhandled error", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// details is the backend message behind a flow sentinel, if there is one.
func details(err, target error) string {
	if msg := gateway.MessageOf(err); msg != err.Error() && msg != target.Error() {
		return msg
	}
	return ""
}

// recordOtp counts code requests that reached the backend. Requests refused
// locally are not counted.
func recordOtp(flow string, err error) {
	if err != nil && !reachedBackend(err) {
		return
	}
	metrics.RecordOtpRequest(flow, err)
}

func reachedBackend(err error) bool {
	var he *gateway.HTTPError
	return errors.As(err, &he) || errors.Is(err, gateway.ErrBackendUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

func notFound(w http.ResponseWriter, what string) {
	respondError(w, http.StatusNotFound, "not_found", fmt.Sprintf("%s not found", what))
}
