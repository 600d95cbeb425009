package http

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"parcels/internal/dto"
	obsmw "parcels/internal/observability/middleware"
	"parcels/internal/payment"
	"parcels/internal/session"
)

// Stripe caps webhook payloads well below this.
const maxWebhookBytes = 64 << 10

func (a *api) startCheckout(w http.ResponseWriter, r *http.Request) {
	var req dto.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" {
		if p, ok := session.FromContext(r.Context()); ok {
			req.Email = p.Email
		}
	}
	res, err := a.Settlement.StartCheckout(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// confirmCheckout is the provider's success redirect. Replays land on the
// same page without settling twice.
func (a *api) confirmCheckout(w http.ResponseWriter, r *http.Request) {
	res, err := a.Settlement.ConfirmCheckout(r.Context(), r.URL.Query().Get("session_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	target := a.BaseURL + "/"
	if res.Unit != "" {
		target = a.BaseURL + "/day/" + url.PathEscape(res.Unit)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (a *api) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeErrorCode(w, http.StatusBadRequest, "validation", "unreadable payload")
		return
	}
	if err := a.Settlement.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			writeErrorCode(w, http.StatusBadRequest, "validation", "invalid signature")
			return
		}
		if errors.Is(err, payment.ErrMalformedEvent) {
			obsmw.Logger(r.Context()).Error("webhook event rejected", "error", err)
			writeErrorCode(w, http.StatusBadRequest, "validation", "malformed event")
			return
		}
		obsmw.Logger(r.Context()).Error("webhook processing failed, provider will retry", "error", err)
		writeErrorCode(w, http.StatusInternalServerError, "server_error", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

// marketplaceCheckout charges the signed-in buyer when there is one and
// falls back to the address in the body for guests.
func (a *api) marketplaceCheckout(w http.ResponseWriter, r *http.Request) {
	var req dto.MarketplaceCheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	email := strings.TrimSpace(req.Email)
	if p, ok := session.FromContext(r.Context()); ok {
		email = p.Email
	}
	res, err := a.Marketplace.StartCheckout(r.Context(), email, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
