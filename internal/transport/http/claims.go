package http

import (
	"net/http"
	"strconv"
	"strings"

	"parcels/internal/dto"
	"parcels/internal/netutil"

	"github.com/go-chi/chi/v5"
)

const certCacheControl = "public, max-age=300, s-maxage=86400"

func (a *api) publicClaim(w http.ResponseWriter, r *http.Request) {
	res, err := a.Claims.PublicView(r.Context(), chi.URLParam(r, "unit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) availability(w http.ResponseWriter, r *http.Request) {
	res, err := a.Claims.Availability(r.Context(), chi.URLParam(r, "unit"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) certificate(w http.ResponseWriter, r *http.Request) {
	cert, err := a.Claims.Certificate(r.Context(), chi.URLParam(r, "unit"), r.Header.Get("Accept-Language"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	h := w.Header()
	h.Set("Cache-Control", certCacheControl)
	h.Set("Vary", "Accept-Language")
	h.Set("ETag", cert.ETag)
	if etagMatches(r.Header.Get("If-None-Match"), cert.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.Set("Content-Type", "application/pdf")
	h.Set("Content-Language", cert.Lang)
	h.Set("Content-Length", strconv.Itoa(len(cert.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(cert.Body)
}

func etagMatches(header, etag string) bool {
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimPrefix(strings.TrimSpace(part), "W/")
		if part == "*" || part == etag {
			return true
		}
	}
	return false
}

func (a *api) registry(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := a.Claims.Registry(r.Context(), dto.RegistryQuery{
		Cursor:      q.Get("cursor"),
		Limit:       limit,
		Query:       q.Get("q"),
		Granularity: q.Get("granularity"),
		Style:       q.Get("style"),
		From:        q.Get("from"),
		To:          q.Get("to"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) updateClaim(w http.ResponseWriter, r *http.Request) {
	var req dto.ClaimUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.Claims.Update(r.Context(), principal(r).OwnerID, chi.URLParam(r, "unit"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) release(w http.ResponseWriter, r *http.Request) {
	var req dto.UnitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Claims.Release(r.Context(), principal(r).OwnerID, req.Unit); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) myClaims(w http.ResponseWriter, r *http.Request) {
	res, err := a.Claims.ListMine(r.Context(), principal(r).OwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res == nil {
		res = []dto.OwnedClaim{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": res})
}

func (a *api) issueTransferCode(w http.ResponseWriter, r *http.Request) {
	var req dto.UnitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.Transfers.IssueCode(r.Context(), principal(r).OwnerID, req.Unit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusCreated, res)
}

func (a *api) redeemTransfer(w http.ResponseWriter, r *http.Request) {
	var req dto.TransferRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ip := netutil.ClientIP(r, a.TrustProxy)
	res, err := a.Transfers.Redeem(r.Context(), principal(r).OwnerID, req, ip, r.UserAgent())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
