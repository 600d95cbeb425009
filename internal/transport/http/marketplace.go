package http

import (
	"net/http"
	"strconv"

	"parcels/internal/dto"

	"github.com/go-chi/chi/v5"
)

func (a *api) upsertListing(w http.ResponseWriter, r *http.Request) {
	var req dto.ListingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.Marketplace.UpsertListing(r.Context(), principal(r).OwnerID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) changeListingStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.ListingStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.Marketplace.ChangeStatus(r.Context(), principal(r).OwnerID, chi.URLParam(r, "id"), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) listActive(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	res, err := a.Marketplace.ListActive(r.Context(), q.Get("cursor"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) onboardPayouts(w http.ResponseWriter, r *http.Request) {
	res, err := a.Marketplace.OnboardPayouts(r.Context(), principal(r).OwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
