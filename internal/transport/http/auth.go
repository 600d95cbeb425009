package http

import (
	"net/http"

	"parcels/internal/domain"
	"parcels/internal/dto"
)

const (
	resetAcknowledged     = "If that address is registered, a reset link is on its way."
	loginCodeAcknowledged = "If that address is registered, a sign-in code is on its way."
)

func (a *api) signup(w http.ResponseWriter, r *http.Request) {
	var req dto.SignupRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner, err := a.Auth.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.startSession(w, r, http.StatusCreated, owner)
}

func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner, err := a.Auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.startSession(w, r, http.StatusOK, owner)
}

func (a *api) logout(w http.ResponseWriter, r *http.Request) {
	a.Sessions.Clear(w)
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Auth.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.MessageResponse{Message: resetAcknowledged})
}

func (a *api) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Auth.ResetPassword(r.Context(), req); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Password updated."})
}

func (a *api) requestLoginCode(w http.ResponseWriter, r *http.Request) {
	var req dto.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.Auth.RequestLoginCode(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, dto.MessageResponse{Message: loginCodeAcknowledged})
}

func (a *api) verifyLoginCode(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginCodeVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	owner, err := a.Auth.VerifyLoginCode(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	a.startSession(w, r, http.StatusOK, owner)
}

func (a *api) profile(w http.ResponseWriter, r *http.Request) {
	res, err := a.Auth.Profile(r.Context(), principal(r).OwnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := a.Auth.UpdateProfile(r.Context(), principal(r).OwnerID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *api) startSession(w http.ResponseWriter, r *http.Request, status int, owner *domain.Owner) {
	if err := a.Sessions.Start(w, owner); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, status, dto.OwnerResponse{
		ID:          owner.ID.String(),
		Email:       owner.Email,
		DisplayName: owner.Name(),
		PayoutReady: owner.PayoutAccountID != nil && *owner.PayoutAccountID != "",
	})
}
