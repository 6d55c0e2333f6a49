package handler

import (
	"net/http"

	"github.com/itchan-dev/authd/shared/api"
	"github.com/itchan-dev/authd/shared/domain"
	"github.com/itchan-dev/authd/shared/utils"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body api.RegisterRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := h.accounts.Create(r.Context(),
		domain.Credentials{Email: body.Email, Password: body.Password},
		domain.Profile{FirstName: body.FirstName, LastName: body.LastName},
		domain.Roles{},
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusCreated, accountResponse(account))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body api.LoginRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.sessions.Login(r.Context(), domain.Credentials{Email: body.Email, Password: body.Password})
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.TokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body api.RefreshRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		writeError(w, r, err)
		return
	}

	pair, err := h.sessions.Refresh(r.Context(), body.Refresh)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.TokenPairResponse{Access: pair.Access, Refresh: pair.Refresh})
}

// Logout needs only the refresh token; an access token is not required.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body api.LogoutRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.sessions.Logout(r.Context(), body.Refresh); err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, api.LogoutResponse{Detail: "Successfully logged out."})
}

func accountResponse(a domain.Account) api.AccountResponse {
	return api.AccountResponse{
		Id:          a.Id,
		Email:       a.Email,
		FirstName:   a.FirstName,
		LastName:    a.LastName,
		IsActive:    a.IsActive,
		IsStaff:     a.IsStaff,
		IsSuperuser: a.IsSuperuser,
		CreatedAt:   a.CreatedAt,
	}
}
