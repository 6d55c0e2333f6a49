package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/authd/shared/api"
	"github.com/itchan-dev/authd/shared/domain"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/utils"
)

// SetAccountActive toggles is_active. Deactivation blocks new logins and
// refreshes; access tokens already issued run out on their own.
func (h *Handler) SetAccountActive(w http.ResponseWriter, r *http.Request) {
	id, err := accountIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body api.SetActiveRequest
	if err := utils.DecodeValidate(r.Body, &body); err != nil {
		writeError(w, r, err)
		return
	}

	account, err := h.accounts.SetActive(r.Context(), id, *body.IsActive)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, accountResponse(account))
}

func (h *Handler) AccountRevocations(w http.ResponseWriter, r *http.Request) {
	id, err := accountIdParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entries, err := h.revocations.ListByAccount(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := make([]api.RevocationResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, api.RevocationResponse{
			Jti:       e.TokenId,
			RevokedAt: e.RevokedAt,
			ExpiresAt: e.ExpiresAt,
			Reason:    e.Reason,
		})
	}
	utils.WriteJSON(w, http.StatusOK, resp)
}

func accountIdParam(r *http.Request) (domain.AccountId, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, internal_errors.BadRequest("invalid account id: must be a positive integer")
	}
	return id, nil
}
