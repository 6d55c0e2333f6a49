package handler

import (
	"net/http"

	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/middleware"
	"github.com/itchan-dev/authd/shared/utils"
)

func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, r, internal_errors.New(internal_errors.KindUnauthorized, http.StatusUnauthorized, "Authentication credentials were not provided."))
		return
	}

	account, err := h.accounts.Account(r.Context(), p.AccountId)
	if err != nil {
		writeError(w, r, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, accountResponse(account))
}
