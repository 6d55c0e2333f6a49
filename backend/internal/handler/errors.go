package handler

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/itchan-dev/authd/shared/api"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/logger"
	"github.com/itchan-dev/authd/shared/middleware"
	"github.com/itchan-dev/authd/shared/utils"
)

// writeError is the single exit for failures. Known errors keep their status
// and message. Anything else is logged in full and reaches the client as a
// generic 500; the real text is shown only to staff callers.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if e, ok := internal_errors.AsStatus(err); ok {
		utils.WriteJSON(w, e.StatusCode, api.ErrorResponse{Error: e.Message, Kind: string(internal_errors.KindOf(e))})
		return
	}

	logger.Log.Error("unhandled error",
		"error", err,
		"method", r.Method,
		"path", r.URL.Path,
		"stack", string(debug.Stack()))

	detail := utils.GenericServerDetail
	if p := middleware.GetPrincipalFromContext(r.Context()); p != nil && p.Staff {
		detail = err.Error()
	}
	utils.WriteJSON(w, http.StatusInternalServerError, api.InternalErrorResponse{
		Error:  utils.GenericServerError,
		Detail: detail,
	})
}

// Recoverer turns a handler panic into a normalized 500.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			writeError(w, r, fmt.Errorf("panic: %w", err))
		}()
		next.ServeHTTP(w, r)
	})
}
