package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/itchan-dev/authd/shared/api"
	internal_errors "github.com/itchan-dev/authd/shared/errors"
	"github.com/itchan-dev/authd/shared/logger"
)

const (
	GenericServerError  = "A server error occurred."
	GenericServerDetail = "Internal server error. Please try again later."
)

var validate = newValidator()

// newValidator reports fields by their json names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		logger.Log.Error("failed to encode response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"` + GenericServerError + `"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
	w.Write([]byte("\n"))
}

// WriteErrorAndStatusCode writes errors that carry a status as they are.
// Anything else becomes a generic 500 without detail; the API boundary uses
// its own normalizer where the caller is known.
func WriteErrorAndStatusCode(w http.ResponseWriter, err error) {
	if e, ok := internal_errors.AsStatus(err); ok {
		WriteJSON(w, e.StatusCode, api.ErrorResponse{Error: e.Message, Kind: string(internal_errors.KindOf(e))})
		return
	}
	logger.Log.Error("unhandled error", "error", err)
	WriteJSON(w, http.StatusInternalServerError, api.InternalErrorResponse{Error: GenericServerError, Detail: GenericServerDetail})
}

// GetIP extracts the client IP from RemoteAddr only; forwarded headers are
// trusted only when a proxy middleware has already rewritten RemoteAddr.
func GetIP(r *http.Request) (string, error) {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	if net.ParseIP(ip) == nil {
		return "", fmt.Errorf("invalid IP address: %s", ip)
	}
	return ip, nil
}

func DecodeValidate(r io.ReadCloser, body any) error {
	if err := Decode(r, body); err != nil {
		return err
	}
	if err := validate.Struct(body); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return internal_errors.BadRequest(validationMessage(verrs))
		}
		logger.Log.Error("request validation failed", "error", err)
		return internal_errors.BadRequest("Request is invalid")
	}
	return nil
}

func Decode(r io.ReadCloser, body any) error {
	defer r.Close()
	if err := json.NewDecoder(r).Decode(body); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return internal_errors.New(internal_errors.KindBadRequest, http.StatusRequestEntityTooLarge, "Body is too large")
		}
		return internal_errors.BadRequest("Body is invalid json")
	}
	return nil
}

func validationMessage(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			parts = append(parts, field+" is required")
		case "email":
			parts = append(parts, field+" must be a valid email address")
		case "min":
			parts = append(parts, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			parts = append(parts, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			parts = append(parts, field+" is invalid")
		}
	}
	return strings.Join(parts, "; ")
}
