// Package httpx provides JSON response and request helpers shared by every handler.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/metalyard/metalyard/internal/shared"
)

const maxBodyBytes = 1 << 20

// ErrorBody is the wire shape of every failed response.
type ErrorBody struct {
	Error   string      `json:"error"`
	Kind    shared.Kind `json:"kind"`
	Details string      `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// Fail writes an error body with an explicit status and kind.
func Fail(w http.ResponseWriter, status int, kind shared.Kind, message, details string) {
	JSON(w, status, ErrorBody{Error: message, Kind: kind, Details: details})
}

// DecodeJSON decodes the request body into target. Unknown fields are ignored.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		if errors.Is(err, io.EOF) {
			return shared.InvalidInput("request body is required")
		}
		return shared.InvalidInput("malformed JSON body").WithDetails(err.Error())
	}
	return nil
}

// DecodeOptionalJSON is DecodeJSON for endpoints whose body may be omitted.
func DecodeOptionalJSON(r *http.Request, target any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		return shared.InvalidInput("malformed JSON body").WithDetails(err.Error())
	}
	return nil
}

// DecodeAndValidate decodes the body and runs struct tag validation.
func DecodeAndValidate(r *http.Request, v *validator.Validate, target any) error {
	if err := DecodeJSON(r, target); err != nil {
		return err
	}
	if err := v.Struct(target); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return shared.InvalidInput(fmt.Sprintf("%s is invalid", fe.Field())).WithDetails(fe.Error())
		}
		return shared.InvalidInput("validation failed").WithDetails(err.Error())
	}
	return nil
}

// IDParam parses a positive integer path parameter.
func IDParam(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.InvalidInput(fmt.Sprintf("invalid %s", name))
	}
	return id, nil
}

// Tenant returns the authenticated tenant or writes a 401.
func Tenant(w http.ResponseWriter, r *http.Request) (string, bool) {
	tenant, ok := shared.TenantFromContext(r.Context())
	if !ok {
		RespondError(w, shared.ErrTenantMissing)
		return "", false
	}
	return tenant, true
}
