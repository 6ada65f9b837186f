// Package httputil holds the JSON response helpers shared by all handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "identity-proxy/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON serializes v with the given status. Encoding failures are
// swallowed; the status line is already on the wire.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its HTTP envelope. Internal errors omit
// the description so store and infrastructure details never leak to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.GetCode(err)
	body := errorBody{Error: string(code)}
	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.Description = de.Message
		}
	}
	if code == dErrors.CodeCapacity {
		w.Header().Set("Retry-After", "1")
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), body)
}

// WriteRedemptionError collapses every redemption failure into one envelope.
// Unknown token, wrong type, replay and expiry must be indistinguishable to a
// caller probing exchange tokens; only internal and capacity failures keep
// their own shape.
func WriteRedemptionError(w http.ResponseWriter, err error) {
	switch dErrors.GetCode(err) {
	case dErrors.CodeNotFound, dErrors.CodeForbidden, dErrors.CodeInvalidInput, dErrors.CodeBadRequest:
		WriteJSON(w, http.StatusForbidden, errorBody{
			Error:       string(dErrors.CodeForbidden),
			Description: "invalid or expired code",
		})
	default:
		WriteError(w, err)
	}
}
