// Package httputil holds the shared JSON response helpers used by all HTTP
// handlers so transports stay consistent about error envelopes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "kutumb/pkg/domain-errors"
)

// errorBody is the single error envelope returned by every endpoint. No shape
// negotiation: one contract per response.
type errorBody struct {
	Error            string            `json:"error"`
	ErrorDescription string            `json:"error_description,omitempty"`
	Meta             map[string]string `json:"meta,omitempty"`
}

// WriteJSON serializes v with the given status. Encoding failures are ignored:
// the header is already written and there is nothing useful left to do.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError maps a domain error to its HTTP status and envelope. Internal
// errors omit the description so infrastructure details never leak to clients;
// everything else surfaces the message and metadata for operator-facing UIs.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	body := errorBody{Error: string(code)}

	if code != dErrors.CodeInternal {
		var de *dErrors.Error
		if errors.As(err, &de) {
			body.ErrorDescription = de.Message
			body.Meta = de.Meta
		} else {
			body.ErrorDescription = err.Error()
		}
	}

	WriteJSON(w, dErrors.HTTPStatus(code), body)
}

// DecodeJSON parses a request body into dst, returning a coded bad request
// error on malformed input.
func DecodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
