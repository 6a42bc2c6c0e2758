package middleware

import (
	"net/http"
	"strings"

	domainerrors "kutumb/pkg/domain-errors"
	"kutumb/pkg/platform/httputil"
)

// ContentTypeJSON rejects mutating requests whose body is not declared as
// JSON. GET and DELETE pass through untouched.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := r.Header.Get("Content-Type")
			if r.ContentLength != 0 && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteError(w, domainerrors.New(domainerrors.CodeBadRequest, "Content-Type must be application/json"))
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
