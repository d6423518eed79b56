package web

import (
	"net/http"
	"strings"
)

// methodOverrideField is the hidden form field browsers use to reach
// the PATCH and DELETE routes, since HTML forms can only submit GET and
// POST requests.
const methodOverrideField = "_method"

// methodOverride rewrites POST requests that carry a _method form field
// to the method named by the field. Only PATCH and DELETE are accepted,
// any other value leaves the request untouched.
//
// It must run before routing and before any handler that inspects the
// request method.
func methodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if err := r.ParseForm(); err == nil {
				override := strings.ToUpper(r.PostForm.Get(methodOverrideField))
				if override == http.MethodPatch || override == http.MethodDelete {
					r.Method = override
				}

				// Remove the field so form decoders downstream don't
				// trip over it.
				r.Form.Del(methodOverrideField)
				r.PostForm.Del(methodOverrideField)
			}
		}

		next.ServeHTTP(w, r)
	})
}
