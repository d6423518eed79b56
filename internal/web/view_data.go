package web

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/avdeyev/roster/internal"
	"github.com/avdeyev/roster/internal/auth"
	"github.com/avdeyev/roster/internal/errorz"
	"github.com/gorilla/csrf"
)

// viewData is the data every view is rendered with.
type viewData struct {
	Version     string
	CSRFToken   string
	IsLoggedIn  bool
	CurrentUser *auth.User
	Flashes     []any
	InputForm   url.Values
	InputErrors map[string]string
	Data        any
}

// writeView renders the named view with status 200.
func (s *Server) writeView(w http.ResponseWriter, r *http.Request, name string, data any) error {
	return s.writeViewStatus(w, r, http.StatusOK, name, data, nil)
}

// writeViewStatus renders the named view. The invalid input errors, if
// any, are made available to the view keyed by field name.
func (s *Server) writeViewStatus(w http.ResponseWriter, r *http.Request, status int, name string, data any, invalid errorz.InvalidInput) error {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		return err
	}

	user, loggedIn := userFromCtx(r.Context())

	// Never echo submitted passwords back into the page.
	if r.Form != nil {
		r.Form.Del("Password")
	}

	vd := &viewData{
		Version:     internal.BuildRevision,
		CSRFToken:   csrf.Token(r),
		IsLoggedIn:  loggedIn,
		CurrentUser: user,
		Flashes:     sess.ConsumeFlashes(),
		InputForm:   r.Form,
		InputErrors: fieldErrors(invalid),
		Data:        data,
	}

	// Consuming flashes modifies the session.
	if sess.NeedsSave() {
		if err := s.deps.SessionStore.Save(r, w, sess); err != nil {
			return err
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	return s.deps.ViewRenderer.Render(w, name, vd)
}

func fieldErrors(invalid errorz.InvalidInput) map[string]string {
	if len(invalid) == 0 {
		return nil
	}

	out := make(map[string]string, len(invalid))
	for _, e := range invalid {
		var keyed errorz.Keyed
		if errors.As(e, &keyed) {
			out[keyed.Key] = keyed.Err.Error()
		}
	}

	return out
}
