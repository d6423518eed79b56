// Package web exposes the application over HTTP.
package web

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/avdeyev/roster/internal/auth"
	"github.com/avdeyev/roster/internal/errorz"
	"github.com/avdeyev/roster/internal/krypto"
	"github.com/avdeyev/roster/internal/web/sessions"
	"github.com/gorilla/csrf"
	"github.com/gorilla/schema"
)

const (
	csrfTokenCookieName = "roster-csrf"
	csrfTokenField      = "csrf_token"
)

// ViewRenderer renders named views with the given data.
type ViewRenderer interface {
	Render(w io.Writer, name string, data any) error
}

// ServerDeps are the dependencies for the server.
type ServerDeps struct {
	Logger       *slog.Logger
	ViewRenderer ViewRenderer
	AuthService  *auth.Service
	SessionStore *sessions.Store
	DistFS       http.FileSystem
}

// ServerConfig is the configuration for the server.
type ServerConfig struct {
	CSRFKey      krypto.Key
	SecureCookie bool
}

type Server struct {
	deps    *ServerDeps
	mux     *http.ServeMux
	decoder *schema.Decoder
	handler http.Handler
}

func NewServer(deps *ServerDeps, cfg ServerConfig) *Server {
	s := &Server{
		deps:    deps,
		mux:     http.NewServeMux(),
		decoder: schema.NewDecoder(),
	}

	// Most non-static endpoints below are created using the newHandler
	// functions. These return handlers that automatically map between
	// HTTP requests, target functions and HTTP responses.

	// Homepage endpoint.
	{
		const route = "GET /{$}"
		s.public(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			users, err := s.deps.AuthService.ListUsers(r.Context())
			if err != nil {
				s.handleError(w, r, err)
				return
			}

			err = s.writeView(w, r, "home", struct {
				MemberCount int
			}{
				MemberCount: len(users),
			})
			if err != nil {
				s.handleError(w, r, err)
				return
			}
		}))
	}

	// Member list endpoint.
	{
		const route = "GET /users"
		s.public(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			users, err := s.deps.AuthService.ListUsers(r.Context())
			if err != nil {
				s.handleError(w, r, err)
				return
			}

			err = s.writeView(w, r, "users-index", users)
			if err != nil {
				s.handleError(w, r, err)
				return
			}
		}))
	}

	// Register user endpoints.
	{
		s.public("GET /users/new", newViewHandler(s, "register-user"))
	}
	{
		const route = "POST /users"
		h := newHandler(s, deps.AuthService.RegisterUser)
		h.onSuccess(func(r result[auth.Registration, auth.User]) error {
			r.sess.AddFlash("Welcome " + r.out.FullName() + ", your account was created.")
			err := r.s.deps.SessionStore.Save(r.r, r.w, r.sess)
			if err != nil {
				return err
			}

			http.Redirect(r.w, r.r, "/", http.StatusFound)
			return nil
		})
		h.onFail(s.formOnInvalid("register-user"))

		s.public(route, h)
	}

	// Edit user endpoints.
	{
		const route = "GET /users/{id}/edit"
		s.owner(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := userFromCtx(r.Context())

			// Prefill the edit form with the current values.
			r.Form = url.Values{}
			r.Form.Set("FirstName", user.FirstName)
			r.Form.Set("LastName", user.LastName)
			r.Form.Set("Email", string(user.Email))

			err := s.writeView(w, r, "edit-user", user)
			if err != nil {
				s.handleError(w, r, err)
				return
			}
		}))
	}
	{
		const route = "PATCH /users/{id}"
		h := newHandler(s, deps.AuthService.UpdateUser)
		h.reqToIn(func(sh shared) (auth.UserUpdate, error) {
			in, err := defaultReqToIn[auth.UserUpdate](s, sh)
			if err != nil {
				return in, err
			}

			// The owner guard already validated the id segment.
			in.ID, err = strconv.Atoi(sh.r.PathValue("id"))
			return in, err
		})
		h.onSuccess(func(r result[auth.UserUpdate, auth.User]) error {
			r.sess.AddFlash("Your profile was updated.")
			err := r.s.deps.SessionStore.Save(r.r, r.w, r.sess)
			if err != nil {
				return err
			}

			http.Redirect(r.w, r.r, "/users", http.StatusFound)
			return nil
		})
		h.onFail(s.formOnInvalid("edit-user"))

		s.owner(route, h)
	}

	// Delete user endpoint.
	{
		const route = "DELETE /users/{id}"
		s.owner(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, _ := userFromCtx(r.Context())

			err := s.deps.AuthService.DeleteUser(r.Context(), user.ID)
			if err != nil {
				s.handleError(w, r, err)
				return
			}

			sess, err := sessionFromCtx(r.Context())
			if err != nil {
				s.handleError(w, r, err)
				return
			}

			sess.DeleteUserID()
			sess.AddFlash("Your account was deleted.")
			err = s.deps.SessionStore.Save(r, w, sess)
			if err != nil {
				s.handleError(w, r, err)
				return
			}

			http.Redirect(w, r, "/users", http.StatusFound)
		}))
	}

	// Sign in endpoints.
	{
		s.publicOnly("GET /session/new", newViewHandler(s, "login-user"))
	}
	{
		const route = "POST /session"
		h := newHandler(s, deps.AuthService.Authenticate)
		h.onSuccess(func(r result[auth.Credentials, auth.User]) error {
			// If we get here, the user has been authenticated.

			// We clear the CSRF token to provide defense in depth against
			// fixation attacks. If an attacker somehow gained access to the
			// CSRF token before the user logged in, it will be worthless
			// after the user logs in.
			//
			// A new CSRF token will be generated on the next GET request
			// after the redirect.
			http.SetCookie(r.w, &http.Cookie{
				Name:   csrfTokenCookieName,
				MaxAge: -1,
			})

			r.sess.SetUserID(r.out.ID)
			err := r.s.deps.SessionStore.Save(r.r, r.w, r.sess)
			if err != nil {
				return err
			}

			http.Redirect(r.w, r.r, "/", http.StatusFound)
			return nil
		})
		h.onFail(func(sh shared, err error) {
			// Bad input and wrong credentials get the exact same
			// response, the page must not reveal whether an email is
			// registered.
			var invalid errorz.InvalidInput
			if errors.Is(err, auth.ErrInvalidCredentials) || errors.As(err, &invalid) {
				sh.sess.AddFlash("Invalid email or password.")
				if saveErr := s.deps.SessionStore.Save(sh.r, sh.w, sh.sess); saveErr != nil {
					s.handleError(sh.w, sh.r, saveErr)
					return
				}

				http.Redirect(sh.w, sh.r, "/session/new", http.StatusFound)
				return
			}

			s.handleError(sh.w, sh.r, err)
		})

		s.publicOnly(route, h)
	}

	// Sign out endpoint.
	{
		const route = "DELETE /session"
		s.public(route, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessionFromCtx(r.Context())
			if err != nil {
				s.handleError(w, r, err)
				return
			}

			sess.DeleteUserID()
			err = s.deps.SessionStore.Save(r, w, sess)
			if err != nil {
				s.handleError(w, r, err)
				return
			}

			http.Redirect(w, r, "/", http.StatusFound)
		}))
	}

	s.mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(s.deps.DistFS)))

	// Wrap the mux with global middlewares. The method override must run
	// before CSRF protection and routing, so that overridden requests are
	// both protected and routed by their effective method.
	csrfMW := csrf.Protect(
		cfg.CSRFKey.SecretValue(),
		csrf.CookieName(csrfTokenCookieName),
		csrf.FieldName(csrfTokenField),
		csrf.Secure(cfg.SecureCookie),
	)

	middlewares := []func(http.Handler) http.Handler{
		requestLogger(deps.Logger),
		methodOverride,
		csrfMW,
		sessionMiddleware(s),
		currentUserMiddleware(s),
	}
	s.handler = s.mux
	for i := len(middlewares) - 1; i >= 0; i-- {
		s.handler = middlewares[i](s.handler)
	}

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// formOnInvalid re-renders the named form view with status 422 when the
// failure was caused by invalid input. Other errors go to the error
// handler.
func (s *Server) formOnInvalid(name string) func(sh shared, err error) {
	return func(sh shared, err error) {
		var invalid errorz.InvalidInput
		if errors.As(err, &invalid) {
			werr := s.writeViewStatus(sh.w, sh.r, http.StatusUnprocessableEntity, name, nil, invalid)
			if werr != nil {
				s.handleError(sh.w, sh.r, werr)
			}
			return
		}

		s.handleError(sh.w, sh.r, err)
	}
}

func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errorz.ErrForbidden):
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	case errors.Is(err, errorz.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	var invalidInput errorz.InvalidInput
	if errors.As(err, &invalidInput) {
		http.Error(w, "invalid input", http.StatusUnprocessableEntity)
		return
	}

	s.deps.Logger.Error("internal server error", "url", r.URL.String(), "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
