package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/avdeyev/roster/internal/auth"
	"github.com/avdeyev/roster/internal/errorz"
)

func (s *Server) public(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

// publicOnly registers a handler that is only reachable by anonymous
// visitors. Signed in users are redirected to the homepage.
func (s *Server) publicOnly(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := userFromCtx(r.Context())
		if ok {
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

// owner registers a handler for a pattern with an {id} segment that is
// only reachable by the account owner. The ownership check runs before
// the handler touches any records, so outsiders get the same response
// whether the target account exists or not.
func (s *Server) owner(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			s.handleError(w, r, errorz.ErrNotFound)
			return
		}

		user, _ := userFromCtx(r.Context())
		if err := authorizeOwner(user, id); err != nil {
			s.handleError(w, r, err)
			return
		}

		handler.ServeHTTP(w, r)
	}))
}

// authorizeOwner allows the action only for the account owner. Both
// anonymous visitors and other signed in users are denied.
func authorizeOwner(u *auth.User, targetID int) error {
	if u == nil || u.ID != targetID {
		return errorz.ErrForbidden
	}

	return nil
}

// currentUserMiddleware resolves the session user id to a user and
// injects it in the context. If the account no longer exists the stale
// id is removed from the session and the request continues anonymous.
func currentUserMiddleware(srv *Server) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := sessionFromCtx(r.Context())
			if err != nil {
				srv.handleError(w, r, err)
				return
			}

			userID, ok := sess.UserID()
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			user, err := srv.deps.AuthService.UserByID(r.Context(), userID)
			switch {
			case err == nil:
				ctx := ctxWithUser(r.Context(), &user)
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, errorz.ErrNotFound):
				sess.DeleteUserID()
				if err := srv.deps.SessionStore.Save(r, w, sess); err != nil {
					srv.handleError(w, r, err)
					return
				}
				next.ServeHTTP(w, r)
			default:
				srv.handleError(w, r, err)
			}
		})
	}
}

const userCtxKey ctxKey = "_currentUser"

func ctxWithUser(ctx context.Context, u *auth.User) context.Context {
	return context.WithValue(ctx, userCtxKey, u)
}

func userFromCtx(ctx context.Context) (*auth.User, bool) {
	u, ok := ctx.Value(userCtxKey).(*auth.User)
	if !ok {
		return nil, false
	}

	return u, true
}
