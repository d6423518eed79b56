package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/avdeyev/roster/internal/web/sessions"
)

// sessionMiddleware loads the session for the request and injects it in
// the context. A cookie that fails to decode yields a fresh anonymous
// session, see sessions.Store.Get.
func sessionMiddleware(srv *Server) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := srv.deps.SessionStore.Get(r)
			if err != nil {
				srv.handleError(w, r, err)
				return
			}

			ctx := ctxWithSession(r.Context(), sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type ctxKey string

const sessionCtxKey ctxKey = "_session"

func ctxWithSession(ctx context.Context, sess *sessions.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, sess)
}

func sessionFromCtx(ctx context.Context) (*sessions.Session, error) {
	sess, ok := ctx.Value(sessionCtxKey).(*sessions.Session)
	if !ok {
		return nil, fmt.Errorf("could not get session from context")
	}

	return sess, nil
}
