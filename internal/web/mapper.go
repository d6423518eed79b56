package web

import (
	"context"
	"net/http"

	"github.com/avdeyev/roster/internal/web/sessions"
)

// mapper is a generic HTTP handler that maps requests to target
// function calls and writes the output to the response.
//
// The request mapping, success response and failure response are all
// customizable per route.
type mapper[IN, OUT any] struct {
	srv         *Server
	reqToInFunc func(s shared) (IN, error)
	targetFunc  func(ctx context.Context, in IN) (OUT, error)
	successFunc func(r result[IN, OUT]) error
	failFunc    func(s shared, err error)
}

// shared is the request scoped state every mapping step has access to.
type shared struct {
	w    http.ResponseWriter
	r    *http.Request
	sess *sessions.Session
}

// result is the result of a succesful request. It contains all relevant
// data because we can't know in advance what we will need to construct
// a response.
type result[IN, OUT any] struct {
	s    *Server
	w    http.ResponseWriter
	r    *http.Request
	sess *sessions.Session
	in   IN
	out  OUT
}

// reqToIn overwrites the function that maps the request to the input type.
func (m *mapper[IN, OUT]) reqToIn(fn func(s shared) (IN, error)) *mapper[IN, OUT] {
	m.reqToInFunc = fn
	return m
}

// onSuccess overwrites the function that responds to a succesful target call.
func (m *mapper[IN, OUT]) onSuccess(fn func(r result[IN, OUT]) error) *mapper[IN, OUT] {
	m.successFunc = fn
	return m
}

// onFail overwrites the function that responds to a failed request.
func (m *mapper[IN, OUT]) onFail(fn func(s shared, err error)) *mapper[IN, OUT] {
	m.failFunc = fn
	return m
}

func (m *mapper[IN, OUT]) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, err := sessionFromCtx(r.Context())
	if err != nil {
		m.srv.handleError(w, r, err)
		return
	}

	sh := shared{w: w, r: r, sess: sess}

	in, err := m.reqToInFunc(sh)
	if err != nil {
		m.failFunc(sh, err)
		return
	}

	out, err := m.targetFunc(r.Context(), in)
	if err != nil {
		m.failFunc(sh, err)
		return
	}

	err = m.successFunc(result[IN, OUT]{
		s:    m.srv,
		w:    w,
		r:    r,
		sess: sess,
		in:   in,
		out:  out,
	})
	if err != nil {
		m.srv.handleError(w, r, err)
		return
	}
}
