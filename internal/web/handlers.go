package web

import (
	"context"
	"errors"
	"net/http"

	"github.com/avdeyev/roster/internal/errorz"
	"github.com/gorilla/schema"
)

// newHandler creates a HTTP Handler that:
// 1. Maps the request to a value of input type IN.
// 2. Calls the target func with that value.
// 3. Responds using the configured success/fail functions.
//
// By default errors are written using the server error handler and a
// succesful call writes nothing, routes are expected to configure an
// onSuccess function.
func newHandler[IN, OUT any](srv *Server, targetFunc func(context.Context, IN) (OUT, error)) *mapper[IN, OUT] {
	return &mapper[IN, OUT]{
		srv: srv,
		reqToInFunc: func(s shared) (IN, error) {
			return defaultReqToIn[IN](srv, s)
		},
		targetFunc: targetFunc,
		successFunc: func(r result[IN, OUT]) error {
			return nil
		},
		failFunc: func(s shared, err error) {
			srv.handleError(s.w, s.r, err)
		},
	}
}

// defaultReqToIn is the default way to map a request to a struct.
func defaultReqToIn[IN any](srv *Server, s shared) (IN, error) {
	var in IN
	err := s.r.ParseForm()
	if err != nil {
		return in, err
	}

	// Remove the CSRF token from the form, it won't need to be mapped
	// to any target types and the decoder will fail on it.
	s.r.Form.Del(csrfTokenField)

	err = srv.decoder.Decode(&in, s.r.Form)
	return in, decodeError(err)
}

// decodeError converts schema decoding errors to errorz.InvalidInput
// so they can be reported per field.
func decodeError(err error) error {
	if err == nil {
		return nil
	}

	var multiErr schema.MultiError
	if errors.As(err, &multiErr) {
		var invalidInput errorz.InvalidInput
		for key, e := range multiErr {
			invalidInput = append(invalidInput, errorz.Keyed{
				Key: key,
				Err: e,
			})
		}

		return invalidInput
	}

	return err
}

// newViewHandler creates a HTTP Handler that renders the view with the given name.
func newViewHandler(s *Server, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := s.writeView(w, r, name, nil)
		if err != nil {
			s.handleError(w, r, err)
			return
		}
	})
}
