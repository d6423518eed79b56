package sessions

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const CookieName = "roster-session"

type Store struct {
	store sessions.Store
}

func NewStore(store sessions.Store) *Store {
	return &Store{store: store}
}

// Get returns the session for the request. A cookie that fails to
// decode is treated the same as no cookie at all, the underlying store
// returns a fresh empty session in that case.
func (s *Store) Get(r *http.Request) (*Session, error) {
	base, err := s.store.Get(r, CookieName)
	if err != nil {
		if base == nil {
			return nil, err
		}

		// Tampered or expired cookie, continue with the fresh session.
		base.Values = make(map[any]any)
	}

	return &Session{base: base}, nil
}

func (s *Store) Save(r *http.Request, w http.ResponseWriter, sess *Session) error {
	err := s.store.Save(r, w, sess.base)
	if err != nil {
		return err
	}

	sess.needsSave = false
	return nil
}
