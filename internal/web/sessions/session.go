// Package sessions wraps gorilla sessions with the small API surface
// the web server needs.
package sessions

import (
	"github.com/gorilla/sessions"
)

const userIDKey = "userID"

type Session struct {
	base      *sessions.Session
	needsSave bool
}

func (s *Session) NeedsSave() bool {
	return s.needsSave
}

func (s *Session) UserID() (int, bool) {
	userID, ok := s.base.Values[userIDKey].(int)
	return userID, ok
}

func (s *Session) SetUserID(userID int) {
	s.needsSave = true
	s.base.Values[userIDKey] = userID
}

func (s *Session) DeleteUserID() {
	s.needsSave = true
	delete(s.base.Values, userIDKey)
}

func (s *Session) AddFlash(flash any, vars ...string) {
	s.needsSave = true
	s.base.AddFlash(flash, vars...)
}

// ConsumeFlashes returns the queued flash messages and removes them
// from the session.
func (s *Session) ConsumeFlashes() []any {
	flashes := s.base.Flashes()
	if len(flashes) > 0 {
		s.needsSave = true
	}

	return flashes
}
