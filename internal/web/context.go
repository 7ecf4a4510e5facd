package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/masterdata/internal/core"
	"github.com/JonMunkholm/masterdata/internal/logging"
)

// sessionCookie names the cookie binding a browser to its import session.
const sessionCookie = "import_session"

// session returns the caller's import session, creating one (and setting the
// cookie) when the cookie is missing or the session has expired. The returned
// context carries the session id for logging.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*core.Session, context.Context) {
	if sess, ok := s.existingSession(r); ok {
		return sess, logging.ContextWithSession(r.Context(), sess.ID())
	}
	sess := s.service.NewSession()
	setSessionCookie(w, r, sess.ID())
	return sess, logging.ContextWithSession(r.Context(), sess.ID())
}

// existingSession returns the session named by the request cookie, if it is
// still live.
func (s *Server) existingSession(r *http.Request) (*core.Session, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil {
		return nil, false
	}
	sess, err := s.service.Session(c.Value)
	if err != nil {
		return nil, false
	}
	return sess, true
}

// viewSnapshot returns the caller's session state for read-only requests.
// Callers without a live session see an empty state; nothing is registered
// until they act.
func (s *Server) viewSnapshot(r *http.Request) core.Snapshot {
	if sess, ok := s.existingSession(r); ok {
		return sess.Snapshot()
	}
	return core.NewSession("", nil).Snapshot()
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, id string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
