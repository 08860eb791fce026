package web

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/kbconsole/internal/console"
	"github.com/JonMunkholm/kbconsole/internal/logging"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "kbconsole_session"

// ErrSessionRequired is returned by fragment routes when the request has no
// live session.
var ErrSessionRequired = errors.New("session expired or missing")

// Session is one operator's console. Each session owns its own controller,
// so two browser tabs with separate links never share sort or search state.
type Session struct {
	ID         string
	Controller *console.Controller
	CreatedAt  time.Time

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

// SessionStore holds live sessions in memory. A session that sees no request
// for idleTimeout is treated as gone.
type SessionStore struct {
	idleTimeout   time.Duration
	newController func() *console.Controller
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionStore creates an empty store. newController builds the
// controller for each new session.
func NewSessionStore(idleTimeout time.Duration, newController func() *console.Controller) *SessionStore {
	return &SessionStore{
		idleTimeout:   idleTimeout,
		newController: newController,
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

// Create opens a new session.
func (st *SessionStore) Create() *Session {
	now := st.now()
	sess := &Session{
		ID:         uuid.NewString(),
		Controller: st.newController(),
		CreatedAt:  now,
		lastSeen:   now,
	}

	st.mu.Lock()
	st.sessions[sess.ID] = sess
	st.mu.Unlock()
	return sess
}

// Get returns the session for id and marks it active. Expired sessions are
// removed and reported as missing.
func (st *SessionStore) Get(id string) (*Session, bool) {
	st.mu.RLock()
	sess, ok := st.sessions[id]
	st.mu.RUnlock()
	if !ok {
		return nil, false
	}

	now := st.now()
	if st.idleTimeout > 0 && sess.idleSince(now) > st.idleTimeout {
		st.Delete(id)
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

// Delete ends a session.
func (st *SessionStore) Delete(id string) {
	st.mu.Lock()
	delete(st.sessions, id)
	st.mu.Unlock()
}

// Len is the number of sessions held, expired or not.
func (st *SessionStore) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (st *SessionStore) Sweep() int {
	if st.idleTimeout <= 0 {
		return 0
	}
	now := st.now()

	st.mu.Lock()
	defer st.mu.Unlock()
	removed := 0
	for id, sess := range st.sessions {
		if sess.idleSince(now) > st.idleTimeout {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

// sessionFromRequest resolves the session cookie.
func (s *Server) sessionFromRequest(r *http.Request) (*Session, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	return s.sessions.Get(c.Value)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, sess *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.cfg.Session.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
}

// openSession creates a session and sets its cookie.
func (s *Server) openSession(w http.ResponseWriter) *Session {
	sess := s.sessions.Create()
	s.setSessionCookie(w, sess)
	return sess
}

type sessionKey struct{}

func withSession(ctx context.Context, sess *Session) context.Context {
	ctx = context.WithValue(ctx, sessionKey{}, sess)
	return logging.WithSession(ctx, sess.ID)
}

// sessionFrom returns the session stored by requireSession.
func sessionFrom(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey{}).(*Session)
	return sess
}

// requireSession rejects fragment requests without a live session.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.sessionFromRequest(r)
		if !ok {
			s.respondError(w, r, ErrSessionRequired)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSession(r.Context(), sess)))
	})
}

// pageSession resolves the session for a full page. When admin links are not
// required a missing session is opened on the spot.
func (s *Server) pageSession(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	if sess, ok := s.sessionFromRequest(r); ok {
		return sess, true
	}
	if s.cfg.Session.RequireToken {
		return nil, false
	}
	return s.openSession(w), true
}
