package server

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/imranansari/apigee-deploy-wf/deployment"
)

const sessionCookie = "apigee_deploy_session"

// SessionFactory builds the session for a new browser
type SessionFactory func(id string) *deployment.Session

// Registry holds one deployment session per browser
type Registry struct {
	newSession SessionFactory

	// TODO: evict sessions that have been idle for longer than the cookie lifetime
	mu       sync.Mutex
	sessions map[string]*deployment.Session
}

// NewRegistry creates an empty registry
func NewRegistry(newSession SessionFactory) *Registry {
	return &Registry{
		newSession: newSession,
		sessions:   make(map[string]*deployment.Session),
	}
}

// Get returns the session with the given ID
func (r *Registry) Get(id string) (*deployment.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	return session, ok
}

// Create registers a session under a fresh ID
func (r *Registry) Create() *deployment.Session {
	id := uuid.NewString()
	session := r.newSession(id)

	r.mu.Lock()
	r.sessions[id] = session
	r.mu.Unlock()
	return session
}

// Wait blocks until no session has a deployment running
func (r *Registry) Wait() {
	r.mu.Lock()
	sessions := make([]*deployment.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()

	for _, s := range sessions {
		s.Wait()
	}
}

// session resolves the caller's session from its cookie, creating one when absent
func (s *Server) session(w http.ResponseWriter, r *http.Request) *deployment.Session {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		if session, ok := s.sessions.Get(cookie.Value); ok {
			return session
		}
	}

	session := s.sessions.Create()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    session.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Debug().Str("session_id", session.ID()).Msg("Created deployment session")
	return session
}
