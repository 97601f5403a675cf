package workflow

import (
	"sync"

	"github.com/google/uuid"

	"github.com/gerunddev/ngmigrate/internal/gateway"
)

// Session is the selection that outlives a single wizard: the chosen
// project survives stage navigation and switching between variants, and is
// cleared only by starting a new project. Pass one Session to every
// orchestrator that should share it.
type Session struct {
	mu     sync.Mutex
	id     string
	path   string
	source gateway.Source
}

// NewSession creates an empty session.
func NewSession() *Session {
	return &Session{id: uuid.NewString()}
}

// ID identifies the session until the next Reset.
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Select records the chosen project.
func (s *Session) Select(path string, source gateway.Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.path = path
	s.source = source
}

// Selected returns the chosen project, if any.
func (s *Session) Selected() (string, gateway.Source, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.path, s.source, s.path != ""
}

// Reset clears the selection and starts a new session ID.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.id = uuid.NewString()
	s.path = ""
	s.source = gateway.Source{}
}
