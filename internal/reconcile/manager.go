package reconcile

import (
	"log/slog"
	"sync"

	"github.com/ldi/tt/internal/forge"
)

// SessionManager provides thread-safe storage for per-client sessions.
// MCP clients name their own session; each one gets an isolated ignore set
// that lives only as long as the serving process.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store  Store
	source forge.PRSource
	opener PROpener
	logger *slog.Logger
}

func NewSessionManager(store Store, source forge.PRSource, opener PROpener, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[string]*Session),
		store:    store,
		source:   source,
		opener:   opener,
		logger:   logger,
	}
}

// Get returns the session for id, creating it on first use.
func (sm *SessionManager) Get(id string) *Session {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.sessions[id] == nil {
		sm.sessions[id] = NewSession(sm.store, sm.source, sm.opener, sm.logger)
	}
	return sm.sessions[id]
}

// Drop forgets the session for id along with its ignore set.
func (sm *SessionManager) Drop(id string) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	delete(sm.sessions, id)
}
