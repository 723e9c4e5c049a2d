package session

import (
	"sync"
	"time"

	logx "github.com/directors-cut/server/pkg/logger"
	"github.com/google/uuid"
)

// Registry tracks live sessions by a stable identifier so they can be
// iterated, expired, and persisted independently of the transport connection.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Handler
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Handler)}
}

// Add registers the handler and returns its new session id.
func (r *Registry) Add(h *Handler) string {
	id := uuid.NewString()
	r.mu.Lock()
	defer r.mu.Unlock()
	h.sessionID = id
	h.touch()
	r.sessions[id] = h
	return id
}

func (r *Registry) Get(id string) (*Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[id]
	return h, ok
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many
// were removed. Run periodically; a swept session's connection is closed so
// its read loop unwinds.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)
	r.mu.Lock()
	defer r.mu.Unlock()

	swept := 0
	for id, h := range r.sessions {
		if h.lastActive().Before(cutoff) {
			delete(r.sessions, id)
			h.close()
			swept++
		}
	}
	if swept > 0 {
		logx.Info().Int("swept", swept).Int("remaining", len(r.sessions)).Msg("expired idle sessions")
	}
	return swept
}
