package bridge

import (
	"sync"

	"github.com/piemonte-health/callbridge/internal/metrics"
)

// Registry is the process-wide lookup of active bridge sessions keyed by
// the telephony stream id, so the out-of-band escalation endpoint (C5) can
// find a session without any shared database or cache, mirroring the
// source's module-level ACTIVE_SESSIONS dict. Backed by sync.Map since
// writes (register/deregister on call start/end) are rare relative to the
// read-heavy escalation lookup path.
type Registry struct {
	sessions sync.Map // streamSID -> *Session
}

// NewRegistry constructs an empty session registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a session under its telephony stream id.
func (r *Registry) Register(streamSID string, s *Session) {
	r.sessions.Store(streamSID, s)
	metrics.ActiveSessions.Inc()
}

// Deregister removes a session, if present.
func (r *Registry) Deregister(streamSID string) {
	if _, loaded := r.sessions.LoadAndDelete(streamSID); loaded {
		metrics.ActiveSessions.Dec()
	}
}

// Get looks up a session by telephony stream id.
func (r *Registry) Get(streamSID string) (*Session, bool) {
	v, ok := r.sessions.Load(streamSID)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}
