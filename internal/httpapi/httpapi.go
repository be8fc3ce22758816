// Package httpapi wires the process's HTTP surface: the telephony
// WebSocket upgrade endpoint, the escalation webhook, and a health check,
// following pkg/telephony/call-handlers.go's CallHandlers.RegisterRoutes
// shape — one struct bundling the handlers, one method registering them
// all on a caller-supplied mux.
package httpapi

import (
	"context"
	"net/http"

	"github.com/piemonte-health/callbridge/internal/bridge"
	"github.com/piemonte-health/callbridge/internal/escalation"
	"github.com/piemonte-health/callbridge/internal/logging"
	"github.com/piemonte-health/callbridge/internal/wsconn"
)

// SessionFactory builds a new bridge.Session for an accepted telephony
// connection. Declared as a func type so Server doesn't need to know how
// the dialer/registry/stats writer were constructed.
type SessionFactory func(conn *wsconn.Conn) *bridge.Session

// Server bundles the handlers registered against the process mux.
type Server struct {
	sessions   SessionFactory
	escalation *escalation.Controller
	db         pinger
	log        *logging.Logger
}

// pinger is the narrow slice of *pgxpool.Pool /healthz needs, declared here
// so httpapi does not import pgx directly.
type pinger interface {
	Ping(ctx context.Context) error
}

// New builds an httpapi Server.
func New(sessions SessionFactory, esc *escalation.Controller, db pinger, log *logging.Logger) *Server {
	return &Server{sessions: sessions, escalation: esc, db: db, log: log}
}

// RegisterRoutes registers every handler this process serves onto mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws/telephony", s.handleTelephonyUpgrade)
	mux.HandleFunc("/escalation", s.escalation.ServeHTTP)
	mux.HandleFunc("/healthz", s.handleHealthz)
}

// handleTelephonyUpgrade upgrades an inbound telephony connection and hands
// it off to a new bridge session, mirroring the source's ws_handler
// accept-then-spawn-task shape. The session runs in its own goroutine so
// the HTTP handler returns immediately once the upgrade succeeds.
func (s *Server) handleTelephonyUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := wsconn.Accept(w, r)
	if err != nil {
		s.log.Errorw("telephony websocket upgrade failed", "error", err)
		return
	}

	session := s.sessions(conn)
	go func() {
		if err := session.Run(context.WithoutCancel(r.Context())); err != nil {
			s.log.Errorw("bridge session exited with error", "error", err)
		}
	}()
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		s.log.Errorw("healthz check failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
