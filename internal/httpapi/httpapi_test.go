package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/piemonte-health/callbridge/internal/bridge"
	"github.com/piemonte-health/callbridge/internal/escalation"
	"github.com/piemonte-health/callbridge/internal/logging"
	"github.com/piemonte-health/callbridge/internal/wsconn"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func newTestServer(pingErr error) *Server {
	registry := bridge.NewRegistry()
	esc := escalation.New(registry, logging.Nop())
	sessions := func(conn *wsconn.Conn) *bridge.Session { return nil }
	return New(sessions, esc, fakePinger{err: pingErr}, logging.Nop())
}

func TestHealthzReturnsOKWhenDBReachable(t *testing.T) {
	s := newTestServer(nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthzReturnsUnavailableWhenDBUnreachable(t *testing.T) {
	s := newTestServer(errors.New("connection refused"))
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRegisterRoutesRegistersAllEndpoints(t *testing.T) {
	s := newTestServer(nil)
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	for _, path := range []string{"/ws/telephony", "/escalation", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		_, pattern := mux.Handler(req)
		assert.NotEmpty(t, pattern, "expected a handler registered for %s", path)
	}
}
