// Package wsconn provides a typed WebSocket peer wrapper shared by both
// sides of the bridge: the inbound telephony connection (server-upgraded)
// and the outbound voice-agent connection (client-dialed). It generalizes
// the teacher's SignalWireCallSession read/write pump pair into a single
// reusable type so internal/bridge does not duplicate ping/pong and
// non-blocking-send bookkeeping for each peer.
package wsconn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/piemonte-health/callbridge/internal/callerr"
)

const (
	// ReadTimeout mirrors the teacher's 60s read deadline for the telephony
	// side; the agent side uses the tighter ping_interval/ping_timeout pair
	// the original PipecatConnection dials with.
	ReadTimeout      = 60 * time.Second
	AgentPingPeriod  = 20 * time.Second
	AgentPingTimeout = 10 * time.Second
	CloseTimeout     = 10 * time.Second
	writeWait        = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Conn wraps a gorilla websocket connection with a single writer mutex (the
// gorilla docs require all writes be serialized) and a read loop that
// separates binary audio frames from control/text frames.
type Conn struct {
	ws   *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

// Accept upgrades an inbound HTTP request to a WebSocket connection, for
// the telephony side of the bridge.
func Accept(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, callerr.Wrap(callerr.ErrTransport, "ws_upgrade_failed", "failed to upgrade connection", err)
	}
	ws.SetReadDeadline(time.Now().Add(ReadTimeout))
	ws.SetPingHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(ReadTimeout))
		return nil
	})
	return &Conn{ws: ws}, nil
}

// Dial opens an outbound WebSocket connection to the voice agent. base is
// parsed and extraQuery is merged into (and can override) its query string,
// matching PipecatConnection.create_connection's URL-encoded query params.
func Dial(ctx context.Context, base string, extraQuery map[string]string) (*Conn, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, callerr.Wrap(callerr.ErrProtocol, "invalid_agent_url", "agent URL is not parseable", err)
	}
	q := u.Query()
	for k, v := range extraQuery {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: CloseTimeout}
	ws, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, callerr.Wrap(callerr.ErrUpstreamUnavailable, "agent_dial_failed", "failed to connect to voice agent", err)
	}
	ws.SetReadDeadline(time.Now().Add(AgentPingPeriod + AgentPingTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(AgentPingPeriod + AgentPingTimeout))
		return nil
	})
	c := &Conn{ws: ws}
	go c.keepAlive()
	return c, nil
}

// keepAlive sends periodic pings on the agent connection, mirroring the
// source's ping_interval=20/ping_timeout=10 dial parameters.
func (c *Conn) keepAlive() {
	ticker := time.NewTicker(AgentPingPeriod)
	defer ticker.Stop()
	for range ticker.C {
		c.mu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		err := c.ws.WriteMessage(websocket.PingMessage, nil)
		c.mu.Unlock()
		if err != nil {
			return
		}
	}
}

// SendBinary writes one binary audio frame. It is safe to call concurrently
// with Recv and with other sends: writes are serialized by c.mu.
func (c *Conn) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return callerr.Wrap(callerr.ErrTransport, "ws_write_failed", "failed to write binary frame", err)
	}
	return nil
}

// SendText writes one text frame (JSON control/event messages).
func (c *Conn) SendText(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return callerr.Wrap(callerr.ErrTransport, "ws_write_failed", "failed to write text frame", err)
	}
	return nil
}

// Message is one frame read from the peer.
type Message struct {
	Binary bool
	Data   []byte
}

// Recv reads the next frame. Non-binary, non-text frames (close/ping/pong)
// are handled by gorilla internally and never reach this call; callers get
// exactly data frames here, tagged by whether they were sent binary or text
// so the caller can route audio frames separately from control messages —
// the agent side speaks JSON text control/events mixed with binary audio,
// same as PipecatConnection.receive treats non-binary payloads as control
// and returns empty audio for them.
func (c *Conn) Recv() (Message, error) {
	msgType, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
			return Message{}, callerr.Wrap(callerr.ErrTransport, "ws_read_failed", "unexpected close reading from peer", err)
		}
		return Message{}, callerr.Wrap(callerr.ErrTransport, "ws_closed", "peer connection closed", err)
	}
	return Message{Binary: msgType == websocket.BinaryMessage, Data: data}, nil
}

// Close sends a normal-closure control frame and closes the underlying
// connection. Safe to call more than once.
func (c *Conn) Close() error {
	var closeErr error
	c.once.Do(func() {
		c.mu.Lock()
		c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.mu.Unlock()
		closeErr = c.ws.Close()
	})
	if closeErr != nil {
		return fmt.Errorf("close peer connection: %w", closeErr)
	}
	return nil
}
