// Package bridge implements the Bridge Session (C3) and Session Registry
// (C4): the per-call state machine that bridges the inbound telephony
// WebSocket to the outbound voice-agent WebSocket, converting audio in both
// directions and coordinating the escalation handoff.
package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/looplab/fsm"

	"github.com/piemonte-health/callbridge/internal/audio"
	"github.com/piemonte-health/callbridge/internal/callerr"
	"github.com/piemonte-health/callbridge/internal/flow"
	"github.com/piemonte-health/callbridge/internal/flow/handlers"
	"github.com/piemonte-health/callbridge/internal/logging"
	"github.com/piemonte-health/callbridge/internal/metrics"
	"github.com/piemonte-health/callbridge/internal/wsconn"
)

// maxBufferedFrames bounds the audio buffer accumulated while the agent
// link has not opened yet. Once full, the oldest frame is dropped.
const maxBufferedFrames = 100

// StatsWriter records the one-shot call stats row. Implemented by
// internal/stats.Writer; declared here so bridge depends only on the
// interface it needs (accept interfaces, return structs).
type StatsWriter interface {
	WriteInitial(ctx context.Context, callID, interactionID, phoneNumber, assistantID string) error
}

// AgentDialer opens the outbound connection to the voice agent. Declared as
// an interface so tests can substitute a fake without a real network dial.
type AgentDialer interface {
	Dial(ctx context.Context, businessStatus, callerPhone, interactionID, streamSID string) (*wsconn.Conn, string, error)
}

// Session is one bridged call: one inbound telephony WebSocket peer, one
// outbound voice-agent WebSocket peer once the call has started, and the
// state machine coordinating both.
type Session struct {
	id            string
	telephonyConn *wsconn.Conn
	dialer        AgentDialer
	statsWriter   StatsWriter
	assistantID   string
	registry      *Registry
	handlerReg    HandlerRegistryFactory
	log           *logging.Logger

	fsm *fsm.FSM

	flowManager *flow.Manager

	mu            sync.Mutex
	agentConn     *wsconn.Conn
	streamSID     string
	callID        string
	interactionID string
	callerID      string
	businessStatus string
	chunkCounter  int64

	bufMu      sync.Mutex
	audioBuffer [][]byte

	active atomic.Bool
}

// HandlerRegistryFactory builds the Handler Set registry for one call,
// given its resolved business status. Most entries come from shared,
// process-wide resources (the search engine, the booking orchestrator,
// the knowledge base); only request_transfer's business-status-closed
// refusal needs a value that varies per call, so the whole map is
// rebuilt cheaply per call rather than threading business status through
// the Handler signature.
type HandlerRegistryFactory func(businessStatus string) map[string]handlers.Handler

// NewSession constructs a Session in the WaitingStart state for an already
// upgraded telephony connection. Each session gets its own flow.Manager,
// built from handlerReg once its business status is known, matching the
// source's per-call create_flow_manager/initialize_flow_manager pairing.
func NewSession(telephonyConn *wsconn.Conn, dialer AgentDialer, statsWriter StatsWriter, assistantID string, registry *Registry, handlerReg HandlerRegistryFactory, log *logging.Logger) *Session {
	s := &Session{
		id:            uuid.New().String(),
		telephonyConn: telephonyConn,
		dialer:        dialer,
		statsWriter:   statsWriter,
		assistantID:   assistantID,
		registry:      registry,
		handlerReg:    handlerReg,
		log:           log,
	}
	s.fsm = newStateMachine(s.onEnterState)
	s.active.Store(true)
	return s
}

// FlowManager returns the session's Flow Manager (C7), or nil before the
// agent link has been initialized. Callers such as the Stats Writer read
// FlowManager().State() at call end to persist the accumulated flow state.
func (s *Session) FlowManager() *flow.Manager {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flowManager
}

func (s *Session) onEnterState(_ context.Context, e *fsm.Event) {
	s.log.Infow("bridge state transition", "session_id", s.id, "from", e.Src, "to", e.Dst)
}

// State returns the current bridge state.
func (s *Session) State() string {
	return s.fsm.Current()
}

// Run drives the session until the telephony peer disconnects, the call is
// escalated to a human, or ctx is canceled. It always invokes stop() before
// returning, matching the source's start()/finally: stop() contract.
func (s *Session) Run(ctx context.Context) error {
	defer s.stop(ctx)

	for {
		raw, err := s.telephonyConn.Recv()
		if err != nil {
			return nil
		}
		if done, err := s.handleTelephonyFrame(ctx, raw.Data); err != nil {
			s.log.Errorw("telephony frame handling error", "session_id", s.id, "error", err)
		} else if done {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
}

type telephonyEnvelope struct {
	Event     string                 `json:"event"`
	StreamSid string                 `json:"streamSid"`
	Start     *telephonyStartPayload `json:"start,omitempty"`
	Media     *telephonyMediaPayload `json:"media,omitempty"`
}

type telephonyStartPayload struct {
	StreamSid        string            `json:"streamSid"`
	CustomParameters map[string]string `json:"customParameters"`
}

type telephonyMediaPayload struct {
	Track   string `json:"track"`
	Payload string `json:"payload"`
}

// handleTelephonyFrame dispatches one inbound telephony frame. The boolean
// return reports whether the telephony peer asked to stop (end of call).
func (s *Session) handleTelephonyFrame(ctx context.Context, raw []byte) (bool, error) {
	var env telephonyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return false, callerr.Wrap(callerr.ErrProtocol, "invalid_telephony_frame", "could not parse telephony message", err)
	}

	switch env.Event {
	case "start":
		s.handleStart(ctx, env)
		return false, nil
	case "media":
		s.handleMedia(env)
		return false, nil
	case "stop":
		s.log.Infow("received stop from telephony peer", "session_id", s.id)
		return true, nil
	default:
		s.log.Debugw("unhandled telephony event", "session_id", s.id, "event", env.Event)
		return false, nil
	}
}

func (s *Session) handleStart(ctx context.Context, env telephonyEnvelope) {
	s.mu.Lock()
	s.streamSID = env.StreamSid
	if s.streamSID == "" && env.Start != nil {
		s.streamSID = env.Start.StreamSid
	}
	var businessHours string
	if env.Start != nil {
		s.interactionID = env.Start.CustomParameters["interaction_id"]
		s.callerID = env.Start.CustomParameters["caller_id"]
		businessHours = env.Start.CustomParameters["business_hours"]
	}
	s.businessStatus = ExtractBusinessStatus(businessHours)
	streamSID := s.streamSID
	s.mu.Unlock()

	s.log.Infow("received start from telephony peer",
		"session_id", s.id, "stream_sid", streamSID, "business_status", s.businessStatus)

	if err := s.initializeAgent(ctx); err != nil {
		s.log.Errorw("failed to initialize agent link", "session_id", s.id, "error", err)
		s.fsm.Event(ctx, eventFail)
		return
	}

	if streamSID != "" && s.registry != nil {
		s.registry.Register(streamSID, s)
	}
}

// initializeAgent opens the voice-agent connection, records the initial
// stats row (non-fatally), transitions to Active, and flushes any buffered
// audio accumulated while waiting for start.
func (s *Session) initializeAgent(ctx context.Context) error {
	s.mu.Lock()
	businessStatus, callerID, interactionID, streamSID := s.businessStatus, s.callerID, s.interactionID, s.streamSID
	s.mu.Unlock()

	conn, callID, err := s.dialer.Dial(ctx, businessStatus, callerID, interactionID, streamSID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.agentConn = conn
	s.callID = callID
	if s.handlerReg != nil {
		s.flowManager = flow.New(s.handlerReg(businessStatus), businessStatus, s.log)
	}
	s.mu.Unlock()

	if s.statsWriter != nil {
		if err := s.statsWriter.WriteInitial(ctx, callID, interactionID, callerID, s.assistantID); err != nil {
			s.log.Warnw("initial stats row write failed, continuing", "session_id", s.id, "error", err)
			metrics.StatsWriteFailures.Inc()
		}
	}

	if err := s.fsm.Event(ctx, eventStart); err != nil {
		return fmt.Errorf("activate bridge session: %w", err)
	}

	go s.runOutbound(ctx)
	s.flushBuffer(conn)
	return nil
}

func (s *Session) flushBuffer(conn *wsconn.Conn) {
	s.bufMu.Lock()
	buffered := s.audioBuffer
	s.audioBuffer = nil
	s.bufMu.Unlock()

	for _, frame := range buffered {
		if err := conn.SendBinary(frame); err != nil {
			s.log.Errorw("failed to flush buffered audio", "session_id", s.id, "error", err)
			return
		}
	}
}

func (s *Session) handleMedia(env telephonyEnvelope) {
	if env.Media == nil || env.Media.Track != "inbound" {
		return
	}
	mulawData, err := base64.StdEncoding.DecodeString(env.Media.Payload)
	if err != nil {
		s.log.Errorw("invalid media payload", "session_id", s.id, "error", err)
		return
	}
	pcm16k := audio.TelephonyToAgent(mulawData)
	if len(pcm16k) == 0 {
		return
	}

	switch s.State() {
	case StateWaitingStart:
		s.bufferFrame(pcm16k)
	case StateActive:
		s.mu.Lock()
		conn := s.agentConn
		s.mu.Unlock()
		if conn == nil {
			return
		}
		if err := conn.SendBinary(pcm16k); err != nil {
			s.log.Warnw("failed to forward audio to agent", "session_id", s.id, "error", err)
			return
		}
		metrics.ChunksForwarded.WithLabelValues("telephony_to_agent").Inc()
	default:
		// escalating/closing/closed: drop silently, matching the source's
		// behavior of discarding inbound media once the agent link is torn
		// down for handoff.
	}
}

func (s *Session) bufferFrame(frame []byte) {
	s.bufMu.Lock()
	defer s.bufMu.Unlock()
	s.audioBuffer = append(s.audioBuffer, frame)
	if len(s.audioBuffer) > maxBufferedFrames {
		s.audioBuffer = s.audioBuffer[1:]
	}
}

type outboundEnvelope struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid"`
	Media     outboundMedia `json:"media"`
}

type outboundMedia struct {
	Track     string `json:"track"`
	Chunk     string `json:"chunk"`
	Timestamp string `json:"timestamp"`
	Payload   string `json:"payload"`
}

// runOutbound forwards agent audio to the telephony peer while the session
// is Active. It exits quietly once the agent connection closes for
// escalation; an unexpected loss while still Active instead tears the
// whole session down, since Run()'s telephony read loop has no other way
// to learn the agent side died.
func (s *Session) runOutbound(ctx context.Context) {
	for {
		s.mu.Lock()
		conn := s.agentConn
		s.mu.Unlock()
		if conn == nil {
			return
		}

		msg, err := conn.Recv()
		if err != nil {
			if s.State() == StateActive {
				s.log.Errorw("agent connection lost unexpectedly", "session_id", s.id, "error", err)
				s.teardownOnAgentLoss(ctx)
			} else {
				s.log.Infow("agent connection closed for escalation", "session_id", s.id)
			}
			return
		}
		if s.State() != StateActive {
			return
		}
		if !msg.Binary || len(msg.Data) == 0 {
			continue
		}

		mulaw := audio.AgentToTelephony(msg.Data)
		if len(mulaw) == 0 {
			continue
		}

		chunk := atomic.AddInt64(&s.chunkCounter, 1)
		out := outboundEnvelope{
			Event:     "media",
			StreamSid: s.streamSID,
			Media: outboundMedia{
				Track:     "outbound",
				Chunk:     fmt.Sprintf("%d", chunk),
				Timestamp: fmt.Sprintf("%d", time.Now().UnixMilli()),
				Payload:   base64.StdEncoding.EncodeToString(mulaw),
			},
		}
		data, err := json.Marshal(out)
		if err != nil {
			s.log.Errorw("failed to marshal outbound media message", "session_id", s.id, "error", err)
			continue
		}
		if err := s.telephonyConn.SendText(data); err != nil {
			s.log.Errorw("failed to send audio to telephony peer", "session_id", s.id, "error", err)
			return
		}
		metrics.ChunksForwarded.WithLabelValues("agent_to_telephony").Inc()
	}
}

// teardownOnAgentLoss marks the session failed and closes the telephony
// connection so Run()'s blocking Recv() unwinds and its deferred stop()
// runs, instead of leaving the call bridged to a dead agent link until the
// caller happens to hang up on their own.
func (s *Session) teardownOnAgentLoss(ctx context.Context) {
	_ = s.fsm.Event(ctx, eventFail)
	_ = s.telephonyConn.Close()
}

// StartEscalation begins the human handoff: the session must be Active. It
// closes the agent link and transitions to Escalating; the caller (the
// escalation controller) is responsible for the inter-phase delay before
// calling MarkAgentClosed and CompleteEscalation.
func (s *Session) StartEscalation(ctx context.Context) error {
	if s.State() != StateActive {
		return callerr.New(callerr.ErrPrecondition, "not_active", fmt.Sprintf("cannot escalate from state %s", s.State()))
	}
	if err := s.fsm.Event(ctx, eventEscalate); err != nil {
		return fmt.Errorf("escalate bridge session: %w", err)
	}

	s.mu.Lock()
	conn := s.agentConn
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	metrics.EscalationsStarted.WithLabelValues("ok").Inc()
	return nil
}

// MarkAgentClosed transitions Escalating to AgentClosed once the caller has
// waited out the inter-phase delay for the agent to finish draining.
func (s *Session) MarkAgentClosed(ctx context.Context) error {
	if err := s.fsm.Event(ctx, eventAgentClosed); err != nil {
		return fmt.Errorf("mark agent closed: %w", err)
	}
	return nil
}

// CompleteEscalation sends the pre-built escalation stop frame to the
// telephony peer and transitions to Closing. Valid from Escalating or
// AgentClosed only; any other state is refused with a precondition error.
func (s *Session) CompleteEscalation(ctx context.Context, stopMsg []byte) error {
	state := s.State()
	if state != StateEscalating && state != StateAgentClosed {
		return callerr.New(callerr.ErrPrecondition, "not_escalating", fmt.Sprintf("cannot complete escalation from state %s", state))
	}
	if err := s.telephonyConn.SendText(stopMsg); err != nil {
		return err
	}
	if err := s.fsm.Event(ctx, eventClose); err != nil {
		return fmt.Errorf("close bridge session after escalation: %w", err)
	}
	metrics.EscalationsCompleted.WithLabelValues("ok").Inc()
	return nil
}

// stop tears the session down: closes the agent connection if still open,
// deregisters from the registry, and sends a final stop frame to the
// telephony peer unless one was already sent as part of escalation.
func (s *Session) stop(ctx context.Context) {
	s.active.Store(false)

	alreadyClosing := s.State() == StateClosing || s.State() == StateClosed
	if !alreadyClosing {
		_ = s.fsm.Event(ctx, eventClose)
	}
	_ = s.fsm.Event(ctx, eventClosed)

	s.mu.Lock()
	conn := s.agentConn
	streamSID := s.streamSID
	sentStopFrame := alreadyClosing
	s.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	if streamSID != "" && s.registry != nil {
		s.registry.Deregister(streamSID)
	}
	if !sentStopFrame {
		_ = s.telephonyConn.SendText([]byte(`{"event":"stop"}`))
	}
	_ = s.telephonyConn.Close()

	s.log.Infow("session stopped", "session_id", s.id)
}

// ExtractBusinessStatus parses the "::"-delimited business_hours custom
// parameter. The status is the lowercased, trimmed last field when there
// are at least four fields; any other shape (missing, malformed, too few
// fields) defaults to "close".
func ExtractBusinessStatus(businessHours string) string {
	if businessHours == "" {
		return "close"
	}
	parts := strings.Split(businessHours, "::")
	if len(parts) < 4 {
		return "close"
	}
	return strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
}
