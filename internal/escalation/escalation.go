// Package escalation implements the Escalation Controller (C5): the HTTP
// endpoint a human-handoff tool call reaches to tear a bridge session down
// and hand the caller to a ring group, grounded on
// original_source/PiemonteBridge/bridge_conn.py's /escalation handler and
// build_talkdesk_message/limita_testo_256 helpers.
package escalation

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/piemonte-health/callbridge/internal/bridge"
	"github.com/piemonte-health/callbridge/internal/logging"
	"github.com/piemonte-health/callbridge/internal/metrics"
)

// preDrainDelay is the pause before closing the agent link, giving the
// voice agent a moment to finish emitting its final turn before teardown.
// postCloseDelay is the pause after closing it, before the agent session is
// considered fully drained. Both are carried from spec.md's two-phase
// decomposition of the source's single asyncio.sleep(2).
const (
	preDrainDelay  = 1500 * time.Millisecond
	postCloseDelay = 2 * time.Second

	defaultAction    = "transfer"
	defaultSentiment = "neutral"
	defaultSummary   = "richiesta di assistenza"
	defaultService   = "2|2|5"
	maxSummaryLen    = 240
)

// Controller handles the escalation HTTP endpoint.
type Controller struct {
	registry *bridge.Registry
	log      *logging.Logger
}

// New builds an escalation Controller backed by the given session registry.
func New(registry *bridge.Registry, log *logging.Logger) *Controller {
	return &Controller{registry: registry, log: log}
}

type webhookPayload struct {
	Message struct {
		Call struct {
			ID string `json:"id"`
		} `json:"call"`
		StreamSid    string         `json:"stream_sid"`
		ToolCallList []toolCallItem `json:"toolCallList"`
	} `json:"message"`
}

type toolCallItem struct {
	ID       string `json:"id"`
	Function struct {
		Arguments map[string]any `json:"arguments"`
	} `json:"function"`
}

type toolResult struct {
	ToolCallID string `json:"toolCallId"`
	Result     string `json:"result"`
}

type webhookResponse struct {
	Results []toolResult `json:"results"`
}

// ServeHTTP implements the POST /escalation endpoint.
func (c *Controller) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		c.writeJSON(w, webhookResponse{Results: []toolResult{{ToolCallID: "error", Result: "payload parse error: " + err.Error()}}})
		return
	}

	callID := payload.Message.Call.ID
	toolCalls := payload.Message.ToolCallList
	results := make([]toolResult, 0, len(toolCalls))
	for _, tc := range toolCalls {
		result := callID
		if result == "" {
			result = "call_id not found"
		}
		results = append(results, toolResult{ToolCallID: tc.ID, Result: result})
	}
	if len(results) == 0 {
		result := callID
		if result == "" {
			result = "call_id not found"
		}
		results = append(results, toolResult{ToolCallID: "", Result: result})
	}

	if callID == "" {
		c.log.Errorw("escalation request missing call id")
		c.writeJSON(w, webhookResponse{Results: results})
		return
	}

	streamSID := payload.Message.StreamSid
	if streamSID == "" {
		c.log.Errorw("escalation request missing stream_sid", "call_id", callID)
		c.writeJSON(w, webhookResponse{Results: results})
		return
	}

	session, ok := c.registry.Get(streamSID)
	if !ok {
		c.log.Errorw("escalation request for unknown session", "call_id", callID, "stream_sid", streamSID)
		c.writeJSON(w, webhookResponse{Results: results})
		return
	}

	c.runEscalation(ctx, session, streamSID, toolCalls)
	c.writeJSON(w, webhookResponse{Results: results})
}

// runEscalation executes the phased teardown: pre-drain pause, close the
// agent link, a drain pause, then send the ring-group stop frame. Any
// failure falls back to a default-valued stop message, sent through
// CompleteEscalation: it goes out only when the session is in Escalating
// or AgentClosed, so a failed StartEscalation sends no stop message.
func (c *Controller) runEscalation(ctx context.Context, session *bridge.Session, streamSID string, toolCalls []toolCallItem) {
	time.Sleep(preDrainDelay)

	if err := session.StartEscalation(ctx); err != nil {
		c.log.Errorw("failed to start escalation", "stream_sid", streamSID, "error", err)
		metrics.EscalationsStarted.WithLabelValues("error").Inc()
		c.sendFallback(ctx, session, streamSID)
		return
	}

	time.Sleep(postCloseDelay)
	if err := session.MarkAgentClosed(ctx); err != nil {
		c.log.Errorw("failed to mark agent closed", "stream_sid", streamSID, "error", err)
	}

	escalationData := extractEscalationData(toolCalls)
	stopMsg := buildStopMessage(streamSID, escalationData)

	if err := session.CompleteEscalation(ctx, stopMsg); err != nil {
		c.log.Errorw("failed to complete escalation", "stream_sid", streamSID, "error", err)
		metrics.EscalationsCompleted.WithLabelValues("error").Inc()
		c.sendFallback(ctx, session, streamSID)
	}
}

func (c *Controller) sendFallback(ctx context.Context, session *bridge.Session, streamSID string) {
	stopMsg := buildStopMessage(streamSID, nil)
	if err := session.CompleteEscalation(ctx, stopMsg); err != nil {
		c.log.Errorw("fallback escalation also failed", "stream_sid", streamSID, "error", err)
	}
}

func (c *Controller) writeJSON(w http.ResponseWriter, resp webhookResponse) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// escalationData is the analysis payload a tool call carries, matching the
// source's pipecat_data dict.
type escalationData struct {
	action         string
	sentiment      string
	durationSecs   int
	summary        string
	service        string
	sector         string
}

// extractEscalationData reads the first tool call's function arguments, the
// way the source reads tool_calls[0]["function"]["arguments"].
func extractEscalationData(toolCalls []toolCallItem) *escalationData {
	if len(toolCalls) == 0 {
		return nil
	}
	args := toolCalls[0].Function.Arguments
	if len(args) == 0 {
		return nil
	}

	d := &escalationData{
		action:    stringArg(args, "action", defaultAction),
		sentiment: stringArg(args, "sentiment", defaultSentiment),
		summary:   stringArg(args, "summary", defaultSummary),
		service:   stringArg(args, "service", "5"),
		sector:    stringArg(args, "sector", "info"),
	}
	d.durationSecs = intArg(args, "duration", 0)
	return d
}

func stringArg(args map[string]any, key, fallback string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	v, ok := args[key]
	if !ok {
		return fallback
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return fallback
}

type stopMessage struct {
	Event     string    `json:"event"`
	StreamSid string    `json:"streamSid"`
	Stop      stopBlock `json:"stop"`
}

type stopBlock struct {
	Command   string `json:"command"`
	RingGroup string `json:"ringGroup"`
}

// buildStopMessage builds the escalate stop frame sent to the telephony
// peer, with the ring_group field encoding summary/sentiment/action/
// duration/service, matching build_talkdesk_message.
func buildStopMessage(streamSID string, data *escalationData) []byte {
	action, sentiment, summary := defaultAction, defaultSentiment, defaultSummary
	duration := 0
	service := defaultService

	if data != nil {
		action = data.action
		sentiment = data.sentiment
		summary = data.summary
		duration = data.durationSecs
		serviceNum := strings.TrimSpace(data.service)
		if serviceNum == "" {
			serviceNum = "5"
		}
		if data.sector == "booking" {
			service = "1|1|" + serviceNum
		} else {
			service = "2|2|" + serviceNum
		}
	}

	ringGroup := strings.Join([]string{
		truncateSummary(summary), sentiment, action, strconv.Itoa(duration), service,
	}, "::")

	msg := stopMessage{
		Event:     "stop",
		StreamSid: streamSID,
		Stop: stopBlock{
			Command:   "escalate",
			RingGroup: ringGroup,
		},
	}
	encoded, _ := json.Marshal(msg)
	return encoded
}

// truncateSummary truncates text to at most 240 characters at the last
// space boundary, trimmed. Ported from limita_testo_256 (the original
// function's name references 256, but its constant is 240).
func truncateSummary(text string) string {
	if len(text) <= maxSummaryLen {
		return text
	}
	truncated := text[:maxSummaryLen]
	if idx := strings.LastIndex(truncated, " "); idx != -1 {
		truncated = truncated[:idx]
	}
	return strings.TrimSpace(truncated)
}
