// Package flow implements the Flow Manager (C7): it drives the node
// graph in internal/flow/nodes, dispatches tool calls to
// internal/flow/handlers, and tracks the three failure-threshold
// transfer escalations described in spec.md §4.6, grounded on
// original_source/flows/manager.py's TrackedFlowManager wiring.
package flow

import (
	"github.com/piemonte-health/callbridge/internal/flow/handlers"
	"github.com/piemonte-health/callbridge/internal/flow/nodes"
	"github.com/piemonte-health/callbridge/internal/flow/state"
	"github.com/piemonte-health/callbridge/internal/logging"
)

// FailureKind distinguishes the three failure-threshold buckets from
// spec.md §4.6: a knowledge gap or an explicit transfer request escalate
// after a single failure, everything else tolerates three.
type FailureKind int

const (
	FailureKnowledgeGap FailureKind = iota
	FailureUserTransferRequest
	FailureTechnical
)

func (k FailureKind) threshold() int {
	switch k {
	case FailureKnowledgeGap, FailureUserTransferRequest:
		return 1
	default:
		return 3
	}
}

// Manager holds the current node, the per-call state, and the failure
// counters; one Manager exists per bridge session.
type Manager struct {
	current        string
	st             *state.State
	registry       map[string]handlers.Handler
	businessStatus string
	log            *logging.Logger

	failures map[FailureKind]int
}

// New builds a Manager starting at the router node, the default entry
// point per manager.py's initialize_flow_manager.
func New(registry map[string]handlers.Handler, businessStatus string, log *logging.Logger) *Manager {
	return &Manager{
		current:        nodes.NameRouter,
		st:             state.New(),
		registry:       registry,
		businessStatus: businessStatus,
		log:            log,
		failures:       map[FailureKind]int{},
	}
}

// CurrentNode returns the node the Manager is presenting to the LLM.
func (m *Manager) CurrentNode() (nodes.Node, bool) {
	return nodes.Get(m.current)
}

// State exposes the call's flow state for callers that need to read it
// between turns (e.g. the Stats Writer at call end).
func (m *Manager) State() *state.State { return m.st }

// Dispatch runs a tool call by its LLM-facing name against the current
// node's registry entry, applies the returned node transition (if any) and
// updates the failure counters. It
// implements spec.md §4.6 steps 3-6.
func (m *Manager) Dispatch(toolName string, args map[string]any) state.Result {
	handler, ok := m.resolveHandler(toolName)
	if !ok {
		m.recordFailure(FailureTechnical)
		return state.Result{Success: false, Message: "I don't know how to do that yet."}
	}

	result := handler(args, m.st)

	if !result.Success {
		m.recordFailure(classifyFailure(toolName))
	} else {
		m.resetFailures()
	}

	if result.NextNode != "" {
		m.transition(result.NextNode)
	}

	return result
}

// resolveHandler looks up the handler registered for toolName, the
// LLM-facing Function.Name of the current node (or one of its global
// functions). It translates that name to the Function.HandlerRef the
// registry is actually keyed by before indexing m.registry.
func (m *Manager) resolveHandler(toolName string) (handlers.Handler, bool) {
	n, ok := nodes.Get(m.current)
	if !ok {
		return nil, false
	}
	for _, fn := range n.Functions {
		if fn.Name != toolName {
			continue
		}
		h, ok := m.registry[fn.HandlerRef]
		return h, ok
	}
	return nil, false
}

// classifyFailure maps a tool name to the failure bucket it belongs to,
// per spec.md §4.6: info-tool misses are knowledge gaps, an explicit
// transfer ask is its own bucket, everything else is technical.
func classifyFailure(toolName string) FailureKind {
	switch toolName {
	case nodes.FnKnowledgeBaseNew, nodes.FnCallGraph, nodes.FnGetExamByVisit, nodes.FnGetExamBySport:
		return FailureKnowledgeGap
	case nodes.FnRequestTransfer:
		return FailureUserTransferRequest
	default:
		return FailureTechnical
	}
}

// recordFailure increments the given bucket and forces a transfer once
// its threshold is hit, unless the business is closed — per §4.6 step 6,
// a closed/after-hours business keeps the session on informational and
// booking paths only and never auto-transfers.
func (m *Manager) recordFailure(kind FailureKind) {
	m.failures[kind]++
	if m.failures[kind] < kind.threshold() {
		return
	}
	if m.businessStatus == "close" || m.businessStatus == "after_hours" {
		m.log.Infow("failure threshold reached but business is closed, staying on current path", "kind", kind)
		return
	}
	m.log.Infow("failure threshold reached, transferring", "kind", kind, "count", m.failures[kind])
	m.transition(nodes.NameErrorTransfer)
	m.failures[kind] = 0
}

func (m *Manager) resetFailures() {
	for k := range m.failures {
		m.failures[k] = 0
	}
}

// transition moves to the named node. The Manager holds no LLM message
// history: a destination with the RESET context strategy is only logged,
// and both RESET and APPEND (the zero value) are left to whatever
// transport layer renders these messages.
func (m *Manager) transition(next string) {
	n, ok := nodes.Get(next)
	if !ok {
		m.log.Warnw("flow manager asked to transition to unknown node", "node", next)
		return
	}
	m.current = next
	if n.ContextStrategy == nodes.ContextReset {
		m.log.Infow("resetting LLM context on node transition", "node", next)
	}
}
