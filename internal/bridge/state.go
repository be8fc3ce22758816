package bridge

import (
	"context"

	"github.com/looplab/fsm"
)

// Bridge session states, carried verbatim from the source's BridgeState
// enum except PIPECAT_CLOSED, which is renamed AgentClosed to keep the
// package vendor-neutral.
const (
	StateWaitingStart = "waiting_start"
	StateActive       = "active"
	StateEscalating   = "escalating"
	StateAgentClosed  = "agent_closed"
	StateClosing      = "closing"
	StateClosed       = "closed"
	StateError        = "error"
)

const (
	eventStart       = "start"
	eventEscalate    = "escalate"
	eventAgentClosed = "agent_closed"
	eventClose       = "close"
	eventClosed      = "closed"
	eventFail        = "fail"
)

// newStateMachine builds the bridge's fsm. Transitions are monotone: closing
// (eventClose) is reachable from Active, Escalating or AgentClosed, and no
// event leads back to Active, so a session that has begun escalating can
// never fall back to Active through this machine.
func newStateMachine(onEnter func(ctx context.Context, e *fsm.Event)) *fsm.FSM {
	return fsm.NewFSM(
		StateWaitingStart,
		fsm.Events{
			{Name: eventStart, Src: []string{StateWaitingStart}, Dst: StateActive},
			{Name: eventEscalate, Src: []string{StateActive}, Dst: StateEscalating},
			{Name: eventAgentClosed, Src: []string{StateEscalating}, Dst: StateAgentClosed},
			{Name: eventClose, Src: []string{StateActive, StateEscalating, StateAgentClosed}, Dst: StateClosing},
			{Name: eventClosed, Src: []string{StateClosing}, Dst: StateClosed},
			{Name: eventFail, Src: []string{
				StateWaitingStart, StateActive, StateEscalating, StateAgentClosed, StateClosing,
			}, Dst: StateError},
		},
		fsm.Callbacks{
			"enter_state": func(ctx context.Context, e *fsm.Event) {
				if onEnter != nil {
					onEnter(ctx, e)
				}
			},
		},
	)
}
