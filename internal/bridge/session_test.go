package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBusinessStatusRequiresFourFields(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"well formed open", "Mon-Fri::09:00::18:00::OPEN", "open"},
		{"well formed close with spaces", "Mon-Fri::09:00::18:00::  Close ", "close"},
		{"too few fields", "Mon-Fri::09:00::18:00", "close"},
		{"empty", "", "close"},
		{"no delimiter", "always open", "close"},
		{"extra fields still uses last", "a::b::c::d::open", "open"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractBusinessStatus(tc.in))
		})
	}
}

func TestNewStateMachineTransitions(t *testing.T) {
	m := newStateMachine(nil)
	assert.Equal(t, StateWaitingStart, m.Current())

	assert.NoError(t, m.Event(nil, eventStart))
	assert.Equal(t, StateActive, m.Current())

	assert.NoError(t, m.Event(nil, eventEscalate))
	assert.Equal(t, StateEscalating, m.Current())

	// The backward-blocking gate: once escalating, eventStart can never
	// fire again, so the machine can't fall back to Active.
	assert.Error(t, m.Event(nil, eventStart))

	assert.NoError(t, m.Event(nil, eventAgentClosed))
	assert.Equal(t, StateAgentClosed, m.Current())

	assert.NoError(t, m.Event(nil, eventClose))
	assert.Equal(t, StateClosing, m.Current())

	assert.NoError(t, m.Event(nil, eventClosed))
	assert.Equal(t, StateClosed, m.Current())
}

func TestStateMachineActiveCanCloseDirectly(t *testing.T) {
	m := newStateMachine(nil)
	assert.NoError(t, m.Event(nil, eventStart))
	assert.NoError(t, m.Event(nil, eventClose))
	assert.Equal(t, StateClosing, m.Current())
}

func TestStateMachineActiveFailsOnAgentLoss(t *testing.T) {
	m := newStateMachine(nil)
	assert.NoError(t, m.Event(nil, eventStart))
	assert.NoError(t, m.Event(nil, eventFail))
	assert.Equal(t, StateError, m.Current())
}
