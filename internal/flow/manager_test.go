package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/piemonte-health/callbridge/internal/flow/handlers"
	"github.com/piemonte-health/callbridge/internal/flow/nodes"
	"github.com/piemonte-health/callbridge/internal/flow/state"
	"github.com/piemonte-health/callbridge/internal/logging"
)

func newTestManager(businessStatus string) *Manager {
	registry := map[string]handlers.Handler{
		"KnowledgeBase": func(args map[string]any, st *state.State) state.Result {
			return state.Result{Success: false, Message: "no answer"}
		},
		"RequestTransfer": handlers.RequestTransfer(func() string { return businessStatus }),
		"StartBooking": func(args map[string]any, st *state.State) state.Result {
			return state.Result{Success: true}
		},
	}
	return New(registry, businessStatus, logging.Nop())
}

func TestDispatchUnknownToolCountsAsTechnicalFailure(t *testing.T) {
	m := newTestManager("open")
	m.Dispatch("does_not_exist", nil)
	assert.Equal(t, 1, m.failures[FailureTechnical])
}

func TestKnowledgeGapTransfersAfterOneFailure(t *testing.T) {
	m := newTestManager("open")
	m.Dispatch(nodes.FnKnowledgeBaseNew, nil)
	assert.Equal(t, nodes.NameErrorTransfer, m.current, "a single knowledge-gap failure should trigger transfer")
}

func TestRequestTransferRefusedWhenBusinessClosed(t *testing.T) {
	m := newTestManager("close")
	result := m.Dispatch(nodes.FnRequestTransfer, nil)
	assert.False(t, result.Success)
	assert.Equal(t, nodes.NameRouter, m.current)
}

func TestRequestTransferSucceedsWhenBusinessOpen(t *testing.T) {
	m := newTestManager("open")
	result := m.Dispatch(nodes.FnRequestTransfer, nil)
	assert.True(t, result.Success)
	assert.Equal(t, nodes.NameErrorTransfer, m.current)
}

func TestSuccessfulDispatchResetsFailureCounters(t *testing.T) {
	m := newTestManager("open")
	m.Dispatch("does_not_exist", nil)
	assert.Equal(t, 1, m.failures[FailureTechnical])
	m.Dispatch(nodes.FnStartBooking, nil)
	assert.Equal(t, 0, m.failures[FailureTechnical])
}
