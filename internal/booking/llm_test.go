package booking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/piemonte-health/callbridge/internal/logging"
)

func newTestReasoner(t *testing.T, handler http.HandlerFunc) (*Reasoner, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	client := openai.NewClientWithConfig(cfg)
	return &Reasoner{client: client, model: openai.GPT4oMini, log: logging.Nop()}, srv.Close
}

func chatCompletionWithToolCall(t *testing.T, args any) []byte {
	t.Helper()
	encodedArgs, err := json.Marshal(args)
	require.NoError(t, err)

	resp := openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{
			Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{{
					Function: openai.FunctionCall{Name: interpretFunctionName, Arguments: string(encodedArgs)},
				}},
			},
		}},
	}
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	return out
}

func TestAnnotateAppliesPhrasedText(t *testing.T) {
	body := chatCompletionWithToolCall(t, map[string]string{
		"reasoning":       "un solo gruppo con piu servizi",
		"service_summary": "verrai visitato in un unico appuntamento",
	})
	r, closeSrv := newTestReasoner(t, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	})
	defer closeSrv()

	original := Classification{Scenario: ScenarioBundle, Reasoning: "fallback", NumAppointments: 1, ServiceSummary: "fallback"}
	result := r.Annotate(context.Background(), nil, original)
	assert.Equal(t, "un solo gruppo con piu servizi", result.Reasoning)
	assert.Equal(t, "verrai visitato in un unico appuntamento", result.ServiceSummary)
}

func TestAnnotateFallsBackOnTransportError(t *testing.T) {
	r, closeSrv := newTestReasoner(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeSrv()

	original := Classification{Scenario: ScenarioSeparate, Reasoning: "fallback reasoning", NumAppointments: 2, ServiceSummary: "fallback summary"}
	result := r.Annotate(context.Background(), nil, original)
	assert.Equal(t, original, result)
}
