package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/piemonte-health/callbridge/internal/logging"
)

// sortingInterpretationPrompt mirrors
// SORTING_INTERPRETATION_SYSTEM_PROMPT's analysis rules, trimmed to the
// rules themselves: the scenario decision is deterministic (ClassifyScenario
// already applies them), so the model is only asked to phrase the
// reasoning and summary a caller-facing transcript would read naturally.
const sortingInterpretationPrompt = `You explain healthcare appointment booking scenarios to a non-technical reader.
Given the already-determined scenario (bundle, combined, or separate) and the service groups involved,
write a short reasoning sentence and a short patient-facing summary sentence in Italian.`

const interpretFunctionName = "phrase_sorting_scenario"

var interpretFunctionSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"reasoning": {"type": "string", "description": "Short explanation of why this scenario applies"},
		"service_summary": {"type": "string", "description": "Short Italian patient-facing summary"}
	},
	"required": ["reasoning", "service_summary"]
}`)

// Reasoner enriches a deterministic Classification with natural-language
// reasoning/summary text via an LLM function call, the same
// tool_choice="forced function" shape interpret_sorting_scenario uses.
// Kept entirely optional: BusinessLogic never depends on its output, only
// the text shown to the caller does.
type Reasoner struct {
	client *openai.Client
	model  string
	log    *logging.Logger
}

// NewReasoner builds a Reasoner from an OpenAI API key. model defaults to
// gpt-4o-mini when empty; the source pinned gpt-4.1 specifically for this
// call, which is not itself available through go-openai's model constants.
func NewReasoner(apiKey, model string, log *logging.Logger) *Reasoner {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &Reasoner{client: openai.NewClient(apiKey), model: model, log: log}
}

// Annotate asks the LLM to phrase reasoning/summary text for an already
// decided Classification. On any failure it logs and returns the input
// Classification unchanged — phrasing is cosmetic, never load-bearing.
func (r *Reasoner) Annotate(ctx context.Context, groups []ServiceGroup, c Classification) Classification {
	userPrompt := fmt.Sprintf(
		"Scenario: %s\nNumber of appointments: %d\nGroups:\n%s",
		c.Scenario, c.NumAppointments, formatGroupsForPrompt(groups),
	)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0.1,
		MaxTokens:   300,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: sortingInterpretationPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
		Tools: []openai.Tool{{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        interpretFunctionName,
				Description: "Phrase the reasoning and summary for a determined booking scenario",
				Parameters:  interpretFunctionSchema,
			},
		}},
		ToolChoice: openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: interpretFunctionName},
		},
	})
	if err != nil {
		r.log.Warnw("llm scenario phrasing failed, keeping deterministic text", "error", err)
		return c
	}
	if len(resp.Choices) == 0 || len(resp.Choices[0].Message.ToolCalls) == 0 {
		r.log.Warnw("llm scenario phrasing returned no tool call, keeping deterministic text")
		return c
	}

	var phrased struct {
		Reasoning      string `json:"reasoning"`
		ServiceSummary string `json:"service_summary"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.ToolCalls[0].Function.Arguments), &phrased); err != nil {
		r.log.Warnw("llm scenario phrasing returned unparseable arguments, keeping deterministic text", "error", err)
		return c
	}

	if phrased.Reasoning != "" {
		c.Reasoning = phrased.Reasoning
	}
	if phrased.ServiceSummary != "" {
		c.ServiceSummary = phrased.ServiceSummary
	}
	return c
}

func formatGroupsForPrompt(groups []ServiceGroup) string {
	var lines []string
	for i, g := range groups {
		names := make([]string, len(g.Services))
		for j, s := range g.Services {
			names[j] = s.Name
		}
		lines = append(lines, fmt.Sprintf("Group %d: %s (group=%t)", i+1, strings.Join(names, ", "), g.IsGroup))
	}
	return strings.Join(lines, "\n")
}
