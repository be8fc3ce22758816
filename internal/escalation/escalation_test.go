package escalation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateSummaryShortTextUnchanged(t *testing.T) {
	assert.Equal(t, "short summary", truncateSummary("short summary"))
}

func TestTruncateSummaryBreaksAtLastSpace(t *testing.T) {
	long := strings.Repeat("a", 235) + " " + strings.Repeat("b", 20)
	got := truncateSummary(long)
	assert.LessOrEqual(t, len(got), maxSummaryLen)
	assert.False(t, strings.HasSuffix(got, "b"))
}

func TestBuildStopMessageDefaults(t *testing.T) {
	raw := buildStopMessage("stream-1", nil)
	var msg stopMessage
	require.NoError(t, json.Unmarshal(raw, &msg))

	assert.Equal(t, "stop", msg.Event)
	assert.Equal(t, "stream-1", msg.StreamSid)
	assert.Equal(t, "escalate", msg.Stop.Command)
	assert.Equal(t, "richiesta di assistenza::neutral::transfer::0::2|2|5", msg.Stop.RingGroup)
}

func TestBuildStopMessageBookingSector(t *testing.T) {
	raw := buildStopMessage("stream-2", &escalationData{
		action:       "book",
		sentiment:    "positive",
		summary:      "booked an appointment",
		durationSecs: 42,
		service:      "7",
		sector:       "booking",
	})
	var msg stopMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "booked an appointment::positive::book::42::1|1|7", msg.Stop.RingGroup)
}

func TestBuildStopMessageInfoSectorDefaultsServiceWhenBlank(t *testing.T) {
	raw := buildStopMessage("stream-3", &escalationData{
		action: "transfer", sentiment: "neutral", summary: "x", service: "", sector: "info",
	})
	var msg stopMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, "x::neutral::transfer::0::2|2|5", msg.Stop.RingGroup)
}

func TestExtractEscalationDataEmptyToolCallsReturnsNil(t *testing.T) {
	assert.Nil(t, extractEscalationData(nil))
}
