package audio

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func samplesToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(s))
	}
	return out
}

func TestMulawRoundTripApproximatesOriginal(t *testing.T) {
	original := samplesToBytes([]int16{0, 1000, -1000, 16000, -16000, 32000, -32000})
	mulaw := LinearToMulaw(original)
	assert.Len(t, mulaw, len(original)/2)

	back := MulawToLinear(mulaw)
	assert.Len(t, back, len(original))

	// mu-law is lossy; round trip should be within a small relative tolerance
	// of the original for every sample, not byte-identical.
	for i := 0; i < len(original); i += 2 {
		orig := int16(binary.LittleEndian.Uint16(original[i : i+2]))
		got := int16(binary.LittleEndian.Uint16(back[i : i+2]))
		diff := int(orig) - int(got)
		if diff < 0 {
			diff = -diff
		}
		assert.LessOrEqual(t, diff, 1200, "sample %d: %d vs %d", i/2, orig, got)
	}
}

func TestMulawSilenceRoundTrips(t *testing.T) {
	original := samplesToBytes([]int16{0, 0, 0, 0})
	mulaw := LinearToMulaw(original)
	back := MulawToLinear(mulaw)
	for i := 0; i < len(back); i += 2 {
		got := int16(binary.LittleEndian.Uint16(back[i : i+2]))
		assert.InDelta(t, 0, got, 8)
	}
}

func TestLinearToMulawRejectsOddLength(t *testing.T) {
	out := LinearToMulaw([]byte{0x01, 0x02, 0x03})
	assert.Empty(t, out)
}

func TestResampleIdentityWhenRatesMatch(t *testing.T) {
	data := samplesToBytes([]int16{1, 2, 3, 4, 5})
	out := Resample(data, 8000, 8000, 1, SampleWidthBytes)
	assert.Equal(t, data, out)
}

func TestResampleUpsamplesToExpectedLength(t *testing.T) {
	data := samplesToBytes(make([]int16, 160)) // 20ms @ 8kHz
	out := Resample(data, 8000, 16000, 1, SampleWidthBytes)
	assert.Equal(t, 320*2, len(out)) // 20ms @ 16kHz, 16-bit samples
}

func TestResampleRejectsUnsupportedFormat(t *testing.T) {
	data := samplesToBytes([]int16{1, 2, 3, 4})
	out := Resample(data, 8000, 16000, 2, SampleWidthBytes)
	assert.Empty(t, out)
}

func TestTelephonyToAgentAndBackStableLength(t *testing.T) {
	frame := make([]byte, 160) // 20ms mu-law frame @ 8kHz
	agentAudio := TelephonyToAgent(frame)
	assert.Equal(t, 320*2, len(agentAudio))

	back := AgentToTelephony(agentAudio)
	assert.Equal(t, 160, len(back))
}
