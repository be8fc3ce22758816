// Package audio implements the pure codec and resampling primitives the
// bridge uses to move frames between the telephony peer (mu-law, 8kHz) and
// the voice-agent peer (linear PCM, 16kHz). Every function here is pure: no
// I/O, no shared state, no panics. Failure returns an empty slice and bumps
// a metric rather than propagating an error, matching the source's
// audioop-based conversions which never raise on malformed input.
package audio

import (
	"encoding/binary"
	"math"

	"github.com/piemonte-health/callbridge/internal/metrics"
)

// Format constants used throughout the bridge.
const (
	TelephonySampleRate = 8000
	AgentSampleRate     = 16000
	SampleWidthBytes    = 2 // 16-bit linear PCM
)

// MulawToLinear decodes G.711 mu-law to 16-bit little-endian linear PCM.
// One input byte produces one 2-byte output sample.
func MulawToLinear(mulaw []byte) []byte {
	out := make([]byte, len(mulaw)*2)
	for i, b := range mulaw {
		sample := decodeMulawByte(b)
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(sample))
	}
	return out
}

// LinearToMulaw encodes 16-bit little-endian linear PCM to G.711 mu-law.
// Malformed (odd-length) input records an error metric and returns an empty
// slice rather than failing the caller.
func LinearToMulaw(linear []byte) []byte {
	if len(linear)%2 != 0 {
		metrics.AudioTranscodeErrors.WithLabelValues("linear_to_mulaw", "odd_length").Inc()
		return []byte{}
	}
	n := len(linear) / 2
	out := make([]byte, n)
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(linear[i*2 : i*2+2]))
		out[i] = encodeMulawByte(sample)
	}
	return out
}

// decodeMulawByte implements the standard G.711 mu-law-to-linear expansion.
func decodeMulawByte(b byte) int16 {
	b = ^b
	sign := int16(1)
	if b&0x80 != 0 {
		sign = -1
	}
	exponent := (b >> 4) & 0x07
	mantissa := b & 0x0F
	magnitude := (((int16(mantissa) << 3) + 0x84) << exponent) - 0x84
	return sign * magnitude
}

// encodeMulawByte implements the standard G.711 linear-to-mu-law compression.
func encodeMulawByte(sample int16) byte {
	sign := int16(0)
	if sample < 0 {
		sign = 0x80
		if sample == math.MinInt16 {
			sample = math.MaxInt16
		} else {
			sample = -sample
		}
	}
	if sample > 32635 {
		sample = 32635
	}
	sample += 0x84

	exponent := int16(7)
	for exp := int16(0); exp < 7; exp++ {
		if sample < (int16(1) << uint(exp+8)) {
			exponent = exp
			break
		}
	}
	mantissa := (sample >> uint(exponent+3)) & 0x0F
	mulaw := byte(sign) | byte(exponent<<4) | byte(mantissa)
	return ^mulaw
}

// Resample converts 16-bit linear PCM between sample rates using linear
// interpolation. It is stateless per call: no residual phase is carried
// between invocations, matching the source's per-frame audioop.ratecv usage
// and accepting the resulting boundary aliasing as known behavior (spec.md
// Open Question (b)). channels and sampleWidth are accepted for interface
// parity with the source but only mono 16-bit audio is supported; anything
// else records an error metric and returns an empty slice.
func Resample(data []byte, fromRate, toRate, channels, sampleWidth int) []byte {
	if fromRate == toRate {
		return data
	}
	if channels != 1 || sampleWidth != SampleWidthBytes {
		metrics.AudioTranscodeErrors.WithLabelValues("resample", "unsupported_format").Inc()
		return []byte{}
	}
	if len(data)%2 != 0 {
		metrics.AudioTranscodeErrors.WithLabelValues("resample", "odd_length").Inc()
		return []byte{}
	}

	inSamples := len(data) / 2
	if inSamples < 2 {
		return []byte{}
	}
	outSamples := (inSamples * toRate) / fromRate
	out := make([]byte, outSamples*2)

	ratio := float64(fromRate) / float64(toRate)
	for i := 0; i < outSamples; i++ {
		srcPos := float64(i) * ratio
		srcIndex := int(srcPos)
		if srcIndex >= inSamples-1 {
			srcIndex = inSamples - 2
		}
		frac := srcPos - float64(srcIndex)

		s1 := int16(binary.LittleEndian.Uint16(data[srcIndex*2 : srcIndex*2+2]))
		s2 := int16(binary.LittleEndian.Uint16(data[(srcIndex+1)*2 : (srcIndex+1)*2+2]))
		interp := float64(s1)*(1-frac) + float64(s2)*frac
		out[i*2] = 0
		out[i*2+1] = 0
		binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(clampInt16(interp)))
	}
	return out
}

func clampInt16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// TelephonyToAgent converts one frame of inbound telephony audio (mu-law,
// 8kHz) into the agent's wire format (linear PCM, 16kHz).
func TelephonyToAgent(mulaw []byte) []byte {
	linear8k := MulawToLinear(mulaw)
	if len(linear8k) == 0 {
		return []byte{}
	}
	return Resample(linear8k, TelephonySampleRate, AgentSampleRate, 1, SampleWidthBytes)
}

// AgentToTelephony converts one frame of agent audio (linear PCM, 16kHz)
// into the telephony peer's wire format (mu-law, 8kHz).
func AgentToTelephony(linear16k []byte) []byte {
	linear8k := Resample(linear16k, AgentSampleRate, TelephonySampleRate, 1, SampleWidthBytes)
	if len(linear8k) == 0 {
		return []byte{}
	}
	return LinearToMulaw(linear8k)
}
