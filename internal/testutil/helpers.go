// Package testutil provides reusable test helper functions for streaming
// and capture tests.
package testutil

import (
	"math"
	"os"
	"testing"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rampPeriod keeps ramp samples inside 16-bit range for long files.
const rampPeriod = 32000

// RampValue is the left-channel sample written at frame i by WriteRampWAV,
// as the decoded float. The right channel carries its negation.
func RampValue(i int) float32 {
	return float32(i%rampPeriod) / 32768.0
}

// WriteRampWAV writes a 16-bit stereo WAV whose left channel holds a frame
// ramp and whose right channel holds its negation, so file positions are
// recoverable from decoded samples.
func WriteRampWAV(t *testing.T, path string, frames, sampleRate int) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, frames*2),
	}
	for i := 0; i < frames; i++ {
		buf.Data[i*2] = i % rampPeriod
		buf.Data[i*2+1] = -(i % rampPeriod)
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

// WriteSineWAV writes a 16-bit stereo WAV carrying a sine tone on both
// channels.
func WriteSineWAV(t *testing.T, path string, frames, sampleRate int, freq float64) {
	t.Helper()

	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, frames*2),
	}
	for i := 0; i < frames; i++ {
		v := int(32000 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		buf.Data[i*2] = v
		buf.Data[i*2+1] = v
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())
}

// AssertNoNaNOrInf verifies that no samples are NaN or Inf.
func AssertNoNaNOrInf(t *testing.T, s []float32) bool {
	t.Helper()
	for i, v := range s {
		f := float64(v)
		if math.IsNaN(f) {
			return assert.Fail(t, "found NaN", "s[%d] is NaN", i)
		}
		if math.IsInf(f, 0) {
			return assert.Fail(t, "found Inf", "s[%d] is Inf", i)
		}
	}
	return true
}

// AssertAllInRange verifies that all samples lie within [minVal, maxVal].
func AssertAllInRange(t *testing.T, s []float32, minVal, maxVal float32) bool {
	t.Helper()
	for i, v := range s {
		if v < minVal || v > maxVal {
			return assert.Fail(t, "value out of range",
				"s[%d]=%f is outside range [%f, %f]", i, v, minVal, maxVal)
		}
	}
	return true
}
