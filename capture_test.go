package butler

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-butler/asset"
)

func TestCaptureSinkFlushAndFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take1.wav")
	prod, cons := NewCaptureBuffer(GenerateCaptureID(), path, 48000, 2, 8192)

	sink, err := newCaptureSink(cons)
	require.NoError(t, err)

	var m Metrics
	for i := 0; i < 100; i++ {
		require.True(t, prod.WriteFrame(float32(i)/200.0, -float32(i)/200.0))
	}

	frames, err := sink.flush(&m)
	require.NoError(t, err)
	assert.Equal(t, 100, frames)
	assert.Equal(t, uint64(100), cons.Meta().FramesWritten())
	assert.Equal(t, uint64(100*2*2), m.Snapshot().BytesWritten)

	// More frames arrive, then the sink closes with a final flush.
	for i := 0; i < 50; i++ {
		prod.WriteFrame(0.25, -0.25)
	}
	require.NoError(t, sink.close(&m))
	assert.Equal(t, uint64(150), cons.Meta().FramesWritten())

	// The finalized file decodes back to what was captured.
	a, err := asset.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 150, a.Frames())
	assert.Equal(t, 2, a.Channels())
	assert.Equal(t, 48000.0, a.SampleRate())
	assert.InDelta(t, 50.0/200.0, float64(a.At(0, 50)), 1e-3)
	assert.InDelta(t, -50.0/200.0, float64(a.At(1, 50)), 1e-3)
	assert.InDelta(t, 0.25, float64(a.At(0, 120)), 1e-3)
}

func TestCaptureSinkEmptyFlush(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.wav")
	_, cons := NewCaptureBuffer(GenerateCaptureID(), path, 48000, 2, 4096)

	sink, err := newCaptureSink(cons)
	require.NoError(t, err)

	frames, err := sink.flush(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, frames)
	require.NoError(t, sink.close(nil))
}

func TestCaptureSinkBadPath(t *testing.T) {
	_, cons := NewCaptureBuffer(GenerateCaptureID(),
		filepath.Join(t.TempDir(), "missing", "dir", "x.wav"), 48000, 2, 4096)
	_, err := newCaptureSink(cons)
	assert.Error(t, err)
}

func TestClampPCM16(t *testing.T) {
	assert.Equal(t, 0, clampPCM16(0))
	assert.Equal(t, 32767, clampPCM16(1.0))
	assert.Equal(t, 32767, clampPCM16(2.0))
	assert.Equal(t, -32768, clampPCM16(-2.0))
	assert.Equal(t, 16383, clampPCM16(0.5))
}
