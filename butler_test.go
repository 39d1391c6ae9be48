package butler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-butler/asset"
	"github.com/tphakala/go-audio-butler/internal/testutil"
	"github.com/tphakala/go-audio-butler/pdc"
)

func writeRampWAV(t *testing.T, path string, frames int) {
	t.Helper()
	testutil.WriteRampWAV(t, path, frames, 48000)
}

func TestButlerNotRunning(t *testing.T) {
	b := New(48000, 2, DefaultConfig())
	assert.ErrorIs(t, b.Pause(), ErrNotRunning)
	assert.ErrorIs(t, b.FlushAll(), ErrNotRunning)
}

func TestButlerChannels(t *testing.T) {
	b := New(48000, 4, DefaultConfig())

	assert.Equal(t, 4, b.NumChannels())
	require.NotNil(t, b.Channel(0))
	assert.Equal(t, 3, b.Channel(3).Channel())
	assert.Nil(t, b.Channel(4))
	assert.Nil(t, b.Channel(-1))

	// A detached handle reads silence.
	l, r := b.Channel(0).ReadFrame()
	assert.Equal(t, float32(0), l)
	assert.Equal(t, float32(0), r)
}

func TestButlerStreamLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeRampWAV(t, path, 24000)

	b := New(48000, 2, DefaultConfig())
	b.Start()
	defer func() { _ = b.Shutdown() }()

	require.NoError(t, b.StreamFile(0, path, 0))
	require.NoError(t, b.WaitForCompletion())

	h := b.Channel(0)
	require.Greater(t, h.Available(), 0, "the ring is primed before playback")

	for i := 0; i < 1000; i++ {
		l, r := h.ReadFrame()
		want := testutil.RampValue(i)
		assert.InDelta(t, want, l, 1e-4)
		assert.InDelta(t, -want, r, 1e-4)
	}

	require.NoError(t, b.StopStream(0))
	require.NoError(t, b.WaitForCompletion())
	assert.Equal(t, 0, h.Available())
}

func TestButlerStreamFileErrors(t *testing.T) {
	b := New(48000, 1, DefaultConfig())
	b.Start()
	defer func() { _ = b.Shutdown() }()

	assert.ErrorIs(t, b.StreamFile(5, "x.wav", 0), ErrInvalidChannel)
	assert.Error(t, b.StreamFile(0, filepath.Join(t.TempDir(), "missing.wav"), 0))
}

func TestButlerCacheHitOnSecondStream(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeRampWAV(t, path, 4096)

	b := New(48000, 2, DefaultConfig())
	b.Start()
	defer func() { _ = b.Shutdown() }()

	require.NoError(t, b.StreamFile(0, path, 0))
	require.NoError(t, b.StreamFile(1, path, 0))
	require.NoError(t, b.WaitForCompletion())

	snap := b.Metrics()
	assert.Equal(t, uint64(1), snap.CacheMisses)
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, 1, b.CacheStats().Entries)
}

func TestButlerSeekCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeRampWAV(t, path, 30000)

	b := New(48000, 1, DefaultConfig())
	b.Start()
	defer func() { _ = b.Shutdown() }()

	require.NoError(t, b.StreamFile(0, path, 0))
	require.NoError(t, b.Seek(0, 20000))
	require.NoError(t, b.WaitForCompletion())

	// Skim off the crossfade window, then playback must continue from the
	// seek target, never from stale pre-seek material.
	h := b.Channel(0)
	fade := DefaultConfig().SeekCrossfadeFrames
	for i := 0; i < fade; i++ {
		h.ReadFrame()
	}

	deadline := time.Now().Add(2 * time.Second)
	for h.Available() == 0 {
		require.True(t, time.Now().Before(deadline), "refill after seek timed out")
		time.Sleep(time.Millisecond)
	}
	l, _ := h.ReadFrame()
	assert.InDelta(t, testutil.RampValue(20000+fade), l, 1e-4)
}

func TestButlerVarispeedAndLoopCommands(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeRampWAV(t, path, 20000)

	b := New(48000, 1, DefaultConfig())
	b.Start()
	defer func() { _ = b.Shutdown() }()

	require.NoError(t, b.StreamFile(0, path, 0))
	require.NoError(t, b.SetVarispeed(0, false, 1.75))
	require.NoError(t, b.SetLoopRange(0, 1000, 9000, 256))
	require.NoError(t, b.WaitForCompletion())

	shared := b.Channel(0).State()
	require.NotNil(t, shared)
	assert.Equal(t, 1.75, shared.Speed())
	start, end, enabled := shared.Loop()
	require.True(t, enabled)
	assert.Equal(t, uint64(1000), start)
	assert.Equal(t, uint64(9000), end)

	require.NoError(t, b.ClearLoopRange(0))
	require.NoError(t, b.WaitForCompletion())
	_, _, enabled = shared.Loop()
	assert.False(t, enabled)
}

func TestButlerPauseResume(t *testing.T) {
	b := New(48000, 1, DefaultConfig())
	b.Start()
	defer func() { _ = b.Shutdown() }()

	require.NoError(t, b.Pause())
	require.NoError(t, b.WaitForCompletion(), "a paused butler still answers commands")
	require.NoError(t, b.Run())
	require.NoError(t, b.WaitForCompletion())
}

func TestButlerCaptureRoundTrip(t *testing.T) {
	out := filepath.Join(t.TempDir(), "capture.wav")

	b := New(48000, 1, DefaultConfig())
	b.Start()

	prod, cons := NewCaptureBuffer(GenerateCaptureID(), out, 48000, 2, 8192)
	require.NoError(t, b.RegisterCapture(cons))

	for i := 0; i < 2000; i++ {
		require.True(t, prod.WriteFrame(0.5, -0.5))
	}
	require.NoError(t, b.Flush(cons.ID()))
	require.NoError(t, b.WaitForCompletion())
	assert.Equal(t, uint64(2000), cons.Meta().FramesWritten())

	for i := 0; i < 100; i++ {
		prod.WriteFrame(0.1, -0.1)
	}
	require.NoError(t, b.Shutdown(), "shutdown finalizes captures")

	a, err := asset.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 2100, a.Frames())
	assert.InDelta(t, 0.5, float64(a.At(0, 0)), 1e-3)
	assert.InDelta(t, 0.1, float64(a.At(0, 2050)), 1e-3)
}

func TestButlerAppliesPDCCompensation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ramp.wav")
	writeRampWAV(t, path, 48000)

	m := pdc.NewManager(2, 0)
	b := New(48000, 2, DefaultConfig())
	b.AttachPDC(m)
	b.Start()
	defer func() { _ = b.Shutdown() }()

	require.NoError(t, b.StreamFile(0, path, 10000))
	require.NoError(t, b.WaitForCompletion())

	// Channel 1 goes 3000 frames slow, so channel 0 owes 3000 frames of
	// preroll; the butler realigns on its next cycle.
	_, err := m.SetChannelLatency(1, 3000)
	require.NoError(t, err)

	shared := b.Channel(0).State()
	require.NotNil(t, shared)
	deadline := time.Now().Add(2 * time.Second)
	for shared.Preroll() != 3000 {
		require.True(t, time.Now().Before(deadline), "realignment timed out")
		time.Sleep(time.Millisecond)
	}
}

func TestButlerShutdownStopsCommands(t *testing.T) {
	b := New(48000, 1, DefaultConfig())
	b.Start()
	require.NoError(t, b.Shutdown())
	assert.ErrorIs(t, b.Pause(), ErrNotRunning)
}
