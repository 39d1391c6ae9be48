package butler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoopWrapCrossfade(t *testing.T) {
	st, _ := newTestStream(t, 100000, 8192)
	st.fadeFrames = 16
	st.shared.SetLoop(100, 200)
	st.prod.Meta().SetFilePosition(180)

	produced := st.fillForward(60)
	require.Equal(t, 60, produced)

	// Frames before the wrap are untouched.
	assert.Equal(t, float32(180), st.scratch[0])
	assert.Equal(t, float32(199), st.scratch[19*2])

	// The seam starts as pure continuation material and blends toward the
	// loop start over fadeFrames frames.
	wrap := 20
	assert.Equal(t, float32(200), st.scratch[wrap*2], "fade begins on the continuation")

	mid := wrap + 8
	wantMid := float32(208)*(1-0.5) + float32(108)*0.5
	assert.InDelta(t, wantMid, st.scratch[mid*2], 1e-3)

	// Past the fade the loop material plays clean.
	after := wrap + 16
	assert.Equal(t, float32(100+16), st.scratch[after*2])
}

func TestLoopWrapFadeShortensAtChunkEnd(t *testing.T) {
	st, _ := newTestStream(t, 100000, 8192)
	st.fadeFrames = 64
	st.shared.SetLoop(100, 200)
	st.prod.Meta().SetFilePosition(195)

	// Only 10 frames render after the wrap; the fade shrinks to fit.
	produced := st.fillForward(15)
	require.Equal(t, 15, produced)
	assert.Equal(t, float32(200), st.scratch[5*2])
}

func TestLoopStatusLooping(t *testing.T) {
	st, cons := newTestStream(t, 100000, 8192)
	st.shared.SetLoop(0, 50000)

	st.prod.Meta().SetFilePosition(10000)
	produced := st.fillForward(100)
	st.prod.Write(st.scratch[:produced*2])
	drainFrames(t, cons, produced)

	assert.Equal(t, LoopNormal, st.loopStatus())

	st.prod.Meta().SetFilePosition(49000)
	assert.Equal(t, LoopApproachingEnd, st.loopStatus())

	// A looping stream never reports the end.
	st.prod.Meta().SetFilePosition(50000)
	assert.NotEqual(t, LoopAtEnd, st.loopStatus())
}

func TestLoopStatusFileEnd(t *testing.T) {
	st, cons := newTestStream(t, 10000, 8192)

	assert.Equal(t, LoopNormal, st.loopStatus())

	st.prod.Meta().SetFilePosition(9000)
	assert.Equal(t, LoopApproachingEnd, st.loopStatus())

	st.prod.Meta().SetFilePosition(10000)
	assert.Equal(t, LoopAtEnd, st.loopStatus())

	// Buffered frames still pending hold off the end state.
	st.prod.Meta().SetFilePosition(9999)
	n := st.fillForward(1)
	st.prod.Write(st.scratch[:n*2])
	assert.Equal(t, LoopApproachingEnd, st.loopStatus())
	drainFrames(t, cons, 1)
	assert.Equal(t, LoopAtEnd, st.loopStatus())
}

func TestHandleLoopStatus(t *testing.T) {
	st, cons := newTestStream(t, 10000, 8192)
	h := &StreamHandle{}
	h.attach(cons, st.shared)

	assert.Equal(t, LoopNormal, h.LoopStatus())

	st.prod.Meta().SetFilePosition(9500)
	assert.Equal(t, LoopApproachingEnd, h.LoopStatus())

	st.prod.Meta().SetFilePosition(10000)
	assert.Equal(t, LoopAtEnd, h.LoopStatus())
}

func TestLoopStatusString(t *testing.T) {
	assert.Equal(t, "normal", LoopNormal.String())
	assert.Equal(t, "approaching-end", LoopApproachingEnd.String())
	assert.Equal(t, "at-end", LoopAtEnd.String())
}

func drainFrames(t *testing.T, cons *RegionConsumer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, _, ok := cons.ReadFrame()
		require.True(t, ok)
	}
}
