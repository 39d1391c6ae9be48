package butler

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, DefaultBufferSeconds, cfg.BufferSeconds)
	assert.Equal(t, DefaultChunkFrames, cfg.ChunkFrames)
	assert.Equal(t, DefaultFlushThreshold, cfg.FlushThreshold)
	assert.Equal(t, DefaultSeekCrossfadeFrames, cfg.SeekCrossfadeFrames)
	assert.True(t, cfg.ParallelIO)
	assert.Greater(t, cfg.CommandQueueDepth, 0)
}

func TestWithBufferSeconds(t *testing.T) {
	cfg := WithBufferSeconds(5)
	assert.Equal(t, 5.0, cfg.BufferSeconds)

	cfg = WithBufferSeconds(0.1)
	assert.Equal(t, 1.0, cfg.BufferSeconds, "buffer seconds has a floor")
}

func TestBufferFrames(t *testing.T) {
	cfg := WithBufferSeconds(2)
	assert.Equal(t, 96000, cfg.BufferFrames(48000))

	// Tiny configurations are floored so the ring is never degenerate.
	cfg = WithBufferSeconds(1)
	assert.Equal(t, 4096, cfg.BufferFrames(100))
}

func TestBufferSecondsForSize(t *testing.T) {
	assert.Equal(t, 12.5, bufferSecondsForSize(10<<20, 12.5),
		"small files buffer their whole length")
	assert.Equal(t, 30.0, bufferSecondsForSize(10<<20, 300.0))
	assert.Equal(t, 10.0, bufferSecondsForSize(100<<20, 600.0))
	assert.Equal(t, 5.0, bufferSecondsForSize(300<<20, 1800.0))
	assert.Equal(t, 3.0, bufferSecondsForSize(1<<30, 3600.0))
}
