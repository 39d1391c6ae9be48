package asset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromInterleaved(t *testing.T) {
	data := []float32{1, -1, 2, -2, 3, -3}
	a := FromInterleaved(data, 2, 48000)

	require.Equal(t, 2, a.Channels())
	require.Equal(t, 3, a.Frames())
	assert.Equal(t, 48000.0, a.SampleRate())

	assert.Equal(t, float32(1), a.At(0, 0))
	assert.Equal(t, float32(-1), a.At(1, 0))
	assert.Equal(t, float32(3), a.At(0, 2))
	assert.Equal(t, float32(-3), a.At(1, 2))
}

func TestFromPlanarUnequalChannels(t *testing.T) {
	a := FromPlanar([][]float32{
		{1, 2, 3, 4},
		{5, 6, 7},
	}, 44100)
	assert.Equal(t, 3, a.Frames(), "frame count is the shortest channel")
}

func TestAtOutOfRangeIsSilence(t *testing.T) {
	a := FromInterleaved([]float32{1, 2}, 2, 48000)

	assert.Equal(t, float32(0), a.At(0, -1))
	assert.Equal(t, float32(0), a.At(0, 1))
	assert.Equal(t, float32(0), a.At(2, 0))
	assert.Equal(t, float32(0), a.At(-1, 0))
}

func TestSizeBytes(t *testing.T) {
	a := FromInterleaved(make([]float32, 2000), 2, 48000)
	assert.Equal(t, uint64(8000), a.SizeBytes())
}

func TestReadStereo(t *testing.T) {
	a := FromInterleaved([]float32{1, 10, 2, 20, 3, 30, 4, 40}, 2, 48000)

	dst := make([]float32, 6)
	n := a.ReadStereo(dst, 1)
	require.Equal(t, 3, n)
	assert.Equal(t, []float32{2, 20, 3, 30, 4, 40}, dst)
}

func TestReadStereoPastEnd(t *testing.T) {
	a := FromInterleaved([]float32{1, 10, 2, 20}, 2, 48000)

	dst := make([]float32, 8)
	a.ReadStereo(dst, 1)
	assert.Equal(t, []float32{2, 20, 0, 0, 0, 0, 0, 0}, dst,
		"reads past the end are silence")
}

func TestReadStereoMonoDuplication(t *testing.T) {
	a := FromInterleaved([]float32{1, 2, 3}, 1, 48000)

	dst := make([]float32, 6)
	a.ReadStereo(dst, 0)
	assert.Equal(t, []float32{1, 1, 2, 2, 3, 3}, dst)
}

func TestReadStereoReverse(t *testing.T) {
	a := FromInterleaved([]float32{1, 10, 2, 20, 3, 30}, 2, 48000)

	dst := make([]float32, 6)
	a.ReadStereoReverse(dst, 2)
	assert.Equal(t, []float32{3, 30, 2, 20, 1, 10}, dst)

	// Walking past frame zero reads silence.
	a.ReadStereoReverse(dst, 1)
	assert.Equal(t, []float32{2, 20, 1, 10, 0, 0}, dst)
}
