package butler

// captureTail records the next n frames the real-time side would have
// played, starting at the playhead estimate and walking in the playback
// direction. Positions beyond the file are padded with the edge sample, so
// a fade-out near the end holds steady instead of snapping to silence.
func (st *stream) captureTail(n int) []float32 {
	frames := int(st.prod.Meta().FileFrames())
	if frames == 0 || n <= 0 {
		return nil
	}

	start := int(st.playheadEstimate())
	step := 1
	if st.shared.Reverse() {
		step = -1
	}

	buf := make([]float32, n*2)
	for i := 0; i < n; i++ {
		pos := start + i*step
		if pos < 0 {
			pos = 0
		}
		if pos >= frames {
			pos = frames - 1
		}
		buf[i*2] = st.src.At(0, pos)
		if st.src.Channels() >= 2 {
			buf[i*2+1] = st.src.At(1, pos)
		} else {
			buf[i*2+1] = buf[i*2]
		}
	}
	return buf
}

// captureAt records up to n frames starting at pos in the playback
// direction, truncated at the file edge. Returns nil when nothing is
// playable there.
func (st *stream) captureAt(pos uint64, n int) []float32 {
	frames := st.prod.Meta().FileFrames()
	if frames == 0 || n <= 0 {
		return nil
	}

	if st.shared.Reverse() {
		if pos > frames {
			pos = frames
		}
		if uint64(n) > pos {
			n = int(pos)
		}
		if n == 0 {
			return nil
		}
		buf := make([]float32, n*2)
		st.src.ReadStereoReverse(buf, int(pos)-1)
		return buf
	}

	if pos >= frames {
		return nil
	}
	if uint64(n) > frames-pos {
		n = int(frames - pos)
	}
	buf := make([]float32, n*2)
	st.src.ReadStereo(buf, int(pos))
	return buf
}

const (
	smallFileBytes  = 50 << 20
	mediumFileBytes = 200 << 20
	largeFileBytes  = 500 << 20

	smallFileBufferSeconds  = 30.0
	mediumFileBufferSeconds = 10.0
	largeFileBufferSeconds  = 5.0
	hugeFileBufferSeconds   = 3.0
)

// bufferSecondsForSize picks a ring size in seconds from the decoded file
// size. Small files can afford generous buffers; huge files would waste
// memory on one, and their streams get refilled more aggressively instead.
func bufferSecondsForSize(sizeBytes uint64, fileSeconds float64) float64 {
	switch {
	case sizeBytes < smallFileBytes:
		if fileSeconds < smallFileBufferSeconds {
			return fileSeconds
		}
		return smallFileBufferSeconds
	case sizeBytes < mediumFileBytes:
		return mediumFileBufferSeconds
	case sizeBytes < largeFileBytes:
		return largeFileBufferSeconds
	default:
		return hugeFileBufferSeconds
	}
}
