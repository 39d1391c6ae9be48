package butler

import (
	"sync"

	"github.com/tphakala/go-audio-butler/asset"
)

// stream is the butler-owned side of one disk stream: the decoded source,
// the producer half of the ring, and refill bookkeeping. Only the butler
// goroutine touches a stream.
type stream struct {
	id     RegionID
	prod   *RegionProducer
	shared *SharedStreamState
	src    *asset.Asset
	handle *StreamHandle

	// compensation is the latency preroll currently applied, in frames.
	// Changing it triggers a realign.
	compensation uint64

	// fadeFrames is the crossfade length used at loop wraps and seeks.
	fadeFrames int

	// scratch is reused across refill cycles to avoid per-cycle allocation.
	scratch []float32
}

// fillLevel returns ring occupancy as a 0..1 fraction.
func (st *stream) fillLevel() float64 {
	capacity := st.prod.Capacity()
	occupied := capacity - st.prod.WriteSpace()
	return float64(occupied) / float64(capacity)
}

// occupied returns the number of buffered frames.
func (st *stream) occupied() int {
	return st.prod.Capacity() - st.prod.WriteSpace()
}

// playheadEstimate approximates the file frame the real-time side will play
// next: buffered frames sit between the producer's file position and the
// playhead.
func (st *stream) playheadEstimate() uint64 {
	pos := st.prod.Meta().FilePosition()
	occ := uint64(st.occupied())
	if st.shared.Reverse() {
		return pos + occ
	}
	if occ > pos {
		return 0
	}
	return pos - occ
}

// atEnd reports whether the producer has run out of source material in the
// current direction.
func (st *stream) atEnd() bool {
	if _, _, looping := st.shared.Loop(); looping {
		return false
	}
	pos := st.prod.Meta().FilePosition()
	if st.shared.Reverse() {
		return pos == 0
	}
	return pos >= st.prod.Meta().FileFrames()
}

// StreamHandle is the real-time side of one butler channel. ReadFrame is
// wait-free toward the butler: it uses TryLock and produces silence for the
// rare cycle where the butler is swapping the underlying stream.
//
// A handle stays valid for the life of the butler; StreamFile and
// StopStream swap what it reads from.
type StreamHandle struct {
	mu     sync.Mutex
	cons   *RegionConsumer
	shared *SharedStreamState
	chann  int
}

// Channel returns the butler channel index this handle reads.
func (h *StreamHandle) Channel() int { return h.chann }

// ReadFrame produces the next stereo frame. Never blocks: a starved or
// detached stream yields silence. Underruns are counted unless a seek is in
// flight, when an empty ring is expected.
func (h *StreamHandle) ReadFrame() (l, r float32) {
	if !h.mu.TryLock() {
		return 0, 0
	}
	defer h.mu.Unlock()

	shared := h.shared
	if shared == nil {
		return 0, 0
	}

	shared.NextSpeed()

	if fade := shared.ActiveFade(); fade != nil {
		return fade.Next()
	}

	if h.cons == nil {
		return 0, 0
	}
	l, r, ok := h.cons.ReadFrame()
	if !ok {
		if !shared.Seeking() {
			shared.RecordUnderrun()
		}
		return 0, 0
	}
	return l, r
}

// ReadInto fills dst with interleaved stereo frames, padding with silence
// on underrun. Returns the number of frames read from the ring before any
// padding. Never blocks.
func (h *StreamHandle) ReadInto(dst []float32) int {
	if !h.mu.TryLock() {
		zero(dst)
		return 0
	}
	defer h.mu.Unlock()

	if h.shared == nil || h.cons == nil {
		zero(dst)
		return 0
	}

	frames := len(dst) / 2
	read := 0
	for i := 0; i < frames; i++ {
		h.shared.NextSpeed()
		if fade := h.shared.ActiveFade(); fade != nil {
			dst[i*2], dst[i*2+1] = fade.Next()
			continue
		}
		l, r, ok := h.cons.ReadFrame()
		if !ok {
			if !h.shared.Seeking() {
				h.shared.RecordUnderrun()
			}
			dst[i*2], dst[i*2+1] = 0, 0
			continue
		}
		dst[i*2], dst[i*2+1] = l, r
		read++
	}
	return read
}

// Available returns the number of buffered frames, zero when detached.
func (h *StreamHandle) Available() int {
	if !h.mu.TryLock() {
		return 0
	}
	defer h.mu.Unlock()
	if h.cons == nil {
		return 0
	}
	return h.cons.Available()
}

// LoopStatus reports where the playhead sits relative to the end of the
// playable material: the loop end when looping, the file end otherwise.
// A detached handle reports LoopAtEnd.
func (h *StreamHandle) LoopStatus() LoopStatus {
	if !h.mu.TryLock() {
		return LoopNormal
	}
	defer h.mu.Unlock()
	if h.cons == nil || h.shared == nil {
		return LoopAtEnd
	}
	return classifyLoopStatus(h.cons.Meta(), h.cons.Available(), h.shared)
}

// State returns the shared stream state, nil when no stream is attached.
func (h *StreamHandle) State() *SharedStreamState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.shared
}

// attach swaps in a new stream. Butler side; takes the full lock.
func (h *StreamHandle) attach(cons *RegionConsumer, shared *SharedStreamState) {
	h.mu.Lock()
	h.cons = cons
	h.shared = shared
	h.mu.Unlock()
}

// detach drops the current stream.
func (h *StreamHandle) detach() {
	h.mu.Lock()
	h.cons = nil
	h.shared = nil
	h.mu.Unlock()
}

func zero(s []float32) {
	for i := range s {
		s[i] = 0
	}
}
