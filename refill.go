package butler

import (
	"math"

	"github.com/tphakala/simd/f32"
	"golang.org/x/sync/errgroup"
)

const (
	// refillSkipNumerator over the buffer margin gives the fill level above
	// which a stream is left alone this cycle.
	refillSkipNumerator = 0.75

	// lowBufferFill is the fill level below which a low-buffer event is
	// recorded.
	lowBufferFill = 0.10

	// minRefillFrames floors the adaptive chunk size.
	minRefillFrames = 1024

	// bandwidthRefBps is the disk throughput at which the bandwidth factor
	// is 1.0; 10 MB/s, a slow spinning disk.
	bandwidthRefBps = 10_000_000.0

	minBandwidthFactor = 0.5
	maxBandwidthFactor = 2.0
	minChunkMultiplier = 0.25
	maxChunkMultiplier = 4.0

	// parallelMinStreams is the stream count below which fan-out costs more
	// than it saves.
	parallelMinStreams = 3
)

// varifillFrames sizes one refill chunk. Emptier buffers, faster disks and
// faster playback all grow the chunk; the multiplier is clamped so a single
// stream can neither starve the others nor degenerate into tiny reads.
func varifillFrames(baseFrames int, fill, throughputBps, speed float64) int {
	urgency := 1.0 - fill

	bandwidth := 1.0
	if throughputBps > 0 {
		bandwidth = clamp(math.Sqrt(throughputBps/bandwidthRefBps),
			minBandwidthFactor, maxBandwidthFactor)
	}

	speedFactor := speed
	if speedFactor < 1.0 {
		speedFactor = 1.0
	}

	multiplier := clamp((0.5+1.5*urgency)*bandwidth*speedFactor,
		minChunkMultiplier, maxChunkMultiplier)

	frames := int(float64(baseFrames) * multiplier)
	if frames < minRefillFrames {
		frames = minRefillFrames
	}
	return frames
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// refillAll tops up every stream, fanning out across goroutines when enough
// streams are active to make parallel I/O worthwhile. Each stream is touched
// by exactly one worker, so per-stream scratch stays race-free.
func (b *Butler) refillAll() {
	if b.cfg.ParallelIO && len(b.streams) >= parallelMinStreams {
		var g errgroup.Group
		for _, st := range b.streams {
			st := st
			g.Go(func() error {
				b.refillStream(st)
				return nil
			})
		}
		_ = g.Wait()
		return
	}
	for _, st := range b.streams {
		b.refillStream(st)
	}
}

// refillStream tops up one stream's ring from its decoded source.
func (b *Butler) refillStream(st *stream) {
	fill := st.fillLevel()
	st.shared.SetFillLevel(fill)

	if fill >= refillSkipNumerator/b.bufferMargin {
		return
	}
	if fill < lowBufferFill && !st.atEnd() {
		b.metrics.RecordLowBuffer()
	}

	// Faster playback, sample rate conversion and a raised margin all make
	// the consumer drain faster, so they all scale the effective speed.
	speed := st.shared.Speed() * st.shared.SRCRatio() * b.bufferMargin

	chunk := varifillFrames(b.cfg.ChunkFrames, fill, b.metrics.ReadThroughput(), speed)
	if space := st.prod.WriteSpace(); chunk > space {
		chunk = space
	}
	if chunk == 0 {
		return
	}

	var produced int
	if st.shared.Reverse() {
		produced = st.fillReverse(chunk)
	} else {
		produced = st.fillForward(chunk)
	}
	if produced == 0 {
		return
	}

	st.prod.Write(st.scratch[:produced*2])
	b.metrics.RecordRead(uint64(produced) * 2 * 4)
}

// fillForward renders up to chunk frames of forward playback into scratch,
// starting at the producer's file position and wrapping inside the loop
// region when one is set. Returns the frame count rendered.
func (st *stream) fillForward(chunk int) int {
	st.ensureScratch(chunk)
	meta := st.prod.Meta()
	pos := meta.FilePosition()
	fileFrames := meta.FileFrames()
	loopStart, loopEnd, looping := st.shared.Loop()

	produced := 0
	var wraps []int
	for produced < chunk {
		if looping {
			// Map positions at or past the loop end back into the region.
			if pos >= loopEnd {
				pos = loopStart + (pos-loopStart)%(loopEnd-loopStart)
				wraps = append(wraps, produced)
			}
		} else if pos >= fileFrames {
			break
		}

		limit := fileFrames
		if looping && loopEnd < limit {
			limit = loopEnd
		}
		span := int(limit - pos)
		if span > chunk-produced {
			span = chunk - produced
		}
		if span <= 0 {
			break
		}

		st.renderSegment(produced, int(pos), span)
		pos += uint64(span)
		produced += span
	}

	if looping {
		st.applyWrapFades(wraps, produced, loopEnd)
	}
	meta.SetFilePosition(pos)
	return produced
}

// fillReverse renders up to chunk frames of backward playback into scratch.
// The ring carries frames in play order, so scratch[0] is the frame just
// below the file position. Wraps to the loop end when a loop is set.
func (st *stream) fillReverse(chunk int) int {
	st.ensureScratch(chunk)
	meta := st.prod.Meta()
	pos := meta.FilePosition()
	loopStart, loopEnd, looping := st.shared.Loop()

	produced := 0
	for produced < chunk {
		if looping && pos <= loopStart {
			pos = loopEnd
		}
		if pos == 0 {
			break
		}

		floor := uint64(0)
		if looping && loopStart < pos {
			floor = loopStart
		}
		span := int(pos - floor)
		if span > chunk-produced {
			span = chunk - produced
		}

		st.renderSegmentReverse(produced, int(pos)-1, span)
		pos -= uint64(span)
		produced += span
	}

	meta.SetFilePosition(pos)
	return produced
}

// renderSegment interleaves span source frames starting at srcPos into
// scratch at frame offset dstFrame. The caller guarantees the segment lies
// inside the file.
func (st *stream) renderSegment(dstFrame, srcPos, span int) {
	dst := st.scratch[dstFrame*2 : (dstFrame+span)*2]
	left := st.src.Channel(0)
	if left == nil || srcPos+span > len(left) {
		st.src.ReadStereo(dst, srcPos)
		return
	}
	right := left
	if st.src.Channels() >= 2 {
		right = st.src.Channel(1)
	}
	f32.Interleave2(dst, left[srcPos:srcPos+span], right[srcPos:srcPos+span])
}

func (st *stream) renderSegmentReverse(dstFrame, srcPos, span int) {
	dst := st.scratch[dstFrame*2 : (dstFrame+span)*2]
	st.src.ReadStereoReverse(dst, srcPos)
}

// ensureScratch grows the scratch buffer to hold frames stereo frames.
func (st *stream) ensureScratch(frames int) {
	if cap(st.scratch) < frames*2 {
		st.scratch = make([]float32, frames*2)
	}
	st.scratch = st.scratch[:frames*2]
}
