package butler

// seekStream repositions a stream to newPos in file frames. The buffered
// material is dropped, a crossfade is published bridging what was about to
// play into what plays at the new position, and the producer resumes past
// the fade window so nothing is heard twice.
//
// The seeking flag is raised across the transition so the real-time side
// does not count the momentarily empty ring as an underrun.
func (b *Butler) seekStream(st *stream, newPos uint64) {
	shared := st.shared
	shared.SetSeeking(true)

	var fade *Crossfade
	if st.fadeFrames > 0 {
		out := st.captureTail(st.fadeFrames)
		in := st.captureAt(newPos, st.fadeFrames)
		fade = NewCrossfade(out, in)
	}

	// Dropping buffered frames races with the real-time reader, so take
	// the handle lock; the reader falls back to silence for that instant.
	if st.handle != nil {
		st.handle.mu.Lock()
		if st.handle.cons != nil {
			st.handle.cons.Clear()
		}
		st.handle.mu.Unlock()
	}

	resume := newPos
	if fade != nil {
		// The fade buffers cover the first frames at the new position.
		n := uint64(fade.Frames())
		if shared.Reverse() {
			if n > resume {
				resume = 0
			} else {
				resume -= n
			}
		} else {
			resume += n
		}
	}
	st.prod.Meta().SetFilePosition(resume)

	shared.PublishSeekFade(fade)
	shared.SetSeeking(false)
}

// realignStream moves a stream's playhead to absorb a change in latency
// preroll. A larger compensation means the stream must play earlier
// material, so the position steps back by the delta; a smaller one steps
// forward. The jump itself is smoothed by the seek crossfade.
func (b *Butler) realignStream(st *stream, compensation uint64) {
	old := st.compensation
	if compensation == old {
		return
	}
	st.compensation = compensation
	st.shared.SetPreroll(compensation)

	playhead := st.playheadEstimate()
	var newPos uint64
	if compensation > old {
		delta := compensation - old
		if delta > playhead {
			newPos = 0
		} else {
			newPos = playhead - delta
		}
	} else {
		newPos = playhead + (old - compensation)
	}

	b.seekStream(st, newPos)
}
