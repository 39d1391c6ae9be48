package butler

// LoopStatus describes where a stream sits relative to the end of its
// playable material: the loop end when looping, the file end otherwise.
type LoopStatus int

const (
	// LoopNormal means the playhead is comfortably inside the region.
	LoopNormal LoopStatus = iota
	// LoopApproachingEnd means the playhead is within the approach window
	// of the region end.
	LoopApproachingEnd
	// LoopAtEnd means the playable material is exhausted. Looping streams
	// never report this; they wrap instead.
	LoopAtEnd
)

// loopApproachWindow is how many frames before the region end a stream
// reports LoopApproachingEnd.
const loopApproachWindow = 4096

func (s LoopStatus) String() string {
	switch s {
	case LoopNormal:
		return "normal"
	case LoopApproachingEnd:
		return "approaching-end"
	case LoopAtEnd:
		return "at-end"
	default:
		return "unknown"
	}
}

// loopStatus classifies the playhead against the current region end.
func (st *stream) loopStatus() LoopStatus {
	return classifyLoopStatus(st.prod.Meta(), st.occupied(), st.shared)
}

// classifyLoopStatus derives the loop status from the metadata and ring
// occupancy both buffer halves can see. Reads only atomics, so either side
// may call it.
func classifyLoopStatus(meta *RegionMeta, occupied int, shared *SharedStreamState) LoopStatus {
	pos := meta.FilePosition()
	occ := uint64(occupied)
	var playhead uint64
	switch {
	case shared.Reverse():
		playhead = pos + occ
	case occ > pos:
		playhead = 0
	default:
		playhead = pos - occ
	}

	if _, end, looping := shared.Loop(); looping {
		if !shared.Reverse() && playhead+loopApproachWindow >= end {
			return LoopApproachingEnd
		}
		return LoopNormal
	}

	if shared.Reverse() {
		if playhead == 0 && occupied == 0 {
			return LoopAtEnd
		}
		if playhead < loopApproachWindow {
			return LoopApproachingEnd
		}
		return LoopNormal
	}

	end := meta.FileFrames()
	if playhead >= end && occupied == 0 {
		return LoopAtEnd
	}
	if playhead+loopApproachWindow >= end {
		return LoopApproachingEnd
	}
	return LoopNormal
}

// applyWrapFades blends the first fadeFrames frames after each loop wrap in
// scratch against the material that would have continued past the loop end,
// removing the click at the seam. Wraps too close to the rendered end get a
// shortened fade.
func (st *stream) applyWrapFades(wraps []int, produced int, loopEnd uint64) {
	if st.fadeFrames <= 0 {
		return
	}
	for _, w := range wraps {
		n := st.fadeFrames
		if w+n > produced {
			n = produced - w
		}
		for i := 0; i < n; i++ {
			t := float32(i) / float32(n)
			cont := int(loopEnd) + i
			outL := st.src.At(0, cont)
			outR := st.src.At(1, cont)
			if st.src.Channels() == 1 {
				outR = outL
			}
			j := (w + i) * 2
			st.scratch[j] = outL*(1-t) + st.scratch[j]*t
			st.scratch[j+1] = outR*(1-t) + st.scratch[j+1]*t
		}
	}
}
