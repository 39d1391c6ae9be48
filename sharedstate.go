package butler

import (
	"math"
	"sync/atomic"
)

const (
	// MinSpeed and MaxSpeed bound the playback speed multiplier.
	MinSpeed = 0.25
	MaxSpeed = 4.0

	// fillLevelScale stores the 0..1 fill level as an integer in 0..1000.
	fillLevelScale = 1000
)

// atomicFloat64 stores a float64 in a uint64 cell.
type atomicFloat64 struct {
	bits atomic.Uint64
}

func (a *atomicFloat64) Load() float64 {
	return math.Float64frombits(a.bits.Load())
}

func (a *atomicFloat64) Store(v float64) {
	a.bits.Store(math.Float64bits(v))
}

// Crossfade holds a pair of captured interleaved stereo buffers blended
// during a discontinuity: fading out the material that was playing, fading
// in the material at the new position. The consuming side owns pos; nobody
// else touches a Crossfade once published.
type Crossfade struct {
	out []float32
	in  []float32
	pos int
}

// NewCrossfade builds a crossfade over the shorter of the two buffers.
// Returns nil when either side is empty; a one-sided fade would click.
func NewCrossfade(out, in []float32) *Crossfade {
	if len(out) == 0 || len(in) == 0 {
		return nil
	}
	n := len(out)
	if len(in) < n {
		n = len(in)
	}
	n &^= 1 // whole frames
	if n == 0 {
		return nil
	}
	return &Crossfade{out: out[:n], in: in[:n]}
}

// Frames returns the crossfade length in frames.
func (c *Crossfade) Frames() int { return len(c.out) / 2 }

// Done reports whether all frames have been consumed.
func (c *Crossfade) Done() bool { return c.pos >= c.Frames() }

// Next produces the next blended frame and advances. The blend is linear:
// at progress t the output is out*(1-t) + in*t.
func (c *Crossfade) Next() (l, r float32) {
	frames := c.Frames()
	if c.pos >= frames {
		return c.out[len(c.out)-2], c.out[len(c.out)-1]
	}
	t := float32(c.pos) / float32(frames)
	i := c.pos * 2
	l = c.out[i]*(1-t) + c.in[i]*t
	r = c.out[i+1]*(1-t) + c.in[i+1]*t
	c.pos++
	return l, r
}

// SharedStreamState carries the per-stream parameters both sides touch: the
// butler writes playback intent (speed, direction, loop region) and reads
// health (fill level, underruns), the real-time side does the reverse. All
// fields are atomics; no method blocks.
type SharedStreamState struct {
	targetSpeed   atomicFloat64
	currentSpeed  atomicFloat64
	rampRemaining atomic.Uint32
	rampFrames    uint32

	reverse   atomic.Bool
	seeking   atomic.Bool
	underruns atomic.Uint64
	fillLevel atomic.Uint32
	srcRatio  atomicFloat64

	loopEnabled atomic.Bool
	loopStart   atomic.Uint64
	loopEnd     atomic.Uint64

	preroll atomic.Uint64

	seekFade atomic.Pointer[Crossfade]
	loopFade atomic.Pointer[Crossfade]
}

// NewSharedStreamState creates stream state at unit speed, forward playback,
// with speed changes ramped over rampFrames frames.
func NewSharedStreamState(rampFrames int) *SharedStreamState {
	if rampFrames < 1 {
		rampFrames = 1
	}
	s := &SharedStreamState{rampFrames: uint32(rampFrames)}
	s.targetSpeed.Store(1.0)
	s.currentSpeed.Store(1.0)
	s.srcRatio.Store(1.0)
	return s
}

// SetSpeed requests a new playback speed, clamped to [MinSpeed, MaxSpeed].
// The real-time side ramps toward it to avoid pitch zipper artifacts.
func (s *SharedStreamState) SetSpeed(speed float64) {
	if speed < MinSpeed {
		speed = MinSpeed
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	s.targetSpeed.Store(speed)
	s.rampRemaining.Store(s.rampFrames)
}

// SetSpeedWithRamp requests a new playback speed ramped over rampFrames
// frames instead of the configured default. A rampFrames of zero applies the
// speed on the next frame.
func (s *SharedStreamState) SetSpeedWithRamp(speed float64, rampFrames int) {
	if speed < MinSpeed {
		speed = MinSpeed
	}
	if speed > MaxSpeed {
		speed = MaxSpeed
	}
	if rampFrames < 0 {
		rampFrames = 0
	}
	s.targetSpeed.Store(speed)
	s.rampRemaining.Store(uint32(rampFrames))
}

// Speed returns the requested (target) speed.
func (s *SharedStreamState) Speed() float64 { return s.targetSpeed.Load() }

// CurrentSpeed returns the ramped speed the real-time side is playing at.
func (s *SharedStreamState) CurrentSpeed() float64 { return s.currentSpeed.Load() }

// NextSpeed advances the speed ramp by one frame and returns the speed to
// apply. Real-time side only.
func (s *SharedStreamState) NextSpeed() float64 {
	tgt := s.targetSpeed.Load()
	rem := s.rampRemaining.Load()
	if rem == 0 {
		s.currentSpeed.Store(tgt)
		return tgt
	}
	cur := s.currentSpeed.Load()
	cur += (tgt - cur) / float64(rem)
	s.currentSpeed.Store(cur)
	s.rampRemaining.Store(rem - 1)
	return cur
}

// SetReverse sets the playback direction.
func (s *SharedStreamState) SetReverse(reverse bool) { s.reverse.Store(reverse) }

// Reverse reports whether playback runs backwards.
func (s *SharedStreamState) Reverse() bool { return s.reverse.Load() }

// SetSeeking marks the stream as mid-reposition. While set, the real-time
// side treats an empty buffer as expected rather than an underrun.
func (s *SharedStreamState) SetSeeking(seeking bool) { s.seeking.Store(seeking) }

// Seeking reports whether a reposition is in flight.
func (s *SharedStreamState) Seeking() bool { return s.seeking.Load() }

// RecordUnderrun counts one starved read. Real-time side only.
func (s *SharedStreamState) RecordUnderrun() { s.underruns.Add(1) }

// Underruns returns the total starved reads.
func (s *SharedStreamState) Underruns() uint64 { return s.underruns.Load() }

// TakeUnderruns returns the starved read count and resets it, so periodic
// health polls see only new underruns.
func (s *SharedStreamState) TakeUnderruns() uint64 { return s.underruns.Swap(0) }

// SetFillLevel publishes buffer occupancy as a 0..1 fraction.
func (s *SharedStreamState) SetFillLevel(f float64) {
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	s.fillLevel.Store(uint32(f * fillLevelScale))
}

// FillLevel returns the last published buffer occupancy as a 0..1 fraction.
func (s *SharedStreamState) FillLevel() float64 {
	return float64(s.fillLevel.Load()) / fillLevelScale
}

// SetSRCRatio publishes the sample rate conversion ratio between the file
// and the engine, used when sizing refills. Non-positive values reset to 1.
func (s *SharedStreamState) SetSRCRatio(ratio float64) {
	if ratio <= 0 {
		ratio = 1.0
	}
	s.srcRatio.Store(ratio)
}

// SRCRatio returns the published sample rate conversion ratio.
func (s *SharedStreamState) SRCRatio() float64 { return s.srcRatio.Load() }

// SetPreroll publishes the latency compensation preroll currently applied
// to the stream, in frames.
func (s *SharedStreamState) SetPreroll(frames uint64) { s.preroll.Store(frames) }

// Preroll returns the active latency compensation preroll in frames.
func (s *SharedStreamState) Preroll() uint64 { return s.preroll.Load() }

// SetLoop enables looping over [start, end) in file frames. end <= start
// disables the loop.
func (s *SharedStreamState) SetLoop(start, end uint64) {
	if end <= start {
		s.ClearLoop()
		return
	}
	s.loopStart.Store(start)
	s.loopEnd.Store(end)
	s.loopEnabled.Store(true)
}

// ClearLoop disables looping.
func (s *SharedStreamState) ClearLoop() {
	s.loopEnabled.Store(false)
}

// Loop returns the loop region; enabled is false when not looping.
func (s *SharedStreamState) Loop() (start, end uint64, enabled bool) {
	if !s.loopEnabled.Load() {
		return 0, 0, false
	}
	return s.loopStart.Load(), s.loopEnd.Load(), true
}

// PublishSeekFade installs a seek crossfade, replacing any active one.
func (s *SharedStreamState) PublishSeekFade(f *Crossfade) {
	s.seekFade.Store(f)
}

// PublishLoopFade installs a loop wrap crossfade, replacing any active one.
func (s *SharedStreamState) PublishLoopFade(f *Crossfade) {
	s.loopFade.Store(f)
}

// ActiveFade returns the crossfade the real-time side should be playing, or
// nil. Seek fades take precedence over loop fades; a finished fade is
// retired on the way out. Real-time side only.
func (s *SharedStreamState) ActiveFade() *Crossfade {
	if f := s.seekFade.Load(); f != nil {
		if !f.Done() {
			return f
		}
		s.seekFade.CompareAndSwap(f, nil)
	}
	if f := s.loopFade.Load(); f != nil {
		if !f.Done() {
			return f
		}
		s.loopFade.CompareAndSwap(f, nil)
	}
	return nil
}
