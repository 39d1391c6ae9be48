package butler

import "sync/atomic"

// spscRing is a lock-free single-producer/single-consumer ring buffer of
// interleaved stereo frames.
//
// Two monotonically increasing atomic frame counters and a power-of-2 sized
// buffer with bitwise masking; no mutexes, no CAS loops. The producer stores
// writePos after copying frame data, the consumer stores readPos after
// copying it out, so each side always observes fully written frames.
//
// Thread assignment is enforced by the producer/consumer split types: only
// one RegionProducer and one RegionConsumer (or capture equivalents) ever
// exist per ring.
type spscRing struct {
	// Positions live on separate cache lines to avoid false sharing
	// between the producer and consumer cores.
	writePos atomic.Uint64
	_        [56]byte
	readPos  atomic.Uint64
	_        [56]byte

	buf  []float32 // 2*capacity values, interleaved L/R
	mask uint64    // capacity-1, capacity is a power of two
}

func newSPSCRing(minFrames int) *spscRing {
	if minFrames < minBufferFrames {
		minFrames = minBufferFrames
	}
	capFrames := 1
	for capFrames < minFrames {
		capFrames <<= 1
	}
	return &spscRing{
		buf:  make([]float32, 2*capFrames),
		mask: uint64(capFrames - 1),
	}
}

func (r *spscRing) capacity() int {
	return int(r.mask + 1)
}

// occupied returns the number of buffered frames.
func (r *spscRing) occupied() int {
	return int(r.writePos.Load() - r.readPos.Load())
}

// vacant returns the number of writable frames.
func (r *spscRing) vacant() int {
	return r.capacity() - r.occupied()
}

// write copies interleaved frames into the ring, truncating when full.
// Returns the number of frames accepted. Producer side only.
func (r *spscRing) write(frames []float32) int {
	w := r.writePos.Load()
	rd := r.readPos.Load()

	free := uint64(r.capacity()) - (w - rd)
	n := uint64(len(frames) / 2)
	if n > free {
		n = free
	}
	if n == 0 {
		return 0
	}

	pos := (w & r.mask) * 2
	first := uint64(len(r.buf)) - pos
	want := n * 2
	if first >= want {
		copy(r.buf[pos:pos+want], frames[:want])
	} else {
		copy(r.buf[pos:], frames[:first])
		copy(r.buf[:want-first], frames[first:want])
	}

	r.writePos.Store(w + n)
	return int(n)
}

// readFrame pops one frame. Consumer side only.
// ok is false on underrun; the caller substitutes silence.
func (r *spscRing) readFrame() (l, rr float32, ok bool) {
	rd := r.readPos.Load()
	w := r.writePos.Load()
	if w == rd {
		return 0, 0, false
	}
	pos := (rd & r.mask) * 2
	l, rr = r.buf[pos], r.buf[pos+1]
	r.readPos.Store(rd + 1)
	return l, rr, true
}

// readInto pops up to len(dst)/2 frames into dst. Consumer side only.
// Returns the number of frames read.
func (r *spscRing) readInto(dst []float32) int {
	rd := r.readPos.Load()
	w := r.writePos.Load()

	avail := w - rd
	n := uint64(len(dst) / 2)
	if n > avail {
		n = avail
	}
	if n == 0 {
		return 0
	}

	pos := (rd & r.mask) * 2
	first := uint64(len(r.buf)) - pos
	want := n * 2
	if first >= want {
		copy(dst[:want], r.buf[pos:pos+want])
	} else {
		copy(dst[:first], r.buf[pos:])
		copy(dst[first:want], r.buf[:want-first])
	}

	r.readPos.Store(rd + n)
	return int(n)
}

// clear drops all buffered frames without reading them. Consumer side only.
// The paired producer observes full write space immediately afterwards.
func (r *spscRing) clear() int {
	rd := r.readPos.Load()
	w := r.writePos.Load()
	r.readPos.Store(w)
	return int(w - rd)
}

// RegionMeta is the shared metadata of a region buffer pair.
type RegionMeta struct {
	path       string
	fileFrames uint64
	sampleRate float64
	channels   int
	filePos    atomic.Uint64
}

// FilePosition returns the producer's current file read position in frames.
func (m *RegionMeta) FilePosition() uint64 {
	return m.filePos.Load()
}

// SetFilePosition moves the producer's file read position.
func (m *RegionMeta) SetFilePosition(pos uint64) {
	m.filePos.Store(pos)
}

// Path returns the backing file path.
func (m *RegionMeta) Path() string { return m.path }

// FileFrames returns the backing file length in frames.
func (m *RegionMeta) FileFrames() uint64 { return m.fileFrames }

// SampleRate returns the backing file sample rate.
func (m *RegionMeta) SampleRate() float64 { return m.sampleRate }

// Channels returns the backing file channel count.
func (m *RegionMeta) Channels() int { return m.channels }

// RegionProducer is the butler-owned half of a region buffer. Exactly one
// producer exists per buffer; all methods must be called from the goroutine
// that owns it.
type RegionProducer struct {
	ring *spscRing
	meta *RegionMeta
	id   RegionID
}

// ID returns the region identifier.
func (p *RegionProducer) ID() RegionID { return p.id }

// Meta returns the shared region metadata.
func (p *RegionProducer) Meta() *RegionMeta { return p.meta }

// WriteSpace returns the number of frames the ring can accept.
func (p *RegionProducer) WriteSpace() int { return p.ring.vacant() }

// Capacity returns the ring capacity in frames.
func (p *RegionProducer) Capacity() int { return p.ring.capacity() }

// Write pushes interleaved frames, truncating when the ring fills.
// Returns the number of frames accepted; the caller retries next cycle.
func (p *RegionProducer) Write(frames []float32) int {
	return p.ring.write(frames)
}

// RegionConsumer is the real-time half of a region buffer. Exactly one
// consumer exists per buffer; all methods must be called from the real-time
// context that owns it. No method blocks or allocates.
type RegionConsumer struct {
	ring *spscRing
	meta *RegionMeta
	id   RegionID
}

// ID returns the region identifier.
func (c *RegionConsumer) ID() RegionID { return c.id }

// Meta returns the shared region metadata.
func (c *RegionConsumer) Meta() *RegionMeta { return c.meta }

// Available returns the number of buffered frames.
func (c *RegionConsumer) Available() int { return c.ring.occupied() }

// NeedsRefill reports whether occupancy has dropped below threshold.
func (c *RegionConsumer) NeedsRefill(threshold int) bool {
	return c.ring.occupied() < threshold
}

// ReadPosition returns the total number of frames consumed so far.
func (c *RegionConsumer) ReadPosition() uint64 { return c.ring.readPos.Load() }

// ReadFrame pops one frame. ok is false on underrun — not an error, the
// caller substitutes silence.
func (c *RegionConsumer) ReadFrame() (l, r float32, ok bool) {
	return c.ring.readFrame()
}

// ReadInto pops up to len(dst)/2 frames into dst, returning the frame count.
func (c *RegionConsumer) ReadInto(dst []float32) int {
	return c.ring.readInto(dst)
}

// Clear drops all buffered frames without processing them, counting them as
// consumed. Used before a seek; far cheaper than draining one by one.
func (c *RegionConsumer) Clear() int {
	return c.ring.clear()
}

// NewRegionBuffer creates a region buffer pair. Capacity is rounded up to a
// power of two with a 4096-frame floor.
func NewRegionBuffer(id RegionID, path string, fileFrames uint64, sampleRate float64, channels, capacity int) (*RegionProducer, *RegionConsumer) {
	ring := newSPSCRing(capacity)
	meta := &RegionMeta{
		path:       path,
		fileFrames: fileFrames,
		sampleRate: sampleRate,
		channels:   channels,
	}
	return &RegionProducer{ring: ring, meta: meta, id: id},
		&RegionConsumer{ring: ring, meta: meta, id: id}
}

// CaptureMeta is the shared metadata of a capture buffer pair. It tracks
// frames captured (pushed by the real-time side) against frames written
// (flushed to disk by the butler) for flush accounting.
type CaptureMeta struct {
	path           string
	sampleRate     float64
	channels       int
	framesWritten  atomic.Uint64
	framesCaptured atomic.Uint64
}

// Path returns the capture output path.
func (m *CaptureMeta) Path() string { return m.path }

// SampleRate returns the capture sample rate.
func (m *CaptureMeta) SampleRate() float64 { return m.sampleRate }

// Channels returns the capture channel count.
func (m *CaptureMeta) Channels() int { return m.channels }

// FramesWritten returns the number of frames flushed to disk.
func (m *CaptureMeta) FramesWritten() uint64 { return m.framesWritten.Load() }

// FramesCaptured returns the number of frames pushed by the capture source.
func (m *CaptureMeta) FramesCaptured() uint64 { return m.framesCaptured.Load() }

// CaptureProducer is the real-time half of a capture buffer: the audio
// callback pushes captured frames into it. No method blocks or allocates.
type CaptureProducer struct {
	ring *spscRing
	meta *CaptureMeta
	id   CaptureID
}

// ID returns the capture identifier.
func (p *CaptureProducer) ID() CaptureID { return p.id }

// Meta returns the shared capture metadata.
func (p *CaptureProducer) Meta() *CaptureMeta { return p.meta }

// WriteSpace returns the number of frames the ring can accept.
func (p *CaptureProducer) WriteSpace() int { return p.ring.vacant() }

// NearlyFull reports whether write space has dropped below threshold.
func (p *CaptureProducer) NearlyFull(threshold int) bool {
	return p.ring.vacant() < threshold
}

// WriteFrame pushes one frame; returns false when the ring is full
// (the frame is dropped for this cycle, not an error).
func (p *CaptureProducer) WriteFrame(l, r float32) bool {
	var frame [2]float32
	frame[0], frame[1] = l, r
	if p.ring.write(frame[:]) == 0 {
		return false
	}
	p.meta.framesCaptured.Add(1)
	return true
}

// Write pushes interleaved frames, truncating when the ring fills.
func (p *CaptureProducer) Write(frames []float32) int {
	n := p.ring.write(frames)
	p.meta.framesCaptured.Add(uint64(n))
	return n
}

// CaptureConsumer is the butler-owned half of a capture buffer; the butler
// drains it to disk.
type CaptureConsumer struct {
	ring *spscRing
	meta *CaptureMeta
	id   CaptureID
}

// ID returns the capture identifier.
func (c *CaptureConsumer) ID() CaptureID { return c.id }

// Meta returns the shared capture metadata.
func (c *CaptureConsumer) Meta() *CaptureMeta { return c.meta }

// Available returns the number of buffered frames.
func (c *CaptureConsumer) Available() int { return c.ring.occupied() }

// NeedsFlush reports whether occupancy has reached threshold.
func (c *CaptureConsumer) NeedsFlush(threshold int) bool {
	return c.ring.occupied() >= threshold
}

// ReadInto pops up to len(dst)/2 frames into dst, returning the frame count.
func (c *CaptureConsumer) ReadInto(dst []float32) int {
	return c.ring.readInto(dst)
}

// AddFramesWritten records frames flushed to disk.
func (c *CaptureConsumer) AddFramesWritten(n uint64) {
	c.meta.framesWritten.Add(n)
}

// NewCaptureBuffer creates a capture buffer pair with an explicit capacity
// in frames (rounded up to a power of two, 4096-frame floor).
func NewCaptureBuffer(id CaptureID, path string, sampleRate float64, channels, capacity int) (*CaptureProducer, *CaptureConsumer) {
	ring := newSPSCRing(capacity)
	meta := &CaptureMeta{
		path:       path,
		sampleRate: sampleRate,
		channels:   channels,
	}
	return &CaptureProducer{ring: ring, meta: meta, id: id},
		&CaptureConsumer{ring: ring, meta: meta, id: id}
}

// NewCaptureBufferMillis creates a capture buffer pair sized for bufferMillis
// of audio at the given sample rate.
func NewCaptureBufferMillis(id CaptureID, path string, sampleRate float64, channels int, bufferMillis float64) (*CaptureProducer, *CaptureConsumer) {
	capacity := int(bufferMillis / 1000.0 * sampleRate)
	return NewCaptureBuffer(id, path, sampleRate, channels, capacity)
}
