package butler

import (
	"sync/atomic"
	"time"

	"github.com/tphakala/go-audio-butler/asset"
	"github.com/tphakala/go-audio-butler/pdc"
)

const (
	// pausedPollInterval is how often a paused butler drains commands.
	pausedPollInterval = 10 * time.Millisecond

	// idlePollInterval is the loop period with nothing to stream or flush.
	idlePollInterval = time.Millisecond

	minBufferMargin = 0.5
	maxBufferMargin = 3.0
)

// Butler owns the background side of the streaming engine: it decodes files
// through the asset cache, keeps every channel's ring buffer topped up,
// realigns streams when latency compensation changes, and drains capture
// buffers to disk. One goroutine, started by Start, does all of it; the
// real-time side talks to the butler only through SPSC rings and atomic
// state.
type Butler struct {
	cfg        Config
	sampleRate float64
	metrics    *Metrics
	cache      *asset.Cache
	pdc        *pdc.Manager

	cmds    chan command
	running atomic.Bool
	handles []*StreamHandle

	// Butler goroutine only below.
	streams      map[int]*stream
	captures     map[CaptureID]*captureSink
	bufferMargin float64
	paused       bool
}

// New creates a butler for numChannels playback channels at the engine
// sample rate. Call Start before issuing commands.
func New(sampleRate float64, numChannels int, cfg Config) *Butler {
	if numChannels < 1 {
		numChannels = 1
	}
	handles := make([]*StreamHandle, numChannels)
	for i := range handles {
		handles[i] = &StreamHandle{chann: i}
	}
	return &Butler{
		cfg:          cfg,
		sampleRate:   sampleRate,
		metrics:      &Metrics{},
		cache:        asset.NewCache(cfg.CacheMaxEntries, cfg.CacheMaxBytes),
		cmds:         make(chan command, cfg.CommandQueueDepth),
		handles:      handles,
		streams:      make(map[int]*stream),
		captures:     make(map[CaptureID]*captureSink),
		bufferMargin: 1.0,
	}
}

// Start launches the butler goroutine. Starting a running butler is a no-op.
func (b *Butler) Start() {
	if b.running.Swap(true) {
		return
	}
	go b.run()
}

// Channel returns the real-time handle for a channel, nil if out of range.
// The handle stays valid for the life of the butler.
func (b *Butler) Channel(i int) *StreamHandle {
	if i < 0 || i >= len(b.handles) {
		return nil
	}
	return b.handles[i]
}

// NumChannels returns the configured channel count.
func (b *Butler) NumChannels() int { return len(b.handles) }

// AttachPDC wires a latency compensation manager. Each cycle the butler
// compares the published compensation table against every stream's preroll
// and realigns the ones that drifted. Attach before Start.
func (b *Butler) AttachPDC(m *pdc.Manager) { b.pdc = m }

// Metrics returns a snapshot of I/O statistics.
func (b *Butler) Metrics() MetricsSnapshot { return b.metrics.Snapshot() }

// CacheStats returns a snapshot of asset cache occupancy.
func (b *Butler) CacheStats() asset.CacheStats { return b.cache.Stats() }

// fetchAsset resolves a path through the cache, decoding and inserting on a
// miss. Decoded bytes count as disk reads for throughput tracking.
func (b *Butler) fetchAsset(path string) (*asset.Asset, error) {
	if a, ok := b.cache.Get(path); ok {
		b.metrics.RecordCacheHit()
		return a, nil
	}
	b.metrics.RecordCacheMiss()

	a, err := asset.Load(path)
	if err != nil {
		return nil, err
	}
	b.metrics.RecordRead(a.SizeBytes())
	b.cache.Put(path, a)
	return a, nil
}

// run is the butler loop: drain commands, then refill, realign and flush.
func (b *Butler) run() {
	for {
		if !b.drainCommands() {
			return
		}

		if b.paused {
			time.Sleep(pausedPollInterval)
			continue
		}
		if len(b.streams) == 0 && len(b.captures) == 0 {
			time.Sleep(idlePollInterval)
			continue
		}

		b.applyCompensations()
		b.refillAll()
		b.flushDueCaptures()

		time.Sleep(idlePollInterval)
	}
}

// drainCommands applies everything queued. Returns false on shutdown.
func (b *Butler) drainCommands() bool {
	for {
		select {
		case cmd := <-b.cmds:
			if cmd.kind == cmdShutdown {
				b.shutdown(cmd)
				return false
			}
			b.apply(cmd)
		default:
			return true
		}
	}
}

func (b *Butler) apply(cmd command) {
	switch cmd.kind {
	case cmdRun:
		b.paused = false
	case cmdPause:
		b.paused = true
	case cmdWait:
		close(cmd.done)
	case cmdStream:
		b.startStream(cmd)
	case cmdStopStream:
		b.stopStream(cmd.channel)
	case cmdSeek:
		if st, ok := b.streams[cmd.channel]; ok {
			b.seekStream(st, cmd.position)
		}
	case cmdSetLoop:
		if st, ok := b.streams[cmd.channel]; ok {
			st.shared.SetLoop(cmd.loopStart, cmd.loopEnd)
			if cmd.fadeFrames > 0 {
				st.fadeFrames = cmd.fadeFrames
			}
		}
	case cmdClearLoop:
		if st, ok := b.streams[cmd.channel]; ok {
			st.shared.ClearLoop()
		}
	case cmdSetVarispeed:
		if st, ok := b.streams[cmd.channel]; ok {
			if cmd.reverse != st.shared.Reverse() {
				// Buffered frames run the wrong way; reseek in place.
				playhead := st.playheadEstimate()
				st.shared.SetReverse(cmd.reverse)
				b.seekStream(st, playhead)
			}
			st.shared.SetSpeed(cmd.speed)
		}
	case cmdUpdatePreroll:
		if st, ok := b.streams[cmd.channel]; ok {
			b.realignStream(st, cmd.preroll)
		}
	case cmdRegisterCapture:
		b.captures[cmd.captureID] = cmd.sink
	case cmdRemoveCapture:
		if sink, ok := b.captures[cmd.captureID]; ok {
			_ = sink.close(b.metrics)
			delete(b.captures, cmd.captureID)
		}
	case cmdFlush:
		if sink, ok := b.captures[cmd.captureID]; ok {
			_, _ = sink.flush(b.metrics)
		}
	case cmdFlushAll:
		for _, sink := range b.captures {
			_, _ = sink.flush(b.metrics)
		}
	case cmdSetBufferMargin:
		b.bufferMargin = clamp(cmd.margin, minBufferMargin, maxBufferMargin)
	}
}

// startStream builds the ring pair and stream record for a channel and
// attaches the consumer to the channel's handle.
func (b *Butler) startStream(cmd command) {
	b.stopStream(cmd.channel)

	src := cmd.src
	fileFrames := uint64(src.Frames())

	fileSeconds := 0.0
	if src.SampleRate() > 0 {
		fileSeconds = float64(src.Frames()) / src.SampleRate()
	}
	seconds := bufferSecondsForSize(src.SizeBytes(), fileSeconds)
	if seconds > b.cfg.BufferSeconds {
		seconds = b.cfg.BufferSeconds
	}
	capacity := int(seconds * b.sampleRate)

	id := GenerateRegionID()
	prod, cons := NewRegionBuffer(id, cmd.path, fileFrames, src.SampleRate(), src.Channels(), capacity)
	offset := cmd.offset
	if offset > fileFrames {
		offset = fileFrames
	}
	prod.Meta().SetFilePosition(offset)

	shared := NewSharedStreamState(b.cfg.SpeedRampFrames)
	if b.sampleRate > 0 {
		shared.SetSRCRatio(src.SampleRate() / b.sampleRate)
	}

	handle := b.handles[cmd.channel]
	st := &stream{
		id:         id,
		prod:       prod,
		shared:     shared,
		src:        src,
		handle:     handle,
		fadeFrames: b.cfg.SeekCrossfadeFrames,
	}
	b.streams[cmd.channel] = st
	handle.attach(cons, shared)

	// Prime the ring so playback does not start on an underrun.
	b.refillStream(st)
}

func (b *Butler) stopStream(channel int) {
	if _, ok := b.streams[channel]; !ok {
		return
	}
	b.handles[channel].detach()
	delete(b.streams, channel)
}

// applyCompensations polls the compensation table and realigns any stream
// whose preroll has drifted from it.
func (b *Butler) applyCompensations() {
	if b.pdc == nil || !b.pdc.Enabled() {
		return
	}
	comps := b.pdc.State().ChannelCompensations
	for ch, st := range b.streams {
		if ch >= len(comps) {
			continue
		}
		if st.compensation != comps[ch] {
			b.realignStream(st, comps[ch])
		}
	}
}

// flushDueCaptures drains captures that crossed the flush threshold.
func (b *Butler) flushDueCaptures() {
	for _, sink := range b.captures {
		if sink.cons.NeedsFlush(b.cfg.FlushThreshold) {
			_, _ = sink.flush(b.metrics)
		}
	}
}

// shutdown finalizes captures and marks the butler stopped.
func (b *Butler) shutdown(cmd command) {
	for id, sink := range b.captures {
		_ = sink.close(b.metrics)
		delete(b.captures, id)
	}
	for ch := range b.streams {
		b.stopStream(ch)
	}
	b.running.Store(false)
	close(cmd.done)
}
