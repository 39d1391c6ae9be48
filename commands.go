package butler

import "github.com/tphakala/go-audio-butler/asset"

type commandKind int

const (
	cmdRun commandKind = iota
	cmdPause
	cmdWait
	cmdStream
	cmdStopStream
	cmdSeek
	cmdSetLoop
	cmdClearLoop
	cmdSetVarispeed
	cmdUpdatePreroll
	cmdRegisterCapture
	cmdRemoveCapture
	cmdFlush
	cmdFlushAll
	cmdSetBufferMargin
	cmdShutdown
)

// command is one unit of work for the butler goroutine. Fields are a union;
// each kind reads only its own.
type command struct {
	kind    commandKind
	channel int

	src    *asset.Asset
	path   string
	offset uint64

	position   uint64
	loopStart  uint64
	loopEnd    uint64
	fadeFrames int

	reverse bool
	speed   float64
	preroll uint64

	captureID CaptureID
	sink      *captureSink

	margin float64

	// done is closed once the command has been applied. Only cmdWait and
	// cmdShutdown carry one.
	done chan struct{}
}

// enqueue hands a command to the butler goroutine without blocking.
func (b *Butler) enqueue(cmd command) error {
	if !b.running.Load() {
		return ErrNotRunning
	}
	select {
	case b.cmds <- cmd:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run resumes a paused butler.
func (b *Butler) Run() error {
	return b.enqueue(command{kind: cmdRun})
}

// Pause suspends refills and capture flushes. Commands keep draining, so a
// paused butler still answers Resume and Shutdown promptly.
func (b *Butler) Pause() error {
	return b.enqueue(command{kind: cmdPause})
}

// WaitForCompletion blocks until every command issued before it has been
// applied.
func (b *Butler) WaitForCompletion() error {
	done := make(chan struct{})
	if err := b.enqueue(command{kind: cmdWait, done: done}); err != nil {
		return err
	}
	<-done
	return nil
}

// StreamFile starts streaming the audio file at path on the given channel,
// beginning at offset frames into the file. The file is decoded through the
// asset cache before the command is issued, so decode errors surface here
// rather than inside the butler loop. Any stream already on the channel is
// replaced.
func (b *Butler) StreamFile(channel int, path string, offset uint64) error {
	if channel < 0 || channel >= len(b.handles) {
		return ErrInvalidChannel
	}
	src, err := b.fetchAsset(path)
	if err != nil {
		return err
	}
	return b.enqueue(command{
		kind:    cmdStream,
		channel: channel,
		src:     src,
		path:    path,
		offset:  offset,
	})
}

// StopStream detaches and drops the stream on the given channel.
func (b *Butler) StopStream(channel int) error {
	return b.enqueue(command{kind: cmdStopStream, channel: channel})
}

// Seek moves the channel's playhead to position, in file frames, with a
// crossfade over the jump.
func (b *Butler) Seek(channel int, position uint64) error {
	return b.enqueue(command{kind: cmdSeek, channel: channel, position: position})
}

// SetLoopRange loops the channel over [start, end) file frames, blending
// each wrap over fadeFrames frames.
func (b *Butler) SetLoopRange(channel int, start, end uint64, fadeFrames int) error {
	return b.enqueue(command{
		kind:       cmdSetLoop,
		channel:    channel,
		loopStart:  start,
		loopEnd:    end,
		fadeFrames: fadeFrames,
	})
}

// ClearLoopRange disables looping on the channel.
func (b *Butler) ClearLoopRange(channel int) error {
	return b.enqueue(command{kind: cmdClearLoop, channel: channel})
}

// SetVarispeed sets playback direction and speed for the channel. Speed is
// clamped to [MinSpeed, MaxSpeed] and ramped on the real-time side; a
// direction change reseeks so buffered frames in the old direction are not
// played.
func (b *Butler) SetVarispeed(channel int, reverse bool, speed float64) error {
	return b.enqueue(command{
		kind:    cmdSetVarispeed,
		channel: channel,
		reverse: reverse,
		speed:   speed,
	})
}

// UpdatePreroll sets the channel's latency compensation preroll in frames.
// The stream realigns on the next cycle.
func (b *Butler) UpdatePreroll(channel int, preroll uint64) error {
	return b.enqueue(command{kind: cmdUpdatePreroll, channel: channel, preroll: preroll})
}

// RegisterCapture attaches the consumer half of a capture buffer; the
// butler drains it to the WAV file named in its metadata. The output file
// is created here so creation errors surface to the caller.
func (b *Butler) RegisterCapture(cons *CaptureConsumer) error {
	sink, err := newCaptureSink(cons)
	if err != nil {
		return err
	}
	if err := b.enqueue(command{kind: cmdRegisterCapture, captureID: cons.ID(), sink: sink}); err != nil {
		_ = sink.close(nil)
		return err
	}
	return nil
}

// RemoveCapture flushes, finalizes and drops the capture.
func (b *Butler) RemoveCapture(id CaptureID) error {
	return b.enqueue(command{kind: cmdRemoveCapture, captureID: id})
}

// Flush forces the capture's buffered frames to disk.
func (b *Butler) Flush(id CaptureID) error {
	return b.enqueue(command{kind: cmdFlush, captureID: id})
}

// FlushAll forces every capture's buffered frames to disk.
func (b *Butler) FlushAll() error {
	return b.enqueue(command{kind: cmdFlushAll})
}

// SetBufferMargin widens or narrows the refill safety margin. Values are
// clamped to [0.5, 3.0]; margins above 1.0 keep buffers fuller to absorb
// jitter from external sync sources.
func (b *Butler) SetBufferMargin(margin float64) error {
	return b.enqueue(command{kind: cmdSetBufferMargin, margin: margin})
}

// Shutdown stops the butler goroutine, finalizing all capture files on the
// way out. Blocks until the loop has exited.
func (b *Butler) Shutdown() error {
	done := make(chan struct{})
	if err := b.enqueue(command{kind: cmdShutdown, done: done}); err != nil {
		return err
	}
	<-done
	return nil
}
