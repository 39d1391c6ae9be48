// Package butler provides lock-free disk streaming for real-time audio in pure Go.
//
// The butler is a background goroutine that moves sampled audio between
// storage and a real-time audio callback without ever blocking, allocating,
// or locking on the real-time path. It connects the two worlds with
// single-producer/single-consumer ring buffers of interleaved stereo frames,
// keeps decoded audio files in a bounded LRU cache, and sizes each disk read
// adaptively ("varifill") from buffer urgency, recent disk throughput, and
// playback speed.
//
// # Architecture
//
// Two execution contexts share state:
//
//   - The real-time callback pops frames from region buffers and pushes
//     captured audio into capture buffers. It never blocks: an empty buffer
//     yields silence, a full one truncates the write.
//   - The butler goroutine owns everything else: it drains commands, refills
//     region buffers from the asset cache or disk, drains capture buffers to
//     WAV files, and reacts to latency-compensation changes with seek
//     crossfades.
//
// Cross-thread state is either an SPSC ring buffer or a read-copy-update
// snapshot published through an atomic pointer; nothing on the real-time
// side takes a blocking lock.
//
// # Quick Start
//
//	b := butler.New(48000, 16, butler.DefaultConfig())
//	b.Start()
//	defer b.Shutdown()
//
//	handle := b.Channel(0)
//	b.StreamFile(0, "drums.wav", 0)
//
//	// In the audio callback:
//	l, r := handle.ReadFrame()
//
// # Latency compensation
//
// The pdc subpackage computes, per signal path, how much delay must be
// inserted so that parallel paths merging at a point arrive simultaneously.
// Attach a pdc.Manager with AttachPDC and the butler shifts each channel's
// read position whenever its compensation changes, splicing the edit with a
// short crossfade so the jump is inaudible.
package butler
