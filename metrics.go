package butler

import (
	"sync"
	"sync/atomic"
	"time"
)

const throughputWindow = time.Second

// Metrics aggregates disk I/O statistics across the butler. All counters are
// atomic and safe to read from any goroutine; recording from the refill path
// never blocks.
type Metrics struct {
	bytesRead       atomic.Uint64
	bytesWritten    atomic.Uint64
	readOps         atomic.Uint64
	writeOps        atomic.Uint64
	cacheHits       atomic.Uint64
	cacheMisses     atomic.Uint64
	lowBufferEvents atomic.Uint64

	throughput throughputTracker
}

// MetricsSnapshot is a point-in-time copy of the butler's I/O statistics.
type MetricsSnapshot struct {
	BytesRead       uint64
	BytesWritten    uint64
	ReadOps         uint64
	WriteOps        uint64
	CacheHits       uint64
	CacheMisses     uint64
	LowBufferEvents uint64
	// ReadThroughput is the disk read rate in bytes/second over the last
	// second, or zero when no reads landed in the window.
	ReadThroughput float64
}

// CacheHitRate returns hits/(hits+misses), or 1.0 when no lookups occurred.
func (s MetricsSnapshot) CacheHitRate() float64 {
	total := s.CacheHits + s.CacheMisses
	if total == 0 {
		return 1.0
	}
	return float64(s.CacheHits) / float64(total)
}

// AvgReadSize returns the mean bytes per read operation, zero when no reads.
func (s MetricsSnapshot) AvgReadSize() float64 {
	if s.ReadOps == 0 {
		return 0
	}
	return float64(s.BytesRead) / float64(s.ReadOps)
}

// AvgWriteSize returns the mean bytes per write operation, zero when no writes.
func (s MetricsSnapshot) AvgWriteSize() float64 {
	if s.WriteOps == 0 {
		return 0
	}
	return float64(s.BytesWritten) / float64(s.WriteOps)
}

// RecordRead accounts one disk read of n bytes.
func (m *Metrics) RecordRead(n uint64) {
	m.bytesRead.Add(n)
	m.readOps.Add(1)
	m.throughput.record(n)
}

// RecordWrite accounts one disk write of n bytes.
func (m *Metrics) RecordWrite(n uint64) {
	m.bytesWritten.Add(n)
	m.writeOps.Add(1)
}

// RecordCacheHit accounts an asset cache hit.
func (m *Metrics) RecordCacheHit() { m.cacheHits.Add(1) }

// RecordCacheMiss accounts an asset cache miss.
func (m *Metrics) RecordCacheMiss() { m.cacheMisses.Add(1) }

// RecordLowBuffer accounts a stream observed below the low-buffer watermark.
func (m *Metrics) RecordLowBuffer() { m.lowBufferEvents.Add(1) }

// LowBufferEvents returns the running low-buffer event count.
func (m *Metrics) LowBufferEvents() uint64 { return m.lowBufferEvents.Load() }

// ReadThroughput returns the current read rate in bytes/second.
func (m *Metrics) ReadThroughput() float64 { return m.throughput.rate() }

// Snapshot copies all counters. The fields are read independently, so the
// snapshot is only approximately consistent under concurrent recording.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		BytesRead:       m.bytesRead.Load(),
		BytesWritten:    m.bytesWritten.Load(),
		ReadOps:         m.readOps.Load(),
		WriteOps:        m.writeOps.Load(),
		CacheHits:       m.cacheHits.Load(),
		CacheMisses:     m.cacheMisses.Load(),
		LowBufferEvents: m.lowBufferEvents.Load(),
		ReadThroughput:  m.throughput.rate(),
	}
}

// throughputTracker computes a bytes/second rate over a one-second sliding
// window. record uses TryLock so a contended refill worker skips the sample
// instead of blocking; the rate degrades gracefully under contention.
type throughputTracker struct {
	mu      sync.Mutex
	samples []throughputSample
}

type throughputSample struct {
	at    time.Time
	bytes uint64
}

func (t *throughputTracker) record(n uint64) {
	if !t.mu.TryLock() {
		return
	}
	defer t.mu.Unlock()
	now := time.Now()
	t.prune(now)
	t.samples = append(t.samples, throughputSample{at: now, bytes: n})
}

func (t *throughputTracker) rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prune(time.Now())
	var total uint64
	for _, s := range t.samples {
		total += s.bytes
	}
	return float64(total) / throughputWindow.Seconds()
}

// prune drops samples older than the window. Caller holds mu.
func (t *throughputTracker) prune(now time.Time) {
	cutoff := now.Add(-throughputWindow)
	i := 0
	for i < len(t.samples) && t.samples[i].at.Before(cutoff) {
		i++
	}
	if i > 0 {
		t.samples = t.samples[:copy(t.samples, t.samples[i:])]
	}
}
