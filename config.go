package butler

// Default configuration values.
const (
	// DefaultBufferSeconds is the nominal ring buffer length in seconds.
	DefaultBufferSeconds = 10.0

	// DefaultChunkFrames is the base refill read size in frames (16K aligned).
	DefaultChunkFrames = 16384

	// DefaultFlushThreshold is the capture buffer fill, in frames, that
	// triggers a drain to disk.
	DefaultFlushThreshold = 8192

	// DefaultCacheMaxEntries bounds the asset cache entry count.
	DefaultCacheMaxEntries = 64

	// DefaultCacheMaxBytes bounds the asset cache size (1 GiB).
	DefaultCacheMaxBytes = 1024 * 1024 * 1024

	// DefaultSeekCrossfadeFrames is the seek splice length (~12 ms @ 44.1kHz).
	DefaultSeekCrossfadeFrames = 512

	// DefaultSpeedRampFrames is the varispeed ramp length (~23 ms @ 44.1kHz).
	DefaultSpeedRampFrames = 1024

	// minBufferFrames is the floor for any ring buffer capacity.
	minBufferFrames = 4096
)

// Config controls buffer sizing, cache bounds, and crossfade lengths.
type Config struct {
	// BufferSeconds is the nominal ring buffer length in seconds.
	BufferSeconds float64

	// ChunkFrames is the base refill read size in frames; varifill scales
	// it between 0.25x and 4x.
	ChunkFrames int

	// FlushThreshold is the capture buffer occupancy, in frames, above
	// which buffered capture audio is drained to disk.
	FlushThreshold int

	// CacheMaxEntries bounds the number of decoded assets kept in cache.
	CacheMaxEntries int

	// CacheMaxBytes bounds the total decoded bytes kept in cache.
	CacheMaxBytes uint64

	// SeekCrossfadeFrames is the length of the fade-out/fade-in splice
	// scheduled around a seek or compensation change.
	SeekCrossfadeFrames int

	// SpeedRampFrames is the default varispeed ramp length.
	SpeedRampFrames int

	// ParallelIO refills streams concurrently when three or more channels
	// need work in the same cycle.
	ParallelIO bool

	// CommandQueueDepth is the capacity of the command channel.
	CommandQueueDepth int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BufferSeconds:       DefaultBufferSeconds,
		ChunkFrames:         DefaultChunkFrames,
		FlushThreshold:      DefaultFlushThreshold,
		CacheMaxEntries:     DefaultCacheMaxEntries,
		CacheMaxBytes:       DefaultCacheMaxBytes,
		SeekCrossfadeFrames: DefaultSeekCrossfadeFrames,
		SpeedRampFrames:     DefaultSpeedRampFrames,
		ParallelIO:          true,
		CommandQueueDepth:   256,
	}
}

// WithBufferSeconds returns the default configuration with a custom ring
// buffer length. Values below one second are raised to one second.
func WithBufferSeconds(seconds float64) Config {
	cfg := DefaultConfig()
	if seconds < 1.0 {
		seconds = 1.0
	}
	cfg.BufferSeconds = seconds
	return cfg
}

// BufferFrames converts the configured buffer length to frames at the given
// sample rate, with a 4096-frame floor.
func (c Config) BufferFrames(sampleRate float64) int {
	frames := int(c.BufferSeconds * sampleRate)
	if frames < minBufferFrames {
		frames = minBufferFrames
	}
	return frames
}
