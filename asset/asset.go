// Package asset provides in-memory decoded audio assets, a bounded LRU
// cache over them, and loaders for the supported file formats.
package asset

// Asset is an immutable, fully decoded audio file held in memory as planar
// float32 channels. Assets are shared between cache entries and any number
// of readers; none of the accessors mutate state, so an Asset is safe for
// concurrent use.
type Asset struct {
	channels   [][]float32
	frames     int
	sampleRate float64
}

// FromPlanar builds an asset from planar channel data. All channels must be
// the same length; extra samples beyond the shortest channel are ignored.
func FromPlanar(channels [][]float32, sampleRate float64) *Asset {
	frames := 0
	if len(channels) > 0 {
		frames = len(channels[0])
		for _, ch := range channels[1:] {
			if len(ch) < frames {
				frames = len(ch)
			}
		}
	}
	return &Asset{channels: channels, frames: frames, sampleRate: sampleRate}
}

// FromInterleaved builds an asset by deinterleaving sample data.
func FromInterleaved(data []float32, channels int, sampleRate float64) *Asset {
	if channels < 1 {
		channels = 1
	}
	frames := len(data) / channels
	planar := make([][]float32, channels)
	for ch := range planar {
		planar[ch] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		base := i * channels
		for ch := 0; ch < channels; ch++ {
			planar[ch][i] = data[base+ch]
		}
	}
	return &Asset{channels: planar, frames: frames, sampleRate: sampleRate}
}

// Channels returns the channel count.
func (a *Asset) Channels() int { return len(a.channels) }

// Frames returns the length in frames.
func (a *Asset) Frames() int { return a.frames }

// SampleRate returns the source sample rate in Hz.
func (a *Asset) SampleRate() float64 { return a.sampleRate }

// At returns the sample at the given channel and frame. Out-of-range frames
// read as silence, so callers can over-read past the end without bounds
// checks of their own.
func (a *Asset) At(channel, frame int) float32 {
	if channel < 0 || channel >= len(a.channels) {
		return 0
	}
	if frame < 0 || frame >= a.frames {
		return 0
	}
	return a.channels[channel][frame]
}

// Channel returns the raw sample data of one channel. The slice must be
// treated as read-only.
func (a *Asset) Channel(ch int) []float32 {
	if ch < 0 || ch >= len(a.channels) {
		return nil
	}
	return a.channels[ch]
}

// SizeBytes returns the in-memory footprint of the sample data.
func (a *Asset) SizeBytes() uint64 {
	var total uint64
	for _, ch := range a.channels {
		total += uint64(len(ch)) * 4
	}
	return total
}

// ReadStereo fills dst with interleaved stereo frames starting at the given
// frame. Mono sources are duplicated to both outputs, sources with more than
// two channels are truncated to the first two, and frames past the end read
// as silence. Returns the number of frames written, always len(dst)/2.
func (a *Asset) ReadStereo(dst []float32, start int) int {
	frames := len(dst) / 2
	left, right := 0, 1
	if len(a.channels) == 1 {
		right = 0
	}
	for i := 0; i < frames; i++ {
		dst[i*2] = a.At(left, start+i)
		dst[i*2+1] = a.At(right, start+i)
	}
	return frames
}

// ReadStereoReverse fills dst with interleaved stereo frames walking
// backwards from the given frame. dst[0] holds the frame at start, dst[1]
// the frame at start-1, and so on; positions before frame zero read as
// silence.
func (a *Asset) ReadStereoReverse(dst []float32, start int) int {
	frames := len(dst) / 2
	left, right := 0, 1
	if len(a.channels) == 1 {
		right = 0
	}
	for i := 0; i < frames; i++ {
		pos := start - i
		dst[i*2] = a.At(left, pos)
		dst[i*2+1] = a.At(right, pos)
	}
	return frames
}
