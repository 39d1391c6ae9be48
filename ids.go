package butler

import "sync/atomic"

// RegionID uniquely identifies a streamed region and its buffer pair.
// IDs are process-wide, monotonically increasing, and never reused.
type RegionID uint64

// CaptureID uniquely identifies a capture session and its buffer pair.
type CaptureID uint64

var (
	regionCounter  atomic.Uint64
	captureCounter atomic.Uint64
)

// GenerateRegionID returns the next unique region identifier.
func GenerateRegionID() RegionID {
	return RegionID(regionCounter.Add(1))
}

// GenerateCaptureID returns the next unique capture identifier.
func GenerateCaptureID() CaptureID {
	return CaptureID(captureCounter.Add(1))
}
