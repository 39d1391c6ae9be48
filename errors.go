package butler

import "errors"

var (
	// ErrNotRunning is returned by commands issued before Start or after Stop.
	ErrNotRunning = errors.New("butler: not running")

	// ErrInvalidChannel is returned for a channel index outside the range
	// the butler was created with.
	ErrInvalidChannel = errors.New("butler: invalid channel index")

	// ErrQueueFull is returned when the command queue is saturated.
	// The caller may retry; the butler drains the queue every cycle.
	ErrQueueFull = errors.New("butler: command queue full")
)
