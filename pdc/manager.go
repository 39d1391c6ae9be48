// Package pdc implements plugin delay compensation: measuring per-path
// processing latency in a signal graph and computing the delays that bring
// parallel paths back into phase.
package pdc

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// DefaultLatencyCeiling is the largest latency a node may report, 10
// seconds at 48 kHz. Anything above it is a misconfiguration: silently
// clamping would desynchronize channels with no outward sign, so it fails
// loudly instead.
const DefaultLatencyCeiling = 10 * 48000

// ErrExcessiveLatency is returned when a reported latency exceeds the
// configured ceiling.
var ErrExcessiveLatency = errors.New("pdc: reported latency exceeds ceiling")

// State is an immutable snapshot of the compensation table. For every
// channel and return, Compensation[i] = MaxLatency - Latency[i], and
// MaxLatency is the maximum over all entries.
type State struct {
	ChannelLatencies     []uint64
	ReturnLatencies      []uint64
	ChannelCompensations []uint64
	ReturnCompensations  []uint64
	MaxLatency           uint64
}

// Manager aggregates per-channel and per-return-bus latencies into a single
// compensation table. Updates clone the current state, mutate the clone and
// publish it with one pointer swap, so readers on any thread always see a
// complete table and never block the writer.
type Manager struct {
	mu      sync.Mutex
	state   atomic.Pointer[State]
	enabled atomic.Bool
	ceiling uint64
}

// NewManager creates a manager for numChannels channels and numReturns
// return buses, all at zero latency, with compensation enabled.
func NewManager(numChannels, numReturns int) *Manager {
	m := &Manager{ceiling: DefaultLatencyCeiling}
	m.state.Store(&State{
		ChannelLatencies:     make([]uint64, numChannels),
		ReturnLatencies:      make([]uint64, numReturns),
		ChannelCompensations: make([]uint64, numChannels),
		ReturnCompensations:  make([]uint64, numReturns),
	})
	m.enabled.Store(true)
	return m
}

// SetLatencyCeiling overrides the ceiling above which reported latencies
// are rejected.
func (m *Manager) SetLatencyCeiling(frames uint64) {
	m.mu.Lock()
	m.ceiling = frames
	m.mu.Unlock()
}

// SetEnabled toggles compensation. A disabled manager still tracks
// latencies; consumers are expected to skip realignment while disabled.
func (m *Manager) SetEnabled(enabled bool) { m.enabled.Store(enabled) }

// Enabled reports whether compensation is active.
func (m *Manager) Enabled() bool { return m.enabled.Load() }

// State returns the current snapshot. The returned value is shared and must
// be treated as read-only.
func (m *Manager) State() *State { return m.state.Load() }

// SetChannelLatency reports a channel's processing latency in frames and
// returns the channel's new compensation.
func (m *Manager) SetChannelLatency(channel int, latency uint64) (uint64, error) {
	return m.setLatency(channel, latency, false)
}

// SetReturnLatency reports a return bus's processing latency in frames and
// returns the bus's new compensation.
func (m *Manager) SetReturnLatency(ret int, latency uint64) (uint64, error) {
	return m.setLatency(ret, latency, true)
}

func (m *Manager) setLatency(index int, latency uint64, isReturn bool) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if latency > m.ceiling {
		return 0, fmt.Errorf("%w: %d > %d frames", ErrExcessiveLatency, latency, m.ceiling)
	}

	next := m.state.Load().clone()
	target := next.ChannelLatencies
	if isReturn {
		target = next.ReturnLatencies
	}
	if index < 0 || index >= len(target) {
		return 0, fmt.Errorf("pdc: index %d out of range [0, %d)", index, len(target))
	}
	target[index] = latency

	next.recalculate()
	m.state.Store(next)

	if isReturn {
		return next.ReturnCompensations[index], nil
	}
	return next.ChannelCompensations[index], nil
}

func (s *State) clone() *State {
	next := &State{
		ChannelLatencies:     make([]uint64, len(s.ChannelLatencies)),
		ReturnLatencies:      make([]uint64, len(s.ReturnLatencies)),
		ChannelCompensations: make([]uint64, len(s.ChannelCompensations)),
		ReturnCompensations:  make([]uint64, len(s.ReturnCompensations)),
	}
	copy(next.ChannelLatencies, s.ChannelLatencies)
	copy(next.ReturnLatencies, s.ReturnLatencies)
	copy(next.ChannelCompensations, s.ChannelCompensations)
	copy(next.ReturnCompensations, s.ReturnCompensations)
	return next
}

// recalculate derives MaxLatency and all compensations from the latencies.
func (s *State) recalculate() {
	s.MaxLatency = 0
	for _, l := range s.ChannelLatencies {
		if l > s.MaxLatency {
			s.MaxLatency = l
		}
	}
	for _, l := range s.ReturnLatencies {
		if l > s.MaxLatency {
			s.MaxLatency = l
		}
	}
	for i, l := range s.ChannelLatencies {
		s.ChannelCompensations[i] = s.MaxLatency - l
	}
	for i, l := range s.ReturnLatencies {
		s.ReturnCompensations[i] = s.MaxLatency - l
	}
}
