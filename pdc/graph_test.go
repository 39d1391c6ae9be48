package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func latencies(m map[int64]uint64) LatencyProvider {
	return LatencyFunc(func(id int64) uint64 { return m[id] })
}

func TestAnalyzeDiamond(t *testing.T) {
	// A feeds B and C in parallel; both merge at D. B is 100 frames slow,
	// C is instant, so C's path into D must be delayed by 100.
	const A, B, C, D = 1, 2, 3, 4
	g := NewGraph()
	g.ConnectInput(B, NodeSource(A))
	g.ConnectInput(C, NodeSource(A))
	g.ConnectInput(D, NodeSource(B))
	g.ConnectInput(D, NodeSource(C))
	g.ConnectOutput(NodeSource(D))

	a := g.Analyze(latencies(map[int64]uint64{B: 100}))

	require.Len(t, a.Inputs, 1)
	assert.Equal(t, InputCompensation{Node: D, Port: 1, Frames: 100}, a.Inputs[0])
	assert.Empty(t, a.Outputs)
	assert.Equal(t, uint64(100), a.TotalLatency)
}

func TestAnalyzeAllZeroFastPath(t *testing.T) {
	g := NewGraph()
	g.ConnectInput(2, NodeSource(1))
	g.ConnectInput(3, NodeSource(1))
	g.ConnectInput(4, NodeSource(2))
	g.ConnectInput(4, NodeSource(3))
	g.ConnectOutput(NodeSource(4))

	a := g.Analyze(latencies(nil))
	assert.True(t, a.Empty())
}

func TestAnalyzeChain(t *testing.T) {
	// A straight chain accumulates latency but needs no compensation.
	g := NewGraph()
	g.ConnectInput(2, NodeSource(1))
	g.ConnectInput(3, NodeSource(2))
	g.ConnectOutput(NodeSource(3))

	a := g.Analyze(latencies(map[int64]uint64{1: 10, 2: 20, 3: 30}))
	assert.Empty(t, a.Inputs)
	assert.Equal(t, uint64(60), a.TotalLatency)
}

func TestAnalyzeGlobalInputNeverCompensated(t *testing.T) {
	// A merge of a slow node path and the live input: the live input is
	// never delayed even though it arrives first.
	const slow, merge = 1, 2
	g := NewGraph()
	g.ConnectInput(merge, NodeSource(slow))
	g.ConnectInput(merge, PortSource{Kind: SourceGlobalInput})
	g.ConnectInput(merge, PortSource{Kind: SourceSilent})
	g.ConnectOutput(NodeSource(merge))

	a := g.Analyze(latencies(map[int64]uint64{slow: 64}))
	assert.Empty(t, a.Inputs)
	assert.Equal(t, uint64(64), a.TotalLatency)
}

func TestAnalyzeOutputChannels(t *testing.T) {
	// Two independent paths to two output channels: the faster channel is
	// delayed to match the slower one.
	g := NewGraph()
	g.AddNode(1)
	g.AddNode(2)
	g.ConnectOutput(NodeSource(1))
	g.ConnectOutput(NodeSource(2))

	a := g.Analyze(latencies(map[int64]uint64{1: 500, 2: 200}))

	require.Len(t, a.Outputs, 1)
	assert.Equal(t, OutputCompensation{Channel: 1, Frames: 300}, a.Outputs[0])
	assert.Equal(t, uint64(500), a.TotalLatency)
}

func TestAnalyzeSingleOutputNoOutputCompensation(t *testing.T) {
	g := NewGraph()
	g.AddNode(1)
	g.ConnectOutput(NodeSource(1))

	a := g.Analyze(latencies(map[int64]uint64{1: 128}))
	assert.Empty(t, a.Outputs, "a lone output channel has nothing to align against")
	assert.Equal(t, uint64(128), a.TotalLatency)
}

func TestAnalyzeUnevenFanIn(t *testing.T) {
	// Three paths of different depth merge; each shortfall is made up
	// exactly.
	const A, B, C, M = 1, 2, 3, 4
	g := NewGraph()
	g.ConnectInput(B, NodeSource(A))
	g.ConnectInput(M, NodeSource(A)) // arrival 0 + 40
	g.ConnectInput(M, NodeSource(B)) // arrival 40 + 25
	g.ConnectInput(M, NodeSource(C)) // arrival 0 + 5
	g.ConnectOutput(NodeSource(M))

	a := g.Analyze(latencies(map[int64]uint64{A: 40, B: 25, C: 5}))

	require.Len(t, a.Inputs, 2)
	comps := map[int]uint64{}
	for _, in := range a.Inputs {
		require.Equal(t, int64(M), in.Node)
		comps[in.Port] = in.Frames
	}
	assert.Equal(t, uint64(25), comps[0], "the path through A alone is 25 behind")
	assert.Equal(t, uint64(60), comps[2], "the path through C is 60 behind")
	assert.Equal(t, uint64(65), a.TotalLatency)
}

func TestAnalyzeCycleDoesNotHang(t *testing.T) {
	// A feedback edge is invalid input, but analysis must still terminate
	// and produce something for the acyclic part.
	g := NewGraph()
	g.ConnectInput(2, NodeSource(1))
	g.ConnectInput(1, NodeSource(2))
	g.ConnectInput(3, NodeSource(2))
	g.ConnectOutput(NodeSource(3))

	a := g.Analyze(latencies(map[int64]uint64{1: 10, 2: 10, 3: 10}))
	assert.NotNil(t, a)
}
