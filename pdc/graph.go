package pdc

import (
	"gonum.org/v1/gonum/graph/simple"
)

// SourceKind classifies where an input port's signal comes from.
type SourceKind int

const (
	// SourceNode is another processing node in the graph.
	SourceNode SourceKind = iota
	// SourceGlobalInput is the engine's live input; it carries no upstream
	// latency and never requires compensation.
	SourceGlobalInput
	// SourceSilent is a disconnected or zero source; never compensated.
	SourceSilent
)

// PortSource identifies the feed of one input port or output channel.
// Node is meaningful only for SourceNode.
type PortSource struct {
	Kind SourceKind
	Node int64
}

// NodeSource is shorthand for a port fed by another node.
func NodeSource(id int64) PortSource { return PortSource{Kind: SourceNode, Node: id} }

// LatencyProvider reports a node's processing latency in frames. Analyze
// queries each node exactly once per run.
type LatencyProvider interface {
	NodeLatency(id int64) uint64
}

// LatencyFunc adapts a function to LatencyProvider.
type LatencyFunc func(id int64) uint64

func (f LatencyFunc) NodeLatency(id int64) uint64 { return f(id) }

// InputCompensation is a delay to insert on one input port so it arrives in
// phase with the node's slowest input.
type InputCompensation struct {
	Node   int64
	Port   int
	Frames uint64
}

// OutputCompensation is a delay to insert on one output channel so all
// outputs leave the graph in phase.
type OutputCompensation struct {
	Channel int
	Frames  uint64
}

// Analysis is the result of one arrival-time pass.
type Analysis struct {
	Inputs  []InputCompensation
	Outputs []OutputCompensation
	// TotalLatency is the graph's end-to-end latency: the maximum
	// arrival-plus-latency over its output channels.
	TotalLatency uint64
}

// Empty reports whether the analysis requires no compensation anywhere.
func (a *Analysis) Empty() bool {
	return len(a.Inputs) == 0 && len(a.Outputs) == 0 && a.TotalLatency == 0
}

// Graph models the signal topology handed to the arrival-time analysis:
// processing nodes, the source feeding each input port, and the sources
// feeding the graph's output channels. The node/edge bookkeeping rides on a
// gonum directed graph so ordering can work from real adjacency.
type Graph struct {
	g       *simple.DirectedGraph
	inputs  map[int64][]PortSource
	outputs []PortSource
}

// NewGraph creates an empty signal graph.
func NewGraph() *Graph {
	return &Graph{
		g:      simple.NewDirectedGraph(),
		inputs: make(map[int64][]PortSource),
	}
}

// AddNode registers a processing node. Adding twice is harmless.
func (gr *Graph) AddNode(id int64) {
	if gr.g.Node(id) == nil {
		gr.g.AddNode(simple.Node(id))
	}
	if _, ok := gr.inputs[id]; !ok {
		gr.inputs[id] = nil
	}
}

// ConnectInput appends an input port on dst fed by src. Ports are numbered
// in connection order.
func (gr *Graph) ConnectInput(dst int64, src PortSource) {
	gr.AddNode(dst)
	if src.Kind == SourceNode {
		gr.AddNode(src.Node)
		if src.Node != dst {
			gr.g.SetEdge(gr.g.NewEdge(simple.Node(src.Node), simple.Node(dst)))
		}
	}
	gr.inputs[dst] = append(gr.inputs[dst], src)
}

// ConnectOutput appends a graph output channel fed by src. Channels are
// numbered in connection order.
func (gr *Graph) ConnectOutput(src PortSource) {
	if src.Kind == SourceNode {
		gr.AddNode(src.Node)
	}
	gr.outputs = append(gr.outputs, src)
}

// Analyze runs the arrival-time pass. Latencies are queried once per node;
// if every node reports zero the analysis short-circuits to empty.
func (gr *Graph) Analyze(provider LatencyProvider) *Analysis {
	latency := make(map[int64]uint64, len(gr.inputs))
	allZero := true
	nodes := gr.g.Nodes()
	for nodes.Next() {
		id := nodes.Node().ID()
		l := provider.NodeLatency(id)
		latency[id] = l
		if l != 0 {
			allZero = false
		}
	}
	if allZero {
		return &Analysis{}
	}

	order := gr.topoOrder()

	// Arrival time: when a node's output is fully available, given the
	// slowest of its inputs. Non-node sources arrive at time zero.
	arrival := make(map[int64]uint64, len(order))
	for _, id := range order {
		var max uint64
		for _, src := range gr.inputs[id] {
			if a := gr.sourceArrival(src, arrival, latency); a > max {
				max = a
			}
		}
		arrival[id] = max
	}

	result := &Analysis{}

	// Fan-in points: every input slower than the slowest gets delayed up
	// to match it.
	for _, id := range order {
		ports := gr.inputs[id]
		if len(ports) < 2 {
			continue
		}
		var maxIn uint64
		for _, src := range ports {
			if a := gr.sourceArrival(src, arrival, latency); a > maxIn {
				maxIn = a
			}
		}
		for port, src := range ports {
			if src.Kind != SourceNode {
				continue
			}
			if a := gr.sourceArrival(src, arrival, latency); a < maxIn {
				result.Inputs = append(result.Inputs, InputCompensation{
					Node:   id,
					Port:   port,
					Frames: maxIn - a,
				})
			}
		}
	}

	// Output channels align against the slowest output the same way.
	var maxOut uint64
	for _, src := range gr.outputs {
		if a := gr.sourceArrival(src, arrival, latency); a > maxOut {
			maxOut = a
		}
	}
	if len(gr.outputs) > 1 {
		for ch, src := range gr.outputs {
			if src.Kind != SourceNode {
				continue
			}
			if a := gr.sourceArrival(src, arrival, latency); a < maxOut {
				result.Outputs = append(result.Outputs, OutputCompensation{
					Channel: ch,
					Frames:  maxOut - a,
				})
			}
		}
	}
	result.TotalLatency = maxOut

	return result
}

// sourceArrival is the time a port's signal is ready: the feeding node's
// arrival plus its own latency, or zero for non-node sources.
func (gr *Graph) sourceArrival(src PortSource, arrival map[int64]uint64, latency map[int64]uint64) uint64 {
	if src.Kind != SourceNode {
		return 0
	}
	return arrival[src.Node] + latency[src.Node]
}

// topoOrder computes a processing order with Kahn's algorithm. A valid
// signal graph is acyclic; if a cycle sneaks in, the nodes trapped in it
// are appended in arbitrary order instead of failing, which degrades the
// analysis for those nodes but keeps the engine running.
func (gr *Graph) topoOrder() []int64 {
	indegree := make(map[int64]int, len(gr.inputs))
	nodes := gr.g.Nodes()
	for nodes.Next() {
		indegree[nodes.Node().ID()] = 0
	}
	edges := gr.g.Edges()
	for edges.Next() {
		indegree[edges.Edge().To().ID()]++
	}

	var queue []int64
	for id, d := range indegree {
		if d == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]int64, 0, len(indegree))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)

		to := gr.g.From(id)
		for to.Next() {
			next := to.Node().ID()
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(indegree) {
		seen := make(map[int64]bool, len(order))
		for _, id := range order {
			seen[id] = true
		}
		for id := range indegree {
			if !seen[id] {
				order = append(order, id)
			}
		}
	}
	return order
}
