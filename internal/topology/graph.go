package topology

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"ecordtopo/internal/emulation"
)

// ErrNoPath is returned when two nodes are not connected.
var ErrNoPath = errors.New("no path")

// Graph is an undirected view of a topology keyed by node name.
type Graph struct {
	g     *simple.UndirectedGraph
	ids   map[string]int64
	names map[int64]string
}

// NewGraph builds a graph from node names and name pairs. Parallel links
// collapse into one edge.
func NewGraph(nodes []string, links [][2]string) *Graph {
	gr := &Graph{
		g:     simple.NewUndirectedGraph(),
		ids:   make(map[string]int64),
		names: make(map[int64]string),
	}
	for _, n := range nodes {
		gr.node(n)
	}
	for _, l := range links {
		a, b := gr.node(l[0]), gr.node(l[1])
		if a.ID() == b.ID() || gr.g.HasEdgeBetween(a.ID(), b.ID()) {
			continue
		}
		gr.g.SetEdge(simple.Edge{F: a, T: b})
	}
	return gr
}

// FromRuntime builds a graph of the switches and hosts in rt. Controllers
// are out-of-band and left out.
func FromRuntime(rt emulation.Runtime) *Graph {
	var nodes []string
	for _, n := range rt.Nodes() {
		if n.Kind != emulation.KindController {
			nodes = append(nodes, n.Name)
		}
	}
	var links [][2]string
	for _, l := range rt.Links() {
		links = append(links, [2]string{l.Node1, l.Node2})
	}
	return NewGraph(nodes, links)
}

func (gr *Graph) node(name string) graph.Node {
	if id, ok := gr.ids[name]; ok {
		return gr.g.Node(id)
	}
	n := gr.g.NewNode()
	gr.g.AddNode(n)
	gr.ids[name] = n.ID()
	gr.names[n.ID()] = name
	return n
}

// Components returns the connected components, each sorted by name.
func (gr *Graph) Components() [][]string {
	var out [][]string
	for _, cc := range topo.ConnectedComponents(gr.g) {
		names := make([]string, 0, len(cc))
		for _, n := range cc {
			names = append(names, gr.names[n.ID()])
		}
		sort.Strings(names)
		out = append(out, names)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Connected reports whether every node is reachable from every other.
func (gr *Graph) Connected() bool {
	return len(topo.ConnectedComponents(gr.g)) <= 1
}

// Degree returns the number of distinct neighbours of a node.
func (gr *Graph) Degree(name string) int {
	id, ok := gr.ids[name]
	if !ok {
		return 0
	}
	return gr.g.From(id).Len()
}

// Path returns a shortest hop path between two nodes, both included.
func (gr *Graph) Path(from, to string) ([]string, error) {
	src, ok := gr.ids[from]
	if !ok {
		return nil, fmt.Errorf("%w: %s", emulation.ErrNodeNotFound, from)
	}
	dst, ok := gr.ids[to]
	if !ok {
		return nil, fmt.Errorf("%w: %s", emulation.ErrNodeNotFound, to)
	}
	tree := path.DijkstraFrom(gr.g.Node(src), gr.g)
	nodes, _ := tree.To(dst)
	if len(nodes) == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrNoPath, from, to)
	}
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = gr.names[n.ID()]
	}
	return out, nil
}

// Validate checks the fabric blueprint: a connected full bipartite mesh in
// which every spine reaches every leaf.
func (f *Fabric) Validate() error {
	var links [][2]string
	for _, l := range f.links {
		links = append(links, [2]string{l.A, l.B})
	}
	gr := NewGraph(f.Switches(), links)
	if !gr.Connected() {
		return fmt.Errorf("fabric %d is not connected", f.DomainID)
	}
	for _, s := range f.spines {
		if d := gr.Degree(s); d != len(f.leaves) {
			return fmt.Errorf("fabric %d: spine %s reaches %d of %d leaves", f.DomainID, s, d, len(f.leaves))
		}
	}
	for _, l := range f.leaves {
		if d := gr.Degree(l); d != len(f.spines) {
			return fmt.Errorf("fabric %d: leaf %s reaches %d of %d spines", f.DomainID, l, d, len(f.spines))
		}
	}
	return nil
}
