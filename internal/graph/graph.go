// Package graph builds the undirected patient-provider relationship graph
// and computes the structural metrics used as claim features.
package graph

import (
	"sync"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/gyeh/claimrisk/internal/store"
)

// Unreachable is the PathDistance sentinel for disconnected or unknown nodes.
const Unreachable = 999

// DefaultBetweennessCeiling is the node count at and above which betweenness
// is not computed.
const DefaultBetweennessCeiling = 5000

// Kind distinguishes patient nodes from provider nodes. Patient and provider
// ids live in separate namespaces.
type Kind uint8

const (
	KindPatient Kind = iota
	KindProvider
)

func (k Kind) String() string {
	if k == KindProvider {
		return "provider"
	}
	return "patient"
}

// Node identifies a graph vertex.
type Node struct {
	Kind Kind
	ID   string
}

// Patient returns the node for a patient id.
func Patient(id string) Node { return Node{Kind: KindPatient, ID: id} }

// Provider returns the node for a provider id.
func Provider(id string) Node { return Node{Kind: KindProvider, ID: id} }

// Options controls graph metric computation.
type Options struct {
	// BetweennessCeiling disables betweenness (all zeros) for graphs with
	// at least this many nodes. Non-positive means DefaultBetweennessCeiling.
	BetweennessCeiling int
}

// Metrics holds graph-wide results computed once per Graph.
type Metrics struct {
	Nodes              int
	Edges              int
	FraudEdges         int // edges whose latest claim is labeled fraudulent
	BetweennessSkipped bool
	betweenness        []float64
}

// Graph is immutable after Build and safe for concurrent use. nodes[i] has
// id i in ug.
type Graph struct {
	opts  Options
	nodes []Node
	index map[Node]int64
	ug    *simple.UndirectedGraph
	fraud map[[2]int64]bool // per edge, label of the latest linking claim

	once    sync.Once
	metrics *Metrics
}

// Build constructs the graph from a store: every patient and provider is a
// node, as is any id referenced by a claim but missing from the store. Each
// claim adds (or overwrites) the edge between its patient and provider.
func Build(s *store.Store, opts Options) *Graph {
	if opts.BetweennessCeiling <= 0 {
		opts.BetweennessCeiling = DefaultBetweennessCeiling
	}
	g := &Graph{
		opts:  opts,
		index: make(map[Node]int64),
		ug:    simple.NewUndirectedGraph(),
		fraud: make(map[[2]int64]bool),
	}
	for _, p := range s.Patients() {
		g.addNode(Patient(p.ID))
	}
	for _, p := range s.Providers() {
		g.addNode(Provider(p.ID))
	}
	for _, c := range s.Claims() {
		a := g.addNode(Patient(c.PatientID))
		b := g.addNode(Provider(c.ProviderID))
		g.fraud[edgeKey(a, b)] = c.Fraudulent()
		g.ug.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
	}
	return g
}

func (g *Graph) addNode(n Node) int64 {
	if id, ok := g.index[n]; ok {
		return id
	}
	id := int64(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.index[n] = id
	g.ug.AddNode(simple.Node(id))
	return id
}

func edgeKey(a, b int64) [2]int64 {
	if a > b {
		a, b = b, a
	}
	return [2]int64{a, b}
}

// Degree returns the number of distinct neighbors of n, or 0 if absent.
func (g *Graph) Degree(n Node) int {
	id, ok := g.index[n]
	if !ok {
		return 0
	}
	return g.ug.From(id).Len()
}

func (g *Graph) neighbors(id int64) []int64 {
	it := g.ug.From(id)
	out := make([]int64, 0, it.Len())
	for it.Next() {
		out = append(out, it.Node().ID())
	}
	return out
}

// ClusteringCoefficient returns the local clustering coefficient of n:
// the fraction of neighbor pairs that are themselves linked. 0 for nodes
// with fewer than two neighbors or absent nodes.
func (g *Graph) ClusteringCoefficient(n Node) float64 {
	id, ok := g.index[n]
	if !ok {
		return 0
	}
	ns := g.neighbors(id)
	k := len(ns)
	if k < 2 {
		return 0
	}
	links := 0
	for x := 0; x < k; x++ {
		for y := x + 1; y < k; y++ {
			if g.ug.HasEdgeBetween(ns[x], ns[y]) {
				links++
			}
		}
	}
	return 2 * float64(links) / float64(k*(k-1))
}

// SharedNeighbors counts nodes adjacent to both a and b; 0 if either is absent.
func (g *Graph) SharedNeighbors(a, b Node) int {
	i, ok1 := g.index[a]
	j, ok2 := g.index[b]
	if !ok1 || !ok2 {
		return 0
	}
	n := 0
	for _, nb := range g.neighbors(i) {
		if g.ug.HasEdgeBetween(nb, j) {
			n++
		}
	}
	return n
}

// PathDistance returns the shortest path length in hops between a and b:
// 0 for the same node, 1 if adjacent, and Unreachable when no path exists
// or either node is absent.
func (g *Graph) PathDistance(a, b Node) int {
	i, ok1 := g.index[a]
	j, ok2 := g.index[b]
	if !ok1 || !ok2 {
		return Unreachable
	}
	if i == j {
		return 0
	}
	if g.ug.HasEdgeBetween(i, j) {
		return 1
	}
	dist := Unreachable
	var bf traverse.BreadthFirst
	bf.Walk(g.ug, simple.Node(i), func(n gonum.Node, depth int) bool {
		if n.ID() == j {
			dist = depth
			return true
		}
		return false
	})
	return dist
}
