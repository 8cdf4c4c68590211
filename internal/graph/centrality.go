package graph

import "gonum.org/v1/gonum/graph/network"

// Metrics returns the graph-wide metrics, computing them on first use.
func (g *Graph) Metrics() *Metrics {
	g.once.Do(func() {
		m := &Metrics{Nodes: len(g.nodes), Edges: len(g.fraud)}
		for _, f := range g.fraud {
			if f {
				m.FraudEdges++
			}
		}
		if m.Nodes >= g.opts.BetweennessCeiling {
			m.BetweennessSkipped = true
			m.betweenness = make([]float64, m.Nodes)
		} else {
			m.betweenness = g.betweenness()
		}
		g.metrics = m
	})
	return g.metrics
}

// Betweenness returns the normalized betweenness centrality of n. Returns 0
// for absent nodes and for every node when the graph is at or above the
// betweenness ceiling.
func (g *Graph) Betweenness(n Node) float64 {
	id, ok := g.index[n]
	if !ok {
		return 0
	}
	return g.Metrics().betweenness[id]
}

// betweenness runs Brandes' algorithm over the unweighted graph. Sources
// cover every node, so each unordered pair is counted from both endpoints;
// scaling by 1/((n-1)(n-2)) yields the normalized undirected score.
func (g *Graph) betweenness() []float64 {
	n := len(g.nodes)
	cb := make([]float64, n)
	if n <= 2 {
		return cb
	}
	scale := 1 / (float64(n-1) * float64(n-2))
	for id, v := range network.Betweenness(g.ug) {
		cb[id] = v * scale
	}
	return cb
}
