package ml

import (
	"math"
	"sort"
)

// TreeNode is one node of a flattened regression tree. Leaves have
// Feature == -1; internal nodes send x[Feature] <= Threshold to Left.
type TreeNode struct {
	Feature   int     `json:"f"`
	Threshold float64 `json:"t,omitempty"`
	Left      int     `json:"l,omitempty"`
	Right     int     `json:"r,omitempty"`
	Value     float64 `json:"v,omitempty"`
}

// Tree is a regression tree stored as a flat node array rooted at index 0.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

// Predict returns the leaf value reached by x.
func (t *Tree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Feature < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// treeBuilder grows one tree on pseudo-residuals with squared-error splits
// and Newton-step leaf values for the logistic loss.
type treeBuilder struct {
	X           [][]float64
	resid       []float64
	hess        []float64
	maxDepth    int
	minSplit    int
	minLeaf     int
	importances []float64
	nodes       []TreeNode
}

func (b *treeBuilder) build(idx []int) Tree {
	b.nodes = b.nodes[:0]
	b.grow(idx, 0)
	return Tree{Nodes: append([]TreeNode(nil), b.nodes...)}
}

func (b *treeBuilder) grow(idx []int, depth int) int {
	me := len(b.nodes)
	b.nodes = append(b.nodes, TreeNode{Feature: -1})

	sum, sumSq := 0.0, 0.0
	for _, i := range idx {
		sum += b.resid[i]
		sumSq += b.resid[i] * b.resid[i]
	}
	n := float64(len(idx))
	sse := sumSq - sum*sum/n

	if depth >= b.maxDepth || len(idx) < b.minSplit || len(idx) < 2*b.minLeaf || sse <= 1e-12 {
		b.nodes[me].Value = b.leafValue(idx)
		return me
	}

	feature, threshold, gain, ok := b.bestSplit(idx, sse)
	if !ok {
		b.nodes[me].Value = b.leafValue(idx)
		return me
	}
	b.importances[feature] += gain

	var left, right []int
	for _, i := range idx {
		if b.X[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.nodes[me] = TreeNode{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return me
}

// bestSplit scans every feature for the threshold with the lowest summed
// squared error of the two children, subject to the minimum leaf size.
func (b *treeBuilder) bestSplit(idx []int, parentSSE float64) (feature int, threshold, gain float64, ok bool) {
	n := len(idx)
	order := make([]int, n)
	bestSSE := parentSSE
	d := len(b.X[idx[0]])

	for j := 0; j < d; j++ {
		copy(order, idx)
		sort.Slice(order, func(a, c int) bool { return b.X[order[a]][j] < b.X[order[c]][j] })

		total, totalSq := 0.0, 0.0
		for _, i := range order {
			total += b.resid[i]
			totalSq += b.resid[i] * b.resid[i]
		}

		ls, lsq := 0.0, 0.0
		for s := 1; s < n; s++ {
			r := b.resid[order[s-1]]
			ls += r
			lsq += r * r
			if s < b.minLeaf || n-s < b.minLeaf {
				continue
			}
			lo, hi := b.X[order[s-1]][j], b.X[order[s]][j]
			if lo >= hi {
				continue
			}
			nl, nr := float64(s), float64(n-s)
			rs, rsq := total-ls, totalSq-lsq
			sse := (lsq - ls*ls/nl) + (rsq - rs*rs/nr)
			if sse < bestSSE-1e-12 {
				bestSSE = sse
				feature = j
				threshold = lo + (hi-lo)/2
				if threshold >= hi {
					threshold = lo
				}
				ok = true
			}
		}
	}
	return feature, threshold, parentSSE - bestSSE, ok
}

// leafValue is the one-step Newton update sum(r) / sum(p(1-p)).
func (b *treeBuilder) leafValue(idx []int) float64 {
	num, den := 0.0, 0.0
	for _, i := range idx {
		num += b.resid[i]
		den += b.hess[i]
	}
	if math.Abs(den) < 1e-150 {
		return 0
	}
	return num / den
}
