package ml

import (
	"math/rand/v2"
	"sort"
)

// DefaultSMOTENeighbors is the neighborhood size used for oversampling.
const DefaultSMOTENeighbors = 5

// SMOTE oversamples the minority class with synthetic points interpolated
// between a minority sample and one of its k nearest minority neighbors,
// until both classes have the same size. The input slices are not modified.
// When the classes are already balanced or the minority has fewer than two
// samples the input is returned unchanged and ok is false.
func SMOTE(X [][]float64, y []bool, k int, rng *rand.Rand) (xs [][]float64, ys []bool, ok bool) {
	neg, pos := classCounts(y)
	if neg == pos {
		return X, y, false
	}
	minority := pos < neg
	var idx []int
	for i, v := range y {
		if v == minority {
			idx = append(idx, i)
		}
	}
	if len(idx) < 2 {
		return X, y, false
	}
	k = min(k, len(idx)-1)
	need := max(neg, pos) - len(idx)

	neighbors := make([][]int, len(idx))
	for a := range idx {
		neighbors[a] = nearest(X, idx, a, k)
	}

	xs = append(make([][]float64, 0, len(X)+need), X...)
	ys = append(make([]bool, 0, len(y)+need), y...)
	for n := 0; n < need; n++ {
		a := rng.IntN(len(idx))
		b := neighbors[a][rng.IntN(k)]
		gap := rng.Float64()
		base, other := X[idx[a]], X[idx[b]]
		synth := make([]float64, len(base))
		for j := range base {
			synth[j] = base[j] + gap*(other[j]-base[j])
		}
		xs = append(xs, synth)
		ys = append(ys, minority)
	}
	return xs, ys, true
}

// nearest returns positions in idx of the k nearest neighbors of idx[a] by
// squared Euclidean distance, ties broken by position.
func nearest(X [][]float64, idx []int, a, k int) []int {
	type cand struct {
		pos  int
		dist float64
	}
	cands := make([]cand, 0, len(idx)-1)
	for b := range idx {
		if b == a {
			continue
		}
		var d float64
		for j, v := range X[idx[a]] {
			diff := v - X[idx[b]][j]
			d += diff * diff
		}
		cands = append(cands, cand{b, d})
	}
	sort.Slice(cands, func(i, j int) bool {
		if cands[i].dist != cands[j].dist {
			return cands[i].dist < cands[j].dist
		}
		return cands[i].pos < cands[j].pos
	})
	out := make([]int, k)
	for i := range out {
		out[i] = cands[i].pos
	}
	return out
}
