package ml

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// newRand returns the deterministic generator used for every seeded step.
func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x5DEECE66D))
}

// classCounts returns the number of negative and positive labels.
func classCounts(y []bool) (neg, pos int) {
	for _, v := range y {
		if v {
			pos++
		} else {
			neg++
		}
	}
	return neg, pos
}

// StratifiedSplit partitions sample indexes into train and test sets,
// preserving the class ratio. Each class needs at least two samples so both
// sides receive one.
func StratifiedSplit(y []bool, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("%w: test fraction %g outside (0, 1)", ErrTrainingFailure, testFraction)
	}
	var byClass [2][]int
	for i, v := range y {
		if v {
			byClass[1] = append(byClass[1], i)
		} else {
			byClass[0] = append(byClass[0], i)
		}
	}
	rng := newRand(seed)
	for c, idx := range byClass {
		if len(idx) < 2 {
			return nil, nil, fmt.Errorf("%w: class %d has %d sample(s), need at least 2", ErrTrainingFailure, c, len(idx))
		}
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(math.Round(testFraction * float64(len(idx))))
		nTest = min(max(nTest, 1), len(idx)-1)
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test, nil
}

func gather(X [][]float64, y []bool, idx []int) ([][]float64, []bool) {
	xs := make([][]float64, len(idx))
	ys := make([]bool, len(idx))
	for k, i := range idx {
		xs[k] = X[i]
		ys[k] = y[i]
	}
	return xs, ys
}
