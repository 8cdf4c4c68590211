package normalize

import (
	"fmt"
	"math"
)

// Amount validates a dollar amount. Claim amounts must be finite and non-negative.
func Amount(field string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s: non-finite amount", field)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s: negative amount %.2f", field, v)
	}
	return v, nil
}

// OptAmount validates a nullable amount; nil becomes 0.
func OptAmount(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, nil
	}
	return Amount(field, *v)
}
