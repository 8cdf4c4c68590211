package ml

import (
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// Metrics summarizes binary classification quality.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	AUCROC    float64 `json:"auc_roc"`
}

// Confusion is [[TN, FP], [FN, TP]].
type Confusion [2][2]int

// Evaluate computes metrics for labels y and positive-class probabilities.
// Precision, recall and F1 are 0 when undefined; AUC is 0 when y holds a
// single class.
func Evaluate(y []bool, proba []float64) (Metrics, Confusion) {
	var cm Confusion
	pred := Predict(proba)
	for i, truth := range y {
		cm[b2i(truth)][b2i(pred[i])]++
	}
	tn, fp, fn, tp := float64(cm[0][0]), float64(cm[0][1]), float64(cm[1][0]), float64(cm[1][1])

	var m Metrics
	if n := tn + fp + fn + tp; n > 0 {
		m.Accuracy = (tp + tn) / n
	}
	if tp+fp > 0 {
		m.Precision = tp / (tp + fp)
	}
	if tp+fn > 0 {
		m.Recall = tp / (tp + fn)
	}
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	m.AUCROC = AUC(y, proba)
	return m, cm
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// AUC computes the area under the ROC curve with the trapezoidal rule.
// Tied scores share one ROC point.
func AUC(y []bool, score []float64) float64 {
	neg, pos := classCounts(y)
	if neg == 0 || pos == 0 {
		return 0
	}
	sorted := append([]float64(nil), score...)
	classes := append([]bool(nil), y...)
	stat.SortWeightedLabeled(sorted, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, sorted, classes, nil)
	return integrate.Trapezoidal(fpr, tpr)
}
