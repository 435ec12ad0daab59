package model

import "math"

// Confusion counts classifier outcomes at a cutoff.
type Confusion struct {
	TP, FP, TN, FN int
}

// ConfusionAt classifies every prediction at or above cutoff as positive and
// compares it against binary targets.
func ConfusionAt(preds *Predictions, y []float64, cutoff float64) Confusion {
	var c Confusion
	for i, p := range preds.Values {
		if i >= len(y) {
			break
		}
		actual := y[i] >= 0.5
		switch predicted := p >= cutoff; {
		case predicted && actual:
			c.TP++
		case predicted:
			c.FP++
		case actual:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

// Total is the number of classified records.
func (c Confusion) Total() int { return c.TP + c.FP + c.TN + c.FN }

// Accuracy is the share of correct classifications.
func (c Confusion) Accuracy() float64 { return ratio(c.TP+c.TN, c.Total()) }

// Precision is the share of positive predictions that were correct.
func (c Confusion) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

// Recall is the share of actual positives that were found.
func (c Confusion) Recall() float64 { return ratio(c.TP, c.TP+c.FN) }

// F1 is the harmonic mean of precision and recall.
func (c Confusion) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

// Regression summarizes how far a regressor's predictions are from the
// observed targets.
type Regression struct {
	N    int
	RMSE float64
	MAE  float64
	// R2 is the coefficient of determination; zero when the targets have no
	// variance.
	R2 float64
}

// RegressionOf scores predictions against targets, pairing them by
// position.
func RegressionOf(preds *Predictions, y []float64) Regression {
	n := min(len(preds.Values), len(y))
	if n == 0 {
		return Regression{}
	}
	var mean float64
	for _, v := range y[:n] {
		mean += v
	}
	mean /= float64(n)

	var sse, sae, sst float64
	for i, p := range preds.Values[:n] {
		res := y[i] - p
		sse += res * res
		sae += math.Abs(res)
		sst += (y[i] - mean) * (y[i] - mean)
	}
	r := Regression{
		N:    n,
		RMSE: math.Sqrt(sse / float64(n)),
		MAE:  sae / float64(n),
	}
	if sst > 0 {
		r.R2 = 1 - sse/sst
	}
	return r
}
