package concept

import "math"

// Model is a fitted logistic classifier over embedding vectors for one
// (concept, draft) pair.
type Model struct {
	Weights []float64
	Bias    float64
	F1      float64
	Version int
}

// No gradient-boosting or SVM library appears anywhere in the corpus
// (nor any general numerical-optimization package beyond what the
// cluster package already established is absent), so the classifier
// here is a small stdlib-only batch-gradient-descent logistic
// regression, the same deliberate gap cluster/reduce.go documents for
// its projection step. Class balancing and cross-validation are plain
// arithmetic, not a library concern, so they carry no such gap.

const (
	fitEpochs       = 500
	fitLearningRate = 0.1
	fitL2           = 1e-3
)

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// fitLogistic fits weights and a bias over X (rows of features) against
// binary labels y, using per-example sampleWeights and L2-regularized
// batch gradient descent.
func fitLogistic(x [][]float64, y []int, sampleWeights []float64) Model {
	if len(x) == 0 {
		return Model{}
	}
	dims := len(x[0])
	weights := make([]float64, dims)
	var bias float64
	n := float64(len(x))

	for epoch := 0; epoch < fitEpochs; epoch++ {
		gradW := make([]float64, dims)
		var gradB float64
		for i, row := range x {
			z := bias
			for d, v := range row {
				z += weights[d] * v
			}
			pred := sigmoid(z)
			err := (pred - float64(y[i])) * sampleWeights[i]
			for d, v := range row {
				gradW[d] += err * v
			}
			gradB += err
		}
		for d := range weights {
			weights[d] -= fitLearningRate * (gradW[d]/n + fitL2*weights[d])
		}
		bias -= fitLearningRate * gradB / n
	}
	return Model{Weights: weights, Bias: bias}
}

func (m Model) predictProb(x []float64) float64 {
	z := m.Bias
	for d, v := range x {
		if d < len(m.Weights) {
			z += m.Weights[d] * v
		}
	}
	return sigmoid(z)
}

// classBalancedWeights assigns weight N/(2*N_c) to each example of
// class c, so a class with fewer examples counts proportionally more
// during fitting (spec.md 4.H "class-balanced sample weights").
func classBalancedWeights(y []int) []float64 {
	var nPos, nNeg int
	for _, label := range y {
		if label == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	n := float64(len(y))
	weights := make([]float64, len(y))
	for i, label := range y {
		if label == 1 && nPos > 0 {
			weights[i] = n / (2 * float64(nPos))
		} else if label == 0 && nNeg > 0 {
			weights[i] = n / (2 * float64(nNeg))
		} else {
			weights[i] = 1
		}
	}
	return weights
}

// crossValidatedF1 computes a k-fold cross-validated F1 score over
// (x, y): each fold trains on the remaining folds and is scored on the
// held-out fold, and the reported F1 is the mean across folds (spec.md
// 4.H "metrics are 3-fold cross-validated F1"). Returns 0 if there are
// fewer than k examples or only one class is present.
func crossValidatedF1(x [][]float64, y []int, k int) float64 {
	n := len(x)
	if n < k || k < 2 {
		return 0
	}
	var hasPos, hasNeg bool
	for _, label := range y {
		if label == 1 {
			hasPos = true
		} else {
			hasNeg = true
		}
	}
	if !hasPos || !hasNeg {
		return 0
	}

	foldSize := n / k
	var total float64
	folds := 0
	for fold := 0; fold < k; fold++ {
		start := fold * foldSize
		end := start + foldSize
		if fold == k-1 {
			end = n
		}
		var trainX, testX [][]float64
		var trainY, testY []int
		for i := 0; i < n; i++ {
			if i >= start && i < end {
				testX = append(testX, x[i])
				testY = append(testY, y[i])
			} else {
				trainX = append(trainX, x[i])
				trainY = append(trainY, y[i])
			}
		}
		if len(testX) == 0 || len(trainX) == 0 {
			continue
		}
		weights := classBalancedWeights(trainY)
		model := fitLogistic(trainX, trainY, weights)
		total += f1Score(model, testX, testY)
		folds++
	}
	if folds == 0 {
		return 0
	}
	return total / float64(folds)
}

func f1Score(model Model, x [][]float64, y []int) float64 {
	var tp, fp, fn int
	for i, row := range x {
		pred := 0
		if model.predictProb(row) >= 0.5 {
			pred = 1
		}
		switch {
		case pred == 1 && y[i] == 1:
			tp++
		case pred == 1 && y[i] == 0:
			fp++
		case pred == 0 && y[i] == 1:
			fn++
		}
	}
	if tp == 0 {
		return 0
	}
	precision := float64(tp) / float64(tp+fp)
	recall := float64(tp) / float64(tp+fn)
	if precision+recall == 0 {
		return 0
	}
	return 2 * precision * recall / (precision + recall)
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
