package lossdetect

// AR2 is a second-order autoregressive predictor over inter-arrival
// deltas: Insert fits the AR(2) coefficients with an LMS step on each
// prediction error, and Tolerance scales the running prediction-error
// standard deviation by the premature-timeout Z-score.
type AR2 struct {
	prematureTimeoutProbability float64

	haveX1, haveX2 bool
	x1, x2         float64 // most recent two observations, x1 = latest
	a1, a2         float64 // AR(2) coefficients, updated by exponential LMS

	errSum, errSumSq float64
	errCount         int
}

// NewAR2 constructs an AR2 predictor. A premature-timeout probability
// outside [0.001, 1) is invalid and is reset to 0.05.
func NewAR2(prematureTimeoutProbability float64) *AR2 {
	if prematureTimeoutProbability >= 1.0 || prematureTimeoutProbability < 0.001 {
		prematureTimeoutProbability = 0.05
	}
	return &AR2{prematureTimeoutProbability: prematureTimeoutProbability, a1: 1, a2: 0}
}

// Insert folds in one observed inter-arrival delta: updates the AR(2)
// coefficients by the prediction error (simple LMS step) and advances the
// two-sample history.
func (a *AR2) Insert(delta float64) {
	if a.haveX1 && a.haveX2 {
		predicted := a.a1*a.x1 + a.a2*a.x2
		err := delta - predicted
		a.recordError(err)

		const learningRate = 0.1
		a.a1 += learningRate * err * a.x1
		a.a2 += learningRate * err * a.x2
	}
	a.x2, a.haveX2 = a.x1, a.haveX1
	a.x1, a.haveX1 = delta, true
}

func (a *AR2) recordError(err float64) {
	a.errSum += err
	a.errSumSq += err * err
	a.errCount++
}

// Predict returns the AR(2) one-step-ahead forecast, or the last observed
// delta until two samples are available.
func (a *AR2) Predict() float64 {
	if a.haveX1 && a.haveX2 {
		return a.a1*a.x1 + a.a2*a.x2
	}
	return a.x1
}

func (a *AR2) errorStdDev() float64 {
	if a.errCount < 2 {
		return 0
	}
	mean := a.errSum / float64(a.errCount)
	variance := a.errSumSq/float64(a.errCount) - mean*mean
	return sqrt(variance)
}

func (a *AR2) Tolerance() float64 {
	return a.errorStdDev() * zScore(1-a.prematureTimeoutProbability)
}

func (a *AR2) Reset() {
	*a = AR2{prematureTimeoutProbability: a.prematureTimeoutProbability, a1: 1, a2: 0}
}
