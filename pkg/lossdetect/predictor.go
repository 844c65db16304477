// Package lossdetect predicts inter-arrival timing from observed packet
// history and raises "assumed lost" events with quantified false-positive
// tolerance: a bounded history queue with Z-score tolerance for the
// moving-average predictor, and the same tolerance shape against a running
// prediction-error standard deviation for the AR2 variant.
package lossdetect

import "github.com/gammazero/deque"

// Predictor is the pluggable contract packet-loss predictors implement:
// insert an observed inter-arrival delta, predict the next one, and
// report a tolerance delta for the assumed-lost deadline.
type Predictor interface {
	Insert(deltaSeconds float64)
	Predict() float64
	Tolerance() float64
	Reset()
}

// Kind selects a Predictor implementation.
type Kind int

const (
	KindSimple Kind = iota
	KindMovingAverage
	KindAR2
)

// New constructs a Predictor of the given kind. historySize and
// prematureTimeoutProbability are only consulted by MovingAverage/AR2.
func New(kind Kind, historySize int, prematureTimeoutProbability float64) Predictor {
	switch kind {
	case KindMovingAverage:
		return NewMovingAverage(historySize, prematureTimeoutProbability)
	case KindAR2:
		return NewAR2(prematureTimeoutProbability)
	default:
		return &Simple{}
	}
}

// Simple triggers AssumedLost on any gap: it predicts zero extra delay and
// tolerates none.
type Simple struct{}

func (s *Simple) Insert(float64)    {}
func (s *Simple) Predict() float64  { return 0 }
func (s *Simple) Tolerance() float64 { return 0 }
func (s *Simple) Reset()            {}

// MovingAverage predicts the mean of the last N inter-arrival deltas and
// tolerates sigma*Z(1-p).
type MovingAverage struct {
	history                     deque.Deque
	capacity                    int
	minRequired                 int
	prematureTimeoutProbability float64
}

// NewMovingAverage constructs a MovingAverage predictor backed by a
// gammazero/deque bounded history window (capacity == minimum required to
// predict).
func NewMovingAverage(capacity int, prematureTimeoutProbability float64) *MovingAverage {
	if capacity <= 0 {
		capacity = 1
	}
	if prematureTimeoutProbability <= 0 {
		prematureTimeoutProbability = 0.05
	}
	m := &MovingAverage{
		capacity:                    capacity,
		minRequired:                 capacity,
		prematureTimeoutProbability: prematureTimeoutProbability,
	}
	m.history.SetMinCapacity(3)
	return m
}

func (m *MovingAverage) Insert(delta float64) {
	if m.history.Len() == m.capacity {
		m.history.PopFront()
	}
	m.history.PushBack(delta)
}

func (m *MovingAverage) mean() float64 {
	if m.history.Len() == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < m.history.Len(); i++ {
		sum += m.history.At(i).(float64)
	}
	return sum / float64(m.history.Len())
}

func (m *MovingAverage) stddev() float64 {
	n := m.history.Len()
	if n < 2 {
		return 0
	}
	mean := m.mean()
	var sumSq float64
	for i := 0; i < n; i++ {
		d := m.history.At(i).(float64) - mean
		sumSq += d * d
	}
	return sqrt(sumSq / float64(n))
}

// Predict returns the running mean, or zero until minRequired samples have
// been seen (original's isReady() gate).
func (m *MovingAverage) Predict() float64 {
	if m.history.Len() < m.minRequired {
		return 0
	}
	return m.mean()
}

func (m *MovingAverage) Tolerance() float64 {
	return m.stddev() * zScore(1-m.prematureTimeoutProbability)
}

func (m *MovingAverage) Reset() {
	m.history.Clear()
}
