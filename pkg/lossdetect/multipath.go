package lossdetect

import "time"

// RoutingPolicy selects how subflow-specific detectors interact.
type RoutingPolicy int

const (
	RoutingSingle RoutingPolicy = iota
	RoutingCrosspath
	RoutingCompare
)

// Divergence records a disagreement between subflow detectors under the
// Compare routing policy, for telemetry.
type Divergence struct {
	SubflowID      uint16
	SequenceNumber uint32
	OnlyIn         []uint16 // subflow ids that raised the event, when not unanimous
}

// MultipathDetector holds one Detector per subflow and applies the
// configured RoutingPolicy across them: under RoutingSingle only the
// owning subflow predicts, under RoutingCrosspath peers may speak for each
// other's gaps based on correlated arrival order, and under RoutingCompare
// both run and divergences are recorded.
type MultipathDetector struct {
	policy     RoutingPolicy
	newPredictor func() Predictor
	subflows   map[uint16]*Detector

	Divergences []Divergence
}

// NewMultipathDetector constructs a per-subflow detector set. newPredictor
// builds a fresh Predictor for each subflow encountered.
func NewMultipathDetector(policy RoutingPolicy, newPredictor func() Predictor) *MultipathDetector {
	return &MultipathDetector{policy: policy, newPredictor: newPredictor, subflows: make(map[uint16]*Detector)}
}

func (m *MultipathDetector) detectorFor(subflowID uint16) *Detector {
	d, ok := m.subflows[subflowID]
	if !ok {
		d = NewDetector(m.newPredictor())
		m.subflows[subflowID] = d
	}
	return d
}

// OnArrival routes one subflow-tagged packet arrival. Under RoutingSingle,
// only the owning subflow's detector runs. Under RoutingCrosspath, every
// other subflow is also given the chance to resolve a pending gap at the
// same sequence number (its own subflow-specific sequence space, so this
// only cancels/confirms gaps the caller has cross-mapped ahead of time via
// subflowSequenceNumber being shared state — callers on a single logical
// stream split round-robin across subflows typically share one sequence
// space, in which case cross-cancellation is exactly "the peer subflow's
// arrival explains our gap"). Under RoutingCompare, all subflows run
// independently and divergences are recorded.
func (m *MultipathDetector) OnArrival(subflowID uint16, arrivalTime time.Time, sequenceNumber uint32) []Event {
	owner := m.detectorFor(subflowID)
	events := owner.OnArrival(arrivalTime, sequenceNumber)

	switch m.policy {
	case RoutingCrosspath:
		for id, d := range m.subflows {
			if id == subflowID {
				continue
			}
			if d.CancelPending(sequenceNumber) {
				d.NoteRedundantArrival()
			}
		}
	case RoutingCompare:
		var raisedIn []uint16
		if hasAssumedLost(events) {
			raisedIn = append(raisedIn, subflowID)
		}
		for id, d := range m.subflows {
			if id == subflowID {
				continue
			}
			if _, pending := d.pending[sequenceNumber]; pending {
				raisedIn = append(raisedIn, id)
			}
		}
		if len(raisedIn) == 1 {
			m.Divergences = append(m.Divergences, Divergence{SubflowID: subflowID, SequenceNumber: sequenceNumber, OnlyIn: raisedIn})
		}
	}
	return events
}

func hasAssumedLost(events []Event) bool {
	for _, e := range events {
		if e.Kind == EventAssumedLost {
			return true
		}
	}
	return false
}

// Tick sweeps every subflow's pending deadlines.
func (m *MultipathDetector) Tick(now time.Time) []Event {
	var out []Event
	for _, d := range m.subflows {
		out = append(out, d.Tick(now)...)
	}
	return out
}

// RemoveSubflow drops a subflow's detector and its counters.
func (m *MultipathDetector) RemoveSubflow(subflowID uint16) {
	delete(m.subflows, subflowID)
}
