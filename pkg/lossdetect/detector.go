package lossdetect

import "time"

// EventKind distinguishes the four outcomes the detector emits.
type EventKind int

const (
	EventAssumedLost EventKind = iota
	EventRetransmissionRequested
	EventRetransmissionArrived
	EventFalsePositive
)

// Event is one emitted detector outcome.
type Event struct {
	Kind            EventKind
	SequenceNumber  uint32 // cycle-extended
	Late            bool   // set on EventRetransmissionArrived
}

// Counters is the retransmission bookkeeping this package tracks: assumed
// lost, false positive, received-via-retransmission, late-retransmission,
// redundant-retransmission (arrived normally first), and
// cancelled-retransmission (removed before send).
type Counters struct {
	AssumedLost               uint64
	FalsePositive             uint64
	ReceivedViaRetransmission uint64
	LateRetransmission        uint64
	RedundantRetransmission   uint64
	CancelledRetransmission   uint64
}

type pendingGap struct {
	sequenceNumber uint32
	deadline       time.Time
}

// Detector drives one Predictor against an observed (arrival, sequence
// number) stream and schedules AssumedLost deadlines for detected gaps.
type Detector struct {
	predictor    Predictor
	lastArrival  time.Time
	lastSeq      uint32
	haveLast     bool
	pending      map[uint32]pendingGap
	Counters     Counters
}

// NewDetector constructs a Detector driven by the given predictor.
func NewDetector(predictor Predictor) *Detector {
	return &Detector{predictor: predictor, pending: make(map[uint32]pendingGap)}
}

// OnArrival records a packet's arrival and reports the gap events raised,
// if any. sequenceNumber must already be cycle-extended (caller's
// responsibility, per ntptime.SequenceDelta-style extension); an arrival
// below the running maximum only resolves its own pending gap.
func (d *Detector) OnArrival(arrivalTime time.Time, sequenceNumber uint32) []Event {
	var events []Event

	if p, ok := d.pending[sequenceNumber]; ok {
		delete(d.pending, sequenceNumber)
		if arrivalTime.Before(p.deadline) {
			d.Counters.FalsePositive++
			events = append(events, Event{Kind: EventFalsePositive, SequenceNumber: sequenceNumber})
		} else {
			d.Counters.ReceivedViaRetransmission++
			events = append(events, Event{Kind: EventRetransmissionArrived, SequenceNumber: sequenceNumber, Late: true})
		}
	}

	if d.haveLast && sequenceNumber > d.lastSeq {
		delta := arrivalTime.Sub(d.lastArrival).Seconds()
		d.predictor.Insert(delta)

		for gap := d.lastSeq + 1; gap < sequenceNumber; gap++ {
			predictedDelta := d.predictor.Predict()
			deadline := d.lastArrival.Add(time.Duration((predictedDelta + d.predictor.Tolerance()) * float64(time.Second)))
			if !arrivalTime.Before(deadline) {
				d.Counters.AssumedLost++
				events = append(events, Event{Kind: EventAssumedLost, SequenceNumber: gap})
				events = append(events, Event{Kind: EventRetransmissionRequested, SequenceNumber: gap})
			} else {
				d.pending[gap] = pendingGap{sequenceNumber: gap, deadline: deadline}
			}
		}
	}

	// A reordered arrival below the running maximum only resolves its
	// pending entry above; it must not drag the position backwards or
	// feed the predictor a bogus inter-arrival delta.
	if !d.haveLast || sequenceNumber > d.lastSeq {
		d.lastArrival = arrivalTime
		d.lastSeq = sequenceNumber
	}
	d.haveLast = true
	return events
}

// Tick resolves any pending gaps whose deadline has passed without an
// arrival, to be called by the runtime's timer sweep.
func (d *Detector) Tick(now time.Time) []Event {
	var events []Event
	for seq, p := range d.pending {
		if !now.Before(p.deadline) {
			delete(d.pending, seq)
			d.Counters.AssumedLost++
			events = append(events, Event{Kind: EventAssumedLost, SequenceNumber: seq})
			events = append(events, Event{Kind: EventRetransmissionRequested, SequenceNumber: seq})
		}
	}
	return events
}

// CancelPending removes a pending gap before a retransmission request is
// sent (e.g. the playout deadline already passed), counting it as
// cancelled rather than a false positive.
func (d *Detector) CancelPending(sequenceNumber uint32) bool {
	if _, ok := d.pending[sequenceNumber]; ok {
		delete(d.pending, sequenceNumber)
		d.Counters.CancelledRetransmission++
		return true
	}
	return false
}

// NoteRedundantArrival records that a sequence number the caller had
// already requested a retransmission for arrived normally first.
func (d *Detector) NoteRedundantArrival() {
	d.Counters.RedundantRetransmission++
}

func (d *Detector) Reset() {
	d.predictor.Reset()
	d.haveLast = false
	d.pending = make(map[uint32]pendingGap)
}
