// Package scheduler computes randomized RTCP reporting intervals per RFC
// 3550 §6.2, relaxed by RFC 4585's feedback-profile minimum. The
// deterministic-interval formula and the feedback-profile minimum follow
// RFC 3550 §6.3.1 and RFC 4585 §6.2.1; a Scheduler tracks whether the next
// report is a session's first, which clamps the point-to-point initial
// interval.
package scheduler

import (
	"math"
	"math/rand"
)

// Profile distinguishes a plain audio-video session from one that
// negotiated RTCP feedback messages.
type Profile int

const (
	ProfileAudioVideo Profile = iota
	ProfileAudioVideoFeedback
)

// randomizationCompensation is e - 1.5, the constant RFC 3550 §6.3.1 divides
// by to compensate for the fact that the uniform [0.5,1.5] multiplier would
// otherwise raise the expected interval above the deterministic one.
const randomizationCompensation = math.E - 1.5

// senderShare is the fraction of session bandwidth reserved for senders
// when they are a minority of the membership (RFC 3550 §6.3.4).
const senderShare = 0.25

// Params carries the per-tick inputs the scheduler needs to compute the
// next report interval.
type Params struct {
	IsSender               bool
	SenderCount            uint32
	MemberCount            uint32
	AverageControlSize     float64 // smoothed compound-control-packet size, bytes
	SessionBandwidthKbps   uint32
	PointToPoint           bool
	Profile                Profile
	ReducedMinimumNegotiated bool
}

// Scheduler tracks the "is this the first report" flag a session needs to
// clamp the point-to-point initial interval.
type Scheduler struct {
	initial bool
	rand    func() float64
}

// New returns a Scheduler ready for a session's first report.
func New() *Scheduler {
	return &Scheduler{initial: true, rand: rand.Float64}
}

// Deterministic computes T_d, the non-randomized reporting interval in
// seconds.
func Deterministic(p Params) float64 {
	bandwidthOctetsPerSec := float64(p.SessionBandwidthKbps) * 1000 / 8
	if bandwidthOctetsPerSec <= 0 {
		bandwidthOctetsPerSec = 1
	}

	var n float64
	if float64(p.SenderCount) > 0.25*float64(p.MemberCount) {
		n = float64(p.MemberCount)
	} else if p.IsSender {
		n = float64(p.SenderCount) / senderShare
	} else {
		n = float64(p.MemberCount-p.SenderCount) / (1 - senderShare)
	}
	if n < 1 {
		n = 1
	}

	td := n * p.AverageControlSize / bandwidthOctetsPerSec

	tmin := minimumInterval(p)
	if td < tmin {
		td = tmin
	}
	return td
}

func minimumInterval(p Params) float64 {
	if p.Profile == ProfileAudioVideoFeedback {
		return 360.0 / float64(p.SessionBandwidthKbps)
	}
	return 5.0
}

// NextInterval returns the randomized next reporting interval: the
// deterministic interval, raised to 1 second if this is the session's
// first report on a point-to-point link and would otherwise come out
// below that, then scaled by a uniform [0.5,1.5] draw and divided by the
// compensation constant.
func (s *Scheduler) NextInterval(p Params) float64 {
	td := Deterministic(p)
	if s.initial && p.PointToPoint && td < 1.0 {
		td = 1.0
	}
	r := 0.5 + s.rand()
	interval := td * r / randomizationCompensation

	s.initial = false
	return interval
}

// Reset rearms the initial-report clamp, used when a session regenerates
// its synchronization source after a collision.
func (s *Scheduler) Reset() { s.initial = true }
