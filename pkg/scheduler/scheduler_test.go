package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeterministicAudioVideoMinimum(t *testing.T) {
	p := Params{IsSender: false, SenderCount: 0, MemberCount: 2, AverageControlSize: 100, SessionBandwidthKbps: 1}
	td := Deterministic(p)
	require.Equal(t, 5.0, td) // bandwidth so low the floor of 5s wins
}

func TestDeterministicFeedbackProfileMinimum(t *testing.T) {
	// AVPF, 500 kbit/s, point-to-point initial report.
	p := Params{
		IsSender:             false,
		SenderCount:          1,
		MemberCount:          2,
		AverageControlSize:   1,
		SessionBandwidthKbps: 500,
		PointToPoint:         true,
		Profile:              ProfileAudioVideoFeedback,
	}
	got := minimumInterval(p)
	require.InDelta(t, 0.72, got, 0.001)
}

func TestNextIntervalWithinBounds(t *testing.T) {
	s := New()
	s.rand = func() float64 { return 0.5 } // midpoint of [0,1) -> multiplier 1.0
	p := Params{SenderCount: 0, MemberCount: 2, AverageControlSize: 100, SessionBandwidthKbps: 64}
	td := Deterministic(p)
	interval := s.NextInterval(p)
	require.InDelta(t, td/randomizationCompensation, interval, 1e-9)
}

func TestNextIntervalFloorsPointToPointInitialDeterministic(t *testing.T) {
	s := New()
	s.rand = func() float64 { return 0.5 } // midpoint of [0,1) -> multiplier 1.0
	p := Params{
		SenderCount:          0,
		MemberCount:          2,
		AverageControlSize:   1,
		SessionBandwidthKbps: 100000,
		PointToPoint:         true,
		Profile:              ProfileAudioVideoFeedback,
	}

	rawTd := Deterministic(p)
	require.Less(t, rawTd, 1.0) // without the floor this report interval would be well under 1s

	interval := s.NextInterval(p)
	require.InDelta(t, 1.0/randomizationCompensation, interval, 1e-9)
	require.False(t, s.initial)

	// second call is no longer "initial" so the floor doesn't apply.
	interval2 := s.NextInterval(p)
	require.InDelta(t, rawTd/randomizationCompensation, interval2, 1e-9)
}

func TestFeedbackBudgetOncePerInterval(t *testing.T) {
	b := NewFeedbackBudget(1000)
	require.True(t, b.AllowImmediate(200))
	require.False(t, b.AllowImmediate(200)) // already used this interval
	b.ResetInterval()
	require.True(t, b.AllowImmediate(200))
}

func TestFeedbackBudgetRejectsOverspend(t *testing.T) {
	b := NewFeedbackBudget(100)
	require.False(t, b.AllowImmediate(200))
}

func TestReducedSizeAllowed(t *testing.T) {
	require.True(t, ReducedSizeAllowed(true, false))
	require.False(t, ReducedSizeAllowed(true, true))
	require.False(t, ReducedSizeAllowed(false, false))
}

func TestMultipathSchedulerPerSubflow(t *testing.T) {
	m := NewMultipathScheduler()
	p1 := SubflowParams{SubflowID: 1, Params: Params{MemberCount: 2, AverageControlSize: 100, SessionBandwidthKbps: 64}}
	p2 := SubflowParams{SubflowID: 2, Params: Params{MemberCount: 2, AverageControlSize: 100, SessionBandwidthKbps: 64}}
	i1 := m.NextInterval(p1)
	i2 := m.NextInterval(p2)
	require.Greater(t, i1, 0.0)
	require.Greater(t, i2, 0.0)
	require.Len(t, m.subflows, 2)

	m.RemoveSubflow(1)
	require.Len(t, m.subflows, 1)
}
