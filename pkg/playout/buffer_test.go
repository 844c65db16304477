package playout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSimpleGroupEmitsInSequenceOrder(t *testing.T) {
	b := New()
	now := time.Now()
	deadline := now.Add(time.Second)

	groups := b.Push(Packet{SequenceNumber: 2, Timestamp: 90000, Payload: []byte("c")}, now, deadline)
	require.Empty(t, groups)
	groups = b.Push(Packet{SequenceNumber: 0, Timestamp: 90000, Payload: []byte("a")}, now, deadline)
	require.Empty(t, groups)
	groups = b.Push(Packet{SequenceNumber: 1, Timestamp: 90000, Payload: []byte("b")}, now, deadline)
	require.Empty(t, groups)

	// A packet with a later timestamp flushes the completed group.
	groups = b.Push(Packet{SequenceNumber: 3, Timestamp: 180000, Payload: []byte("d")}, now, deadline)
	require.Len(t, groups, 1)
	require.Equal(t, uint32(90000), groups[0].Timestamp)
	require.Len(t, groups[0].Packets, 3)
	require.Equal(t, uint16(0), groups[0].Packets[0].SequenceNumber)
	require.Equal(t, uint16(1), groups[0].Packets[1].SequenceNumber)
	require.Equal(t, uint16(2), groups[0].Packets[2].SequenceNumber)
}

func TestGroupEmitsOnTimeout(t *testing.T) {
	b := New()
	now := time.Now()
	b.Push(Packet{SequenceNumber: 0, Timestamp: 90000, Payload: []byte("a")}, now, now.Add(10*time.Millisecond))

	groups := b.Tick(now)
	require.Empty(t, groups)

	groups = b.Tick(now.Add(20 * time.Millisecond))
	require.Len(t, groups, 1)
	require.True(t, groups[0].TimedOut)
}

func TestLateArrivalAfterEmissionIsDiscarded(t *testing.T) {
	b := New()
	now := time.Now()
	var lateSeen []Packet
	b.LateArrival = func(p Packet) { lateSeen = append(lateSeen, p) }

	b.Push(Packet{SequenceNumber: 0, Timestamp: 90000, Payload: []byte("a")}, now, now.Add(time.Second))
	groups := b.Push(Packet{SequenceNumber: 1, Timestamp: 180000, Payload: []byte("b")}, now, now.Add(time.Second))
	require.Len(t, groups, 1)

	// A straggler for the already-emitted timestamp 90000 group.
	late := b.Push(Packet{SequenceNumber: 2, Timestamp: 90000, Payload: []byte("late")}, now, now.Add(time.Second))
	require.Empty(t, late)
	require.Len(t, lateSeen, 1)
	require.True(t, lateSeen[0].Late)
}
