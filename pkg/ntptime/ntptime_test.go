package ntptime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRoundTripAtSecondBoundary(t *testing.T) {
	in := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)
	ts := FromTime(in)
	out := ToTime(ts)
	require.True(t, in.Equal(out))
}

func TestRoundTripSubNanosecondTick(t *testing.T) {
	in := time.Date(2026, 7, 29, 12, 0, 0, 123456789, time.UTC)
	ts := FromTime(in)
	out := ToTime(ts)
	require.WithinDuration(t, in, out, time.Nanosecond)
}

func TestMiddle32(t *testing.T) {
	ts := Join(0x0102FFFF, 0xABCD0000)
	require.EqualValues(t, 0xFFFFABCD, ts.Middle32())
}

func TestSequenceWrap(t *testing.T) {
	require.True(t, IsLaterSequence(0xFFFF, 0x0000))
	require.False(t, IsLaterSequence(0x0000, 0xFFFF))
}

func TestTimestampWrap(t *testing.T) {
	require.True(t, IsLaterTimestamp(0xFFFFFFFF, 0x00000001))
}
