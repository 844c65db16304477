package twcc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecorderNotDueWithoutArrivals(t *testing.T) {
	r := NewRecorder(1, 2)
	require.False(t, r.Due(time.Now(), false))
}

func TestRecorderDueAfterReportInterval(t *testing.T) {
	r := NewRecorder(1, 2)
	base := time.Now()
	r.Push(0, base)
	require.False(t, r.Due(base.Add(10*time.Millisecond), false))
	require.True(t, r.Due(base.Add(101*time.Millisecond), false))
}

func TestRecorderDueAfterMarkerShortensInterval(t *testing.T) {
	r := NewRecorder(1, 2)
	base := time.Now()
	r.Push(0, base)
	require.False(t, r.Due(base.Add(40*time.Millisecond), true))
	require.True(t, r.Due(base.Add(51*time.Millisecond), true))
}

func TestBuildFeedbackFillsGapsAsNotReceived(t *testing.T) {
	r := NewRecorder(0xAABBCCDD, 0x11223344)
	base := time.Now()
	r.Push(10, base)
	r.Push(11, base.Add(5*time.Millisecond))
	r.Push(14, base.Add(20*time.Millisecond)) // 12, 13 missing

	fci := r.BuildFeedback(base.Add(30 * time.Millisecond))
	require.NotNil(t, fci)
	require.GreaterOrEqual(t, len(fci), fixedHeaderSize)
	require.Zero(t, len(fci)%4, "feedback FCI must be word-aligned")

	require.Equal(t, 0, r.entries.Len(), "BuildFeedback must drain pending arrivals")
}

func TestBuildFeedbackReturnsNilWithNothingPending(t *testing.T) {
	r := NewRecorder(1, 2)
	require.Nil(t, r.BuildFeedback(time.Now()))
}

func TestFeedbackMessageCarriesSSRCsAndFMT(t *testing.T) {
	r := NewRecorder(0xAABBCCDD, 0x11223344)
	r.Push(1, time.Now())

	msg := r.FeedbackMessage(time.Now())
	require.NotNil(t, msg)
	require.Equal(t, uint32(0xAABBCCDD), msg.SenderSSRC)
	require.Equal(t, uint32(0x11223344), msg.MediaSSRC)
	require.NotEmpty(t, msg.FCI)
}

func TestPackStatusChunksRunLengthForUniformStatus(t *testing.T) {
	statuses := make([]uint8, 20)
	for i := range statuses {
		statuses[i] = statusTypeSmallDelta
	}
	chunks := packStatusChunks(statuses)
	require.Len(t, chunks, 1)
}

func TestPackStatusChunksVectorForShortMixedRun(t *testing.T) {
	statuses := []uint8{
		statusTypeSmallDelta, statusTypeNotReceived, statusTypeSmallDelta,
		statusTypeNotReceived, statusTypeSmallDelta, statusTypeNotReceived, statusTypeSmallDelta,
	}
	chunks := packStatusChunks(statuses)
	require.Len(t, chunks, 1)
	require.NotZero(t, chunks[0]&(1<<15), "mixed runs must use a status-vector chunk")
}
