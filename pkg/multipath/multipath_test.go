package multipath

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7956968/rtpcore/pkg/rtppacket"
)

func TestNextSubflowRoundRobins(t *testing.T) {
	tr := NewTranslator(5, []uint16{2, 1})
	require.Equal(t, uint16(1), tr.NextSubflow())
	require.Equal(t, uint16(2), tr.NextSubflow())
	require.Equal(t, uint16(1), tr.NextSubflow())
}

func TestTagThenStripRoundTrips(t *testing.T) {
	tr := NewTranslator(5, []uint16{1, 2})
	pkt := &rtppacket.Packet{SequenceNumber: 10}
	tr.Tag(pkt, 1)
	tr.Tag(pkt, 1) // re-tag overwrites, leaving the second sequence number

	tag, ok, err := tr.Strip(pkt)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint16(1), tag.SubflowID)
	require.Equal(t, uint16(1), tag.SubflowSequenceNumber)

	_, ok, err = tr.Strip(pkt)
	require.NoError(t, err)
	require.False(t, ok, "extension element must be removed by the first Strip")
}

func TestStripWithoutTagIsSinglePath(t *testing.T) {
	tr := NewTranslator(5, []uint16{1})
	pkt := &rtppacket.Packet{SequenceNumber: 1}
	_, ok, err := tr.Strip(pkt)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWrapThenDemuxRoundTrips(t *testing.T) {
	reports := map[uint16][]byte{
		1: {0x01, 0x02},
		2: {0x03, 0x04, 0x05},
	}
	w := WrapReports(reports)
	got, err := Demux(w)
	require.NoError(t, err)
	require.Equal(t, reports, got)
}
