package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRetransmitCacheStoreFetch(t *testing.T) {
	c := NewRetransmitCache(make([]byte, 10*maxPacketSize))
	for sn := uint16(100); sn < 110; sn++ {
		c.Store(sn, []byte{byte(sn)})
	}
	dst := make([]byte, maxPacketSize)
	n, err := c.Fetch(dst, 105)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, byte(105), dst[0])
}

func TestRetransmitCacheEvictsOldest(t *testing.T) {
	c := NewRetransmitCache(make([]byte, 4*maxPacketSize)) // maxSteps == 3
	for sn := uint16(0); sn < 10; sn++ {
		c.Store(sn, []byte{byte(sn)})
	}
	dst := make([]byte, maxPacketSize)
	_, err := c.Fetch(dst, 0)
	require.Error(t, err)
	_, err = c.Fetch(dst, 9)
	require.NoError(t, err)
}

func TestNackQueueCompressesConsecutiveGaps(t *testing.T) {
	q := NewNackQueue()
	q.Push(100)
	q.Push(101)
	q.Push(103)
	q.Push(105)

	pairs, exhausted := q.Pairs()
	require.False(t, exhausted)
	require.Len(t, pairs, 1)
	require.Equal(t, uint16(100), pairs[0].PacketID)
	require.NotZero(t, pairs[0].LostPackets&(1<<0)) // 101
	require.NotZero(t, pairs[0].LostPackets&(1<<2)) // 103
	require.NotZero(t, pairs[0].LostPackets&(1<<4)) // 105
}

func TestNackQueueExhaustsAfterMaxAttempts(t *testing.T) {
	q := NewNackQueue()
	q.Push(42)
	var exhausted bool
	for i := 0; i < MaxNackAttempts; i++ {
		_, exhausted = q.Pairs()
	}
	require.False(t, exhausted)
	_, exhausted = q.Pairs()
	require.True(t, exhausted)
}

func TestNackQueueRemove(t *testing.T) {
	q := NewNackQueue()
	q.Push(1)
	q.Push(2)
	q.Remove(1)
	pairs, _ := q.Pairs()
	require.Len(t, pairs, 1)
	require.Equal(t, uint16(2), pairs[0].PacketID)
}
