package buffer

import (
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/require"
)

func TestFactoryReturnsSameCachePerSSRC(t *testing.T) {
	f := NewFactory(10, logr.Discard())
	a := f.RetransmitCacheFor(1)
	b := f.RetransmitCacheFor(1)
	require.Same(t, a, b)
	require.NotSame(t, a, f.RetransmitCacheFor(2))
}

func TestFactoryDemuxBufferCarriesDatagrams(t *testing.T) {
	f := NewFactory(10, logr.Discard())
	demux := f.DemuxFor(7)

	_, err := demux.Write([]byte{1, 2, 3})
	require.NoError(t, err)

	out := make([]byte, 1500)
	n, err := demux.Read(out)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, out[:n])
}

func TestFactoryRemoveReleasesState(t *testing.T) {
	f := NewFactory(10, logr.Discard())
	first := f.RetransmitCacheFor(5)
	f.NackQueueFor(5)
	f.DemuxFor(5)

	f.Remove(5)

	require.NotSame(t, first, f.RetransmitCacheFor(5))
}
