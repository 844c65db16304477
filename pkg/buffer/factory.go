package buffer

import (
	"sync"

	"github.com/go-logr/logr"
	"github.com/pion/transport/packetio"
)

// Logger is the package-wide fallback logger NewFactory uses when it is
// given a zero logger.
var Logger logr.Logger = logr.Discard()

const trackingPacketsDefault = 500

// Factory centrally manages, per synchronization source, the send-side
// RetransmitCache/NackQueue pair and a non-blocking receive demux buffer:
// one Factory per session, consulted by the runtime whenever it starts
// tracking a new SSRC on send or receive.
type Factory struct {
	mu            sync.RWMutex
	pool          *sync.Pool
	retransmit    map[uint32]*RetransmitCache
	nackQueues    map[uint32]*NackQueue
	demux         map[uint32]*packetio.Buffer
	logger        logr.Logger
}

// NewFactory returns a Factory whose retransmit caches each span
// trackingPackets slots and so retain up to trackingPackets-1 packets. A
// zero logger falls back to Logger.
func NewFactory(trackingPackets int, logger logr.Logger) *Factory {
	if trackingPackets <= 0 {
		trackingPackets = trackingPacketsDefault
	}
	if logger == (logr.Logger{}) {
		logger = Logger
	}
	return &Factory{
		pool: &sync.Pool{
			New: func() interface{} {
				b := make([]byte, trackingPackets*maxPacketSize)
				return &b
			},
		},
		retransmit: make(map[uint32]*RetransmitCache),
		nackQueues: make(map[uint32]*NackQueue),
		demux:      make(map[uint32]*packetio.Buffer),
		logger:     logger,
	}
}

// RetransmitCacheFor returns (creating if absent) the send-side
// retransmission cache for ssrc.
func (f *Factory) RetransmitCacheFor(ssrc uint32) *RetransmitCache {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.retransmit[ssrc]; ok {
		return c
	}
	backing := f.pool.Get().(*[]byte)
	c := NewRetransmitCache(*backing)
	f.retransmit[ssrc] = c
	return c
}

// NackQueueFor returns (creating if absent) the NACK bookkeeping queue for
// ssrc.
func (f *Factory) NackQueueFor(ssrc uint32) *NackQueue {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q, ok := f.nackQueues[ssrc]; ok {
		return q
	}
	q := NewNackQueue()
	f.nackQueues[ssrc] = q
	return q
}

// DemuxFor returns (creating if absent) a non-blocking, bounded
// read/write buffer for ssrc's incoming datagrams: once
// trackingPacketsDefault packets are queued, further writes fail instead
// of blocking the writer. The runtime's receive loop does not use it; it
// posts each datagram straight to the session executor.
func (f *Factory) DemuxFor(ssrc uint32) *packetio.Buffer {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.demux[ssrc]; ok {
		return b
	}
	b := packetio.NewBuffer()
	b.SetLimitCount(trackingPacketsDefault)
	f.demux[ssrc] = b
	return b
}

// Remove releases ssrc's cache, queue and demux buffer, returning the
// retransmit cache's backing array to the pool.
func (f *Factory) Remove(ssrc uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c, ok := f.retransmit[ssrc]; ok {
		backing := c.buf
		f.pool.Put(&backing)
		delete(f.retransmit, ssrc)
	}
	delete(f.nackQueues, ssrc)
	if b, ok := f.demux[ssrc]; ok {
		_ = b.Close()
		delete(f.demux, ssrc)
	}
}
