// Package buffer is the send-side retransmission cache and NACK
// bookkeeping: a fixed-size ring buffer keyed by sequence number holding
// recently sent packets, and a bounded queue turning observed gaps into
// compact RFC 4585 generic-NACK FCI entries.
package buffer

import "encoding/binary"

const maxPacketSize = 1500

// RetransmitCache is a fixed-size ring buffer of recently transmitted
// packets, indexed by 16-bit sequence number, so a requested
// retransmission can be served without re-packetizing.
type RetransmitCache struct {
	buf      []byte
	init     bool
	step     int
	headSN   uint16
	maxSteps int
}

// NewRetransmitCache wraps a backing slice (typically pool-allocated by
// Factory) as a ring buffer holding at most len(backing)/maxPacketSize - 1
// packets.
func NewRetransmitCache(backing []byte) *RetransmitCache {
	maxSteps := len(backing)/maxPacketSize - 1
	if maxSteps < 1 {
		maxSteps = 1
	}
	return &RetransmitCache{buf: backing, maxSteps: maxSteps}
}

// Store records a packet just sent in order with the given sequence
// number, evicting the oldest slot in the ring.
func (c *RetransmitCache) Store(sn uint16, pkt []byte) {
	if !c.init {
		c.headSN = sn - 1
		c.init = true
	}
	diff := sn - c.headSN
	c.headSN = sn
	for i := uint16(1); i < diff; i++ {
		c.advance()
	}
	c.push(pkt)
}

func (c *RetransmitCache) advance() {
	c.step++
	if c.step >= c.maxSteps {
		c.step = 0
	}
}

func (c *RetransmitCache) push(pkt []byte) {
	off := c.step * maxPacketSize
	binary.BigEndian.PutUint16(c.buf[off:], uint16(len(pkt)))
	copy(c.buf[off+2:], pkt)
	c.advance()
}

// Fetch copies the cached packet for sn into dst, returning the number of
// bytes written. It fails with errPacketNotFound if sn fell outside the
// retained window, and errBufferTooSmall if dst cannot hold it.
func (c *RetransmitCache) Fetch(dst []byte, sn uint16) (int, error) {
	if !c.init || c.headSN-sn >= uint16(c.maxSteps) {
		return 0, errPacketNotFound
	}
	pos := c.step - int(c.headSN-sn) - 1
	if pos < 0 {
		pos += c.maxSteps
	}
	off := pos * maxPacketSize
	if off < 0 || off+2 > len(c.buf) {
		return 0, errPacketNotFound
	}
	size := int(binary.BigEndian.Uint16(c.buf[off : off+2]))
	if size == 0 || off+2+size > len(c.buf) {
		return 0, errPacketNotFound
	}
	if len(dst) < size {
		return 0, errBufferTooSmall
	}
	copy(dst, c.buf[off+2:off+2+size])
	return size, nil
}
