// Package rtcppacket implements the RTCP control-packet wire formats this
// module needs: the common 4-byte header (RFC 3550 §6.1), sender/receiver
// reports, source description, BYE, application-defined packets, RFC 4585
// feedback messages, RFC 3611 extended reports, and the MPRTP multipath
// wrapper.
package rtcppacket

import (
	"encoding/binary"

	"github.com/7956968/rtpcore/pkg/errkind"
)

// Payload-type values for the control-packet variants (RFC 3550/3611/4585).
const (
	PTSenderReport              = 200
	PTReceiverReport            = 201
	PTSourceDescription         = 202
	PTBye                       = 203
	PTApplicationDefined        = 204
	PTFeedbackTransportLayer    = 205
	PTFeedbackPayloadSpecific   = 206
	PTExtendedReport            = 207
	PTMultipathWrapper          = 211
)

const version = 2

// Header is the common 4-byte RTCP header shared by every variant.
type Header struct {
	Version    uint8
	Padding    bool
	Count      uint8 // type-specific 5-bit field (RC, SC, FMT, subtype...)
	PacketType uint8
	// Length is the packet length in 4-byte words minus one, as carried on
	// the wire (RFC 3550 §6.1). Callers normally don't set this directly;
	// Marshal on each variant computes it.
	Length uint16
}

func (h Header) marshal(packetType uint8, count uint8, bodyLen int) []byte {
	buf := make([]byte, 4)
	b0 := uint8(version)<<6 | count&0x1F
	if h.Padding {
		b0 |= 0x20
	}
	buf[0] = b0
	buf[1] = packetType
	words := (4+bodyLen)/4 - 1
	binary.BigEndian.PutUint16(buf[2:4], uint16(words))
	return buf
}

func parseHeader(buf []byte) (Header, error) {
	if len(buf) < 4 {
		return Header{}, errkind.New(errkind.WireFormat, errShort)
	}
	h := Header{
		Version:    buf[0] >> 6,
		Padding:    buf[0]&0x20 != 0,
		Count:      buf[0] & 0x1F,
		PacketType: buf[1],
		Length:     binary.BigEndian.Uint16(buf[2:4]),
	}
	if h.Version != version {
		return h, errkind.New(errkind.Validation, errBadVersion)
	}
	return h, nil
}

// wordsToBytes converts an on-wire word count (length-1 encoding) back to
// the total byte length of the packet including its 4-byte header.
func wordsToBytes(length uint16) int {
	return (int(length) + 1) * 4
}
