package rtcppacket

import (
	"encoding/binary"

	"github.com/7956968/rtpcore/pkg/errkind"
)

// XR block types this module understands (RFC 3611). Unknown block types
// are preserved as opaque payload so a compound packet still round-trips
// byte-for-byte even when it carries a block type we don't interpret.
const (
	XRBlockReceiverReferenceTime = 4
	XRBlockDLRR                  = 5
)

// XRBlock is one report block inside an ExtendedReport, kept in its raw
// wire shape (type, reserved byte, payload); Receiver Reference Time and
// DLRR blocks additionally get typed accessors below.
type XRBlock struct {
	Type     uint8
	Reserved uint8
	Payload  []byte // whole number of 4-byte words
}

func (b XRBlock) marshal() []byte {
	words := len(b.Payload) / 4
	buf := make([]byte, 4+len(b.Payload))
	buf[0] = b.Type
	buf[1] = b.Reserved
	binary.BigEndian.PutUint16(buf[2:4], uint16(words))
	copy(buf[4:], b.Payload)
	return buf
}

func parseXRBlock(buf []byte) (XRBlock, int, error) {
	if len(buf) < 4 {
		return XRBlock{}, 0, errkind.New(errkind.WireFormat, errShort)
	}
	words := int(binary.BigEndian.Uint16(buf[2:4]))
	total := 4 + words*4
	if len(buf) < total {
		return XRBlock{}, 0, errkind.New(errkind.WireFormat, errShort)
	}
	return XRBlock{Type: buf[0], Reserved: buf[1], Payload: append([]byte(nil), buf[4:total]...)}, total, nil
}

// ExtendedReport is the RTCP XR packet (RFC 3611 §3, payload type 207).
type ExtendedReport struct {
	SSRC   uint32
	Blocks []XRBlock
}

func (xr *ExtendedReport) Marshal() ([]byte, error) {
	var body []byte
	for _, b := range xr.Blocks {
		body = append(body, b.marshal()...)
	}
	bodyLen := 4 + len(body)
	hdr := Header{}.marshal(PTExtendedReport, 0, bodyLen)
	buf := make([]byte, 4+bodyLen)
	copy(buf, hdr)
	binary.BigEndian.PutUint32(buf[4:8], xr.SSRC)
	copy(buf[8:], body)
	return buf, nil
}

func (xr *ExtendedReport) Unmarshal(buf []byte) error {
	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	if h.PacketType != PTExtendedReport {
		return errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	total := wordsToBytes(h.Length)
	if len(buf) < total || total < 8 {
		return errkind.New(errkind.WireFormat, errShort)
	}
	xr.SSRC = binary.BigEndian.Uint32(buf[4:8])
	xr.Blocks = nil
	off := 8
	for off < total {
		b, n, err := parseXRBlock(buf[off:total])
		if err != nil {
			return err
		}
		xr.Blocks = append(xr.Blocks, b)
		off += n
	}
	return nil
}

// ReceiverReferenceTimeBlock (RFC 3611 §4.4) echoes a 64-bit NTP timestamp
// so the sender can later compute round-trip time from a matching DLRR.
type ReceiverReferenceTimeBlock struct {
	NTPTimestamp uint64
}

// EncodeReceiverReferenceTime builds the XR block carrying the given NTP
// timestamp.
func EncodeReceiverReferenceTime(b ReceiverReferenceTimeBlock) XRBlock {
	payload := make([]byte, 8)
	binary.BigEndian.PutUint64(payload, b.NTPTimestamp)
	return XRBlock{Type: XRBlockReceiverReferenceTime, Payload: payload}
}

// DecodeReceiverReferenceTime parses a Receiver Reference Time block.
func DecodeReceiverReferenceTime(b XRBlock) (ReceiverReferenceTimeBlock, error) {
	if b.Type != XRBlockReceiverReferenceTime || len(b.Payload) < 8 {
		return ReceiverReferenceTimeBlock{}, errkind.New(errkind.WireFormat, errShort)
	}
	return ReceiverReferenceTimeBlock{NTPTimestamp: binary.BigEndian.Uint64(b.Payload[0:8])}, nil
}

// DLRRSubBlock is one per-source entry inside a DLRR block: the SSRC being
// reported on, the middle 32 bits of its last-received Receiver Reference
// Time, and the delay since then (units of 1/65536 second).
type DLRRSubBlock struct {
	SSRC             uint32
	LastRR           uint32
	DelaySinceLastRR uint32
}

// EncodeDLRR builds the XR block carrying one or more DLRR sub-blocks (RFC
// 3611 §4.5).
func EncodeDLRR(subs []DLRRSubBlock) XRBlock {
	payload := make([]byte, 12*len(subs))
	for i, s := range subs {
		binary.BigEndian.PutUint32(payload[i*12:i*12+4], s.SSRC)
		binary.BigEndian.PutUint32(payload[i*12+4:i*12+8], s.LastRR)
		binary.BigEndian.PutUint32(payload[i*12+8:i*12+12], s.DelaySinceLastRR)
	}
	return XRBlock{Type: XRBlockDLRR, Payload: payload}
}

// DecodeDLRR parses a DLRR block's sub-blocks.
func DecodeDLRR(b XRBlock) ([]DLRRSubBlock, error) {
	if b.Type != XRBlockDLRR || len(b.Payload)%12 != 0 {
		return nil, errkind.New(errkind.WireFormat, errShort)
	}
	out := make([]DLRRSubBlock, len(b.Payload)/12)
	for i := range out {
		off := i * 12
		out[i] = DLRRSubBlock{
			SSRC:             binary.BigEndian.Uint32(b.Payload[off : off+4]),
			LastRR:           binary.BigEndian.Uint32(b.Payload[off+4 : off+8]),
			DelaySinceLastRR: binary.BigEndian.Uint32(b.Payload[off+8 : off+12]),
		}
	}
	return out, nil
}
