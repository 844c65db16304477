package rtcppacket

import (
	"github.com/7956968/rtpcore/pkg/errkind"
)

// ControlPacket is the tagged-variant contract every control-packet kind
// satisfies. Dispatch on Marshal/Unmarshal is by PacketType.
type ControlPacket interface {
	Marshal() ([]byte, error)
	Unmarshal([]byte) error
	PacketType() uint8
}

func (sr *SenderReport) PacketType() uint8           { return PTSenderReport }
func (rr *ReceiverReport) PacketType() uint8         { return PTReceiverReport }
func (s *SourceDescription) PacketType() uint8       { return PTSourceDescription }
func (b *Bye) PacketType() uint8                     { return PTBye }
func (a *ApplicationDefined) PacketType() uint8      { return PTApplicationDefined }
func (f *FeedbackTransportLayer) PacketType() uint8  { return PTFeedbackTransportLayer }
func (f *FeedbackPayloadSpecific) PacketType() uint8 { return PTFeedbackPayloadSpecific }
func (f *FeedbackApplicationLayer) PacketType() uint8 { return PTFeedbackPayloadSpecific }
func (xr *ExtendedReport) PacketType() uint8         { return PTExtendedReport }
func (m *MultipathWrapper) PacketType() uint8        { return PTMultipathWrapper }

// newByType allocates a zero-value ControlPacket for the given wire payload
// type. FeedbackApplicationLayer shares a payload type with
// FeedbackPayloadSpecific (RFC 4585 distinguishes them by FMT=15), so it is
// only produced by ParseCompound after peeking the FMT field.
func newByType(packetType uint8) ControlPacket {
	switch packetType {
	case PTSenderReport:
		return &SenderReport{}
	case PTReceiverReport:
		return &ReceiverReport{}
	case PTSourceDescription:
		return &SourceDescription{}
	case PTBye:
		return &Bye{}
	case PTApplicationDefined:
		return &ApplicationDefined{}
	case PTFeedbackTransportLayer:
		return &FeedbackTransportLayer{}
	case PTFeedbackPayloadSpecific:
		return &FeedbackPayloadSpecific{}
	case PTExtendedReport:
		return &ExtendedReport{}
	case PTMultipathWrapper:
		return &MultipathWrapper{}
	default:
		return nil
	}
}

// CompoundControlPacket is an ordered list of control packets transmitted
// together.
type CompoundControlPacket struct {
	Packets []ControlPacket
	// PaddingLength, if non-zero, appends that many octets to the last
	// packet's wire encoding (the final octet holds the count) and sets its
	// padding bit, per RFC 3550 §6.1. The count is used as given, not
	// rounded up to a 4-byte boundary.
	PaddingLength uint8
}

// Marshal encodes every element in order, then applies trailing padding (if
// any) to the last element only.
func (c *CompoundControlPacket) Marshal() ([]byte, error) {
	var out []byte
	for i, p := range c.Packets {
		b, err := p.Marshal()
		if err != nil {
			return nil, err
		}
		if i == len(c.Packets)-1 && c.PaddingLength > 0 {
			b = applyPadding(b, c.PaddingLength)
		}
		out = append(out, b...)
	}
	return out, nil
}

func applyPadding(buf []byte, padLen uint8) []byte {
	buf[0] |= 0x20 // set the padding bit
	out := make([]byte, len(buf)+int(padLen))
	copy(out, buf)
	out[len(out)-1] = padLen
	// fix up the length field (words - 1) in the 4-byte common header.
	words := len(out)/4 - 1
	out[2] = byte(words >> 8)
	out[3] = byte(words)
	return out
}

// ParseOptions controls CompoundControlPacket validation strictness.
type ParseOptions struct {
	// Relaxed allows reduced-size RTCP (RFC 5506): the leading-report
	// requirement is dropped. Version consistency and length accounting
	// are still enforced.
	Relaxed bool
}

// ParseCompound splits and validates a compound control packet: in strict
// mode the first element must be a sender or receiver report; version must
// be 2 throughout; padding may only be set on the last element; the sum of
// component lengths must equal len(buf).
func ParseCompound(buf []byte, opts ParseOptions) (*CompoundControlPacket, error) {
	var out CompoundControlPacket
	off := 0
	for off < len(buf) {
		if off+4 > len(buf) {
			return nil, errkind.New(errkind.WireFormat, errShort)
		}
		version := buf[off] >> 6
		if version != 2 {
			return nil, errkind.New(errkind.WireFormat, errMixedVersions)
		}
		padded := buf[off]&0x20 != 0
		packetType := buf[off+1]

		// FeedbackApplicationLayer shares PTFeedbackPayloadSpecific with
		// plain payload-specific FB; distinguish by FMT.
		var cp ControlPacket
		if packetType == PTFeedbackPayloadSpecific && buf[off]&0x1F == FMTApplicationLayerFMT {
			cp = &FeedbackApplicationLayer{}
		} else {
			cp = newByType(packetType)
		}
		if cp == nil {
			return nil, errkind.New(errkind.WireFormat, errUnknownPayloadType)
		}

		length := wordsToBytes(uint16(buf[off+2])<<8 | uint16(buf[off+3]))
		if off+length > len(buf) {
			return nil, errkind.New(errkind.WireFormat, errLengthMismatch)
		}
		if err := cp.Unmarshal(buf[off : off+length]); err != nil {
			return nil, err
		}
		if padded && off+length != len(buf) {
			return nil, errkind.New(errkind.WireFormat, errPaddingNotLast)
		}
		if padded {
			out.PaddingLength = buf[off+length-1]
		}
		out.Packets = append(out.Packets, cp)
		off += length
	}
	if off != len(buf) {
		return nil, errkind.New(errkind.WireFormat, errLengthMismatch)
	}
	if !opts.Relaxed {
		if len(out.Packets) == 0 {
			return nil, errkind.New(errkind.WireFormat, errNotLeadingReport)
		}
		switch out.Packets[0].PacketType() {
		case PTSenderReport, PTReceiverReport:
		default:
			return nil, errkind.New(errkind.WireFormat, errNotLeadingReport)
		}
	}
	return &out, nil
}
