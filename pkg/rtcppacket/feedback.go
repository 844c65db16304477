package rtcppacket

import (
	"encoding/binary"

	"github.com/pion/rtcp"

	"github.com/7956968/rtpcore/pkg/errkind"
)

// Feedback message types negotiated per session, carried in the 5-bit FMT
// field of a FeedbackTransportLayer/FeedbackPayloadSpecific packet (RFC
// 4585 §6.1).
const (
	FMTGenericNACK           = 1  // transport-layer FB, RFC 4585 §6.2.1
	FMTPictureLossIndication = 1  // payload-specific FB, RFC 4585 §6.3.1
	FMTApplicationLayerFMT   = 15 // payload-specific FB, RFC 4585 §6.4
	FMTTransportWideCC       = 15 // transport-layer FB, draft-holmer-rmcat-transport-wide-cc-extensions
)

// FeedbackTransportLayer is a transport-layer feedback message (payload
// type 205), e.g. generic NACK.
type FeedbackTransportLayer struct {
	FMT       uint8
	SenderSSRC uint32
	MediaSSRC  uint32
	FCI        []byte
}

func marshalFeedback(packetType uint8, fmt uint8, senderSSRC, mediaSSRC uint32, fci []byte) []byte {
	body := make([]byte, 8+len(fci))
	binary.BigEndian.PutUint32(body[0:4], senderSSRC)
	binary.BigEndian.PutUint32(body[4:8], mediaSSRC)
	copy(body[8:], fci)
	hdr := Header{}.marshal(packetType, fmt&0x1F, len(body))
	return append(hdr, body...)
}

func unmarshalFeedback(buf []byte, wantType uint8) (fmt uint8, senderSSRC, mediaSSRC uint32, fci []byte, err error) {
	h, perr := parseHeader(buf)
	if perr != nil {
		return 0, 0, 0, nil, perr
	}
	if h.PacketType != wantType {
		return 0, 0, 0, nil, errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	total := wordsToBytes(h.Length)
	if len(buf) < total || total < 12 {
		return 0, 0, 0, nil, errkind.New(errkind.WireFormat, errShort)
	}
	fmt = h.Count
	senderSSRC = binary.BigEndian.Uint32(buf[4:8])
	mediaSSRC = binary.BigEndian.Uint32(buf[8:12])
	fci = append([]byte(nil), buf[12:total]...)
	return fmt, senderSSRC, mediaSSRC, fci, nil
}

func (f *FeedbackTransportLayer) Marshal() ([]byte, error) {
	return marshalFeedback(PTFeedbackTransportLayer, f.FMT, f.SenderSSRC, f.MediaSSRC, f.FCI), nil
}

func (f *FeedbackTransportLayer) Unmarshal(buf []byte) error {
	fmtv, s, m, fci, err := unmarshalFeedback(buf, PTFeedbackTransportLayer)
	if err != nil {
		return err
	}
	f.FMT, f.SenderSSRC, f.MediaSSRC, f.FCI = fmtv, s, m, fci
	return nil
}

// EncodeGenericNACK packs a list of PID+BLP pairs (RFC 4585 §6.2.1) into
// the feedback message's FCI, taking the pairs as pion/rtcp NackPair values
// and writing each one as two big-endian 16-bit words (PID, then BLP).
func EncodeGenericNACK(pairs []rtcp.NackPair) []byte {
	fci := make([]byte, 4*len(pairs))
	for i, p := range pairs {
		binary.BigEndian.PutUint16(fci[i*4:i*4+2], p.PacketID)
		binary.BigEndian.PutUint16(fci[i*4+2:i*4+4], uint16(p.LostPackets))
	}
	return fci
}

// DecodeGenericNACK is the inverse of EncodeGenericNACK.
func DecodeGenericNACK(fci []byte) ([]rtcp.NackPair, error) {
	if len(fci)%4 != 0 {
		return nil, errkind.New(errkind.WireFormat, errShort)
	}
	out := make([]rtcp.NackPair, len(fci)/4)
	for i := range out {
		out[i] = rtcp.NackPair{
			PacketID:    binary.BigEndian.Uint16(fci[i*4 : i*4+2]),
			LostPackets: rtcp.PacketBitmap(binary.BigEndian.Uint16(fci[i*4+2 : i*4+4])),
		}
	}
	return out, nil
}

// FeedbackPayloadSpecific is a payload-specific feedback message (payload
// type 206), e.g. picture loss indication, full intra request, or a
// REMB/goog-remb-style application extension carried in the FCI.
type FeedbackPayloadSpecific struct {
	FMT        uint8
	SenderSSRC uint32
	MediaSSRC  uint32
	FCI        []byte
}

func (f *FeedbackPayloadSpecific) Marshal() ([]byte, error) {
	return marshalFeedback(PTFeedbackPayloadSpecific, f.FMT, f.SenderSSRC, f.MediaSSRC, f.FCI), nil
}

func (f *FeedbackPayloadSpecific) Unmarshal(buf []byte) error {
	fmtv, s, m, fci, err := unmarshalFeedback(buf, PTFeedbackPayloadSpecific)
	if err != nil {
		return err
	}
	f.FMT, f.SenderSSRC, f.MediaSSRC, f.FCI = fmtv, s, m, fci
	return nil
}

// FeedbackApplicationLayer is the application-layer feedback message (RFC
// 4585 §6.4): payload type 206 with FMT fixed to 15, opaque FCI.
type FeedbackApplicationLayer struct {
	SenderSSRC uint32
	MediaSSRC  uint32
	FCI        []byte
}

func (f *FeedbackApplicationLayer) Marshal() ([]byte, error) {
	return marshalFeedback(PTFeedbackPayloadSpecific, FMTApplicationLayerFMT, f.SenderSSRC, f.MediaSSRC, f.FCI), nil
}

func (f *FeedbackApplicationLayer) Unmarshal(buf []byte) error {
	fmtv, s, m, fci, err := unmarshalFeedback(buf, PTFeedbackPayloadSpecific)
	if err != nil {
		return err
	}
	if fmtv != FMTApplicationLayerFMT {
		return errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	f.SenderSSRC, f.MediaSSRC, f.FCI = s, m, fci
	return nil
}
