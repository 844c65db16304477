package rtppacket

import (
	"encoding/binary"

	"github.com/7956968/rtpcore/pkg/errkind"
	"github.com/7956968/rtpcore/pkg/ntptime"
)

// Recognized header-extension URIs. The numeric id each one is assigned to
// on the wire is negotiated externally and carried in the session
// parameters' header-extension map (uri -> id); these constants only name
// the well-known shapes this module knows how to read and write.
const (
	URINTP64             = "urn:ietf:params:rtp-hdrext:ntp-64"
	URINTP56              = "urn:ietf:params:rtp-hdrext:ntp-56" // recognized, parsing deferred
	URISubflow            = "urn:ietf:params:mprtp:subflow"
	URIControlInExtension = "urn:ietf:params:rtp-hdrext:rtcp-in-ext"
)

// EncodeNTP64 builds the 8-octet payload for the wall-clock synchronization
// element: 32-bit seconds followed by 32-bit fraction.
func EncodeNTP64(ts ntptime.Timestamp) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], ts.Seconds())
	binary.BigEndian.PutUint32(buf[4:8], ts.Fraction())
	return buf
}

// DecodeNTP64 parses the 8-octet wall-clock synchronization element.
func DecodeNTP64(payload []byte) (ntptime.Timestamp, error) {
	if len(payload) != 8 {
		return 0, errkind.New(errkind.WireFormat, errShortHeader)
	}
	return ntptime.Join(binary.BigEndian.Uint32(payload[0:4]), binary.BigEndian.Uint32(payload[4:8])), nil
}

// DecodeNTP56 is unsupported: the 56-bit synchronization extension's wire
// layout is not well specified across implementations, so it always
// returns a WireFormat error without parsing the payload. Packet decoding
// does not call it, so a packet carrying the element is not rejected.
func DecodeNTP56(payload []byte) error {
	return errkind.New(errkind.WireFormat, errUnsupportedNTP56)
}

// SubflowTag is the MPRTP subflow header: a 16-bit subflow id and a 16-bit
// subflow-specific sequence number, 4 octets on the wire.
type SubflowTag struct {
	SubflowID            uint16
	SubflowSequenceNumber uint16
}

// EncodeSubflowTag builds the 4-octet subflow header payload.
func EncodeSubflowTag(t SubflowTag) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], t.SubflowID)
	binary.BigEndian.PutUint16(buf[2:4], t.SubflowSequenceNumber)
	return buf
}

// DecodeSubflowTag parses the 4-octet subflow header payload.
func DecodeSubflowTag(payload []byte) (SubflowTag, error) {
	if len(payload) != 4 {
		return SubflowTag{}, errkind.New(errkind.WireFormat, errShortHeader)
	}
	return SubflowTag{
		SubflowID:             binary.BigEndian.Uint16(payload[0:2]),
		SubflowSequenceNumber: binary.BigEndian.Uint16(payload[2:4]),
	}, nil
}
