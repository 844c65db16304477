// Package rtppacket implements the media-packet wire format: a 12-byte
// fixed header, optional contributing-source list, optional header
// extension block, payload and optional trailing padding — per RFC 3550
// §5.1.
package rtppacket

import (
	"encoding/binary"

	"github.com/7956968/rtpcore/pkg/errkind"
)

const (
	fixedHeaderSize = 12
	version         = 2

	oneByteExtensionProfile = 0xBEDE
	twoByteExtensionProfile = 0x1000
)

// ExtensionElement is one identified element inside a one-byte/two-byte
// header-extension block (RFC 8285). Recognized identities are mapped by a
// small integer id negotiated externally.
type ExtensionElement struct {
	ID      uint8
	Payload []byte
}

// HeaderExtension carries either a single opaque profile-defined block or
// a list of identified extension elements.
type HeaderExtension struct {
	// Profile is the 16-bit extension profile id from the wire. When it is
	// neither OneByteExtensionProfile nor TwoByteExtensionProfile, Opaque
	// holds the raw profile-defined block and Elements is empty.
	Profile  uint16
	Elements []ExtensionElement
	Opaque   []byte
}

// OneByteExtensionProfile / TwoByteExtensionProfile identify the RFC 8285
// encodings recognized on read.
const (
	OneByteExtensionProfile = oneByteExtensionProfile
	TwoByteExtensionProfile = twoByteExtensionProfile
)

// Get returns the payload of the element with the given id, if present.
func (h *HeaderExtension) Get(id uint8) ([]byte, bool) {
	for _, e := range h.Elements {
		if e.ID == id {
			return e.Payload, true
		}
	}
	return nil, false
}

// Set replaces (or appends) the element with the given id.
func (h *HeaderExtension) Set(id uint8, payload []byte) {
	for i := range h.Elements {
		if h.Elements[i].ID == id {
			h.Elements[i].Payload = payload
			return
		}
	}
	h.Elements = append(h.Elements, ExtensionElement{ID: id, Payload: payload})
}

// Delete removes the element with the given id, if present.
func (h *HeaderExtension) Delete(id uint8) {
	for i := range h.Elements {
		if h.Elements[i].ID == id {
			h.Elements = append(h.Elements[:i], h.Elements[i+1:]...)
			return
		}
	}
}

// Packet is a single RTP media packet.
type Packet struct {
	Version        uint8
	Padding        bool
	Marker         bool
	PayloadType    uint8
	SequenceNumber uint16
	Timestamp      uint32
	SSRC           uint32
	CSRC           []uint32 // 0-15 entries
	Extension      *HeaderExtension
	Payload        []byte
	PaddingLength  uint8
}

// Marshal encodes the packet to wire bytes.
func (p *Packet) Marshal() ([]byte, error) {
	if len(p.CSRC) > 15 {
		return nil, errkind.New(errkind.WireFormat, errTooManyCSRC)
	}
	size := fixedHeaderSize + 4*len(p.CSRC)
	var extBytes []byte
	if p.Extension != nil {
		var err error
		extBytes, err = marshalExtension(p.Extension)
		if err != nil {
			return nil, err
		}
		size += len(extBytes)
	}
	size += len(p.Payload)
	if p.Padding {
		size += int(p.PaddingLength)
	}

	buf := make([]byte, size)
	b0 := byte(version << 6)
	if p.Padding {
		b0 |= 0x20
	}
	if p.Extension != nil {
		b0 |= 0x10
	}
	b0 |= uint8(len(p.CSRC)) & 0x0F
	buf[0] = b0

	b1 := p.PayloadType & 0x7F
	if p.Marker {
		b1 |= 0x80
	}
	buf[1] = b1

	binary.BigEndian.PutUint16(buf[2:4], p.SequenceNumber)
	binary.BigEndian.PutUint32(buf[4:8], p.Timestamp)
	binary.BigEndian.PutUint32(buf[8:12], p.SSRC)

	off := fixedHeaderSize
	for _, csrc := range p.CSRC {
		binary.BigEndian.PutUint32(buf[off:off+4], csrc)
		off += 4
	}
	if extBytes != nil {
		copy(buf[off:], extBytes)
		off += len(extBytes)
	}
	copy(buf[off:], p.Payload)
	off += len(p.Payload)
	if p.Padding && p.PaddingLength > 0 {
		buf[len(buf)-1] = p.PaddingLength
	}
	return buf, nil
}

// Unmarshal decodes wire bytes into the packet.
func (p *Packet) Unmarshal(buf []byte) error {
	if len(buf) < fixedHeaderSize {
		return errkind.New(errkind.WireFormat, errShortHeader)
	}
	b0 := buf[0]
	p.Version = b0 >> 6
	if p.Version != version {
		return errkind.New(errkind.Validation, errBadVersion)
	}
	p.Padding = b0&0x20 != 0
	hasExt := b0&0x10 != 0
	cc := int(b0 & 0x0F)

	b1 := buf[1]
	p.Marker = b1&0x80 != 0
	p.PayloadType = b1 & 0x7F

	p.SequenceNumber = binary.BigEndian.Uint16(buf[2:4])
	p.Timestamp = binary.BigEndian.Uint32(buf[4:8])
	p.SSRC = binary.BigEndian.Uint32(buf[8:12])

	off := fixedHeaderSize
	if len(buf) < off+4*cc {
		return errkind.New(errkind.WireFormat, errShortHeader)
	}
	p.CSRC = make([]uint32, cc)
	for i := 0; i < cc; i++ {
		p.CSRC[i] = binary.BigEndian.Uint32(buf[off : off+4])
		off += 4
	}

	if hasExt {
		ext, n, err := unmarshalExtension(buf[off:])
		if err != nil {
			return err
		}
		p.Extension = ext
		off += n
	} else {
		p.Extension = nil
	}

	payloadEnd := len(buf)
	if p.Padding {
		if payloadEnd <= off {
			return errkind.New(errkind.WireFormat, errBadPadding)
		}
		padLen := int(buf[payloadEnd-1])
		if padLen == 0 || payloadEnd-padLen < off {
			return errkind.New(errkind.WireFormat, errBadPadding)
		}
		p.PaddingLength = uint8(padLen)
		payloadEnd -= padLen
	} else {
		p.PaddingLength = 0
	}
	if payloadEnd < off {
		return errkind.New(errkind.WireFormat, errBadPadding)
	}
	p.Payload = buf[off:payloadEnd]
	return nil
}

func marshalExtension(h *HeaderExtension) ([]byte, error) {
	switch h.Profile {
	case oneByteExtensionProfile:
		return marshalOneByteExtension(h)
	case twoByteExtensionProfile:
		return marshalTwoByteExtension(h)
	default:
		// Single opaque profile-defined block, padded to a 4-byte word.
		words := (len(h.Opaque) + 3) / 4
		out := make([]byte, 4+words*4)
		binary.BigEndian.PutUint16(out[0:2], h.Profile)
		binary.BigEndian.PutUint16(out[2:4], uint16(words))
		copy(out[4:], h.Opaque)
		return out, nil
	}
}

func marshalOneByteExtension(h *HeaderExtension) ([]byte, error) {
	var body []byte
	for _, e := range h.Elements {
		if e.ID == 0 || e.ID == 15 || len(e.Payload) == 0 || len(e.Payload) > 16 {
			return nil, errkind.New(errkind.WireFormat, errBadExtensionID)
		}
		body = append(body, byte(e.ID)<<4|byte(len(e.Payload)-1))
		body = append(body, e.Payload...)
	}
	words := (len(body) + 3) / 4
	out := make([]byte, 4+words*4)
	binary.BigEndian.PutUint16(out[0:2], oneByteExtensionProfile)
	binary.BigEndian.PutUint16(out[2:4], uint16(words))
	copy(out[4:], body)
	return out, nil
}

func marshalTwoByteExtension(h *HeaderExtension) ([]byte, error) {
	var body []byte
	for _, e := range h.Elements {
		if len(e.Payload) > 255 {
			return nil, errkind.New(errkind.WireFormat, errBadExtensionID)
		}
		body = append(body, e.ID, byte(len(e.Payload)))
		body = append(body, e.Payload...)
	}
	words := (len(body) + 3) / 4
	out := make([]byte, 4+words*4)
	binary.BigEndian.PutUint16(out[0:2], twoByteExtensionProfile)
	binary.BigEndian.PutUint16(out[2:4], uint16(words))
	copy(out[4:], body)
	return out, nil
}

func unmarshalExtension(buf []byte) (*HeaderExtension, int, error) {
	if len(buf) < 4 {
		return nil, 0, errkind.New(errkind.WireFormat, errShortHeader)
	}
	profile := binary.BigEndian.Uint16(buf[0:2])
	words := int(binary.BigEndian.Uint16(buf[2:4]))
	total := 4 + words*4
	if len(buf) < total {
		return nil, 0, errkind.New(errkind.WireFormat, errShortHeader)
	}
	body := buf[4:total]
	h := &HeaderExtension{Profile: profile}
	switch profile {
	case oneByteExtensionProfile:
		i := 0
		for i < len(body) {
			if body[i] == 0 { // padding byte
				i++
				continue
			}
			id := body[i] >> 4
			length := int(body[i]&0x0F) + 1
			i++
			if id == 15 {
				break // reserved "stop" id
			}
			if i+length > len(body) {
				return nil, 0, errkind.New(errkind.WireFormat, errBadExtensionID)
			}
			h.Elements = append(h.Elements, ExtensionElement{ID: id, Payload: append([]byte(nil), body[i:i+length]...)})
			i += length
		}
	case twoByteExtensionProfile:
		i := 0
		for i < len(body) {
			if body[i] == 0 {
				i++
				continue
			}
			if i+2 > len(body) {
				return nil, 0, errkind.New(errkind.WireFormat, errBadExtensionID)
			}
			id := body[i]
			length := int(body[i+1])
			i += 2
			if i+length > len(body) {
				return nil, 0, errkind.New(errkind.WireFormat, errBadExtensionID)
			}
			h.Elements = append(h.Elements, ExtensionElement{ID: id, Payload: append([]byte(nil), body[i:i+length]...)})
			i += length
		}
	default:
		h.Opaque = append([]byte(nil), body...)
	}
	return h, total, nil
}
