package rtcppacket

import (
	"encoding/binary"

	"github.com/7956968/rtpcore/pkg/errkind"
)

// SDES item types (RFC 3550 §6.5).
const (
	SDESEnd      = 0
	SDESCNAME    = 1
	SDESName     = 2
	SDESEmail    = 3
	SDESPhone    = 4
	SDESLocation = 5
	SDESTool     = 6
	SDESNote     = 7
	SDESPriv     = 8
)

// SDESItem is one (type, text) pair inside an SDES chunk.
type SDESItem struct {
	Type uint8
	Text string
}

// SDESChunk carries the source-description items for one SSRC/CSRC.
type SDESChunk struct {
	Source uint32
	Items  []SDESItem
}

// SourceDescription is the SDES packet: a list of per-source chunks (RFC
// 3550 §6.5). Each chunk is padded to a 4-byte boundary.
type SourceDescription struct {
	Chunks []SDESChunk
}

func marshalChunk(c SDESChunk) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, c.Source)
	for _, it := range c.Items {
		buf = append(buf, it.Type, byte(len(it.Text)))
		buf = append(buf, it.Text...)
	}
	buf = append(buf, SDESEnd)
	for len(buf)%4 != 0 {
		buf = append(buf, SDESEnd)
	}
	return buf
}

func (s *SourceDescription) Marshal() ([]byte, error) {
	if len(s.Chunks) > 31 {
		return nil, errkind.New(errkind.WireFormat, errTooManySources)
	}
	var body []byte
	for _, c := range s.Chunks {
		body = append(body, marshalChunk(c)...)
	}
	hdr := Header{}.marshal(PTSourceDescription, uint8(len(s.Chunks)), len(body))
	return append(hdr, body...), nil
}

func parseChunk(buf []byte) (SDESChunk, int, error) {
	if len(buf) < 4 {
		return SDESChunk{}, 0, errkind.New(errkind.WireFormat, errShort)
	}
	c := SDESChunk{Source: binary.BigEndian.Uint32(buf[0:4])}
	i := 4
	for i < len(buf) {
		t := buf[i]
		if t == SDESEnd {
			i++
			break
		}
		if i+2 > len(buf) {
			return SDESChunk{}, 0, errkind.New(errkind.WireFormat, errShort)
		}
		l := int(buf[i+1])
		if i+2+l > len(buf) {
			return SDESChunk{}, 0, errkind.New(errkind.WireFormat, errShort)
		}
		c.Items = append(c.Items, SDESItem{Type: t, Text: string(buf[i+2 : i+2+l])})
		i += 2 + l
	}
	for i%4 != 0 && i < len(buf) {
		i++
	}
	return c, i, nil
}

func (s *SourceDescription) Unmarshal(buf []byte) error {
	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	if h.PacketType != PTSourceDescription {
		return errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	total := wordsToBytes(h.Length)
	if len(buf) < total {
		return errkind.New(errkind.WireFormat, errShort)
	}
	body := buf[4:total]
	off := 0
	s.Chunks = nil
	for i := 0; i < int(h.Count); i++ {
		c, n, err := parseChunk(body[off:])
		if err != nil {
			return err
		}
		s.Chunks = append(s.Chunks, c)
		off += n
	}
	return nil
}

// Bye announces that one or more sources are leaving the session (RFC 3550
// §6.6).
type Bye struct {
	Sources []uint32
	Reason  string
}

func (b *Bye) Marshal() ([]byte, error) {
	if len(b.Sources) > 31 {
		return nil, errkind.New(errkind.WireFormat, errTooManySources)
	}
	body := make([]byte, 4*len(b.Sources))
	for i, s := range b.Sources {
		binary.BigEndian.PutUint32(body[i*4:i*4+4], s)
	}
	if b.Reason != "" {
		reason := append([]byte{byte(len(b.Reason))}, b.Reason...)
		for len(reason)%4 != 0 {
			reason = append(reason, 0)
		}
		body = append(body, reason...)
	}
	hdr := Header{}.marshal(PTBye, uint8(len(b.Sources)), len(body))
	return append(hdr, body...), nil
}

func (b *Bye) Unmarshal(buf []byte) error {
	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	if h.PacketType != PTBye {
		return errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	total := wordsToBytes(h.Length)
	if len(buf) < total {
		return errkind.New(errkind.WireFormat, errShort)
	}
	need := 4 * int(h.Count)
	if 4+need > total {
		return errkind.New(errkind.WireFormat, errShort)
	}
	b.Sources = make([]uint32, h.Count)
	for i := range b.Sources {
		b.Sources[i] = binary.BigEndian.Uint32(buf[4+i*4 : 8+i*4])
	}
	b.Reason = ""
	rest := buf[4+need : total]
	if len(rest) > 0 {
		l := int(rest[0])
		if 1+l <= len(rest) {
			b.Reason = string(rest[1 : 1+l])
		}
	}
	return nil
}

// ApplicationDefined carries opaque application data (RFC 3550 §6.7).
type ApplicationDefined struct {
	Subtype uint8
	SSRC    uint32
	Name    [4]byte
	Data    []byte
}

func (a *ApplicationDefined) Marshal() ([]byte, error) {
	data := a.Data
	for len(data)%4 != 0 {
		data = append(data, 0)
	}
	body := make([]byte, 8+len(data))
	binary.BigEndian.PutUint32(body[0:4], a.SSRC)
	copy(body[4:8], a.Name[:])
	copy(body[8:], data)
	hdr := Header{}.marshal(PTApplicationDefined, a.Subtype&0x1F, len(body))
	return append(hdr, body...), nil
}

func (a *ApplicationDefined) Unmarshal(buf []byte) error {
	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	if h.PacketType != PTApplicationDefined {
		return errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	total := wordsToBytes(h.Length)
	if len(buf) < total || total < 12 {
		return errkind.New(errkind.WireFormat, errShort)
	}
	a.Subtype = h.Count
	a.SSRC = binary.BigEndian.Uint32(buf[4:8])
	copy(a.Name[:], buf[8:12])
	a.Data = append([]byte(nil), buf[12:total]...)
	return nil
}
