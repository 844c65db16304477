package rtcppacket

import (
	"encoding/binary"

	"github.com/7956968/rtpcore/pkg/errkind"
)

// MPRTCP report types, carried in the type-specific field of a
// MultipathWrapper: SUBFLOW_SPECIFIC_REPORT / INTERFACE_ADVERTISEMENT_IPV4 /
// INTERFACE_ADVERTISEMENT_IPV6 / INTERFACE_ADVERTISEMENT_DNS.
const (
	MPSubflowSpecificReport      = 1
	MPInterfaceAdvertisementIPv4 = 2
	MPInterfaceAdvertisementIPv6 = 3
	MPInterfaceAdvertisementDNS  = 4
)

// SubflowReport is one subflow-id-keyed nested compound control packet,
// letting a multipath session compound per-subflow reports together.
type SubflowReport struct {
	SubflowID uint16
	Compound  []byte // the subflow's own compound control packet, wire-encoded
}

// InterfaceAdvertisement announces one local network interface available
// for a given subflow id; Address is 4 bytes for IPv4, 16 for IPv6, or an
// ASCII hostname for the DNS variant.
type InterfaceAdvertisement struct {
	SubflowID uint16
	Address   []byte
}

// MultipathWrapper wraps either a set of per-subflow compound reports, or a
// set of interface advertisements, under payload type 211.
type MultipathWrapper struct {
	ReportType     uint8
	SubflowReports []SubflowReport
	Advertisements []InterfaceAdvertisement
}

func (m *MultipathWrapper) Marshal() ([]byte, error) {
	var body []byte
	switch m.ReportType {
	case MPSubflowSpecificReport:
		for _, r := range m.SubflowReports {
			entry := make([]byte, 4+len(r.Compound))
			binary.BigEndian.PutUint16(entry[0:2], r.SubflowID)
			binary.BigEndian.PutUint16(entry[2:4], uint16(len(r.Compound)))
			copy(entry[4:], r.Compound)
			for len(entry)%4 != 0 {
				entry = append(entry, 0)
			}
			body = append(body, entry...)
		}
	case MPInterfaceAdvertisementIPv4, MPInterfaceAdvertisementIPv6, MPInterfaceAdvertisementDNS:
		for _, a := range m.Advertisements {
			entry := make([]byte, 4+len(a.Address))
			binary.BigEndian.PutUint16(entry[0:2], a.SubflowID)
			binary.BigEndian.PutUint16(entry[2:4], uint16(len(a.Address)))
			copy(entry[4:], a.Address)
			for len(entry)%4 != 0 {
				entry = append(entry, 0)
			}
			body = append(body, entry...)
		}
	default:
		return nil, errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	hdr := Header{}.marshal(PTMultipathWrapper, m.ReportType&0x1F, len(body))
	return append(hdr, body...), nil
}

func (m *MultipathWrapper) Unmarshal(buf []byte) error {
	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	if h.PacketType != PTMultipathWrapper {
		return errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	total := wordsToBytes(h.Length)
	if len(buf) < total {
		return errkind.New(errkind.WireFormat, errShort)
	}
	m.ReportType = h.Count
	body := buf[4:total]
	off := 0
	m.SubflowReports = nil
	m.Advertisements = nil
	for off < len(body) {
		if off+4 > len(body) {
			return errkind.New(errkind.WireFormat, errShort)
		}
		subflowID := binary.BigEndian.Uint16(body[off : off+2])
		l := int(binary.BigEndian.Uint16(body[off+2 : off+4]))
		start := off + 4
		if start+l > len(body) {
			return errkind.New(errkind.WireFormat, errShort)
		}
		payload := append([]byte(nil), body[start:start+l]...)
		entryLen := 4 + l
		for entryLen%4 != 0 {
			entryLen++
		}
		off += entryLen

		switch m.ReportType {
		case MPSubflowSpecificReport:
			m.SubflowReports = append(m.SubflowReports, SubflowReport{SubflowID: subflowID, Compound: payload})
		case MPInterfaceAdvertisementIPv4, MPInterfaceAdvertisementIPv6, MPInterfaceAdvertisementDNS:
			m.Advertisements = append(m.Advertisements, InterfaceAdvertisement{SubflowID: subflowID, Address: payload})
		default:
			return errkind.New(errkind.WireFormat, errUnknownPayloadType)
		}
	}
	return nil
}
