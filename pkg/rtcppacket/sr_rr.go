package rtcppacket

import (
	"encoding/binary"

	"github.com/7956968/rtpcore/pkg/errkind"
)

// SenderReport is sent by active senders to report transmission and
// reception statistics (RFC 3550 §6.4.1).
type SenderReport struct {
	SSRC            uint32
	NTPTime         uint64 // 64-bit network time, seconds.fraction
	RTPTime         uint32
	PacketCount     uint32
	OctetCount      uint32
	Reports         []ReportBlock
	ProfileExtension []byte
}

func (sr *SenderReport) Marshal() ([]byte, error) {
	rbBytes, err := marshalReportBlocks(sr.Reports)
	if err != nil {
		return nil, err
	}
	bodyLen := 24 + len(rbBytes) + len(sr.ProfileExtension)
	hdr := Header{}.marshal(PTSenderReport, uint8(len(sr.Reports)), bodyLen)
	buf := make([]byte, 4+bodyLen)
	copy(buf, hdr)
	binary.BigEndian.PutUint32(buf[4:8], sr.SSRC)
	binary.BigEndian.PutUint64(buf[8:16], sr.NTPTime)
	binary.BigEndian.PutUint32(buf[16:20], sr.RTPTime)
	binary.BigEndian.PutUint32(buf[20:24], sr.PacketCount)
	binary.BigEndian.PutUint32(buf[24:28], sr.OctetCount)
	copy(buf[28:], rbBytes)
	copy(buf[28+len(rbBytes):], sr.ProfileExtension)
	return buf, nil
}

func (sr *SenderReport) Unmarshal(buf []byte) error {
	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	if h.PacketType != PTSenderReport {
		return errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	total := wordsToBytes(h.Length)
	if len(buf) < total || total < 28 {
		return errkind.New(errkind.WireFormat, errShort)
	}
	sr.SSRC = binary.BigEndian.Uint32(buf[4:8])
	sr.NTPTime = binary.BigEndian.Uint64(buf[8:16])
	sr.RTPTime = binary.BigEndian.Uint32(buf[16:20])
	sr.PacketCount = binary.BigEndian.Uint32(buf[20:24])
	sr.OctetCount = binary.BigEndian.Uint32(buf[24:28])
	reports, n, err := parseReportBlocks(buf[28:total], int(h.Count))
	if err != nil {
		return err
	}
	sr.Reports = reports
	sr.ProfileExtension = append([]byte(nil), buf[28+n:total]...)
	return nil
}

// ReceiverReport is sent by participants that are not active senders (RFC
// 3550 §6.4.2).
type ReceiverReport struct {
	SSRC             uint32
	Reports          []ReportBlock
	ProfileExtension []byte
}

func (rr *ReceiverReport) Marshal() ([]byte, error) {
	rbBytes, err := marshalReportBlocks(rr.Reports)
	if err != nil {
		return nil, err
	}
	bodyLen := 4 + len(rbBytes) + len(rr.ProfileExtension)
	hdr := Header{}.marshal(PTReceiverReport, uint8(len(rr.Reports)), bodyLen)
	buf := make([]byte, 4+bodyLen)
	copy(buf, hdr)
	binary.BigEndian.PutUint32(buf[4:8], rr.SSRC)
	copy(buf[8:], rbBytes)
	copy(buf[8+len(rbBytes):], rr.ProfileExtension)
	return buf, nil
}

func (rr *ReceiverReport) Unmarshal(buf []byte) error {
	h, err := parseHeader(buf)
	if err != nil {
		return err
	}
	if h.PacketType != PTReceiverReport {
		return errkind.New(errkind.WireFormat, errUnknownPayloadType)
	}
	total := wordsToBytes(h.Length)
	if len(buf) < total || total < 8 {
		return errkind.New(errkind.WireFormat, errShort)
	}
	rr.SSRC = binary.BigEndian.Uint32(buf[4:8])
	reports, n, err := parseReportBlocks(buf[8:total], int(h.Count))
	if err != nil {
		return err
	}
	rr.Reports = reports
	rr.ProfileExtension = append([]byte(nil), buf[8+n:total]...)
	return nil
}
