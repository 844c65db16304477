package rtcppacket

import (
	"encoding/binary"

	"github.com/7956968/rtpcore/pkg/errkind"
)

const reportBlockSize = 24

// ReportBlock is one per-source reception-quality block carried by both
// SenderReport and ReceiverReport (RFC 3550 §6.4.1).
type ReportBlock struct {
	SSRC               uint32
	FractionLost       uint8
	CumulativeLost     int32 // signed 24-bit value, sign-extended
	ExtendedHighestSeq uint32
	Jitter             uint32
	LastSR             uint32 // middle 32 bits of the last SR's NTP timestamp
	DelaySinceLastSR   uint32 // units of 1/65536 second
}

func (rb ReportBlock) marshal(buf []byte) {
	binary.BigEndian.PutUint32(buf[0:4], rb.SSRC)
	cum := uint32(rb.CumulativeLost) & 0x00FFFFFF
	buf[4] = rb.FractionLost
	buf[5] = byte(cum >> 16)
	buf[6] = byte(cum >> 8)
	buf[7] = byte(cum)
	binary.BigEndian.PutUint32(buf[8:12], rb.ExtendedHighestSeq)
	binary.BigEndian.PutUint32(buf[12:16], rb.Jitter)
	binary.BigEndian.PutUint32(buf[16:20], rb.LastSR)
	binary.BigEndian.PutUint32(buf[20:24], rb.DelaySinceLastSR)
}

func parseReportBlock(buf []byte) (ReportBlock, error) {
	if len(buf) < reportBlockSize {
		return ReportBlock{}, errkind.New(errkind.WireFormat, errShort)
	}
	cum := uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7])
	if cum&0x00800000 != 0 {
		cum |= 0xFF000000 // sign-extend from 24 to 32 bits
	}
	return ReportBlock{
		SSRC:               binary.BigEndian.Uint32(buf[0:4]),
		FractionLost:       buf[4],
		CumulativeLost:     int32(cum),
		ExtendedHighestSeq: binary.BigEndian.Uint32(buf[8:12]),
		Jitter:             binary.BigEndian.Uint32(buf[12:16]),
		LastSR:             binary.BigEndian.Uint32(buf[16:20]),
		DelaySinceLastSR:   binary.BigEndian.Uint32(buf[20:24]),
	}, nil
}

func marshalReportBlocks(blocks []ReportBlock) ([]byte, error) {
	if len(blocks) > 31 {
		return nil, errkind.New(errkind.WireFormat, errTooManyReports)
	}
	buf := make([]byte, reportBlockSize*len(blocks))
	for i, rb := range blocks {
		rb.marshal(buf[i*reportBlockSize : (i+1)*reportBlockSize])
	}
	return buf, nil
}

func parseReportBlocks(buf []byte, count int) ([]ReportBlock, int, error) {
	need := reportBlockSize * count
	if len(buf) < need {
		return nil, 0, errkind.New(errkind.WireFormat, errShort)
	}
	out := make([]ReportBlock, count)
	for i := 0; i < count; i++ {
		rb, err := parseReportBlock(buf[i*reportBlockSize : (i+1)*reportBlockSize])
		if err != nil {
			return nil, 0, err
		}
		out[i] = rb
	}
	return out, need, nil
}
