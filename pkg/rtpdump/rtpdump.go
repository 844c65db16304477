// Package rtpdump implements a packet-capture persistence format: a
// sequence of records, each an 8-byte network-time arrival timestamp, a
// 4-byte size, and size bytes of payload, forming a flat binary trace
// replayable to drive a virtual transport in tests.
package rtpdump

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/7956968/rtpcore/pkg/errkind"
	"github.com/7956968/rtpcore/pkg/ntptime"
)

// Record is one captured packet: the network-time instant it arrived at,
// and its raw octets (an RTP or RTCP datagram, undifferentiated — the
// caller knows which stream it was capturing).
type Record struct {
	Arrival ntptime.Timestamp
	Payload []byte
}

// Writer appends Records to an underlying stream in the on-wire capture
// format.
type Writer struct {
	w *bufio.Writer
}

// NewWriter wraps w for sequential record writes.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write appends one record: 8-byte arrival, 4-byte length, payload.
func (wr *Writer) Write(rec Record) error {
	var hdr [12]byte
	binary.BigEndian.PutUint64(hdr[0:8], uint64(rec.Arrival))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(len(rec.Payload)))
	if _, err := wr.w.Write(hdr[:]); err != nil {
		return errkind.New(errkind.TransportFault, err)
	}
	if _, err := wr.w.Write(rec.Payload); err != nil {
		return errkind.New(errkind.TransportFault, err)
	}
	return nil
}

// Flush pushes any buffered output to the underlying writer.
func (wr *Writer) Flush() error {
	if err := wr.w.Flush(); err != nil {
		return errkind.New(errkind.TransportFault, err)
	}
	return nil
}

// Reader replays Records from an underlying stream in capture order.
type Reader struct {
	r *bufio.Reader
}

// NewReader wraps r for sequential record reads.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF once the stream is exhausted. A
// truncated trailing record (header or payload cut short) is reported as a
// WireFormat error rather than silently ignored.
func (rd *Reader) Next() (Record, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(rd.r, hdr[:]); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, errkind.New(errkind.WireFormat, err)
	}
	size := binary.BigEndian.Uint32(hdr[8:12])
	payload := make([]byte, size)
	if _, err := io.ReadFull(rd.r, payload); err != nil {
		return Record{}, errkind.New(errkind.WireFormat, err)
	}
	return Record{
		Arrival: ntptime.Timestamp(binary.BigEndian.Uint64(hdr[0:8])),
		Payload: payload,
	}, nil
}

// All drains every remaining record from rd.
func (rd *Reader) All() ([]Record, error) {
	var out []Record
	for {
		rec, err := rd.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
