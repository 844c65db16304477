// Package multipath tags outgoing media packets with the subflow-id +
// subflow-specific-sequence-number header extension, strips it on receive
// and routes to the right subflow, and wraps/demuxes the control-plane
// MultipathWrapper compound.
package multipath

import (
	"sort"

	"github.com/7956968/rtpcore/pkg/errkind"
	"github.com/7956968/rtpcore/pkg/rtcppacket"
	"github.com/7956968/rtpcore/pkg/rtppacket"
)

// Translator owns the per-subflow sequence-number counters used on send and
// the extension id the session negotiated for the subflow tag.
type Translator struct {
	extensionID uint8
	nextSeq     map[uint16]uint16
	order       []uint16 // subflow ids in round-robin send order
	cursor      int
}

// NewTranslator returns a Translator that tags outgoing packets using
// extensionID for the subflow header element, round-robining sends across
// subflowIDs in ascending id order (the order of the argument is not kept).
func NewTranslator(extensionID uint8, subflowIDs []uint16) *Translator {
	ids := append([]uint16(nil), subflowIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &Translator{
		extensionID: extensionID,
		nextSeq:     make(map[uint16]uint16),
		order:       ids,
	}
}

// NextSubflow returns the subflow id the next outgoing packet should be
// routed over, round-robining across the configured set.
func (t *Translator) NextSubflow() uint16 {
	if len(t.order) == 0 {
		return 0
	}
	id := t.order[t.cursor%len(t.order)]
	t.cursor++
	return id
}

// Tag stamps pkt with the subflow-id and the next subflow-specific sequence
// number for that subflow, adding the header-extension element in place.
func (t *Translator) Tag(pkt *rtppacket.Packet, subflowID uint16) {
	seq := t.nextSeq[subflowID]
	t.nextSeq[subflowID] = seq + 1

	if pkt.Extension == nil {
		pkt.Extension = &rtppacket.HeaderExtension{Profile: rtppacket.OneByteExtensionProfile}
	}
	pkt.Extension.Set(t.extensionID, rtppacket.EncodeSubflowTag(rtppacket.SubflowTag{
		SubflowID:             subflowID,
		SubflowSequenceNumber: seq,
	}))
}

// Strip removes the subflow header extension from pkt (if present) and
// returns the tag it carried. ok is false when the packet has no subflow
// tag, meaning it arrived on a single-path leg.
func (t *Translator) Strip(pkt *rtppacket.Packet) (tag rtppacket.SubflowTag, ok bool, err error) {
	if pkt.Extension == nil {
		return rtppacket.SubflowTag{}, false, nil
	}
	payload, present := pkt.Extension.Get(t.extensionID)
	if !present {
		return rtppacket.SubflowTag{}, false, nil
	}
	tag, err = rtppacket.DecodeSubflowTag(payload)
	if err != nil {
		return rtppacket.SubflowTag{}, false, err
	}
	pkt.Extension.Delete(t.extensionID)
	return tag, true, nil
}

// WrapReports compounds a set of per-subflow control reports into one
// MultipathWrapper packet.
func WrapReports(reports map[uint16][]byte) *rtcppacket.MultipathWrapper {
	ids := make([]uint16, 0, len(reports))
	for id := range reports {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	w := &rtcppacket.MultipathWrapper{ReportType: rtcppacket.MPSubflowSpecificReport}
	for _, id := range ids {
		w.SubflowReports = append(w.SubflowReports, rtcppacket.SubflowReport{
			SubflowID: id,
			Compound:  reports[id],
		})
	}
	return w
}

// Demux splits a received MultipathWrapper back into its per-subflow
// compound control packets, the database's entry point for dispatching
// each to the right SubflowMember.
func Demux(w *rtcppacket.MultipathWrapper) (map[uint16][]byte, error) {
	if w.ReportType != rtcppacket.MPSubflowSpecificReport {
		return nil, errkind.New(errkind.WireFormat, errNotASubflowReport)
	}
	out := make(map[uint16][]byte, len(w.SubflowReports))
	for _, r := range w.SubflowReports {
		out[r.SubflowID] = r.Compound
	}
	return out, nil
}
